package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileGivesDefaultAccount(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	require.Len(t, cfg.Accounts, 1)
	a := cfg.Accounts[0]
	assert.Equal(t, "default", a.Name)
	assert.Equal(t, "~/Maildir", a.Maildir)
	assert.Equal(t, "/Archive", a.Folders.Archive)
	assert.Equal(t, 587, a.SMTP.Port)
	assert.Equal(t, "starttls", a.SMTP.Encryption)
	assert.Equal(t, "mu", cfg.MuBinary)
	assert.Equal(t, 500, cfg.PageSize)
	assert.False(t, cfg.MultiAccount())
}

func TestLoadConfigAccounts(t *testing.T) {
	path := writeConfig(t, `
editor: nvim
sync_interval: 5m
watch_maildir: true
bindings:
  archive: ["a", "e"]
accounts:
  - name: personal
    email: me@example.com
    maildir: ~/Mail/personal
    sync_command: mbsync personal
    folders:
      archive: /All Mail
    smtp:
      host: smtp.example.com
      encryption: ssl
      port: 465
  - name: work
    email: me@work.example
    maildir: ~/Mail/work
    muhome: /tmp/mu-work
    default: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "nvim", cfg.Editor)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.WatchMaildir)
	assert.Equal(t, []string{"a", "e"}, cfg.Bindings["archive"])

	require.Len(t, cfg.Accounts, 2)
	assert.True(t, cfg.MultiAccount())
	assert.Equal(t, 1, cfg.DefaultAccount())

	p := cfg.Accounts[0]
	assert.Equal(t, "/All Mail", p.Folders.Archive)
	assert.Equal(t, "/Inbox", p.Folders.Inbox)
	assert.Equal(t, "ssl", p.SMTP.Encryption)
	assert.Equal(t, 465, p.SMTP.Port)
	assert.Equal(t, "mbsync personal", p.SyncCommand)

	w := cfg.Accounts[1]
	assert.Equal(t, "/tmp/mu-work", w.EffectiveMuhome(true))
	assert.Equal(t, 587, w.SMTP.Port)
}

func TestLoadConfigRejectsDuplicateAccounts(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - name: a
  - name: a
`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "duplicate account")
}

func TestLoadConfigRejectsUnknownEncryption(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - name: a
    smtp:
      encryption: rot13
`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "rot13")
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfig(t, "accounts: [\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEffectiveMuhome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	a := AccountConfig{Name: "personal"}
	assert.Equal(t, "", a.EffectiveMuhome(false))
	assert.Equal(t, filepath.Join(home, ".cache", "mu", "personal"), a.EffectiveMuhome(true))

	a.Muhome = "~/mu"
	assert.Equal(t, filepath.Join(home, "mu"), a.EffectiveMuhome(false))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := &AppConfig{
		Accounts: []AccountConfig{{
			Name:    "home",
			Email:   "me@home.example",
			Maildir: "~/Maildir",
			SMTP:    SMTPConfig{Host: "smtp.home.example", Port: 587, Encryption: "starttls"},
		}},
		Editor:       "vim",
		MuBinary:     "mu",
		PageSize:     200,
		SyncInterval: 10 * time.Minute,
	}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
	assert.Equal(t, "home", loaded.Accounts[0].Name)
	assert.Equal(t, "smtp.home.example", loaded.Accounts[0].SMTP.Host)
	assert.Equal(t, 200, loaded.PageSize)
	assert.Equal(t, 10*time.Minute, loaded.SyncInterval)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Maildir"), ExpandHome("~/Maildir"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
