package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigEnvVar overrides the configuration file location.
const ConfigEnvVar = "MUMAIL_CONFIG"

// FolderConfig maps triage targets to maildir paths relative to the
// account's Maildir root.
type FolderConfig struct {
	Inbox   string `mapstructure:"inbox" yaml:"inbox"`
	Archive string `mapstructure:"archive" yaml:"archive"`
	Drafts  string `mapstructure:"drafts" yaml:"drafts"`
	Sent    string `mapstructure:"sent" yaml:"sent"`
	Trash   string `mapstructure:"trash" yaml:"trash"`
	Spam    string `mapstructure:"spam" yaml:"spam"`
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// Encryption is one of "starttls", "ssl" or "none".
	Encryption string `mapstructure:"encryption" yaml:"encryption"`

	Username string `mapstructure:"username" yaml:"username"`

	// Password is used only when neither PasswordCommand nor the keyring
	// yields one.
	Password string `mapstructure:"password" yaml:"password"`

	// PasswordCommand is run with sh -c; the first line of its output is
	// the password.
	PasswordCommand string `mapstructure:"password_command" yaml:"password_command"`
}

// IMAPConfig enables the built-in fetcher for an account.
type IMAPConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	TLS             bool   `mapstructure:"tls" yaml:"tls"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password"`
	PasswordCommand string `mapstructure:"password_command" yaml:"password_command"`
}

// AccountConfig is one mailbox with its own mu database.
type AccountConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Email   string `mapstructure:"email" yaml:"email"`
	Maildir string `mapstructure:"maildir" yaml:"maildir"`

	// Muhome selects the mu database. See EffectiveMuhome.
	Muhome string `mapstructure:"muhome" yaml:"muhome"`

	Default bool `mapstructure:"default" yaml:"default"`

	// SyncCommand is run with sh -c to fetch mail before reindexing.
	SyncCommand string `mapstructure:"sync_command" yaml:"sync_command"`

	Folders FolderConfig `mapstructure:"folders" yaml:"folders"`
	SMTP    SMTPConfig   `mapstructure:"smtp" yaml:"smtp"`
	IMAP    IMAPConfig   `mapstructure:"imap" yaml:"imap"`
}

// EffectiveMuhome returns the database directory to pass to mu. With
// several accounts each needs its own database, so an unset muhome
// becomes ~/.cache/mu/<name>.
func (a AccountConfig) EffectiveMuhome(multiAccount bool) string {
	if a.Muhome != "" {
		return ExpandHome(a.Muhome)
	}
	if !multiAccount {
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "mu", a.Name)
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`

	// Editor is used for composing. Defaults to $EDITOR, then vi.
	Editor string `mapstructure:"editor" yaml:"editor"`

	MuBinary string `mapstructure:"mu_binary" yaml:"mu_binary"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`

	// WatchMaildir reindexes when new files appear under the Maildir.
	WatchMaildir bool `mapstructure:"watch_maildir" yaml:"watch_maildir"`

	// SyncInterval runs the account's sync periodically. Zero disables it.
	SyncInterval time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`

	// Bindings overrides key bindings: action name to list of keys.
	Bindings map[string][]string `mapstructure:"bindings" yaml:"bindings"`

	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// DefaultAccount returns the account marked default, else the first one.
func (c *AppConfig) DefaultAccount() int {
	for i, a := range c.Accounts {
		if a.Default {
			return i
		}
	}
	return 0
}

// MultiAccount reports whether more than one account is configured.
func (c *AppConfig) MultiAccount() bool { return len(c.Accounts) > 1 }

// DefaultConfigPath returns $MUMAIL_CONFIG, else
// $XDG_CONFIG_HOME/mumail/config.yaml, else ~/.config/mumail/config.yaml.
func DefaultConfigPath() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mumail", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mumail", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "mumail")
}

func defaultEditor() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}

// defaultAppConfig returns a configuration with a single account reading
// ~/Maildir through mu's default database.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Accounts: []AccountConfig{},
		Editor:   defaultEditor(),
		MuBinary: "mu",
		PageSize: 500,
		DataDir:  defaultDataDir(),
	}
}

func defaultFolders() FolderConfig {
	return FolderConfig{
		Inbox:   "/Inbox",
		Archive: "/Archive",
		Drafts:  "/Drafts",
		Sent:    "/Sent",
		Trash:   "/Trash",
		Spam:    "/Spam",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("editor", defaultEditor())
	v.SetDefault("mu_binary", "mu")
	v.SetDefault("page_size", 500)
	v.SetDefault("data_dir", defaultDataDir())

	cfg := defaultAppConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return finish(cfg), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return finish(cfg), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Accounts {
		if !v.IsSet(fmt.Sprintf("accounts.%d.imap.tls", i)) {
			cfg.Accounts[i].IMAP.TLS = true
		}
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return finish(cfg), nil
}

// finish fills per-account defaults and guarantees at least one account.
func finish(cfg *AppConfig) *AppConfig {
	if len(cfg.Accounts) == 0 {
		cfg.Accounts = []AccountConfig{{
			Name:    "default",
			Maildir: "~/Maildir",
			Default: true,
			IMAP:    IMAPConfig{TLS: true},
		}}
	}
	df := defaultFolders()
	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		if a.Name == "" {
			a.Name = fmt.Sprintf("account%d", i+1)
		}
		if a.Maildir == "" {
			a.Maildir = "~/Maildir"
		}
		fillString(&a.Folders.Inbox, df.Inbox)
		fillString(&a.Folders.Archive, df.Archive)
		fillString(&a.Folders.Drafts, df.Drafts)
		fillString(&a.Folders.Sent, df.Sent)
		fillString(&a.Folders.Trash, df.Trash)
		fillString(&a.Folders.Spam, df.Spam)
		if a.SMTP.Port == 0 {
			a.SMTP.Port = 587
		}
		fillString(&a.SMTP.Encryption, "starttls")
		if a.IMAP.Port == 0 {
			a.IMAP.Port = 993
		}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return cfg
}

func validate(cfg *AppConfig) error {
	names := make(map[string]bool)
	for _, a := range cfg.Accounts {
		if a.Name != "" && names[a.Name] {
			return fmt.Errorf("duplicate account name %q", a.Name)
		}
		names[a.Name] = true
		switch strings.ToLower(a.SMTP.Encryption) {
		case "", "starttls", "ssl", "tls", "none":
		default:
			return fmt.Errorf("account %q: unknown smtp encryption %q", a.Name, a.SMTP.Encryption)
		}
	}
	return nil
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("accounts", cfg.Accounts)
	v.Set("editor", cfg.Editor)
	v.Set("mu_binary", cfg.MuBinary)
	v.Set("page_size", cfg.PageSize)
	v.Set("watch_maildir", cfg.WatchMaildir)
	v.Set("sync_interval", cfg.SyncInterval.String())
	v.Set("data_dir", cfg.DataDir)
	if len(cfg.Bindings) > 0 {
		v.Set("bindings", cfg.Bindings)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
