package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/render"
)

const message = "From: Alice <alice@example.com>\r\n" +
	"Subject: Quarterly numbers\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Numbers are attached.\r\n"

func writeMessage(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "1700000000.abc.host:2,S")
	require.NoError(t, os.WriteFile(path, []byte(message), 0o644))
	return path
}

func TestShowLoadsThroughCache(t *testing.T) {
	path := writeMessage(t)
	m := New(render.NewCache(4), 80, 20)

	cmd := m.Show(&model.Envelope{Path: path})
	require.NotNil(t, cmd)
	loaded, ok := cmd().(LoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.Err)

	m, _ = m.Update(loaded)
	require.NotNil(t, m.Message())
	assert.Equal(t, "Quarterly numbers", m.Message().Subject)
	assert.Contains(t, m.View(), "Numbers are attached.")

	// Same file again: nothing to do.
	assert.Nil(t, m.Show(&model.Envelope{Path: path}))
}

func TestStaleLoadIgnored(t *testing.T) {
	path := writeMessage(t)
	m := New(render.NewCache(4), 80, 20)

	first := m.Show(&model.Envelope{Path: path})
	m.Show(&model.Envelope{Path: filepath.Join(t.TempDir(), "other")})

	m, _ = m.Update(first())
	assert.Nil(t, m.Message())
	assert.NotEqual(t, path, m.Path())
}

func TestLoadError(t *testing.T) {
	m := New(render.NewCache(4), 80, 20)
	cmd := m.Show(&model.Envelope{Path: filepath.Join(t.TempDir(), "gone")})
	m, _ = m.Update(cmd())
	assert.Nil(t, m.Message())
	assert.Contains(t, m.View(), "Cannot read message")
}

func TestClear(t *testing.T) {
	m := New(render.NewCache(4), 80, 20)
	m.Show(&model.Envelope{Path: "x"})
	assert.Nil(t, m.Show(nil))
	assert.Empty(t, m.Path())
}
