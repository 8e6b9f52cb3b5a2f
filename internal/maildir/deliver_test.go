package maildir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Inbox")
	path, err := Deliver(dir, []byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new"), filepath.Dir(path))
	assert.NotContains(t, filepath.Base(path), ":2,")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestDeliverSeen(t *testing.T) {
	dir := t.TempDir()
	a, err := Deliver(dir, []byte("a"), "S")
	require.NoError(t, err)
	b, err := Deliver(dir, []byte("b"), "S")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ":2,S"))
	assert.Equal(t, filepath.Join(dir, "cur"), filepath.Dir(a))
}

func TestFolder(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/me/Maildir", "Sent"), Folder("/home/me/Maildir", "/Sent"))
}
