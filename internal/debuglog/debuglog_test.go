package debuglog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger

	assert.False(t, l.Enabled())
	assert.NotPanics(t, func() {
		l.Infof("x %d", 1)
		l.Debugf("y")
		l.Warnf("z")
	})
	assert.Nil(t, l.Writer())
	assert.NoError(t, l.Close())
}

func TestLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Infof("send %s", "(ping)")
	l.Debugf("frame %d bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "send (ping)")
	assert.Contains(t, out, "frame 12 bytes")
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proto.log")

	l, err := Open(path)
	require.NoError(t, err)
	l.Infof("first")
	_, err = l.Writer().Write([]byte("stderr line\n"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "stderr line")
}
