// Package debuglog is the opt-in diagnostic log for the mu protocol.
//
// Logging is enabled by pointing MUMAIL_LOG at a file. The variable is read
// once per process; a nil *Logger is valid and drops everything.
package debuglog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gologme/log"
)

// EnvVar names the environment variable holding the log file path.
const EnvVar = "MUMAIL_LOG"

var envPath = sync.OnceValue(func() string {
	return os.Getenv(EnvVar)
})

// Logger appends protocol events to a file.
type Logger struct {
	mu     sync.Mutex
	log    *log.Logger
	closer io.Closer
}

// FromEnv opens the file named by MUMAIL_LOG. It returns nil, nil when the
// variable is unset.
func FromEnv() (*Logger, error) {
	path := envPath()
	if path == "" {
		return nil, nil
	}
	return Open(path)
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening debug log %s: %w", path, err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New logs to w at every level.
func New(w io.Writer) *Logger {
	gl := log.New(w, "[mumail] ", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	for _, level := range []string{"error", "warn", "info", "debug"} {
		gl.EnableLevel(level)
	}
	return &Logger{log: gl}
}

// Enabled reports whether anything will be written.
func (l *Logger) Enabled() bool { return l != nil }

// Infof records a high-level event such as a command being sent.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.log.Infof(format, args...)
}

// Debugf records low-level detail such as raw frames.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.log.Debugf(format, args...)
}

// Warnf records a failure.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.log.Warnf(format, args...)
}

// Writer returns a writer into the log file, used to capture the server's
// stderr. It returns nil for a nil Logger so exec discards the output.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return nil
	}
	return &lockedWriter{l: l}
}

// Close closes the underlying file, if Open created one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type lockedWriter struct {
	l *Logger
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	return w.l.log.Writer().Write(p)
}
