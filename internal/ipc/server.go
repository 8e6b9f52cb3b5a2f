package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// Command names on the wire.
const (
	CmdOpen     = "open"
	CmdNavigate = "navigate"
	CmdQuit     = "quit"
)

// Command is one newline-delimited JSON request.
type Command struct {
	Cmd    string `json:"cmd"`
	URL    string `json:"url,omitempty"`
	Folder string `json:"folder,omitempty"`
}

// Reply answers a Command.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Validate checks the command is well formed before it is handed to the
// event loop.
func (c Command) Validate() error {
	switch c.Cmd {
	case CmdOpen:
		_, err := ParseURL(c.URL)
		return err
	case CmdNavigate:
		if c.Folder == "" {
			return errors.New("navigate: folder is required")
		}
		return nil
	case CmdQuit:
		return nil
	}
	return fmt.Errorf("unknown command %q", c.Cmd)
}

// CommandMsg is the tea.Msg delivered for each accepted command.
type CommandMsg struct {
	Command Command
}

// SocketPath returns $XDG_RUNTIME_DIR/mumail.sock, or /tmp/mumail-<uid>.sock
// when the runtime dir is unset.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mumail.sock")
	}
	return fmt.Sprintf("/tmp/mumail-%d.sock", os.Getuid())
}

// Server accepts control connections on a unix socket and queues valid
// commands for the event loop.
type Server struct {
	path     string
	listener net.Listener
	cmds     chan Command
	done     chan struct{}
	cancel   context.CancelFunc
	group    *errgroup.Group
	once     sync.Once
}

// Listen binds path, replacing a stale socket file, and starts serving.
func Listen(ctx context.Context, path string) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating socket dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
			conn.Close()
			return nil, fmt.Errorf("another instance is listening on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s := &Server{
		path:     path,
		listener: ln,
		cmds:     make(chan Command),
		done:     make(chan struct{}),
		cancel:   cancel,
		group:    g,
	}

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		s.acceptLoop(ctx, g)
		return nil
	})
	return s, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Close stops accepting, waits for open connections and removes the socket.
func (s *Server) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	err := s.group.Wait()
	os.Remove(s.path)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Wait returns a tea.Cmd that delivers the next command as a CommandMsg.
// Re-issue it after handling each message.
func (s *Server) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case c := <-s.cmds:
			return CommandMsg{Command: c}
		case <-s.done:
			return nil
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, g *errgroup.Group) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		g.Go(func() error {
			s.handle(ctx, conn)
			return nil
		})
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var reply Reply
		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			reply.Error = "malformed command: " + err.Error()
		} else if err := cmd.Validate(); err != nil {
			reply.Error = err.Error()
		} else {
			select {
			case s.cmds <- cmd:
				reply.OK = true
			case <-ctx.Done():
				enc.Encode(Reply{Error: "shutting down"})
				return
			}
		}
		if err := enc.Encode(reply); err != nil {
			// The client hung up.
			return
		}
	}
}

// ErrNotRunning is returned by Send when no instance owns the socket.
var ErrNotRunning = errors.New("no running mumail instance")

// Send delivers cmd to the instance listening on path and waits for its
// reply.
func Send(ctx context.Context, path string, cmd Command) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || isConnRefused(err) {
			return fmt.Errorf("%w (socket %s)", ErrNotRunning, path)
		}
		return fmt.Errorf("connecting to %s: %w", path, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
