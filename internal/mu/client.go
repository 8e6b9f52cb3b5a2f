// Package mu drives a `mu server` process over its framed s-expression
// protocol.
package mu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/nhle/mumail/internal/debuglog"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/sexp"
)

const (
	defaultBinary           = "mu"
	defaultHandshakeTimeout = 10 * time.Second
	quitTimeout             = 2 * time.Second
)

// Options configures a server process.
type Options struct {
	// Binary is the mu executable. Defaults to "mu" on PATH.
	Binary string
	// Muhome selects an alternate database directory. Empty uses mu's
	// default.
	Muhome string
	// Log receives protocol events and the server's stderr. May be nil.
	Log *debuglog.Logger
	// HandshakeTimeout bounds the initial ping. Defaults to 10s.
	HandshakeTimeout time.Duration
}

// IndexState is the outcome of one PollIndexFrame call.
type IndexState int

const (
	// IndexPending means a progress frame arrived; poll again.
	IndexPending IndexState = iota
	// IndexTimedOut means no frame arrived before the deadline. It is not
	// an error; the run is still going.
	IndexTimedOut
	// IndexDone means the server reported the end of the run.
	IndexDone
)

func (s IndexState) String() string {
	switch s {
	case IndexPending:
		return "pending"
	case IndexTimedOut:
		return "timed out"
	case IndexDone:
		return "done"
	default:
		return "unknown"
	}
}

type frameResult struct {
	value sexp.Value
	err   error
}

// Client is one session with a mu server process. It is safe for use from
// multiple goroutines, but only one request is on the wire at a time.
type Client struct {
	log *debuglog.Logger
	cmd *exec.Cmd
	in  io.WriteCloser

	frames <-chan frameResult
	closed chan struct{}

	// mu serializes requests so responses are never interleaved.
	mu       sync.Mutex
	indexing bool
	readErr  error

	closeOnce sync.Once
	reapOnce  sync.Once
	exited    chan struct{}
}

// Start spawns `mu server` and performs the ping handshake. Any failure,
// including an error frame, kills the process.
func Start(ctx context.Context, opts Options) (*Client, error) {
	binary := opts.Binary
	if binary == "" {
		binary = defaultBinary
	}
	args := []string{"server"}
	if opts.Muhome != "" {
		args = append(args, "--muhome", opts.Muhome)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stderr = opts.Log.Writer()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating mu stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating mu stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s server: %w", binary, err)
	}
	opts.Log.Infof("started %s %s (pid %d)", binary, strings.Join(args, " "), cmd.Process.Pid)

	c := newClient(stdout, stdin, opts.Log)
	c.cmd = cmd
	// Kill the process if the client is dropped without Close.
	runtime.AddCleanup(c, func(p *os.Process) { _ = p.Kill() }, cmd.Process)

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.handshake(hctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("mu server handshake: %w", err)
	}
	return c, nil
}

// newClient wires a session over an existing pipe pair.
func newClient(r io.Reader, w io.WriteCloser, log *debuglog.Logger) *Client {
	frames := make(chan frameResult)
	closed := make(chan struct{})
	go pump(NewFrameReader(r), frames, closed, log)
	return &Client{
		log:    log,
		in:     w,
		frames: frames,
		closed: closed,
	}
}

// pump decodes frames in arrival order. It owns the read buffer. It must
// not reference the Client so an abandoned client can be collected.
func pump(fr *FrameReader, out chan<- frameResult, closed <-chan struct{}, log *debuglog.Logger) {
	defer close(out)
	for {
		v, err := fr.Next()
		if err != nil {
			log.Warnf("<- read failed: %v", err)
		} else {
			log.Debugf("<- %s", v)
		}
		select {
		case out <- frameResult{value: v, err: err}:
		case <-closed:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(pingCommand()); err != nil {
		return err
	}
	return c.expectPong(ctx)
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if err := c.send(pingCommand()); err != nil {
		return err
	}
	return c.expectPong(context.WithoutCancel(ctx))
}

func (c *Client) expectPong(ctx context.Context) error {
	v, err := c.recv(ctx)
	if err != nil {
		return err
	}
	if !IsPong(v) {
		return &UnexpectedResponseError{Want: "pong", Got: describe(v)}
	}
	return nil
}

// Find runs a search and collects every header batch until the server
// reports the end of results. Batches are appended in arrival order.
//
// Once sent, a request is read to completion; ctx cancellation is not
// observed mid-response because abandoning it would desynchronize the
// stream.
func (c *Client) Find(ctx context.Context, query string, opts FindOptions) ([]model.Envelope, error) {
	envs, _, err := c.find(ctx, query, opts)
	return envs, err
}

// FindPreview runs a capped search and also returns the total number of
// matches, which may exceed maxNum.
func (c *Client) FindPreview(ctx context.Context, query string, maxNum int) ([]model.Envelope, uint32, error) {
	opts := DefaultFindOptions()
	opts.MaxNum = maxNum
	return c.find(ctx, query, opts)
}

func (c *Client) find(ctx context.Context, query string, opts FindOptions) ([]model.Envelope, uint32, error) {
	if err := c.begin(); err != nil {
		return nil, 0, err
	}
	defer c.mu.Unlock()

	if err := c.send(findCommand(query, opts)); err != nil {
		return nil, 0, err
	}

	ctx = context.WithoutCancel(ctx)
	var envs []model.Envelope
	for {
		v, err := c.recv(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("finding %q: %w", query, err)
		}
		if total, ok := Found(v); ok {
			c.log.Infof("find %q: %d results, %d total", query, len(envs), total)
			return envs, total, nil
		}
		batch, err := DecodeHeaders(v)
		if err != nil {
			return nil, 0, fmt.Errorf("finding %q: %w", query, err)
		}
		envs = append(envs, batch...)
	}
}

// Move moves a message to maildir and/or sets its flags. Either may be
// nil; with both nil the call is a no-op reflag. It returns the docid the
// server assigned after the change.
//
// If the confirmation does not carry a docid the original docid is
// returned. The server may have renumbered the message in that case.
func (c *Client) Move(ctx context.Context, docid uint32, maildir, flags *string) (uint32, error) {
	if err := c.begin(); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	if err := c.send(moveCommand(docid, maildir, flags)); err != nil {
		return 0, err
	}
	v, err := c.recv(context.WithoutCancel(ctx))
	if err != nil {
		return 0, fmt.Errorf("moving docid %d: %w", docid, err)
	}
	newID, ok := UpdatedDocid(v)
	if !ok {
		c.log.Warnf("move %d: no docid in confirmation, keeping original", docid)
		return docid, nil
	}
	return newID, nil
}

// StartIndex asks the server to rescan the Maildir and returns without
// waiting. Call PollIndexFrame until it reports IndexDone or fails. Other
// requests return ErrIndexing until then.
func (c *Client) StartIndex(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.mu.Unlock()

	if err := c.send(indexCommand()); err != nil {
		return err
	}
	c.indexing = true
	return nil
}

// PollIndexFrame reads at most one frame of an index run. It returns
// IndexTimedOut when ctx ends first; the pending frame is not lost and
// will be seen by the next call.
func (c *Client) PollIndexFrame(ctx context.Context) (IndexState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.indexing {
		return IndexPending, ErrNotIndexing
	}

	v, err := c.readFrame(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return IndexTimedOut, nil
		}
		c.indexing = false
		return IndexPending, fmt.Errorf("indexing: %w", err)
	}

	switch {
	case IsErase(v):
		return IndexPending, nil
	case isError(v):
		c.indexing = false
		text, _ := ErrorText(v)
		c.log.Warnf("index: error: %s", text)
		return IndexPending, fmt.Errorf("indexing: %w", &ServerError{Text: text})
	case IsIndexDone(v):
		c.indexing = false
		c.log.Infof("index: complete")
		return IndexDone, nil
	default:
		return IndexPending, nil
	}
}

// Indexing reports whether an index run is being observed.
func (c *Client) Indexing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexing
}

// Quit asks the server to exit and waits briefly for it. Errors are
// ignored; the process is killed if it does not go away.
func (c *Client) Quit() {
	c.mu.Lock()
	if c.readErr == nil {
		_ = c.send(quitCommand())
	}
	c.mu.Unlock()

	if c.cmd != nil {
		select {
		case <-c.reap():
		case <-time.After(quitTimeout):
		}
	}
	c.Close()
}

// reap waits for the process in the background. The returned channel is
// closed once it has exited.
func (c *Client) reap() <-chan struct{} {
	c.reapOnce.Do(func() {
		c.exited = make(chan struct{})
		go func() {
			_ = c.cmd.Wait()
			close(c.exited)
		}()
	})
	return c.exited
}

// Close kills the server process and releases the pipes. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.in.Close()
		if c.cmd != nil {
			_ = c.cmd.Process.Kill()
			c.reap()
		}
		c.log.Infof("session closed")
	})
	return nil
}

// begin takes the request lock. On success the caller must unlock.
func (c *Client) begin() error {
	c.mu.Lock()
	if c.indexing {
		c.mu.Unlock()
		return ErrIndexing
	}
	if c.readErr != nil {
		c.mu.Unlock()
		return c.readErr
	}
	return nil
}

// send writes one command line. Callers hold c.mu.
func (c *Client) send(command string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.log.Infof("-> %s", command)
	if _, err := io.WriteString(c.in, command+"\n"); err != nil {
		return fmt.Errorf("writing %s: %w", commandName(command), err)
	}
	return nil
}

// readFrame returns the next raw frame. A transport or parse failure is
// sticky: every later request fails with it.
func (c *Client) readFrame(ctx context.Context) (sexp.Value, error) {
	if c.readErr != nil {
		return sexp.Value{}, c.readErr
	}
	select {
	case r, ok := <-c.frames:
		if !ok {
			c.readErr = ErrClosed
			return sexp.Value{}, ErrClosed
		}
		if r.err != nil {
			c.readErr = r.err
			return sexp.Value{}, r.err
		}
		return r.value, nil
	case <-c.closed:
		return sexp.Value{}, ErrClosed
	case <-ctx.Done():
		return sexp.Value{}, ctx.Err()
	}
}

// recv returns the next meaningful frame, skipping progress markers and
// failing on error frames.
func (c *Client) recv(ctx context.Context) (sexp.Value, error) {
	for {
		v, err := c.readFrame(ctx)
		if err != nil {
			return sexp.Value{}, err
		}
		if IsErase(v) {
			continue
		}
		if text, ok := ErrorText(v); ok {
			c.log.Warnf("server error: %s", text)
			return sexp.Value{}, &ServerError{Text: text}
		}
		return v, nil
	}
}

func isError(v sexp.Value) bool {
	return sexp.Has(v, "error")
}

func commandName(command string) string {
	name := strings.TrimPrefix(command, "(")
	if i := strings.IndexAny(name, " )"); i >= 0 {
		name = name[:i]
	}
	return name + " command"
}

// EnsureDatabase creates and indexes a mu database under muhome when none
// exists yet. An empty muhome means mu's default database, which is
// assumed to be initialized.
func EnsureDatabase(ctx context.Context, binary, muhome, maildir string) error {
	if muhome == "" {
		return nil
	}
	if binary == "" {
		binary = defaultBinary
	}
	if info, err := os.Stat(filepath.Join(muhome, "xapian")); err == nil && info.IsDir() {
		return nil
	}
	if err := os.MkdirAll(muhome, 0o700); err != nil {
		return fmt.Errorf("creating muhome %s: %w", muhome, err)
	}

	steps := [][]string{
		{"init", "--muhome", muhome, "--maildir", model.ExpandHome(maildir)},
		{"index", "--muhome", muhome},
	}
	for _, args := range steps {
		out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("running %s %s: %w: %s", binary, args[0], err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}
