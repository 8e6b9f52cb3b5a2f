// Package jobs runs detached background work (shell commands and Go
// functions) and delivers their completions to the event loop.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/semaphore"
)

// State represents the current state of a job.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status holds the state for a single named job.
type Status struct {
	Name    string
	State   State
	LastRun time.Time
	Error   error
}

// ResultMsg is a tea.Msg sent when a job completes.
type ResultMsg struct {
	Name     string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Duration time.Duration
}

// Summary returns a one-line description for the status bar.
func (r ResultMsg) Summary() string {
	if r.Err != nil {
		msg := strings.TrimSpace(r.Stderr)
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		if msg == "" {
			msg = r.Err.Error()
		}
		return fmt.Sprintf("%s failed: %s", r.Name, msg)
	}
	out := strings.TrimSpace(r.Stdout)
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	if out == "" {
		return r.Name + " done"
	}
	return r.Name + ": " + out
}

// Func is Go work run as a job. The returned string becomes Stdout.
type Func func(ctx context.Context) (string, error)

// ShellFunc wraps a sh -c command as a Func, e.g. for Every. Stderr is
// folded into the error when the command fails.
func ShellFunc(command string) Func {
	return func(ctx context.Context) (string, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return stdout.String(), fmt.Errorf("%w: %s", err, msg)
			}
			return stdout.String(), err
		}
		return stdout.String(), nil
	}
}

// jobTimeout is the maximum time allowed for a single job.
const jobTimeout = 10 * time.Minute

// DefaultParallel bounds how many jobs run at once.
const DefaultParallel = 4

// Runner starts jobs on goroutines and queues their results.
type Runner struct {
	sem      *semaphore.Weighted
	statuses map[string]*Status
	resultCh chan ResultMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	wg       gosync.WaitGroup
	stopped  bool
	timeout  time.Duration
}

// New creates a runner allowing parallel concurrent jobs.
func New(parallel int64) *Runner {
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	return &Runner{
		sem:      semaphore.NewWeighted(parallel),
		statuses: make(map[string]*Status),
		resultCh: make(chan ResultMsg, 16),
		stopCh:   make(chan struct{}),
		timeout:  jobTimeout,
	}
}

// Start returns a tea.Cmd that subscribes to job results.
func (r *Runner) Start() tea.Cmd {
	return r.waitForResult()
}

// Stop cancels running jobs and stops periodic schedules.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}

// Shell runs command with sh -c. A non-zero exit is reported in the
// result's ExitCode and Err.
func (r *Runner) Shell(name, command string) {
	r.start(name, func() ResultMsg { return r.runShell(name, command) })
}

// Go runs fn as a job.
func (r *Runner) Go(name string, fn Func) {
	r.start(name, func() ResultMsg { return r.runFunc(name, fn) })
}

func (r *Runner) start(name string, run func() ResultMsg) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	st, ok := r.statuses[name]
	if !ok {
		st = &Status{Name: name}
		r.statuses[name] = st
	}
	st.State = Running
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.finish(run())
	}()
}

// Every runs fn each interval until Stop, skipping a tick while the
// previous run is still going.
func (r *Runner) Every(name string, interval time.Duration, fn Func) {
	if interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				if !r.IsRunning(name) {
					r.Go(name, fn)
				}
			}
		}
	}()
}

// IsRunning reports whether the named job is in flight.
func (r *Runner) IsRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statuses[name]
	return ok && st.State == Running
}

// GetStatuses returns the current status of every job seen so far.
func (r *Runner) GetStatuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

func (r *Runner) context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (r *Runner) runShell(name, command string) ResultMsg {
	ctx, cancel := r.context()
	defer cancel()

	start := time.Now()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return ResultMsg{Name: name, Err: err, ExitCode: -1}
	}
	defer r.sem.Release(1)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	msg := ResultMsg{
		Name:     name,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg.ExitCode = exitErr.ExitCode()
		} else {
			msg.ExitCode = -1
		}
		msg.Err = fmt.Errorf("running %s: %w", name, err)
	}
	return msg
}

func (r *Runner) runFunc(name string, fn Func) ResultMsg {
	ctx, cancel := r.context()
	defer cancel()

	start := time.Now()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return ResultMsg{Name: name, Err: err, ExitCode: -1}
	}
	defer r.sem.Release(1)

	out, err := fn(ctx)
	msg := ResultMsg{Name: name, Stdout: out, Duration: time.Since(start)}
	if err != nil {
		msg.Err = err
		msg.ExitCode = 1
	}
	return msg
}

func (r *Runner) finish(msg ResultMsg) {
	r.mu.Lock()
	if st, ok := r.statuses[msg.Name]; ok {
		st.LastRun = time.Now()
		st.Error = msg.Err
		if msg.Err != nil {
			st.State = Failed
		} else {
			st.State = Idle
		}
	}
	r.mu.Unlock()

	// Completions are never dropped; block until the loop takes them or
	// the runner is stopped.
	select {
	case r.resultCh <- msg:
	case <-r.stopCh:
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (r *Runner) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-r.resultCh:
			return result
		case <-r.stopCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next job result.
// This should be called after processing a ResultMsg to continue
// listening for future results.
func (r *Runner) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}
