// Package watch reports Maildir changes made outside mu so the loop can
// schedule a reindex.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/nhle/mumail/internal/debuglog"
)

// DefaultDebounce coalesces bursts such as a sync delivering many messages.
const DefaultDebounce = time.Second

// ChangedMsg is sent once per debounced burst of Maildir events.
type ChangedMsg struct {
	Paths []string
}

// Watcher watches every new/ and cur/ directory below a Maildir root.
type Watcher struct {
	root     string
	debounce time.Duration
	log      *debuglog.Logger

	fs     *fsnotify.Watcher
	out    chan ChangedMsg
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts watching root. A zero debounce uses DefaultDebounce.
func New(ctx context.Context, root string, debounce time.Duration, log *debuglog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		root:     root,
		debounce: debounce,
		log:      log,
		fs:       fw,
		out:      make(chan ChangedMsg),
		cancel:   cancel,
	}
	if err := w.addAll(); err != nil {
		cancel()
		fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	w.wg.Wait()
	return w.fs.Close()
}

// Wait returns a tea.Cmd delivering the next ChangedMsg. Re-issue it after
// each message.
func (w *Watcher) Wait() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-w.out
		if !ok {
			return nil
		}
		return msg
	}
}

func (w *Watcher) addAll() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Folders can vanish mid-walk while a sync is running.
			if path != w.root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == "tmp" || d.Name() == ".notmuch" {
			return filepath.SkipDir
		}
		// Folder directories are watched too so new folders are picked up.
		if err := w.fs.Add(path); err != nil {
			w.log.Warnf("watch %s: %v", path, err)
		}
		if d.Name() == "new" || d.Name() == "cur" {
			return filepath.SkipDir
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.out)

	var (
		pending []string
		timer   *time.Timer
		fire    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				w.addAll()
			}
			pending = append(pending, ev.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watch error: %v", err)
		case <-fire:
			fire = nil
			msg := ChangedMsg{Paths: pending}
			pending = nil
			select {
			case w.out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
