package app

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/imapsync"
	"github.com/nhle/mumail/internal/jobs"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/watch"
)

const (
	syncJobPrefix = "sync:"
	sendJobName   = "send"
)

// watchEventMsg tags a change notification with the watcher it came from
// so events from a watcher replaced by an account switch are dropped.
type watchEventMsg struct {
	w       *watch.Watcher
	changed watch.ChangedMsg
}

func syncJobName(account string) string {
	return syncJobPrefix + account
}

// syncFunc returns the account's mail fetch: sync_command when set, else
// the built-in IMAP fetcher when an IMAP host is configured.
func (m Model) syncFunc(acct model.AccountConfig) jobs.Func {
	if acct.SyncCommand != "" {
		return nil
	}
	if acct.IMAP.Host == "" || m.store == nil {
		return nil
	}
	s := &imapsync.Syncer{Account: acct, Store: m.store, Log: m.log}
	return s.Job(m.ring)
}

// runSync starts the current account's fetch now.
func (m *Model) runSync() tea.Cmd {
	acct := m.acct()
	name := syncJobName(acct.Name)
	if m.runner.IsRunning(name) {
		return m.setStatus("Sync already running", false)
	}
	switch {
	case acct.SyncCommand != "":
		m.runner.Shell(name, acct.SyncCommand)
	case m.syncFunc(acct) != nil:
		m.runner.Go(name, m.syncFunc(acct))
	default:
		return m.setStatus("No sync_command or imap host configured for "+acct.Name, true)
	}
	return m.setStatus("Syncing "+acct.Name+"…", false)
}

// registerSync schedules the periodic fetch for the current account. Each
// account keeps its own schedule once registered; results for accounts
// not on screen mark them for reindexing on the next switch.
func (m *Model) registerSync() tea.Cmd {
	acct := m.acct()
	if m.cfg.SyncInterval <= 0 || m.scheduled[acct.Name] {
		return nil
	}
	name := syncJobName(acct.Name)
	switch {
	case acct.SyncCommand != "":
		m.runner.Every(name, m.cfg.SyncInterval, jobs.ShellFunc(acct.SyncCommand))
	case m.syncFunc(acct) != nil:
		m.runner.Every(name, m.cfg.SyncInterval, m.syncFunc(acct))
	default:
		return nil
	}
	m.scheduled[acct.Name] = true
	m.log.Infof("sync for %s every %s", acct.Name, m.cfg.SyncInterval)
	return nil
}

func (m Model) handleJobResult(msg jobs.ResultMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.runner.WaitForNextResult()}
	isErr := msg.Err != nil
	cmds = append(cmds, m.setStatus(msg.Summary(), isErr))

	switch {
	case isErr:
		m.log.Warnf("job %s: %v: %s", msg.Name, msg.Err, strings.TrimSpace(msg.Stderr))
	case strings.HasPrefix(msg.Name, syncJobPrefix):
		account := strings.TrimPrefix(msg.Name, syncJobPrefix)
		if account == m.acct().Name {
			cmds = append(cmds, m.requestReindex())
		} else {
			m.dirty[account] = true
		}
	case msg.Name == sendJobName:
		// The sent copy was filed into the Maildir.
		cmds = append(cmds, m.requestReindex())
	}
	return m, tea.Batch(cmds...)
}

// restartWatcher watches the current account's Maildir when enabled.
func (m *Model) restartWatcher() tea.Cmd {
	m.closeWatcher()
	if !m.cfg.WatchMaildir {
		return nil
	}
	root := model.ExpandHome(m.acct().Maildir)
	w, err := watch.New(context.Background(), root, watch.DefaultDebounce, m.log)
	if err != nil {
		return m.setStatus("Watching "+root+": "+err.Error(), true)
	}
	m.watcher = w
	return waitWatcher(w)
}

func (m *Model) closeWatcher() {
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

func waitWatcher(w *watch.Watcher) tea.Cmd {
	wait := w.Wait()
	return func() tea.Msg {
		changed, ok := wait().(watch.ChangedMsg)
		if !ok {
			// Closed.
			return nil
		}
		return watchEventMsg{w: w, changed: changed}
	}
}

func (m Model) handleWatchEvent(msg watchEventMsg) (tea.Model, tea.Cmd) {
	if msg.w != m.watcher {
		return m, nil
	}
	next := waitWatcher(msg.w)
	if time.Now().Before(m.quietUntil) {
		m.log.Debugf("ignoring %d changes after our own move", len(msg.changed.Paths))
		return m, next
	}
	m.log.Infof("maildir changed (%d paths), reindexing", len(msg.changed.Paths))
	reindex := m.requestReindex()
	return m, tea.Batch(next, reindex)
}
