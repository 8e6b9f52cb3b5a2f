package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/debuglog"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/mu"
)

// MailClient is the part of *mu.Client the UI drives.
type MailClient interface {
	Find(ctx context.Context, query string, opts mu.FindOptions) ([]model.Envelope, error)
	FindPreview(ctx context.Context, query string, maxNum int) ([]model.Envelope, uint32, error)
	Move(ctx context.Context, docid uint32, maildir, flags *string) (uint32, error)
	StartIndex(ctx context.Context) error
	PollIndexFrame(ctx context.Context) (mu.IndexState, error)
	Indexing() bool
	Quit()
}

// StartFunc launches a server session for one account.
type StartFunc func(ctx context.Context, cfg *model.AppConfig, acct model.AccountConfig) (MailClient, error)

// StartMu creates the account's database when needed and starts
// `mu server` against it.
func StartMu(log *debuglog.Logger) StartFunc {
	return func(ctx context.Context, cfg *model.AppConfig, acct model.AccountConfig) (MailClient, error) {
		muhome := acct.EffectiveMuhome(cfg.MultiAccount())
		if err := mu.EnsureDatabase(ctx, cfg.MuBinary, muhome, acct.Maildir); err != nil {
			return nil, err
		}
		c, err := mu.Start(ctx, mu.Options{
			Binary: cfg.MuBinary,
			Muhome: muhome,
			Log:    log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// clientStartedMsg reports a session start for the account at index.
type clientStartedMsg struct {
	account int
	client  MailClient
	err     error
}

func (m Model) startClient(account int) tea.Cmd {
	start, cfg := m.start, m.cfg
	acct := cfg.Accounts[account]
	log := m.log
	return func() tea.Msg {
		log.Infof("starting mu for account %s", acct.Name)
		c, err := start(context.Background(), cfg, acct)
		if err != nil {
			err = fmt.Errorf("starting mu for %s: %w", acct.Name, err)
		}
		return clientStartedMsg{account: account, client: c, err: err}
	}
}

// handleClientStarted installs a new session. A failure before any
// session existed is fatal; a failed account switch keeps nothing
// running and reports it.
func (m Model) handleClientStarted(msg clientStartedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !m.started {
			m.fatal = msg.err
			return m, tea.Quit
		}
		cmd := m.setStatus(msg.err.Error(), true)
		return m, cmd
	}
	if msg.account != m.account {
		// Superseded by a later switch.
		return m, quitClient(msg.client)
	}

	m.started = true
	m.client = msg.client
	m.indexing = false
	if name := m.acct().Name; m.dirty[name] {
		delete(m.dirty, name)
		m.needsReindex = true
	}

	cmds := []tea.Cmd{m.loadFolder(), m.restartWatcher(), m.registerSync()}
	if m.pending != nil {
		link := *m.pending
		m.pending = nil
		cmds = append(cmds, m.openLink(link))
	}
	if m.needsReindex {
		cmds = append(cmds, m.requestReindex())
	}
	return m, tea.Batch(cmds...)
}

// switchAccount tears down the current session and starts the next one.
// Docids belong to a database, so the undo history goes with it.
func (m Model) switchAccount(account int) (tea.Model, tea.Cmd) {
	if account < 0 || account >= len(m.cfg.Accounts) {
		return m, nil
	}
	var stop tea.Cmd
	if m.client != nil {
		stop = quitClient(m.client)
		m.client = nil
	}
	m.closeWatcher()
	m.account = account
	m.indexing = false
	m.needsReindex = false
	m.undo.Clear()
	m.filters = model.Filters{}
	m.folder = m.acct().Folders.Inbox
	m.prevFolder = ""
	m.envs, m.thread = nil, nil
	m.list.SetConversations(m.folderTitle(), nil)
	m.preview.Clear()
	m.currentView = ViewList
	m.foldersView = m.newFolders()

	status := m.setStatus("Switching to "+m.acct().Name+"…", false)
	return m, tea.Batch(stop, m.startClient(account), status)
}

// quitClient stops c off the event loop. Quit waits for any request
// still in flight and then for the process to exit.
func quitClient(c MailClient) tea.Cmd {
	return func() tea.Msg {
		c.Quit()
		return nil
	}
}

// accountByName returns the index of the named account.
func (m Model) accountByName(name string) (int, bool) {
	for i, a := range m.cfg.Accounts {
		if a.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (m Model) acct() model.AccountConfig {
	return m.cfg.Accounts[m.account]
}
