package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/credential"
	"github.com/nhle/mumail/internal/debuglog"
	"github.com/nhle/mumail/internal/ipc"
	"github.com/nhle/mumail/internal/jobs"
	"github.com/nhle/mumail/internal/keys"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/render"
	"github.com/nhle/mumail/internal/store"
	"github.com/nhle/mumail/internal/theme"
	"github.com/nhle/mumail/internal/ui"
	"github.com/nhle/mumail/internal/ui/command"
	"github.com/nhle/mumail/internal/ui/folders"
	helpview "github.com/nhle/mumail/internal/ui/help"
	"github.com/nhle/mumail/internal/ui/maillist"
	"github.com/nhle/mumail/internal/ui/preview"
	"github.com/nhle/mumail/internal/watch"
)

// statusTTL is how long a transient status message stays up.
const statusTTL = 5 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewMessage
	ViewHelp
	ViewCommand
	ViewFolders
)

// Options wires the model to its collaborators.
type Options struct {
	Config  *model.AppConfig
	Account int
	Keys    *keys.KeyMap
	Store   store.Store
	Ring    credential.Getter
	Log     *debuglog.Logger

	// Start launches a server session. Defaults to StartMu.
	Start StartFunc
	// Transport builds the outgoing mail transport. Defaults to SMTP.
	Transport TransportFunc

	// IPC is the control socket, owned by the model once passed in.
	IPC *ipc.Server
	// Initial is a link to open once the first session is up.
	Initial *ipc.Link
}

// Model is the root Bubble Tea model. It owns the mu session and
// multiplexes keys, control-socket commands, job results, Maildir change
// notifications and index progress.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	cfg       *model.AppConfig
	account   int
	keys      *keys.KeyMap
	store     store.Store
	ring      credential.Getter
	log       *debuglog.Logger
	start     StartFunc
	transport TransportFunc

	client  MailClient
	started bool
	runner  *jobs.Runner
	ipc     *ipc.Server
	watcher *watch.Watcher
	undo    *model.UndoStack
	cache   *render.Cache
	pending *ipc.Link

	list        maillist.Model
	preview     preview.Model
	helpView    helpview.Model
	commandView command.Model
	foldersView folders.Model
	spinner     spinner.Model

	// folder is a maildir ("/Inbox") or a search query.
	folder     string
	prevFolder string
	filters    model.Filters

	// envs backs the folder listing; thread backs the thread view.
	envs        []model.Envelope
	thread      []model.Envelope
	threadMsgID string
	lastQuery   string
	loadSeq     uint64
	batchSeq    uint64
	quietUntil  time.Time
	// returnIndex is the folder row to reselect when leaving a thread.
	returnIndex int

	// scheduled and dirty are keyed by account name.
	scheduled map[string]bool
	dirty     map[string]bool

	indexing     bool
	needsReindex bool

	status    string
	statusErr bool
	statusSeq int

	fatal error
}

// New creates the root model. Nothing is started until Init.
func New(opts Options) Model {
	k := opts.Keys
	if k == nil {
		k = keys.DefaultKeyMap()
	}
	start := opts.Start
	if start == nil {
		start = StartMu(opts.Log)
	}
	transport := opts.Transport
	if transport == nil {
		transport = smtpTransport(opts.Ring)
	}
	cfg := opts.Config

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.IndexingStyle

	cache := render.NewCache(render.DefaultCacheSize)
	m := Model{
		currentView: ViewList,
		cfg:         cfg,
		account:     opts.Account,
		keys:        k,
		store:       opts.Store,
		ring:        opts.Ring,
		log:         opts.Log,
		start:       start,
		transport:   transport,
		runner:      jobs.New(jobs.DefaultParallel),
		ipc:         opts.IPC,
		undo:        model.NewUndoStack(model.DefaultUndoDepth),
		cache:       cache,
		pending:     opts.Initial,
		returnIndex: -1,
		scheduled:   make(map[string]bool),
		dirty:       make(map[string]bool),
		list:        maillist.New(k, 80, 24),
		preview:     preview.New(cache, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		spinner:     sp,
	}
	m.folder = m.acct().Folders.Inbox
	m.foldersView = m.newFolders()
	return m
}

// Err returns the error that ended the program, if any.
func (m Model) Err() error { return m.fatal }

// Init starts the session and every event source.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.startClient(m.account), m.runner.Start()}
	if m.ipc != nil {
		cmds = append(cmds, m.ipc.Wait())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case clientStartedMsg:
		return m.handleClientStarted(msg)

	case folderLoadedMsg:
		return m.handleFolderLoaded(msg)

	case threadLoadedMsg:
		return m.handleThreadLoaded(msg)

	case previewFoundMsg:
		return m.handlePreviewFound(msg)

	case triageDoneMsg:
		return m.handleTriageDone(msg)

	case undoDoneMsg:
		return m.handleUndoDone(msg)

	case indexStartedMsg:
		return m.handleIndexStarted(msg)

	case indexPolledMsg:
		return m.handleIndexPolled(msg)

	case spinner.TickMsg:
		if !m.indexing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case jobs.ResultMsg:
		return m.handleJobResult(msg)

	case watchEventMsg:
		return m.handleWatchEvent(msg)

	case ipc.CommandMsg:
		cmd := m.handleIPC(msg.Command)
		if m.ipc != nil && msg.Command.Cmd != ipc.CmdQuit {
			cmd = tea.Batch(cmd, m.ipc.Wait())
		}
		return m, cmd

	case draftReadyMsg:
		return m.handleDraftReady(msg)

	case editorDoneMsg:
		return m.handleEditorDone(msg)

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status, m.statusErr = "", false
		}
		return m, nil

	case errMsg:
		cmd := m.setStatus(msg.err.Error(), true)
		return m, cmd

	case maillist.OpenConversationMsg:
		rep := msg.Conv.Representative()
		if rep == nil {
			return m, nil
		}
		m.returnIndex = m.list.Index()
		cmd := m.loadThread(rep.MessageID)
		return m, cmd

	case maillist.SearchChangedMsg:
		cmd := m.findPreview(msg.Query)
		return m, cmd

	case maillist.SearchSubmittedMsg:
		cmd := m.openFolder(msg.Query)
		return m, cmd

	case maillist.SearchCancelledMsg:
		// Drop the live preview and show the folder again.
		cmd := m.loadFolder()
		return m, cmd

	case preview.LoadedMsg:
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case folders.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case folders.SelectedMsg:
		cmd := m.openFolder(msg.Query)
		return m, cmd

	case folders.SmartFolderDeletedMsg:
		m.undo.Push(model.UndoEntry{
			Kind:        model.UndoDeleteSmartFolder,
			Description: fmt.Sprintf("delete smart folder %q", msg.Folder.Name),
			Folder:      msg.Folder,
		})
		var cmd tea.Cmd
		m.foldersView, cmd = m.foldersView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleKey routes a key press. Text inputs get every key; otherwise
// global bindings are checked before the active view sees it.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch {
	case m.currentView == ViewList && m.list.Searching():
		return m.updateActiveView(msg)
	case m.currentView == ViewFolders && m.foldersView.InForm():
		return m.updateActiveView(msg)
	case m.currentView == ViewCommand:
		if msg.Type == tea.KeyEsc {
			m.currentView = m.previousView
			return m, nil
		}
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd
	}

	switch m.currentView {
	case ViewHelp:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Quit) {
			m.currentView = m.previousView
		}
		return m, nil
	case ViewMessage:
		return m.handleMessageKey(msg)
	case ViewList:
		return m.handleListKey(msg)
	}
	return m.updateActiveView(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inThread := m.list.Mode() == maillist.ModeThread

	switch {
	case key.Matches(msg, m.keys.Quit):
		if inThread {
			cmd := m.loadFolder()
			return m, cmd
		}
		return m.quit()

	case key.Matches(msg, m.keys.Back):
		if inThread {
			cmd := m.loadFolder()
			return m, cmd
		}
		if m.prevFolder != "" {
			folder := m.prevFolder
			m.prevFolder = ""
			m.folder = folder
			cmd := m.loadFolder()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Select) && inThread:
		if !m.layout.HasPreview() && m.list.SelectedEnvelope() != nil {
			m.currentView = ViewMessage
			cmd := m.showPreview()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		cmd := m.list.StartSearch()
		return m, cmd

	case key.Matches(msg, m.keys.Archive):
		return m.triageMove(m.acct().Folders.Archive, "archive")
	case key.Matches(msg, m.keys.Trash):
		return m.triageMove(m.acct().Folders.Trash, "trash")
	case key.Matches(msg, m.keys.Spam):
		return m.triageMove(m.acct().Folders.Spam, "spam")
	case key.Matches(msg, m.keys.ToggleRead):
		return m.triageToggle(model.FlagSeen)
	case key.Matches(msg, m.keys.ToggleFlag):
		return m.triageToggle(model.FlagFlagged)
	case key.Matches(msg, m.keys.Undo):
		return m.undoLast()

	case key.Matches(msg, m.keys.Compose):
		return m, m.prepareDraft(composeNew, nil)
	case key.Matches(msg, m.keys.Reply):
		return m, m.prepareDraft(composeReply, m.list.SelectedEnvelope())
	case key.Matches(msg, m.keys.ReplyAll):
		return m, m.prepareDraft(composeReplyAll, m.list.SelectedEnvelope())
	case key.Matches(msg, m.keys.Forward):
		return m, m.prepareDraft(composeForward, m.list.SelectedEnvelope())

	case key.Matches(msg, m.keys.Folders):
		return m.openFolders()
	case key.Matches(msg, m.keys.SaveSearch):
		m.previousView = m.currentView
		m.currentView = ViewFolders
		var cmd tea.Cmd
		m.foldersView, cmd = m.foldersView.SaveSearch(model.BuildQuery(m.folder, m.filters))
		return m, cmd
	case key.Matches(msg, m.keys.Accounts):
		if len(m.cfg.Accounts) < 2 {
			cmd := m.setStatus("Only one account configured", false)
			return m, cmd
		}
		return m.switchAccount((m.account + 1) % len(m.cfg.Accounts))

	case key.Matches(msg, m.keys.FilterUnread):
		m.filters.Unread = !m.filters.Unread
		cmd := m.loadFolder()
		return m, cmd
	case key.Matches(msg, m.keys.FilterFlagged):
		m.filters.Flagged = !m.filters.Flagged
		cmd := m.loadFolder()
		return m, cmd
	case key.Matches(msg, m.keys.FilterNeedsReply):
		m.filters.NeedsReply = !m.filters.NeedsReply
		cmd := m.loadFolder()
		return m, cmd

	case key.Matches(msg, m.keys.Reindex):
		cmd := m.requestReindex()
		return m, cmd
	case key.Matches(msg, m.keys.Sync):
		cmd := m.runSync()
		return m, cmd

	case key.Matches(msg, m.keys.ScrollDown):
		m.preview.ScrollDown()
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp):
		m.preview.ScrollUp()
		return m, nil
	}

	return m.updateActiveView(msg)
}

// handleMessageKey drives the full-screen message view used when the
// terminal is too narrow for a split.
func (m Model) handleMessageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
		m.currentView = ViewList
		return m, nil
	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.ScrollDown):
		m.preview.ScrollDown()
		return m, nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.ScrollUp):
		m.preview.ScrollUp()
		return m, nil
	case key.Matches(msg, m.keys.Reply):
		return m, m.prepareDraft(composeReply, m.list.SelectedEnvelope())
	case key.Matches(msg, m.keys.ReplyAll):
		return m, m.prepareDraft(composeReplyAll, m.list.SelectedEnvelope())
	case key.Matches(msg, m.keys.Forward):
		return m, m.prepareDraft(composeForward, m.list.SelectedEnvelope())
	}
	return m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
		if _, ok := msg.(tea.KeyMsg); ok {
			cmd = tea.Batch(cmd, m.showPreview())
		}
	case ViewMessage:
		m.preview, cmd = m.preview.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewFolders:
		m.foldersView, cmd = m.foldersView.Update(msg)
	}

	return m, cmd
}

// showPreview loads the message under the cursor into the preview pane
// when one is visible.
func (m *Model) showPreview() tea.Cmd {
	if !m.layout.HasPreview() && m.currentView != ViewMessage {
		return nil
	}
	return m.preview.Show(m.list.SelectedEnvelope())
}

func (m Model) openFolders() (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewFolders
	return m, m.foldersView.Init()
}

func (m Model) newFolders() folders.Model {
	acct := m.acct()
	f := folders.New(m.store, m.keys, acct.Name, model.ExpandHome(acct.Maildir),
		m.layout.ContentWidth(), m.layout.ContentHeight())
	return f
}

// resize pushes the layout down to every view.
func (m *Model) resize() {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	if m.layout.HasPreview() {
		m.list.SetSize(m.layout.ListWidth(), h)
		m.preview.SetSize(m.layout.PreviewWidth(), h)
	} else {
		m.list.SetSize(w, h)
		m.preview.SetSize(w, h)
	}
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.foldersView.SetSize(w, h)
}

// quit stops every background source and the server.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.shutdown()
	return m, tea.Quit
}

func (m *Model) shutdown() {
	m.runner.Stop()
	m.closeWatcher()
	if m.ipc != nil {
		m.ipc.Close()
	}
	if m.client != nil {
		m.client.Quit()
		m.client = nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "mumail"
	if m.cfg.MultiAccount() {
		title = "mumail: " + m.acct().Name
	}
	header := m.layout.RenderHeader(title, m.headerStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusText(), m.statusErr)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		if m.layout.HasPreview() {
			return m.layout.RenderSplit(m.list.View(), m.preview.View())
		}
		return m.list.View()
	case ViewMessage:
		return m.preview.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewFolders:
		return m.foldersView.View()
	default:
		return ""
	}
}

// headerStatus describes the session: current folder, filters, indexing
// and running jobs.
func (m Model) headerStatus() string {
	s := m.folder
	if m.filters.Active() {
		s += " [" + m.filters.String() + "]"
	}
	if !m.started {
		return s + " | starting mu…"
	}
	if m.indexing {
		s += " | " + m.spinner.View() + "indexing"
	}
	running := 0
	for _, st := range m.runner.GetStatuses() {
		if st.State == jobs.Running {
			running++
		}
	}
	if running > 0 {
		s += fmt.Sprintf(" | jobs (%d)", running)
	}
	return s
}

// statusText returns the transient status or key hints.
func (m Model) statusText() string {
	if m.status != "" {
		return m.status
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | up/down history | esc back"
	case ViewMessage:
		return "esc back | j/k scroll | r reply | a reply all | f forward"
	case ViewFolders:
		return "enter open | n new | e edit | d delete | esc back"
	default:
		if m.list.Mode() == maillist.ModeThread {
			return "esc back | e archive | # trash | u read | s flag | r reply | z undo | ? help"
		}
		return "q quit | / search | enter open | e archive | # trash | F folders | c compose | ? help"
	}
}

type statusExpiredMsg struct{ seq int }

type errMsg struct{ err error }

// setStatus shows text in the status bar until it expires or is replaced.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status, m.statusErr = text, isErr
	if isErr {
		m.log.Warnf("%s", text)
	}
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusExpiredMsg{seq: seq} })
}
