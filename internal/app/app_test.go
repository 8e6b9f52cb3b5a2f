package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mumail/internal/ipc"
	"github.com/nhle/mumail/internal/jobs"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/mu"
	"github.com/nhle/mumail/internal/send"
	"github.com/nhle/mumail/internal/ui/command"
	"github.com/nhle/mumail/internal/ui/folders"
	"github.com/nhle/mumail/internal/testutil"
)

type moveCall struct {
	docid   uint32
	maildir string
	flags   string
}

type fakeClient struct {
	results  map[string][]model.Envelope
	queries  []string
	moves    []moveCall
	moveErr  error
	polls    []mu.IndexState
	indexes  int
	indexing bool
	quit     bool

	// failMove, when set, makes the nth Move call (1-based) fail.
	failMove int
	moveN    int
	// quitGate, when set, holds Quit until it is closed.
	quitGate chan struct{}
	quitDone chan struct{}
}

func (f *fakeClient) Find(_ context.Context, query string, _ mu.FindOptions) ([]model.Envelope, error) {
	f.queries = append(f.queries, query)
	envs := f.results[query]
	out := make([]model.Envelope, len(envs))
	copy(out, envs)
	return out, nil
}

func (f *fakeClient) FindPreview(ctx context.Context, query string, maxNum int) ([]model.Envelope, uint32, error) {
	envs, err := f.Find(ctx, query, mu.FindOptions{})
	return envs, uint32(len(envs)), err
}

func (f *fakeClient) Move(_ context.Context, docid uint32, maildir, flags *string) (uint32, error) {
	if f.moveErr != nil {
		return 0, f.moveErr
	}
	f.moveN++
	if f.moveN == f.failMove {
		return 0, errors.New("docid not found")
	}
	c := moveCall{docid: docid}
	if maildir != nil {
		c.maildir = *maildir
	}
	if flags != nil {
		c.flags = *flags
	}
	f.moves = append(f.moves, c)
	return docid + 100, nil
}

func (f *fakeClient) StartIndex(context.Context) error {
	f.indexes++
	f.indexing = true
	return nil
}

func (f *fakeClient) PollIndexFrame(context.Context) (mu.IndexState, error) {
	if len(f.polls) == 0 {
		return mu.IndexTimedOut, nil
	}
	st := f.polls[0]
	f.polls = f.polls[1:]
	if st == mu.IndexDone {
		f.indexing = false
	}
	return st, nil
}

func (f *fakeClient) Indexing() bool { return f.indexing }

func (f *fakeClient) Quit() {
	if f.quitGate != nil {
		<-f.quitGate
	}
	f.quit = true
	if f.quitDone != nil {
		close(f.quitDone)
	}
}

type fakeTransport struct {
	sent []*send.Built
}

func (t *fakeTransport) Send(_ context.Context, msg *send.Built) error {
	t.sent = append(t.sent, msg)
	return nil
}

var inboxQuery = model.BuildQuery("/Inbox", model.Filters{})

func inbox() []model.Envelope {
	day := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	return []model.Envelope{
		{Docid: 1, MessageID: "a@x", Subject: "Plans", Maildir: "/Inbox", Date: day, Thread: model.ThreadMeta{Root: true}},
		{Docid: 2, MessageID: "b@x", Subject: "Re: Plans", Maildir: "/Inbox", Date: day.Add(time.Hour), Flags: []model.Flag{model.FlagSeen}, Thread: model.ThreadMeta{Level: 1}},
		{Docid: 3, MessageID: "c@x", Subject: "Invoice", Maildir: "/Inbox", Date: day, Thread: model.ThreadMeta{Root: true}},
	}
}

func testConfig(t *testing.T) *model.AppConfig {
	return &model.AppConfig{
		Accounts: []model.AccountConfig{
			{
				Name:    "work",
				Email:   "me@example.com",
				Maildir: t.TempDir(),
				Folders: model.FolderConfig{
					Inbox: "/Inbox", Archive: "/Archive", Sent: "/Sent", Trash: "/Trash", Spam: "/Spam",
				},
			},
			{
				Name:    "home",
				Maildir: t.TempDir(),
				Folders: model.FolderConfig{Inbox: "/INBOX"},
			},
		},
		PageSize: 500,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// started returns a model with a running fake session and the inbox
// loaded.
func started(t *testing.T, fc *fakeClient) (Model, *fakeTransport) {
	t.Helper()
	if fc.results == nil {
		fc.results = map[string][]model.Envelope{inboxQuery: inbox()}
	}
	ft := &fakeTransport{}
	m := New(Options{
		Config: testConfig(t),
		Store:  testutil.NewTestStore(t),
		Start: func(context.Context, *model.AppConfig, model.AccountConfig) (MailClient, error) {
			return fc, nil
		},
		Transport: func(context.Context, model.AccountConfig) (send.Transport, error) {
			return ft, nil
		},
	})
	t.Cleanup(m.runner.Stop)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, m.startClient(0)())
	require.True(t, m.started)

	cmd := m.loadFolder()
	m, _ = update(t, m, cmd())
	return m, ft
}

func TestStartLoadsInboxAsConversations(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	assert.Contains(t, fc.queries, inboxQuery)
	assert.Equal(t, 2, m.list.Len())
	conv, ok := m.list.SelectedConversation()
	require.True(t, ok)
	assert.Equal(t, 2, conv.Len())
}

func TestStartFailureIsFatal(t *testing.T) {
	m := New(Options{
		Config: testConfig(t),
		Start: func(context.Context, *model.AppConfig, model.AccountConfig) (MailClient, error) {
			return nil, errors.New("mu: not found")
		},
	})
	t.Cleanup(m.runner.Stop)

	m, cmd := update(t, m, m.startClient(0)())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "mu: not found")
}

func TestArchiveConversationThenUndo(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, cmd := update(t, m, keyPress("e"))
	require.NotNil(t, cmd)
	done, ok := cmd().(triageDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, []moveCall{
		{docid: 1, maildir: "/Archive"},
		{docid: 2, maildir: "/Archive"},
	}, fc.moves)

	m, _ = update(t, m, done)
	assert.Equal(t, 1, m.list.Len())
	assert.Equal(t, 2, m.undo.Len())
	assert.Contains(t, m.status, "Archive 2 messages")

	fc.moves = nil
	m, cmd = update(t, m, keyPress("z"))
	require.NotNil(t, cmd)
	undone, ok := cmd().(undoDoneMsg)
	require.True(t, ok)
	require.NoError(t, undone.err)
	// Newest first, with the docids the forward moves returned.
	assert.Equal(t, []moveCall{
		{docid: 102, maildir: "/Inbox", flags: "S"},
		{docid: 101, maildir: "/Inbox", flags: ""},
	}, fc.moves)
	assert.Zero(t, m.undo.Len())

	m, _ = update(t, m, undone)
	assert.Equal(t, "Undone: archive 2 messages", m.status)
}

func TestToggleReadSendsFlagString(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	m.list.Select(1)

	m, cmd := update(t, m, keyPress("u"))
	require.NotNil(t, cmd)
	done := cmd().(triageDoneMsg)
	assert.Equal(t, []moveCall{{docid: 3, flags: "S"}}, fc.moves)

	m, _ = update(t, m, done)
	env := m.list.SelectedEnvelope()
	require.NotNil(t, env)
	assert.Equal(t, uint32(103), env.Docid)
	assert.True(t, env.HasFlag(model.FlagSeen))
	assert.Equal(t, "/Inbox", env.Maildir)
	assert.Equal(t, 2, m.list.Len())
}

func TestConversationReadMarksOnlyUnread(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	_, cmd := update(t, m, keyPress("u"))
	cmd()
	assert.Equal(t, []moveCall{{docid: 1, flags: "S"}}, fc.moves)
}

func TestTriageRefusedWhileIndexing(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	m.indexing = true

	m, _ = update(t, m, keyPress("e"))
	assert.Empty(t, fc.moves)
	assert.Contains(t, m.status, "indexing in progress")
}

func TestMoveFailureReported(t *testing.T) {
	fc := &fakeClient{moveErr: errors.New("no such docid")}
	m, _ := started(t, fc)

	_, cmd := update(t, m, keyPress("#"))
	done := cmd().(triageDoneMsg)
	m, _ = update(t, m, done)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "no such docid")
	assert.Zero(t, m.undo.Len())
	assert.Equal(t, 2, m.list.Len())
}

// indexStarted runs the start half of a reindex cmd, skipping the
// spinner tick batched with it.
func indexStarted(t *testing.T, cmd tea.Cmd) indexStartedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	switch msg := cmd().(type) {
	case indexStartedMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if started, ok := c().(indexStartedMsg); ok {
				return started
			}
		}
	}
	t.Fatal("no index start in cmd")
	return indexStartedMsg{}
}

func TestReindexPollsUntilDone(t *testing.T) {
	fc := &fakeClient{polls: []mu.IndexState{mu.IndexTimedOut, mu.IndexPending, mu.IndexDone}}
	m, _ := started(t, fc)

	start := m.requestReindex()
	require.True(t, m.indexing)
	m, cmd := update(t, m, indexStarted(t, start))
	assert.Equal(t, 1, fc.indexes)

	// A second request while running is remembered, not started.
	assert.Nil(t, m.requestReindex())
	assert.True(t, m.needsReindex)

	for i := 0; i < 2; i++ {
		require.NotNil(t, cmd)
		m, cmd = update(t, m, cmd())
		assert.True(t, m.indexing)
	}
	require.NotNil(t, cmd)
	m, start = update(t, m, cmd())

	// Done with a pending request starts the next run right away.
	assert.True(t, m.indexing)
	assert.False(t, m.needsReindex)

	fc.polls = []mu.IndexState{mu.IndexDone}
	m, cmd = update(t, m, indexStarted(t, start))
	assert.Equal(t, 2, fc.indexes)
	m, _ = update(t, m, cmd())
	assert.False(t, m.indexing)
	assert.Equal(t, "Reindex complete", m.status)
}

func TestPollForReplacedSessionIgnored(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	m.indexing = true

	m, cmd := update(t, m, indexPolledMsg{client: &fakeClient{}, state: mu.IndexDone})
	assert.Nil(t, cmd)
	assert.True(t, m.indexing)
}

func TestIndexErrorClearsIndexing(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	m.indexing = true

	m, _ = update(t, m, indexPolledMsg{client: fc, err: errors.New("xapian locked")})
	assert.False(t, m.indexing)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "xapian locked")
}

func TestSyncResultTriggersReindex(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, _ = update(t, m, jobs.ResultMsg{Name: syncJobName("work"), Stdout: "2 new"})
	assert.True(t, m.indexing)
	assert.Equal(t, "sync:work: 2 new", m.status)

	m, _ = update(t, m, jobs.ResultMsg{Name: syncJobName("home")})
	assert.True(t, m.dirty["home"])
}

func TestFailedSyncDoesNotReindex(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, _ = update(t, m, jobs.ResultMsg{Name: syncJobName("work"), Err: errors.New("exit 1"), Stderr: "auth failed"})
	assert.False(t, m.indexing)
	assert.True(t, m.statusErr)
	assert.Equal(t, "sync:work failed: auth failed", m.status)
}

func TestIPCCommands(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	m.filters.Unread = true

	cmd := m.handleIPC(ipc.Command{Cmd: ipc.CmdOpen, URL: ipc.SearchLink("from:alice").String()})
	require.NotNil(t, cmd)
	assert.Equal(t, "from:alice", m.folder)
	assert.Equal(t, "/Inbox", m.prevFolder)

	m.handleIPC(ipc.Command{Cmd: ipc.CmdNavigate, Folder: "/Archive"})
	assert.Equal(t, "/Archive", m.folder)
	assert.False(t, m.filters.Active())

	m.handleIPC(ipc.Command{Cmd: ipc.CmdOpen, URL: ipc.MessageLink("<a@x>").String()})
	assert.Equal(t, "msgid:a@x", m.folder)

	cmd = m.handleIPC(ipc.Command{Cmd: ipc.CmdQuit})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, fc.quit)
}

func TestOpenThreadLinkSelectsMessage(t *testing.T) {
	fc := &fakeClient{}
	fc.results = map[string][]model.Envelope{
		inboxQuery:               inbox(),
		model.ThreadQuery("b@x"): inbox()[:2],
	}
	m, _ := started(t, fc)

	cmd := m.openLink(ipc.ThreadLink("b@x"))
	m, _ = update(t, m, cmd())
	assert.Equal(t, 2, m.list.Len())
	assert.Equal(t, 1, m.list.Index())
	assert.Equal(t, "b@x", m.list.SelectedEnvelope().MessageID)
}

func TestPendingLinkOpensAfterStart(t *testing.T) {
	fc := &fakeClient{results: map[string][]model.Envelope{}}
	link := ipc.SearchLink("subject:report")
	m := New(Options{
		Config:  testConfig(t),
		Initial: &link,
		Start: func(context.Context, *model.AppConfig, model.AccountConfig) (MailClient, error) {
			return fc, nil
		},
	})
	t.Cleanup(m.runner.Stop)

	m, _ = update(t, m, m.startClient(0)())
	assert.Equal(t, "subject:report", m.folder)
	assert.Nil(t, m.pending)
}

func TestFiltersReload(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, cmd := update(t, m, keyPress("1"))
	require.NotNil(t, cmd)
	msg := cmd().(folderLoadedMsg)
	assert.Equal(t, "maildir:/Inbox AND flag:unread", msg.query)
}

func TestCommandPalette(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, _ = update(t, m, command.CommandMsg{Name: "folder", Arg: "Archive"})
	assert.Equal(t, "/Archive", m.folder)

	m, _ = update(t, m, command.CommandMsg{Name: "bogus"})
	assert.Equal(t, "Unknown command: bogus", m.status)
}

func TestAccountSwitchRestartsSession(t *testing.T) {
	first := &fakeClient{}
	m, _ := started(t, first)
	m.undo.Push(model.UndoEntry{Docid: 1})
	second := &fakeClient{results: map[string][]model.Envelope{}}
	m.start = func(context.Context, *model.AppConfig, model.AccountConfig) (MailClient, error) {
		return second, nil
	}

	m, _ = update(t, m, command.CommandMsg{Name: "account", Arg: "home"})
	assert.Nil(t, m.client)
	assert.Zero(t, m.undo.Len())
	assert.Equal(t, "/INBOX", m.folder)

	m, _ = update(t, m, m.startClient(1)())
	assert.Equal(t, second, m.client)
}

// updateWithin fails the test when Update takes longer than d.
func updateWithin(t *testing.T, m Model, msg tea.Msg, d time.Duration) (Model, tea.Cmd) {
	t.Helper()
	type result struct {
		m   tea.Model
		cmd tea.Cmd
	}
	done := make(chan result, 1)
	go func() {
		next, cmd := m.Update(msg)
		done <- result{next, cmd}
	}()
	select {
	case r := <-done:
		nm, ok := r.m.(Model)
		require.True(t, ok)
		return nm, r.cmd
	case <-time.After(d):
		t.Fatalf("Update blocked for more than %s on %T", d, msg)
		return m, nil
	}
}

func TestAccountSwitchQuitsOldSessionInBackground(t *testing.T) {
	first := &fakeClient{quitGate: make(chan struct{}), quitDone: make(chan struct{})}
	m, _ := started(t, first)
	m.start = func(context.Context, *model.AppConfig, model.AccountConfig) (MailClient, error) {
		return &fakeClient{results: map[string][]model.Envelope{}}, nil
	}

	// Quit is held, as it is behind a find that mu has not answered.
	m, cmd := updateWithin(t, m, command.CommandMsg{Name: "account", Arg: "home"}, time.Second)
	assert.Equal(t, 1, m.account)
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c != nil {
			go c()
		}
	}
	close(first.quitGate)
	select {
	case <-first.quitDone:
	case <-time.After(time.Second):
		t.Fatal("old session was never quit")
	}
}

func TestSupersededSessionQuitsInBackground(t *testing.T) {
	m, _ := started(t, &fakeClient{})
	m.account = 1
	stale := &fakeClient{quitGate: make(chan struct{})}

	m, cmd := updateWithin(t, m, clientStartedMsg{account: 0, client: stale}, time.Second)
	assert.NotSame(t, stale, m.client)
	require.NotNil(t, cmd)
	assert.False(t, stale.quit)

	close(stale.quitGate)
	assert.Nil(t, cmd())
	assert.True(t, stale.quit)
}

func TestFailedUndoKeepsUnrevertedEntries(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)

	m, cmd := update(t, m, keyPress("e"))
	done := cmd().(triageDoneMsg)
	require.NoError(t, done.err)
	m, _ = update(t, m, done)
	require.Equal(t, 2, m.undo.Len())

	// The first inverse move succeeds, the second fails.
	fc.moves = nil
	fc.failMove = fc.moveN + 2
	m, cmd = update(t, m, keyPress("z"))
	require.Zero(t, m.undo.Len())
	undone := cmd().(undoDoneMsg)
	require.Error(t, undone.err)
	assert.Equal(t, []moveCall{{docid: 102, maildir: "/Inbox", flags: "S"}}, fc.moves)

	m, cmd = update(t, m, undone)
	assert.True(t, m.statusErr)
	assert.NotNil(t, cmd)
	require.Equal(t, 1, m.undo.Len())

	// Retrying reverts only what is left.
	fc.moves = nil
	m, cmd = update(t, m, keyPress("z"))
	undone = cmd().(undoDoneMsg)
	require.NoError(t, undone.err)
	assert.Equal(t, []moveCall{{docid: 101, maildir: "/Inbox", flags: ""}}, fc.moves)
	assert.Zero(t, m.undo.Len())
}

func TestSmartFolderDeleteUndo(t *testing.T) {
	fc := &fakeClient{}
	m, _ := started(t, fc)
	ctx := context.Background()
	sf, err := m.store.CreateSmartFolder(ctx, model.SmartFolder{Account: "work", Name: "Todo", Query: "flag:flagged"})
	require.NoError(t, err)
	require.NoError(t, m.store.DeleteSmartFolder(ctx, sf.ID))

	m, _ = update(t, m, folders.SmartFolderDeletedMsg{Folder: sf})
	require.Equal(t, 1, m.undo.Len())

	_, cmd := update(t, m, keyPress("z"))
	undone := cmd().(undoDoneMsg)
	require.NoError(t, undone.err)

	got, err := m.store.GetSmartFolders(ctx, "work")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Todo", got[0].Name)
}

func TestUnchangedDraftIsDiscarded(t *testing.T) {
	fc := &fakeClient{}
	m, ft := started(t, fc)

	path := filepath.Join(t.TempDir(), "draft.eml")
	require.NoError(t, os.WriteFile(path, []byte("To: bob@example.com\n\nhi\n"), 0o600))
	info, err := os.Stat(path)
	require.NoError(t, err)

	m, _ = update(t, m, editorDoneMsg{path: path, before: info.ModTime()})
	assert.Equal(t, "Draft unchanged, not sent", m.status)
	assert.NoFileExists(t, path)
	assert.Empty(t, ft.sent)
}

func TestEditedDraftIsSent(t *testing.T) {
	fc := &fakeClient{}
	m, ft := started(t, fc)

	path := filepath.Join(t.TempDir(), "draft.eml")
	require.NoError(t, os.WriteFile(path, []byte("To: bob@example.com\nSubject: hi\n\nhello\n"), 0o600))

	m, _ = update(t, m, editorDoneMsg{path: path, before: time.Now().Add(-time.Minute)})
	assert.Equal(t, "Sending…", m.status)

	res, ok := m.runner.WaitForNextResult()().(jobs.ResultMsg)
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, sendJobName, res.Name)
	require.Len(t, ft.sent, 1)
	assert.Equal(t, []string{"bob@example.com"}, ft.sent[0].Recipients)
	assert.NoFileExists(t, path)

	m, _ = update(t, m, res)
	assert.True(t, m.indexing)
}
