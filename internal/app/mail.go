package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/mu"
	"github.com/nhle/mumail/internal/ui/maillist"
)

// previewMaxNum caps live search results; the total is reported apart.
const previewMaxNum = 50

// quietAfterMove is how long watcher events are ignored after our own
// moves, which rename files under cur/.
const quietAfterMove = 2 * time.Second

var errIndexingBusy = errors.New("indexing in progress, try again when it finishes")

type folderLoadedMsg struct {
	seq   uint64
	query string
	envs  []model.Envelope
	err   error
}

type threadLoadedMsg struct {
	seq   uint64
	msgID string
	envs  []model.Envelope
	err   error
}

type previewFoundMsg struct {
	seq   uint64
	query string
	envs  []model.Envelope
	total uint32
	err   error
}

// moveOp is one message move or reflag. A nil maildir keeps the message
// where it is; nil flags keep its flags.
type moveOp struct {
	docid       uint32
	messageID   string
	maildir     *string
	flags       []model.Flag
	prevMaildir string
	prevFlags   string
}

type moveDone struct {
	op    moveOp
	docid uint32
}

type triageDoneMsg struct {
	desc   string
	batch  uint64
	remove bool
	done   []moveDone
	err    error
}

type undoDoneMsg struct {
	desc  string
	smart bool
	// moved counts the entries reverted before err.
	moved int
	// left holds the entries still to revert, newest first.
	left []model.UndoEntry
	err  error
}

func (m Model) folderTitle() string {
	return m.folder
}

// openFolder makes folder the current listing. A search remembers the
// maildir it was started from so esc can go back.
func (m *Model) openFolder(folder string) tea.Cmd {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return nil
	}
	if !strings.HasPrefix(folder, "/") && strings.HasPrefix(m.folder, "/") {
		m.prevFolder = m.folder
	} else if strings.HasPrefix(folder, "/") {
		m.prevFolder = ""
	}
	m.folder = folder
	m.currentView = ViewList
	return m.loadFolder()
}

// loadFolder queries the current folder with the active filters.
func (m *Model) loadFolder() tea.Cmd {
	query := model.BuildQuery(m.folder, m.filters)
	if m.client == nil {
		return nil
	}
	m.threadMsgID = ""
	if m.indexing {
		// The listing is refreshed when the run completes.
		envs := m.envs
		if query != m.lastQuery {
			envs = nil
		}
		m.list.SetEmptyText("Waiting for the index…")
		return m.list.SetConversations(m.folderTitle(), model.GroupConversations(envs))
	}

	m.loadSeq++
	seq, c := m.loadSeq, m.client
	opts := mu.DefaultFindOptions()
	if m.cfg.PageSize > 0 {
		opts.MaxNum = m.cfg.PageSize
	}
	log := m.log
	return func() tea.Msg {
		log.Debugf("loading %s", query)
		envs, err := c.Find(context.Background(), query, opts)
		return folderLoadedMsg{seq: seq, query: query, envs: envs, err: err}
	}
}

func (m Model) handleFolderLoaded(msg folderLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.loadSeq {
		return m, nil
	}
	if msg.err != nil {
		cmd := m.setStatus(fmt.Sprintf("Loading %s: %v", m.folder, msg.err), true)
		return m, cmd
	}
	m.envs = msg.envs
	m.lastQuery = msg.query
	m.thread = nil
	if m.filters.Active() {
		m.list.SetEmptyText("No messages match the filters.")
	} else {
		m.list.SetEmptyText("No messages in " + m.folder + ".")
	}
	cmd := m.list.SetConversations(m.folderTitle(), model.GroupConversations(m.envs))
	if m.returnIndex >= 0 {
		m.list.Select(m.returnIndex)
		m.returnIndex = -1
	}
	if m.currentView == ViewMessage {
		m.currentView = ViewList
	}
	pv := m.showPreview()
	return m, tea.Batch(cmd, pv)
}

// loadThread opens the conversation containing msgID.
func (m *Model) loadThread(msgID string) tea.Cmd {
	if m.client == nil || msgID == "" {
		return nil
	}
	if m.indexing {
		return m.setStatus(errIndexingBusy.Error(), false)
	}
	m.loadSeq++
	seq, c := m.loadSeq, m.client
	return func() tea.Msg {
		envs, err := c.Find(context.Background(), model.ThreadQuery(msgID), mu.ThreadFindOptions())
		return threadLoadedMsg{seq: seq, msgID: msgID, envs: envs, err: err}
	}
}

func (m Model) handleThreadLoaded(msg threadLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.loadSeq {
		return m, nil
	}
	if msg.err != nil {
		cmd := m.setStatus(fmt.Sprintf("Opening thread: %v", msg.err), true)
		return m, cmd
	}
	if len(msg.envs) == 0 {
		cmd := m.setStatus("Message not found: "+msg.msgID, true)
		return m, cmd
	}
	m.thread = msg.envs
	m.threadMsgID = msg.msgID
	cmd := m.list.SetThread(m.thread[0].Subject, m.threadPointers())

	want := strings.Trim(msg.msgID, "<>")
	for i := range m.thread {
		if strings.Trim(m.thread[i].MessageID, "<>") == want {
			m.list.Select(i)
			break
		}
	}
	m.currentView = ViewList
	pv := m.showPreview()
	return m, tea.Batch(cmd, pv)
}

func (m Model) threadPointers() []*model.Envelope {
	out := make([]*model.Envelope, len(m.thread))
	for i := range m.thread {
		out[i] = &m.thread[i]
	}
	return out
}

// findPreview runs a capped search while the user types.
func (m *Model) findPreview(query string) tea.Cmd {
	if m.client == nil || m.indexing {
		return nil
	}
	m.loadSeq++
	seq, c := m.loadSeq, m.client
	return func() tea.Msg {
		envs, total, err := c.FindPreview(context.Background(), query, previewMaxNum)
		return previewFoundMsg{seq: seq, query: query, envs: envs, total: total, err: err}
	}
}

func (m Model) handlePreviewFound(msg previewFoundMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.loadSeq || !m.list.Searching() {
		return m, nil
	}
	if msg.err != nil {
		// Half-typed queries are often invalid; keep the old rows.
		m.log.Debugf("preview search %q: %v", msg.query, msg.err)
		return m, nil
	}
	m.envs = msg.envs
	m.lastQuery = msg.query
	title := fmt.Sprintf("%s (%d of %d)", msg.query, len(msg.envs), msg.total)
	m.list.SetEmptyText("No matches.")
	cmd := m.list.SetConversations(title, model.GroupConversations(m.envs))
	return m, cmd
}

// triageTargets returns the messages an action applies to: the whole
// conversation in a folder listing, the selected message in a thread.
func (m Model) triageTargets() []*model.Envelope {
	if m.list.Mode() == maillist.ModeThread {
		if env := m.list.SelectedEnvelope(); env != nil {
			return []*model.Envelope{env}
		}
		return nil
	}
	conv, ok := m.list.SelectedConversation()
	if !ok {
		return nil
	}
	return conv.Messages
}

// triageReady refuses protocol work while no session is up or an index
// run owns the pipe.
func (m *Model) triageReady() tea.Cmd {
	if m.client == nil {
		return m.setStatus("mu is not running", true)
	}
	if m.indexing {
		return m.setStatus(errIndexingBusy.Error(), false)
	}
	return nil
}

// triageMove moves the targets to dest.
func (m Model) triageMove(dest, verb string) (tea.Model, tea.Cmd) {
	if cmd := m.triageReady(); cmd != nil {
		return m, cmd
	}
	targets := m.triageTargets()
	var ops []moveOp
	for _, env := range targets {
		if env.Maildir == dest {
			continue
		}
		d := dest
		ops = append(ops, moveOp{
			docid:       env.Docid,
			messageID:   env.MessageID,
			maildir:     &d,
			prevMaildir: env.Maildir,
			prevFlags:   model.FlagsToString(env.Flags),
		})
	}
	if len(ops) == 0 {
		if len(targets) == 0 {
			return m, nil
		}
		cmd := m.setStatus("Already in "+dest, false)
		return m, cmd
	}
	return m.runMoves(verb, ops, true)
}

// triageToggle flips a flag. In a folder listing, read marks every unread
// message and unread marks only the latest; flag marks the latest message
// and unflag clears every flagged one.
func (m Model) triageToggle(f model.Flag) (tea.Model, tea.Cmd) {
	if cmd := m.triageReady(); cmd != nil {
		return m, cmd
	}
	targets := m.triageTargets()
	if len(targets) == 0 {
		return m, nil
	}

	var on bool
	var candidates []*model.Envelope
	if len(targets) == 1 {
		on = !targets[0].HasFlag(f)
		candidates = targets
	} else {
		conv := model.Conversation{Messages: targets}
		switch f {
		case model.FlagSeen:
			on = conv.HasUnread()
		default:
			on = !conv.HasFlagged()
		}
		for _, env := range targets {
			if env.HasFlag(f) != on {
				candidates = append(candidates, env)
			}
		}
		if (f == model.FlagSeen && !on) || (f != model.FlagSeen && on) {
			candidates = []*model.Envelope{targets[len(targets)-1]}
		}
	}

	var ops []moveOp
	for _, env := range candidates {
		ops = append(ops, moveOp{
			docid:       env.Docid,
			messageID:   env.MessageID,
			flags:       env.WithFlag(f, on),
			prevMaildir: env.Maildir,
			prevFlags:   model.FlagsToString(env.Flags),
		})
	}

	return m.runMoves(toggleVerb(f, on), ops, false)
}

func toggleVerb(f model.Flag, on bool) string {
	switch {
	case f == model.FlagSeen && on:
		return "mark read"
	case f == model.FlagSeen:
		return "mark unread"
	case on:
		return "flag"
	default:
		return "unflag"
	}
}

// runMoves issues ops one after another on a goroutine. A failure stops
// the batch; moves already confirmed are still reported for undo.
func (m Model) runMoves(verb string, ops []moveOp, remove bool) (tea.Model, tea.Cmd) {
	m.batchSeq++
	batch, c := m.batchSeq, m.client
	desc := verb
	if len(ops) > 1 {
		desc = fmt.Sprintf("%s %d messages", verb, len(ops))
	}
	return m, func() tea.Msg {
		ctx := context.Background()
		msg := triageDoneMsg{desc: desc, batch: batch, remove: remove}
		for _, op := range ops {
			var flags *string
			if op.flags != nil {
				s := model.FlagsToString(op.flags)
				flags = &s
			}
			docid, err := c.Move(ctx, op.docid, op.maildir, flags)
			if err != nil {
				msg.err = fmt.Errorf("%s: %w", verb, err)
				break
			}
			msg.done = append(msg.done, moveDone{op: op, docid: docid})
		}
		return msg
	}
}

func (m Model) handleTriageDone(msg triageDoneMsg) (tea.Model, tea.Cmd) {
	moved := make(map[uint32]bool, len(msg.done))
	for _, d := range msg.done {
		applyMove(m.envs, d)
		applyMove(m.thread, d)
		moved[d.docid] = true
		m.undo.Push(model.UndoEntry{
			Kind:        model.UndoMove,
			Description: msg.desc,
			Batch:       msg.batch,
			Docid:       d.docid,
			MessageID:   d.op.messageID,
			PrevMaildir: d.op.prevMaildir,
			PrevFlags:   d.op.prevFlags,
		})
	}
	if len(msg.done) > 0 {
		m.quietUntil = time.Now().Add(quietAfterMove)
	}

	var cmd tea.Cmd
	if m.list.Mode() == maillist.ModeThread {
		if msg.remove {
			m.thread = removeDocids(m.thread, moved)
		}
		if len(m.thread) == 0 {
			cmd = m.loadFolder()
		} else {
			cmd = m.list.SetThread(m.list.Title(), m.threadPointers())
		}
	} else {
		if msg.remove {
			m.envs = removeDocids(m.envs, moved)
		}
		cmd = m.list.SetConversations(m.folderTitle(), model.GroupConversations(m.envs))
	}
	cmds := []tea.Cmd{cmd, m.showPreview()}

	switch {
	case msg.err != nil:
		cmds = append(cmds, m.setStatus(msg.err.Error(), true))
	case len(msg.done) > 0:
		cmds = append(cmds, m.setStatus(capitalize(msg.desc)+" (z to undo)", false))
	}
	return m, tea.Batch(cmds...)
}

// applyMove updates the envelope a confirmed move touched. Only the
// docid, flags and maildir change.
func applyMove(envs []model.Envelope, d moveDone) {
	for i := range envs {
		e := &envs[i]
		if e.Docid != d.op.docid {
			continue
		}
		e.Docid = d.docid
		if d.op.maildir != nil {
			e.Maildir = *d.op.maildir
		}
		if d.op.flags != nil {
			e.Flags = d.op.flags
		}
		return
	}
}

func removeDocids(envs []model.Envelope, docids map[uint32]bool) []model.Envelope {
	out := make([]model.Envelope, 0, len(envs))
	for _, e := range envs {
		if !docids[e.Docid] {
			out = append(out, e)
		}
	}
	return out
}

// undoLast reverses the most recent action.
func (m Model) undoLast() (tea.Model, tea.Cmd) {
	entries := m.undo.PopBatch()
	if len(entries) == 0 {
		cmd := m.setStatus("Nothing to undo", false)
		return m, cmd
	}
	desc := entries[0].Description

	if entries[0].Kind == model.UndoDeleteSmartFolder {
		s, folder := m.store, entries[0].Folder
		return m, func() tea.Msg {
			if err := s.RestoreSmartFolder(context.Background(), folder); err != nil {
				return undoDoneMsg{desc: desc, smart: true, left: entries, err: err}
			}
			return undoDoneMsg{desc: desc, smart: true}
		}
	}

	if cmd := m.triageReady(); cmd != nil {
		for i := len(entries) - 1; i >= 0; i-- {
			m.undo.Push(entries[i])
		}
		return m, cmd
	}

	c := m.client
	return m, func() tea.Msg {
		ctx := context.Background()
		for i, e := range entries {
			maildir, flags := e.PrevMaildir, e.PrevFlags
			if _, err := c.Move(ctx, e.Docid, &maildir, &flags); err != nil {
				return undoDoneMsg{
					desc:  desc,
					moved: i,
					left:  entries[i:],
					err:   fmt.Errorf("undo %s: %w", desc, err),
				}
			}
		}
		return undoDoneMsg{desc: desc}
	}
}

func (m Model) handleUndoDone(msg undoDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// Keep what was not reverted so undo can be retried.
		for i := len(msg.left) - 1; i >= 0; i-- {
			m.undo.Push(msg.left[i])
		}
		status := m.setStatus(msg.err.Error(), true)
		if msg.moved == 0 {
			return m, status
		}
		m.quietUntil = time.Now().Add(quietAfterMove)
		reload := m.reloadCurrent()
		return m, tea.Batch(status, reload)
	}
	status := m.setStatus("Undone: "+msg.desc, false)
	if msg.smart {
		var cmd tea.Cmd
		if m.currentView == ViewFolders {
			cmd = m.foldersView.Init()
		}
		return m, tea.Batch(status, cmd)
	}
	m.quietUntil = time.Now().Add(quietAfterMove)
	reload := m.reloadCurrent()
	return m, tea.Batch(status, reload)
}

// reloadCurrent reloads the open thread, or the folder when none is open.
func (m *Model) reloadCurrent() tea.Cmd {
	if m.threadMsgID != "" {
		return m.loadThread(m.threadMsgID)
	}
	return m.loadFolder()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
