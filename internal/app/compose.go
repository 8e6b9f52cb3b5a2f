package app

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/compose"
	"github.com/nhle/mumail/internal/credential"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/send"
)

// TransportFunc builds the transport that submits an account's mail.
type TransportFunc func(ctx context.Context, acct model.AccountConfig) (send.Transport, error)

func smtpTransport(ring credential.Getter) TransportFunc {
	return func(ctx context.Context, acct model.AccountConfig) (send.Transport, error) {
		t, err := send.NewSMTP(ctx, acct, ring)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

type composeKind int

const (
	composeNew composeKind = iota
	composeReply
	composeReplyAll
	composeForward
)

// draftReadyMsg carries a draft file waiting for the editor. before is
// its modification time as written, so an untouched draft is not sent.
type draftReadyMsg struct {
	path   string
	before time.Time
}

type editorDoneMsg struct {
	path   string
	before time.Time
	err    error
}

// prepareDraft builds a draft for kind. Replies and forwards quote the
// rendered body of env.
func (m Model) prepareDraft(kind composeKind, env *model.Envelope) tea.Cmd {
	if kind == composeNew {
		return m.composeDraft(compose.New())
	}
	if env == nil {
		return nil
	}
	e := *env
	from, cache := m.acct().Email, m.cache
	return func() tea.Msg {
		msg, err := cache.Get(e.Path)
		if err != nil {
			return errMsg{err: fmt.Errorf("reading message to quote: %w", err)}
		}
		var d compose.Draft
		switch kind {
		case composeReply:
			d = compose.Reply(&e, msg.Text, false)
		case composeReplyAll:
			d = compose.Reply(&e, msg.Text, true)
		default:
			d = compose.Forward(&e, msg.Text)
		}
		return writeDraft(d, from)
	}
}

// composeDraft writes a prepared draft and hands it to the editor.
func (m Model) composeDraft(d compose.Draft) tea.Cmd {
	from := m.acct().Email
	return func() tea.Msg { return writeDraft(d, from) }
}

func writeDraft(d compose.Draft, from string) tea.Msg {
	path, err := d.WriteTemp(from)
	if err != nil {
		return errMsg{err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return errMsg{err: fmt.Errorf("checking draft: %w", err)}
	}
	return draftReadyMsg{path: path, before: info.ModTime()}
}

func (m Model) handleDraftReady(msg draftReadyMsg) (tea.Model, tea.Cmd) {
	editor, err := compose.EditorCommand(m.cfg.Editor, msg.path)
	if err != nil {
		os.Remove(msg.path)
		cmd := m.setStatus(err.Error(), true)
		return m, cmd
	}
	m.log.Infof("editing draft %s with %s", msg.path, editor.Path)
	return m, tea.ExecProcess(editor, func(err error) tea.Msg {
		return editorDoneMsg{path: msg.path, before: msg.before, err: err}
	})
}

// handleEditorDone sends the draft as a background job. The file is kept
// when sending fails so nothing typed is lost.
func (m Model) handleEditorDone(msg editorDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		os.Remove(msg.path)
		cmd := m.setStatus(fmt.Sprintf("Editor failed: %v", msg.err), true)
		return m, cmd
	}
	if !compose.Modified(msg.path, msg.before) {
		os.Remove(msg.path)
		cmd := m.setStatus("Draft unchanged, not sent", false)
		return m, cmd
	}

	acct, transport, path := m.acct(), m.transport, msg.path
	m.runner.Go(sendJobName, func(ctx context.Context) (string, error) {
		t, err := transport(ctx, acct)
		if err != nil {
			return "", fmt.Errorf("%w (draft kept at %s)", err, path)
		}
		res, err := send.Submit(ctx, t, acct, path)
		if err != nil && res.MessageID == "" {
			return "", fmt.Errorf("%w (draft kept at %s)", err, path)
		}
		os.Remove(path)
		if err != nil {
			return "", fmt.Errorf("sent %s but filing the copy failed: %w", res.MessageID, err)
		}
		return "sent " + res.MessageID, nil
	})
	cmd := m.setStatus("Sending…", false)
	return m, cmd
}
