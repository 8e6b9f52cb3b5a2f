package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/mu"
)

// indexPollTimeout bounds each wait for an index frame so the loop keeps
// redrawing while mu works.
const indexPollTimeout = 250 * time.Millisecond

type indexStartedMsg struct {
	client MailClient
	err    error
}

type indexPolledMsg struct {
	client MailClient
	state  mu.IndexState
	err    error
}

// requestReindex starts an index run, or remembers to start one as soon
// as the session is up and no run is in flight.
func (m *Model) requestReindex() tea.Cmd {
	if m.client == nil || m.indexing {
		m.needsReindex = true
		return nil
	}
	m.needsReindex = false
	m.indexing = true

	c := m.client
	start := func() tea.Msg {
		return indexStartedMsg{client: c, err: c.StartIndex(context.Background())}
	}
	return tea.Batch(start, m.spinner.Tick)
}

func (m Model) handleIndexStarted(msg indexStartedMsg) (tea.Model, tea.Cmd) {
	if msg.client != m.client {
		return m, nil
	}
	if msg.err != nil {
		m.indexing = false
		cmd := m.setStatus(fmt.Sprintf("Reindex failed: %v", msg.err), true)
		return m, cmd
	}
	m.log.Infof("index started")
	return m, pollIndex(msg.client)
}

// pollIndex waits briefly for one index frame. A timeout is not an
// error; the frame is picked up by the next poll.
func pollIndex(c MailClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), indexPollTimeout)
		defer cancel()
		state, err := c.PollIndexFrame(ctx)
		return indexPolledMsg{client: c, state: state, err: err}
	}
}

func (m Model) handleIndexPolled(msg indexPolledMsg) (tea.Model, tea.Cmd) {
	// A poll for a session that has since been replaced.
	if msg.client != m.client || !m.indexing {
		return m, nil
	}
	if msg.err != nil {
		m.indexing = false
		cmd := m.setStatus(fmt.Sprintf("Reindex failed: %v", msg.err), true)
		return m, cmd
	}

	switch msg.state {
	case mu.IndexDone:
		m.indexing = false
		m.log.Infof("index done")
		if m.needsReindex {
			// More changes arrived meanwhile; the next run reloads.
			cmd := m.requestReindex()
			return m, cmd
		}
		cmds := []tea.Cmd{m.setStatus("Reindex complete", false)}
		if m.threadMsgID != "" {
			cmds = append(cmds, m.loadThread(m.threadMsgID))
		} else {
			cmds = append(cmds, m.loadFolder())
		}
		return m, tea.Batch(cmds...)
	default:
		return m, pollIndex(msg.client)
	}
}
