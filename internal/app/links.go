package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/compose"
	"github.com/nhle/mumail/internal/ipc"
	"github.com/nhle/mumail/internal/model"
)

// handleIPC acts on a command from the control socket.
func (m *Model) handleIPC(c ipc.Command) tea.Cmd {
	m.log.Infof("ipc: %s %s%s", c.Cmd, c.URL, c.Folder)
	switch c.Cmd {
	case ipc.CmdOpen:
		link, err := ipc.ParseURL(c.URL)
		if err != nil {
			return m.setStatus(err.Error(), true)
		}
		if m.client == nil {
			m.pending = &link
			return nil
		}
		return m.openLink(link)

	case ipc.CmdNavigate:
		m.filters = model.Filters{}
		return m.openFolder(c.Folder)

	case ipc.CmdQuit:
		m.shutdown()
		return tea.Quit
	}
	return nil
}

// openLink shows what a mumail:// URL points at.
func (m *Model) openLink(link ipc.Link) tea.Cmd {
	m.currentView = ViewList
	switch link.Kind {
	case ipc.LinkMessage:
		return m.openFolder(model.ThreadQuery(link.Target))
	case ipc.LinkThread:
		return m.loadThread(link.Target)
	case ipc.LinkSearch:
		return m.openFolder(link.Target)
	case ipc.LinkCompose:
		return m.composeDraft(compose.NewTo(link.To, link.Subject))
	}
	return nil
}
