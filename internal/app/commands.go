package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mumail/internal/compose"
	"github.com/nhle/mumail/internal/ipc"
	"github.com/nhle/mumail/internal/ui/command"
)

// executeCommand runs a command from the palette.
func (m Model) executeCommand(c command.CommandMsg) (tea.Model, tea.Cmd) {
	switch c.Name {
	case "search":
		if c.Arg == "" {
			m.currentView = ViewList
			cmd := m.list.StartSearch()
			return m, cmd
		}
		cmd := m.openFolder(c.Arg)
		return m, cmd

	case "folder":
		if c.Arg == "" {
			return m.openFolders()
		}
		folder := c.Arg
		if !strings.HasPrefix(folder, "/") {
			folder = "/" + folder
		}
		cmd := m.openFolder(folder)
		return m, cmd

	case "open":
		link, err := ipc.ParseURL(c.Arg)
		if err != nil {
			cmd := m.setStatus(err.Error(), true)
			return m, cmd
		}
		cmd := m.openLink(link)
		return m, cmd

	case "reindex":
		cmd := m.requestReindex()
		return m, cmd

	case "sync":
		cmd := m.runSync()
		return m, cmd

	case "account":
		if c.Arg == "" {
			if len(m.cfg.Accounts) < 2 {
				cmd := m.setStatus("Only one account configured", false)
				return m, cmd
			}
			return m.switchAccount((m.account + 1) % len(m.cfg.Accounts))
		}
		i, ok := m.accountByName(c.Arg)
		if !ok {
			cmd := m.setStatus("No account named "+c.Arg, true)
			return m, cmd
		}
		if i == m.account {
			return m, nil
		}
		return m.switchAccount(i)

	case "compose":
		return m, m.composeDraft(compose.NewTo(c.Arg, ""))

	case "undo":
		return m.undoLast()

	case "quit":
		return m.quit()
	}
	cmd := m.setStatus("Unknown command: "+c.Name, true)
	return m, cmd
}
