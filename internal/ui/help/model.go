package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/keys"
	"github.com/nhle/mumail/internal/theme"
	"github.com/nhle/mumail/internal/ui/command"
)

// sections name the columns of keys.KeyMap.FullHelp, in order.
var sections = []string{"Move", "Triage", "Write", "Search", "Session"}

// commandArgs documents the palette commands that take an argument.
var commandArgs = map[string]string{
	"search":  "<query>",
	"folder":  "[maildir]",
	"open":    "<mumail:// url>",
	"account": "[name]",
	"compose": "[address]",
}

// Model is the help overlay: every binding grouped by purpose, plus the
// palette commands.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

func New(k *keys.KeyMap, width, height int) Model {
	m := Model{keys: k, help: help.New()}
	m.SetSize(width, height)
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(tea.Msg) (Model, tea.Cmd) { return m, nil }

func (m Model) View() string {
	groups := m.keys.FullHelp()
	cols := make([]string, 0, len(groups))
	for i, g := range groups {
		heading := ""
		if i < len(sections) {
			heading = sections[i]
		}
		body := m.help.FullHelpView([][]key.Binding{g})
		cols = append(cols, lipgloss.NewStyle().MarginRight(3).Render(
			lipgloss.JoinVertical(lipgloss.Left, theme.MutedStyle.Bold(true).Render(heading), body),
		))
	}
	bindings := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render("Keys"),
		bindings,
		"",
		theme.TitleStyle.Render("Commands (:)"),
		theme.HintStyle.Width(max(m.width-8, 1)).Render(commandList()),
	)
	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func commandList() string {
	parts := make([]string, 0, len(command.Names))
	for _, n := range command.Names {
		if arg, ok := commandArgs[n]; ok {
			n += " " + arg
		}
		parts = append(parts, ":"+n)
	}
	return strings.Join(parts, "   ")
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-8, 0)
}
