package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/theme"
)

// Names understood by the palette.
var Names = []string{
	"search", "folder", "open", "reindex", "sync", "account", "compose", "undo", "quit",
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name string
	Arg  string
}

// Parse splits "name rest of line" and resolves unambiguous prefixes,
// so ":re" runs reindex. An unknown name is returned as typed.
func Parse(line string) CommandMsg {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	var match string
	for _, n := range Names {
		if n == name {
			return CommandMsg{Name: n, Arg: arg}
		}
		if strings.HasPrefix(n, name) {
			if match != "" {
				return CommandMsg{Name: name, Arg: arg}
			}
			match = n
		}
	}
	if match != "" && name != "" {
		name = match
	}
	return CommandMsg{Name: name, Arg: arg}
}

// Model is the command palette view.
type Model struct {
	input   textinput.Model
	history []string
	pos     int
	width   int
	height  int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "search from:alice, folder /Archive, reindex..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			m.history = append(m.history, line)
			m.pos = len(m.history)
			parsed := Parse(line)
			return m, func() tea.Msg { return parsed }
		case "up":
			if m.pos > 0 {
				m.pos--
				m.input.SetValue(m.history[m.pos])
				m.input.CursorEnd()
			}
			return m, nil
		case "down":
			if m.pos < len(m.history)-1 {
				m.pos++
				m.input.SetValue(m.history[m.pos])
				m.input.CursorEnd()
			} else {
				m.pos = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Command")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// SetValue prefills the input, e.g. "search " from a key binding.
func (m *Model) SetValue(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
