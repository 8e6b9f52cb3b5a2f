package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/render"
	"github.com/nhle/mumail/internal/theme"
)

// LoadedMsg carries a rendered message file.
type LoadedMsg struct {
	Path string
	Msg  *render.Message
	Err  error
}

// Model is the message preview pane.
type Model struct {
	cache    *render.Cache
	viewport viewport.Model
	path     string
	msg      *render.Message
	err      error
	loading  bool
	width    int
	height   int
}

// New creates a preview pane reading through cache.
func New(cache *render.Cache, width, height int) Model {
	vp := viewport.New(max(width-4, 1), max(height-2, 1))
	vp.Style = lipgloss.NewStyle()

	return Model{
		cache:    cache,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Show switches to env's file. It returns nil when that file is already
// shown or loading.
func (m *Model) Show(env *model.Envelope) tea.Cmd {
	if env == nil {
		m.Clear()
		return nil
	}
	if env.Path == m.path {
		return nil
	}
	m.path = env.Path
	m.msg, m.err = nil, nil
	m.loading = true
	m.viewport.SetContent("Loading…")

	path, cache := env.Path, m.cache
	return func() tea.Msg {
		msg, err := cache.Get(path)
		return LoadedMsg{Path: path, Msg: msg, Err: err}
	}
}

// Clear empties the pane.
func (m *Model) Clear() {
	m.path = ""
	m.msg, m.err = nil, nil
	m.loading = false
	m.viewport.SetContent("")
}

// Path returns the file being shown.
func (m Model) Path() string { return m.path }

// Message returns the rendered message, nil until loaded.
func (m Model) Message() *render.Message { return m.msg }

// Update handles messages for the preview pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		// A slower load for a row the cursor already left.
		if msg.Path != m.path {
			return m, nil
		}
		m.loading = false
		m.msg, m.err = msg.Msg, msg.Err
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// ScrollDown moves half a page down.
func (m *Model) ScrollDown() { m.viewport.HalfPageDown() }

// ScrollUp moves half a page up.
func (m *Model) ScrollUp() { m.viewport.HalfPageUp() }

func (m Model) renderContent() string {
	if m.err != nil {
		return theme.ErrorStyle.
			Render(fmt.Sprintf("Cannot read message: %v", m.err))
	}
	if m.msg == nil {
		return ""
	}
	wrap := lipgloss.NewStyle().Width(max(m.width-4, 1))

	var b strings.Builder
	b.WriteString(theme.HeaderBlockStyle.Render(strings.TrimRight(m.msg.Header(), "\n")))
	b.WriteString("\n\n")
	if m.msg.FromHTML {
		b.WriteString(theme.HintStyle.Render("(converted from HTML)"))
		b.WriteString("\n\n")
	}
	b.WriteString(wrap.Render(m.msg.Text))
	if len(m.msg.Attachments) > 0 {
		b.WriteString("\n\n")
		for _, a := range m.msg.Attachments {
			b.WriteString(theme.AttachmentStyle.Render("📎 " + a.Label()))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// View renders the pane.
func (m Model) View() string {
	return theme.PanelStyle.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(m.viewport.View())
}

// SetSize updates the pane dimensions and rewraps the content.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-4, 1)
	m.viewport.Height = max(height-2, 1)
	if m.msg != nil || m.err != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
