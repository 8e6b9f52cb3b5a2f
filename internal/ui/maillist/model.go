package maillist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/keys"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/theme"
)

// Mode says what the rows are.
type Mode int

const (
	// ModeFolder lists conversations of a folder or search.
	ModeFolder Mode = iota
	// ModeThread lists the messages of one conversation.
	ModeThread
)

// OpenConversationMsg is sent when the user opens a conversation.
type OpenConversationMsg struct {
	Conv model.Conversation
}

// SearchChangedMsg carries the search input while typing, once it is worth
// a preview search.
type SearchChangedMsg struct {
	Query string
}

// SearchSubmittedMsg is sent when the user presses enter in the search bar.
type SearchSubmittedMsg struct {
	Query string
}

// SearchCancelledMsg is sent when the search bar is dismissed.
type SearchCancelledMsg struct{}

// Model is the message list view component.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	mode        Mode
	searchMode  bool
	searchInput textinput.Model
	lastQuery   string
	emptyText   string
	width       int
	height      int
}

// New creates a new message list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("conversation", "conversations")
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "from:alice subject:invoice ..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		emptyText:   "No messages.",
		width:       width,
		height:      height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetConversations shows a folder listing. The cursor keeps its index so
// triage in place moves to the next row.
func (m *Model) SetConversations(title string, convs []model.Conversation) tea.Cmd {
	m.mode = ModeFolder
	m.list.Title = title
	m.list.SetStatusBarItemName("conversation", "conversations")
	items := make([]list.Item, len(convs))
	for i, c := range convs {
		items[i] = ConversationItem{Conv: c}
	}
	return m.setItems(items)
}

// SetThread shows the messages of one conversation.
func (m *Model) SetThread(title string, envs []*model.Envelope) tea.Cmd {
	m.mode = ModeThread
	m.list.Title = title
	m.list.SetStatusBarItemName("message", "messages")
	items := make([]list.Item, len(envs))
	for i, e := range envs {
		items[i] = MessageItem{Env: e}
	}
	return m.setItems(items)
}

func (m *Model) setItems(items []list.Item) tea.Cmd {
	idx := m.list.Index()
	cmd := m.list.SetItems(items)
	if n := len(items); n > 0 {
		m.list.Select(min(idx, n-1))
	}
	return cmd
}

// SetEmptyText sets what is shown when there are no rows.
func (m *Model) SetEmptyText(s string) { m.emptyText = s }

// Title returns the list heading.
func (m Model) Title() string { return m.list.Title }

// Mode returns what the rows are.
func (m Model) Mode() Mode { return m.mode }

// Len returns the number of rows.
func (m Model) Len() int { return len(m.list.Items()) }

// Index returns the cursor row.
func (m Model) Index() int { return m.list.Index() }

// Select moves the cursor.
func (m *Model) Select(i int) {
	if i >= 0 && i < len(m.list.Items()) {
		m.list.Select(i)
	}
}

// Searching reports whether the search bar has focus.
func (m Model) Searching() bool { return m.searchMode }

// SelectedConversation returns the conversation under the cursor in
// folder mode.
func (m Model) SelectedConversation() (model.Conversation, bool) {
	it, ok := m.list.SelectedItem().(ConversationItem)
	return it.Conv, ok
}

// SelectedEnvelope returns the message under the cursor: the
// representative message of a conversation, or the row itself in a thread.
func (m Model) SelectedEnvelope() *model.Envelope {
	switch it := m.list.SelectedItem().(type) {
	case ConversationItem:
		return it.Conv.Representative()
	case MessageItem:
		return it.Env
	}
	return nil
}

// StartSearch focuses the search bar prefilled with the last query.
func (m *Model) StartSearch() tea.Cmd {
	m.searchMode = true
	m.searchInput.SetValue(m.lastQuery)
	m.searchInput.CursorEnd()
	return m.searchInput.Focus()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		query := m.searchInput.Value()
		m.lastQuery = query
		if query == "" {
			return m, func() tea.Msg { return SearchCancelledMsg{} }
		}
		return m, func() tea.Msg { return SearchSubmittedMsg{Query: query} }

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		return m, func() tea.Msg { return SearchCancelledMsg{} }
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	after := m.searchInput.Value()
	if after != before && model.ShouldSearch(after) {
		return m, tea.Batch(cmd, func() tea.Msg { return SearchChangedMsg{Query: after} })
	}
	return m, cmd
}

// handleNormalKeys handles cursor movement. Everything else belongs to
// the app.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
	case key.Matches(msg, m.keys.Top):
		m.list.Select(0)
	case key.Matches(msg, m.keys.Bottom):
		if n := len(m.list.Items()); n > 0 {
			m.list.Select(n - 1)
		}
	case msg.Type == tea.KeyPgDown:
		m.list.NextPage()
	case msg.Type == tea.KeyPgUp:
		m.list.PrevPage()
	case key.Matches(msg, m.keys.Select):
		conv, ok := m.SelectedConversation()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenConversationMsg{Conv: conv} }
	}
	return m, nil
}

// View renders the list.
func (m Model) View() string {
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	}
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.Text).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, body)
	}
	return body
}

func (m Model) renderEmptyState() string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.Muted).
		Render(m.emptyText)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 1))
	m.searchInput.Width = width - 4
}
