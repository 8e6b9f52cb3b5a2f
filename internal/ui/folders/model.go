// Package folders is the folder picker: real maildirs found on disk plus
// the account's smart folders, with create, edit and delete for the latter.
package folders

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/keys"
	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/store"
	"github.com/nhle/mumail/internal/theme"
)

// CloseMsg signals the parent to close the picker.
type CloseMsg struct{}

// SelectedMsg is sent when the user picks a folder. Query is a maildir
// path ("/Inbox") for real folders and a mu query for smart ones.
type SelectedMsg struct {
	Name  string
	Query string
	Smart bool
}

// SmartFolderDeletedMsg reports a deletion so the parent can offer undo.
type SmartFolderDeletedMsg struct {
	Folder model.SmartFolder
}

// SmartFolderSavedMsg reports a created or updated smart folder.
type SmartFolderSavedMsg struct {
	Folder model.SmartFolder
}

// ErrorMsg reports a failed store operation.
type ErrorMsg struct{ Err error }

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

// Entry is one row of the picker.
type Entry struct {
	Name  string
	Query string
	Smart *model.SmartFolder
}

type loadedMsg struct {
	maildirs []string
	smart    []model.SmartFolder
	err      error
}

// Model is the Bubble Tea model for the folder picker.
type Model struct {
	mode        mode
	store       store.Store
	keys        *keys.KeyMap
	account     string
	root        string
	entries     []Entry
	selectedIdx int
	editing     *model.SmartFolder
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a picker for one account. root is the account's Maildir.
func New(s store.Store, k *keys.KeyMap, account, root string, width, height int) Model {
	return Model{
		mode:    modeList,
		store:   s,
		keys:    k,
		account: account,
		root:    root,
		fb:      &formBindings{},
		width:   width, height: height,
	}
}

// Init loads folders from disk and the store.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// Entries returns the rows currently shown.
func (m Model) Entries() []Entry { return m.entries }

// InForm reports whether a form has the keyboard.
func (m Model) InForm() bool { return m.mode != modeList }

// SaveSearch opens the create form prefilled with query.
func (m Model) SaveSearch(query string) (Model, tea.Cmd) {
	m.editing = nil
	m.fb.name = ""
	m.fb.query = query
	m.form = m.buildForm()
	m.mode = modeForm
	return m, m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		}
		entries := make([]Entry, 0, len(msg.maildirs)+len(msg.smart))
		for _, d := range msg.maildirs {
			entries = append(entries, Entry{Name: d, Query: d})
		}
		for i := range msg.smart {
			sf := msg.smart[i]
			entries = append(entries, Entry{Name: sf.Name, Query: sf.Query, Smart: &sf})
		}
		m.entries = entries
		if m.selectedIdx >= len(m.entries) {
			m.selectedIdx = max(len(m.entries)-1, 0)
		}
		return m, nil

	case SmartFolderSavedMsg:
		m.statusMsg = fmt.Sprintf("Saved %q", msg.Folder.Name)
		m.mode = modeList
		return m, m.load()

	case SmartFolderDeletedMsg:
		m.statusMsg = fmt.Sprintf("Deleted %q (z to undo)", msg.Folder.Name)
		m.mode = modeList
		return m, m.load()

	case ErrorMsg:
		m.statusMsg = fmt.Sprintf("Error: %v", msg.Err)
		m.mode = modeList
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Folders):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.entries) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.entries)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.entries) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.entries) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		e, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{Name: e.Name, Query: e.Query, Smart: e.Smart != nil}
		}

	case msg.String() == "n":
		return m.SaveSearch("")

	case msg.String() == "e":
		e, ok := m.selected()
		if !ok || e.Smart == nil {
			return m, nil
		}
		m.editing = e.Smart
		m.fb.name = e.Smart.Name
		m.fb.query = e.Smart.Query
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "d":
		e, ok := m.selected()
		if !ok || e.Smart == nil {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) selected() (Entry, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[m.selectedIdx], true
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.save()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		e, ok := m.selected()
		if m.fb.confirm && ok && e.Smart != nil {
			return m, m.delete(*e.Smart)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the picker.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Folders"))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(theme.HintStyle.Render("No maildirs found under " + m.root))
	}
	for i, e := range m.entries {
		kind := theme.FolderStyle(false).Render("dir  ")
		label := e.Name
		if e.Smart != nil {
			kind = theme.FolderStyle(true).Render("smart")
			label = fmt.Sprintf("%s  %s", e.Name, theme.HintStyle.Render(e.Query))
		}
		line := kind + " " + label
		if i == m.selectedIdx {
			b.WriteString(theme.CursorRowStyle.Render(line))
		} else {
			b.WriteString(theme.RowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.NoticeStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.MutedStyle.Render(
		"enter open | n new smart folder | e edit | d delete | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) load() tea.Cmd {
	s, account, root := m.store, m.account, m.root
	return func() tea.Msg {
		msg := loadedMsg{maildirs: model.ScanMaildirFolders(root)}
		if s != nil {
			msg.smart, msg.err = s.GetSmartFolders(context.Background(), account)
		}
		return msg
	}
}

func (m Model) save() tea.Cmd {
	s, fb, account := m.store, m.fb, m.account
	editing := m.editing
	return func() tea.Msg {
		ctx := context.Background()
		if editing != nil {
			sf := *editing
			sf.Name = strings.TrimSpace(fb.name)
			sf.Query = strings.TrimSpace(fb.query)
			if err := s.UpdateSmartFolder(ctx, sf); err != nil {
				return ErrorMsg{Err: err}
			}
			return SmartFolderSavedMsg{Folder: sf}
		}
		sf, err := s.CreateSmartFolder(ctx, model.SmartFolder{
			Account: account,
			Name:    strings.TrimSpace(fb.name),
			Query:   strings.TrimSpace(fb.query),
		})
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SmartFolderSavedMsg{Folder: sf}
	}
}

func (m Model) delete(sf model.SmartFolder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if err := s.DeleteSmartFolder(context.Background(), sf.ID); err != nil {
			return ErrorMsg{Err: err}
		}
		return SmartFolderDeletedMsg{Folder: sf}
	}
}
