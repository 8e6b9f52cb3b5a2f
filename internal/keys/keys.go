package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down   key.Binding
	Up     key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Index and sync
	Reindex key.Binding
	Sync    key.Binding

	// Triage
	Archive    key.Binding
	Trash      key.Binding
	Spam       key.Binding
	ToggleRead key.Binding
	ToggleFlag key.Binding
	Undo       key.Binding

	// Compose
	Compose  key.Binding
	Reply    key.Binding
	ReplyAll key.Binding
	Forward  key.Binding

	// Folders and filters
	Folders          key.Binding
	Accounts         key.Binding
	SaveSearch       key.Binding
	FilterUnread     key.Binding
	FilterFlagged    key.Binding
	FilterNeedsReply key.Binding

	// Preview
	ScrollDown key.Binding
	ScrollUp   key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open thread"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Reindex: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reindex"),
		),
		Sync: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sync mail"),
		),
		Archive: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "archive"),
		),
		Trash: key.NewBinding(
			key.WithKeys("#", "d"),
			key.WithHelp("#", "trash"),
		),
		Spam: key.NewBinding(
			key.WithKeys("!"),
			key.WithHelp("!", "spam"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "toggle read"),
		),
		ToggleFlag: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle flag"),
		),
		Undo: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "undo"),
		),
		Compose: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "compose"),
		),
		Reply: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reply"),
		),
		ReplyAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "reply all"),
		),
		Forward: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "forward"),
		),
		Folders: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "folders"),
		),
		Accounts: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "accounts"),
		),
		SaveSearch: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "save search"),
		),
		FilterUnread: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "unread only"),
		),
		FilterFlagged: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "flagged only"),
		),
		FilterNeedsReply: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "needs reply"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("J", "pgdown"),
			key.WithHelp("J", "scroll preview"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("K", "pgup"),
			key.WithHelp("K", "scroll preview up"),
		),
	}
}

// bindings maps the action names used in the config file to fields.
func (k *KeyMap) bindings() map[string]*key.Binding {
	return map[string]*key.Binding{
		"down":               &k.Down,
		"up":                 &k.Up,
		"top":                &k.Top,
		"bottom":             &k.Bottom,
		"select":             &k.Select,
		"back":               &k.Back,
		"quit":               &k.Quit,
		"search":             &k.Search,
		"command":            &k.Command,
		"help":               &k.Help,
		"reindex":            &k.Reindex,
		"sync":               &k.Sync,
		"archive":            &k.Archive,
		"trash":              &k.Trash,
		"spam":               &k.Spam,
		"toggle_read":        &k.ToggleRead,
		"toggle_flag":        &k.ToggleFlag,
		"undo":               &k.Undo,
		"compose":            &k.Compose,
		"reply":              &k.Reply,
		"reply_all":          &k.ReplyAll,
		"forward":            &k.Forward,
		"folders":            &k.Folders,
		"accounts":           &k.Accounts,
		"save_search":        &k.SaveSearch,
		"filter_unread":      &k.FilterUnread,
		"filter_flagged":     &k.FilterFlagged,
		"filter_needs_reply": &k.FilterNeedsReply,
		"scroll_down":        &k.ScrollDown,
		"scroll_up":          &k.ScrollUp,
	}
}

// Apply replaces the keys of the named actions. Unknown actions are
// reported together so a typo in the config is visible.
func (k *KeyMap) Apply(overrides map[string][]string) error {
	table := k.bindings()
	var unknown []string
	for action, ks := range overrides {
		b, ok := table[strings.ToLower(action)]
		if !ok {
			unknown = append(unknown, action)
			continue
		}
		if len(ks) == 0 {
			b.SetEnabled(false)
			continue
		}
		b.SetKeys(ks...)
		b.SetHelp(strings.Join(ks, "/"), b.Help().Desc)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown key binding actions: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Archive,
		k.Reply, k.Search, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Select, k.Back, k.Quit},
		{k.Archive, k.Trash, k.Spam, k.ToggleRead, k.ToggleFlag, k.Undo},
		{k.Compose, k.Reply, k.ReplyAll, k.Forward, k.ScrollDown, k.ScrollUp},
		{k.Search, k.SaveSearch, k.FilterUnread, k.FilterFlagged, k.FilterNeedsReply},
		{k.Folders, k.Accounts, k.Command, k.Reindex, k.Sync, k.Help},
	}
}
