package theme

import "github.com/charmbracelet/lipgloss"

// Palette. Each pair is (dark terminal, light terminal).
var (
	Accent  = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	Text    = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	Muted   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	Flag    = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	Danger  = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	Smart   = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	Maildir = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	Bar     = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	Rule    = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Title and status bars.
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Text).
			Background(Accent).
			Padding(0, 1)

	StatusBarStyle   = lipgloss.NewStyle().Foreground(Text).Background(Bar).Padding(0, 1)
	ErrorStatusStyle = StatusBarStyle.Background(Danger)

	// IndexingStyle colors the spinner shown while mu indexes.
	IndexingStyle = lipgloss.NewStyle().Bold(true).Foreground(Flag)
)

// Panels and overlays.
var (
	PanelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Rule)

	// TitleStyle heads an overlay such as help or the folder picker.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Text).MarginBottom(1)

	MutedStyle  = lipgloss.NewStyle().Foreground(Muted)
	HintStyle   = MutedStyle.Italic(true)
	NoticeStyle = lipgloss.NewStyle().Foreground(Flag).Italic(true)
	ErrorStyle  = lipgloss.NewStyle().Foreground(Danger)

	// HeaderBlockStyle renders From/To/Subject above a message body.
	HeaderBlockStyle = MutedStyle
	AttachmentStyle  = lipgloss.NewStyle().Foreground(Smart)
)

// Message rows.
var (
	RowStyle = lipgloss.NewStyle().PaddingLeft(2)
	// CursorRowStyle draws a bar left of the row under the cursor.
	CursorRowStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			Bold(true).
			Foreground(Accent).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(Accent)

	UnreadStyle  = lipgloss.NewStyle().Bold(true).Foreground(Text)
	ReadStyle    = lipgloss.NewStyle().Foreground(Muted)
	FlaggedStyle = lipgloss.NewStyle().Bold(true).Foreground(Flag)
)

// FolderStyle tags a picker entry as a maildir or a smart folder.
func FolderStyle(smart bool) lipgloss.Style {
	c := Maildir
	if smart {
		c = Smart
	}
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(c)
}
