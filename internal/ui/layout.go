package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mumail/internal/theme"
)

// minPreviewWidth is the narrowest terminal that still gets a preview pane.
const minPreviewWidth = 100

// Layout manages the list/preview split and the header and status bars.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// HasPreview reports whether the terminal is wide enough for a side
// preview pane.
func (l Layout) HasPreview() bool {
	return l.Width >= minPreviewWidth
}

// ListWidth is the width of the message list. Without a preview it takes
// the whole row.
func (l Layout) ListWidth() int {
	if !l.HasPreview() {
		return l.Width
	}
	return l.Width * 45 / 100
}

// PreviewWidth is what is left of the row after the list.
func (l Layout) PreviewWidth() int {
	if !l.HasPreview() {
		return 0
	}
	return l.Width - l.ListWidth()
}

// RenderHeader renders the top header bar with a title and right-aligned
// status (account, indexing state).
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar. An error replaces the
// normal style with the error style.
func (l Layout) RenderStatusBar(text string, isErr bool) string {
	style := theme.StatusBarStyle
	if isErr {
		style = theme.ErrorStatusStyle
	}
	rendered := style.Render(text)

	gap := max(l.Width-lipgloss.Width(rendered), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderSplit places the list and the preview side by side, or only the
// list when the terminal is narrow.
func (l Layout) RenderSplit(list, preview string) string {
	if !l.HasPreview() {
		return list
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, preview)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).MaxHeight(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
