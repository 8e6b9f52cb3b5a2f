package maillist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/theme"
)

const sendersWidth = 20

// ConversationItem is one row of a folder listing.
type ConversationItem struct {
	Conv model.Conversation
}

// FilterValue returns the string used for fuzzy filtering.
func (i ConversationItem) FilterValue() string { return i.Conv.Subject() }

// MessageItem is one row of a thread view.
type MessageItem struct {
	Env *model.Envelope
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string { return i.Env.Subject }

// ItemDelegate implements list.ItemDelegate for both row kinds.
type ItemDelegate struct {
	// Now is the reference for short dates; zero means time.Now.
	Now time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	now := d.Now
	if now.IsZero() {
		now = time.Now()
	}
	width := max(m.Width()-3, 10)

	var (
		line           string
		unread, marked bool
	)
	switch it := item.(type) {
	case ConversationItem:
		line = conversationLine(it.Conv, now, width)
		unread, marked = it.Conv.HasUnread(), it.Conv.HasFlagged()
	case MessageItem:
		line = messageLine(it.Env, now, width)
		unread, marked = it.Env.IsUnread(), it.Env.IsFlagged()
	default:
		return
	}

	if index == m.Index() {
		fmt.Fprint(w, theme.CursorRowStyle.Render(line))
		return
	}
	switch {
	case marked:
		line = theme.FlaggedStyle.Render(line)
	case unread:
		line = theme.UnreadStyle.Render(line)
	default:
		line = theme.ReadStyle.Render(line)
	}
	fmt.Fprint(w, theme.RowStyle.Render(line))
}

func conversationLine(c model.Conversation, now time.Time, width int) string {
	count := ""
	if c.Len() > 1 {
		count = fmt.Sprintf(" (%d)", c.Len())
	}
	head := fmt.Sprintf("%s %6s %s ",
		marker(c.HasUnread(), c.HasFlagged()),
		ShortDate(c.Latest(), now),
		pad(c.Senders(), sendersWidth),
	)
	rest := max(width-runewidth.StringWidth(head), 0)
	return head + runewidth.Truncate(c.Subject()+count, rest, "…")
}

func messageLine(e *model.Envelope, now time.Time, width int) string {
	indent := strings.Repeat("  ", int(min(e.Thread.Level, 8)))
	head := fmt.Sprintf("%s %6s %s %s",
		marker(e.IsUnread(), e.IsFlagged()),
		ShortDate(e.Date, now),
		pad(e.FromDisplay(), sendersWidth),
		indent,
	)
	rest := max(width-runewidth.StringWidth(head), 0)
	return head + runewidth.Truncate(e.Subject, rest, "…")
}

func marker(unread, flagged bool) string {
	switch {
	case flagged:
		return "★"
	case unread:
		return "●"
	default:
		return " "
	}
}

// pad truncates or right-pads s to exactly n cells.
func pad(s string, n int) string {
	return runewidth.FillRight(runewidth.Truncate(s, n, "…"), n)
}

// ShortDate formats t relative to now: a clock time for today, month and
// day within the year, otherwise the full date.
func ShortDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return t.Format("15:04")
	case y1 == y2:
		return t.Format("Jan 02")
	default:
		return t.Format("2006-01")
	}
}
