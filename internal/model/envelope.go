package model

import (
	"sort"
	"strings"
	"time"
)

// Flag is a message flag as reported by the mu server.
type Flag int

const (
	FlagSeen Flag = iota
	FlagReplied
	FlagFlagged
	FlagTrashed
	FlagDraft
	FlagPassed
	FlagList
	FlagUnread
)

var flagSymbols = map[string]Flag{
	"seen":    FlagSeen,
	"replied": FlagReplied,
	"flagged": FlagFlagged,
	"trashed": FlagTrashed,
	"draft":   FlagDraft,
	"passed":  FlagPassed,
	"list":    FlagList,
	"unread":  FlagUnread,
}

// FlagFromSymbol maps a server flag symbol to a Flag.
func FlagFromSymbol(sym string) (Flag, bool) {
	f, ok := flagSymbols[sym]
	return f, ok
}

// String returns the server symbol for the flag.
func (f Flag) String() string {
	for sym, v := range flagSymbols {
		if v == f {
			return sym
		}
	}
	return "unknown"
}

// Char returns the Maildir info character for the flag. List and Unread
// have no on-disk representation and return 0.
func (f Flag) Char() byte {
	switch f {
	case FlagDraft:
		return 'D'
	case FlagFlagged:
		return 'F'
	case FlagPassed:
		return 'P'
	case FlagReplied:
		return 'R'
	case FlagSeen:
		return 'S'
	case FlagTrashed:
		return 'T'
	default:
		return 0
	}
}

// FlagsToString renders flags as the sorted Maildir flag string the
// server's move command accepts, e.g. "FS".
func FlagsToString(flags []Flag) string {
	var chars []byte
	for _, f := range flags {
		c := f.Char()
		if c == 0 {
			continue
		}
		dup := false
		for _, existing := range chars {
			if existing == c {
				dup = true
				break
			}
		}
		if !dup {
			chars = append(chars, c)
		}
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return string(chars)
}

// FlagsFromString parses a Maildir flag string. Unknown characters are
// ignored.
func FlagsFromString(s string) []Flag {
	var flags []Flag
	for i := 0; i < len(s); i++ {
		for _, f := range []Flag{FlagDraft, FlagFlagged, FlagPassed, FlagReplied, FlagSeen, FlagTrashed} {
			if f.Char() == s[i] {
				flags = append(flags, f)
			}
		}
	}
	return flags
}

// Address is one sender or recipient.
type Address struct {
	Name  string
	Email string
}

// Display returns the name, or the raw email when there is no name.
func (a Address) Display() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// String formats the address for a message header.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// ThreadMeta is the message's position within its thread.
type ThreadMeta struct {
	Level         uint32
	Root          bool
	ThreadSubject bool
}

// Envelope is the summary of one indexed message.
//
// Docid is reassigned by the server on every move or flag change; callers
// must replace it with the id returned by the mutating call.
type Envelope struct {
	Docid     uint32
	MessageID string
	Subject   string
	From      []Address
	To        []Address
	Date      time.Time
	Flags     []Flag
	Maildir   string
	Path      string
	Thread    ThreadMeta
}

// HasFlag reports whether f is set.
func (e *Envelope) HasFlag(f Flag) bool {
	for _, have := range e.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// IsUnread reports whether the message has not been seen.
func (e *Envelope) IsUnread() bool { return !e.HasFlag(FlagSeen) }

// IsFlagged reports whether the message is flagged.
func (e *Envelope) IsFlagged() bool { return e.HasFlag(FlagFlagged) }

// FromDisplay returns the display form of the first sender.
func (e *Envelope) FromDisplay() string {
	if len(e.From) == 0 {
		return ""
	}
	return e.From[0].Display()
}

// WithFlag returns a copy of the flag set with f added or removed.
func (e *Envelope) WithFlag(f Flag, on bool) []Flag {
	out := make([]Flag, 0, len(e.Flags)+1)
	for _, have := range e.Flags {
		if have != f {
			out = append(out, have)
		}
	}
	if on {
		out = append(out, f)
	}
	return out
}

// Conversation is a contiguous run of envelopes belonging to one thread.
// It indexes into the slice it was grouped from and does not own it.
type Conversation struct {
	Messages []*Envelope
}

// GroupConversations partitions envelopes, already in server thread order,
// into conversations. A new group starts at every root message; leading
// non-root messages form a group of their own.
func GroupConversations(envs []Envelope) []Conversation {
	var convs []Conversation
	for i := range envs {
		e := &envs[i]
		if e.Thread.Root || len(convs) == 0 {
			convs = append(convs, Conversation{})
		}
		last := &convs[len(convs)-1]
		last.Messages = append(last.Messages, e)
	}
	return convs
}

// Subject returns the subject of the first message.
func (c Conversation) Subject() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].Subject
}

// Representative returns the latest unread message, or the last message
// when everything has been read.
func (c Conversation) Representative() *Envelope {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsUnread() {
			return c.Messages[i]
		}
	}
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Senders returns the distinct sender display names in first-seen order,
// joined with ", ".
func (c Conversation) Senders() string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range c.Messages {
		name := m.FromDisplay()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// HasUnread reports whether any message is unread.
func (c Conversation) HasUnread() bool {
	for _, m := range c.Messages {
		if m.IsUnread() {
			return true
		}
	}
	return false
}

// HasFlagged reports whether any message is flagged.
func (c Conversation) HasFlagged() bool {
	for _, m := range c.Messages {
		if m.IsFlagged() {
			return true
		}
	}
	return false
}

// Docids returns every member docid in order.
func (c Conversation) Docids() []uint32 {
	ids := make([]uint32, len(c.Messages))
	for i, m := range c.Messages {
		ids[i] = m.Docid
	}
	return ids
}

// Len returns the number of messages.
func (c Conversation) Len() int { return len(c.Messages) }

// Latest returns the newest message date.
func (c Conversation) Latest() time.Time {
	var t time.Time
	for _, m := range c.Messages {
		if m.Date.After(t) {
			t = m.Date
		}
	}
	return t
}
