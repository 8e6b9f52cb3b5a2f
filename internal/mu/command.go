package mu

import (
	"strconv"
	"strings"

	"github.com/nhle/mumail/internal/sexp"
)

// SortField names a field the server can sort results by.
type SortField string

const (
	SortDate    SortField = "date"
	SortSubject SortField = "subject"
	SortFrom    SortField = "from"
	SortSize    SortField = "size"
)

// FindOptions controls a search.
type FindOptions struct {
	SortField      SortField
	Descending     bool
	MaxNum         int
	Threads        bool
	IncludeRelated bool
}

// DefaultFindOptions is the folder listing used by the envelope view:
// threaded, newest first.
func DefaultFindOptions() FindOptions {
	return FindOptions{
		SortField:  SortDate,
		Descending: true,
		MaxNum:     500,
		Threads:    true,
	}
}

// ThreadFindOptions lists one thread oldest first, including related
// messages from other folders.
func ThreadFindOptions() FindOptions {
	return FindOptions{
		SortField:      SortDate,
		MaxNum:         500,
		Threads:        true,
		IncludeRelated: true,
	}
}

func quote(s string) string {
	return `"` + sexp.Escape(s) + `"`
}

func pingCommand() string  { return "(ping)" }
func indexCommand() string { return "(index)" }
func quitCommand() string  { return "(quit)" }

func findCommand(query string, opts FindOptions) string {
	field := opts.SortField
	if field == "" {
		field = SortDate
	}
	var b strings.Builder
	b.WriteString("(find :query ")
	b.WriteString(quote(query))
	b.WriteString(" :sortfield :")
	b.WriteString(string(field))
	b.WriteString(" :maxnum ")
	b.WriteString(strconv.Itoa(opts.MaxNum))
	if opts.Threads {
		b.WriteString(" :threads t")
	}
	if opts.Descending {
		b.WriteString(" :descending t")
	}
	if opts.IncludeRelated {
		b.WriteString(" :include-related t")
	}
	b.WriteByte(')')
	return b.String()
}

func moveCommand(docid uint32, maildir, flags *string) string {
	var b strings.Builder
	b.WriteString("(move :docid ")
	b.WriteString(strconv.FormatUint(uint64(docid), 10))
	if maildir != nil {
		b.WriteString(" :maildir ")
		b.WriteString(quote(*maildir))
	}
	if flags != nil {
		b.WriteString(" :flags ")
		b.WriteString(quote(*flags))
	}
	b.WriteString(" :rename t)")
	return b.String()
}
