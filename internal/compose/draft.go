// Package compose builds the editable text of new messages, replies and
// forwards, and runs the user's editor over it.
package compose

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/nhle/mumail/internal/model"
)

// Kind is the type of draft.
type Kind int

const (
	KindNew Kind = iota
	KindReply
	KindReplyAll
	KindForward
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindReplyAll:
		return "reply-all"
	case KindForward:
		return "forward"
	default:
		return "new"
	}
}

// Draft holds everything needed to produce the compose file.
type Draft struct {
	Kind       Kind
	To         []model.Address
	Cc         []model.Address
	Subject    string
	Body       string
	InReplyTo  string
	References []string
	// Source is the Maildir path of the message being answered.
	Source string
}

// New returns a blank draft.
func New() Draft {
	return Draft{Kind: KindNew}
}

// NewTo returns a draft with the recipient and subject prefilled, as opened
// from a compose link.
func NewTo(to, subject string) Draft {
	d := New()
	d.Subject = subject
	for _, part := range strings.Split(to, ",") {
		if part = strings.TrimSpace(part); part != "" {
			d.To = append(d.To, model.Address{Email: part})
		}
	}
	return d
}

// Reply answers env. With all set the original recipients are kept; they
// are merged into To when the file is rendered.
func Reply(env *model.Envelope, body string, all bool) Draft {
	d := Draft{
		Kind:    KindReply,
		To:      append([]model.Address(nil), env.From...),
		Subject: prefixSubject("Re:", env.Subject),
		Body:    quote(body),
		Source:  env.Path,
	}
	if all {
		d.Kind = KindReplyAll
		d.Cc = append([]model.Address(nil), env.To...)
	}
	if id := angle(env.MessageID); id != "" {
		d.InReplyTo = id
		d.References = []string{id}
	}
	return d
}

// Forward wraps env's body in a forwarded-message block.
func Forward(env *model.Envelope, body string) Draft {
	var b strings.Builder
	b.WriteString("---------- Forwarded message ----------\n")
	fmt.Fprintf(&b, "From: %s\n", formatList(env.From))
	fmt.Fprintf(&b, "Date: %s\n", env.Date.Format("Mon, Jan 02, 2006 at 15:04"))
	fmt.Fprintf(&b, "Subject: %s\n\n", env.Subject)
	b.WriteString(body)

	return Draft{
		Kind:    KindForward,
		Subject: prefixSubject("Fwd:", env.Subject),
		Body:    b.String(),
		Source:  env.Path,
	}
}

// Render produces the header block, a blank line and the body. from is the
// sending account's address and is dropped from reply-all recipients.
func (d Draft) Render(from string, now time.Time) string {
	to := d.To
	if d.Kind == KindReplyAll {
		to = removeSelf(append(append([]model.Address(nil), d.To...), d.Cc...), from)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", from)
	fmt.Fprintf(&b, "To: %s\n", formatList(to))
	if d.Kind != KindReplyAll && len(d.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", formatList(d.Cc))
	}
	fmt.Fprintf(&b, "Subject: %s\n", d.Subject)
	fmt.Fprintf(&b, "Date: %s\n", now.Format(time.RFC1123Z))
	if d.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\n", d.InReplyTo)
	}
	if len(d.References) > 0 {
		fmt.Fprintf(&b, "References: %s\n", strings.Join(d.References, " "))
	}
	b.WriteString("\n")
	if d.Body != "" {
		b.WriteString(d.Body)
		b.WriteString("\n")
	}
	return b.String()
}

// WriteTemp renders d into a fresh temporary file and returns its path.
func (d Draft) WriteTemp(from string) (string, error) {
	f, err := os.CreateTemp("", "mumail-*.eml")
	if err != nil {
		return "", fmt.Errorf("creating draft file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(d.Render(from, time.Now())); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing draft file: %w", err)
	}
	return f.Name(), nil
}

// EditorCommand returns the command that edits path. editor may carry
// arguments, e.g. "nvim +set\ tw=72".
func EditorCommand(editor, path string) (*exec.Cmd, error) {
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	parts, err := shellquote.Split(editor)
	if err != nil || len(parts) == 0 {
		return nil, fmt.Errorf("invalid editor command %q", editor)
	}
	return exec.Command(parts[0], append(parts[1:], path)...), nil
}

// Modified reports whether the file at path changed after before.
func Modified(path string, before time.Time) bool {
	info, err := os.Stat(path)
	return err == nil && info.ModTime().After(before)
}

func prefixSubject(prefix, subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), strings.ToLower(prefix)) {
		return subject
	}
	return prefix + " " + subject
}

func quote(body string) string {
	if body == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + l
		}
	}
	return strings.Join(lines, "\n")
}

func angle(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return "<" + strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">") + ">"
}

func formatList(addrs []model.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func removeSelf(addrs []model.Address, self string) []model.Address {
	self = strings.ToLower(strings.TrimSpace(self))
	if i := strings.LastIndexByte(self, '<'); i >= 0 {
		self = strings.TrimSuffix(self[i+1:], ">")
	}
	out := addrs[:0]
	seen := make(map[string]bool)
	for _, a := range addrs {
		email := strings.ToLower(a.Email)
		if email == self || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, a)
	}
	return out
}
