// Package render turns Maildir message files into text for the preview
// pane.
package render

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"
)

// Attachment describes a non-inline part.
type Attachment struct {
	Filename string
	MIMEType string
	Size     int64
}

// Label returns "name (type, size)".
func (a Attachment) Label() string {
	name := a.Filename
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s (%s, %s)", name, a.MIMEType, humanize.IBytes(uint64(a.Size)))
}

// Message is the rendered form of one message file.
type Message struct {
	From        string
	To          string
	Cc          string
	Subject     string
	Date        time.Time
	Text        string
	FromHTML    bool
	HTML        string
	Attachments []Attachment
}

// File renders the message stored at path.
func File(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening message: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read renders a message from r. text/plain is preferred; text/html is
// converted when no plain part exists.
func Read(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && mr == nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	m := &Message{}
	h := mr.Header
	m.Subject, _ = h.Subject()
	m.Date, _ = h.Date()
	m.From = addressHeader(h, "From")
	m.To = addressHeader(h, "To")
	m.Cc = addressHeader(h, "Cc")

	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if plain == "" && html == "" {
				return nil, fmt.Errorf("reading message parts: %w", err)
			}
			break
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case ct == "" || ct == "text/plain":
				if plain == "" {
					plain = string(body)
				}
			case ct == "text/html":
				if html == "" {
					html = string(body)
				}
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			n, _ := io.Copy(io.Discard, part.Body)
			m.Attachments = append(m.Attachments, Attachment{Filename: name, MIMEType: ct, Size: n})
		}
	}

	m.HTML = html
	switch {
	case plain != "":
		m.Text = normalize(plain)
	case html != "":
		text, err := html2text.FromString(html, html2text.Options{PrettyTables: true})
		if err != nil {
			text = html
		}
		m.Text = normalize(text)
		m.FromHTML = true
	}
	return m, nil
}

// Header formats the header block shown above the body.
func (m *Message) Header() string {
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%-8s %s\n", k+":", v)
		}
	}
	line("From", m.From)
	line("To", m.To)
	line("Cc", m.Cc)
	line("Subject", m.Subject)
	if !m.Date.IsZero() {
		line("Date", m.Date.Local().Format("Mon, 02 Jan 2006 15:04")+" ("+humanize.Time(m.Date)+")")
	}
	return b.String()
}

// String renders header, body and attachment list.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Header())
	b.WriteString("\n")
	b.WriteString(m.Text)
	if len(m.Attachments) > 0 {
		b.WriteString("\n\n")
		for _, a := range m.Attachments {
			b.WriteString("[attachment] " + a.Label() + "\n")
		}
	}
	return b.String()
}

func addressHeader(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		raw := h.Get(key)
		if dec, err := new(mime.WordDecoder).DecodeHeader(raw); err == nil {
			return dec
		}
		return raw
	}
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		if a.Name != "" {
			parts[i] = a.Name + " <" + a.Address + ">"
		} else {
			parts[i] = a.Address
		}
	}
	return strings.Join(parts, ", ")
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimRight(s, "\n ")
}
