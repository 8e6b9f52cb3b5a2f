// Package send turns an edited compose file into an RFC 5322 message and
// submits it over SMTP.
package send

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Header is one parsed header line, continuation lines folded in.
type Header struct {
	Name  string
	Value string
}

// Parsed is a compose file split at its first blank line.
type Parsed struct {
	Headers []Header
	Body    string
}

// ErrNoRecipients is returned when the To header is missing or empty.
var ErrNoRecipients = errors.New("message has no recipients")

// ParseMessage splits text into headers and body. Lines starting with
// whitespace continue the previous header; lines without a colon are
// ignored.
func ParseMessage(text string) (*Parsed, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	p := &Parsed{}

	rest := text
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if n := len(p.Headers); n > 0 {
				p.Headers[n-1].Value += " " + strings.TrimSpace(line)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		p.Headers = append(p.Headers, Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	p.Body = strings.TrimRight(rest, "\n")

	if len(p.Recipients()) == 0 {
		return nil, ErrNoRecipients
	}
	return p, nil
}

// Get returns the first value of the named header, case-insensitively.
func (p *Parsed) Get(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Recipients returns the bare addresses from To, Cc and Bcc.
func (p *Parsed) Recipients() []string {
	var out []string
	for _, key := range []string{"To", "Cc", "Bcc"} {
		for _, part := range splitAddresses(p.Get(key)) {
			if addr, err := mail.ParseAddress(part); err == nil {
				out = append(out, addr.Address)
			} else if strings.Contains(part, "@") {
				out = append(out, part)
			}
		}
	}
	return out
}

// Built is a message ready for submission.
type Built struct {
	From       string
	Recipients []string
	MessageID  string
	Data       []byte
}

// Build renders p as RFC 5322 with a fresh Message-Id and Date. from is
// used when the draft has no From header.
func Build(p *Parsed, from string, now time.Time) (*Built, error) {
	if v := p.Get("From"); v != "" {
		from = v
	}
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid From address %q: %w", from, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{sender})
	for _, key := range []string{"To", "Cc"} {
		list, err := parseList(p.Get(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s address: %w", key, err)
		}
		if len(list) > 0 {
			h.SetAddressList(key, list)
		}
	}
	h.SetSubject(p.Get("Subject"))
	for _, key := range []string{"In-Reply-To", "References"} {
		if v := p.Get(key); v != "" {
			h.Set(key, v)
		}
	}
	domain := "localhost"
	if _, d, ok := strings.Cut(sender.Address, "@"); ok && d != "" {
		domain = d
	}
	if err := h.GenerateMessageIDWithHostname(domain); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("writing message: %w", err)
	}
	body := strings.ReplaceAll(p.Body, "\n", "\r\n")
	if body != "" && !strings.HasSuffix(body, "\r\n") {
		body += "\r\n"
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}

	id, _ := h.MessageID()
	return &Built{
		From:       sender.Address,
		Recipients: p.Recipients(),
		MessageID:  id,
		Data:       buf.Bytes(),
	}, nil
}

// ParseFile reads and parses a compose file.
func ParseFile(path string) (*Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading draft: %w", err)
	}
	return ParseMessage(string(data))
}

func parseList(v string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, part := range splitAddresses(v) {
		addr, err := mail.ParseAddress(part)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// splitAddresses splits on commas outside quoted display names.
func splitAddresses(v string) []string {
	var (
		out    []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, r := range v {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
