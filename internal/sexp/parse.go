package sexp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SyntaxError describes malformed s-expression input.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sexp syntax error at offset %d: %s", e.Offset, e.Msg)
}

// IsSyntaxError reports whether err wraps a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// Parse parses exactly one value from s. Trailing whitespace and comments
// are allowed, anything else is an error.
func Parse(s string) (Value, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.eof() {
		return Value{}, p.errorf("empty input")
	}
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Value{}, p.errorf("unexpected trailing data %q", truncate(p.src[p.pos:], 20))
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ';':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (Value, error) {
	switch c := p.src[p.pos]; c {
	case '(':
		return p.list('(', ')')
	case '[':
		return p.list('[', ']')
	case ')', ']':
		return Value{}, p.errorf("unexpected %q", c)
	case '"':
		return p.str()
	case '\'':
		// 'x reads as (quote x)
		p.pos++
		p.skipSpace()
		if p.eof() {
			return Value{}, p.errorf("quote at end of input")
		}
		inner, err := p.value()
		if err != nil {
			return Value{}, err
		}
		return List(Symbol("quote"), inner), nil
	default:
		return p.atom()
	}
}

func (p *parser) list(open, close byte) (Value, error) {
	start := p.pos
	p.pos++ // open
	items := []Value{}
	for {
		p.skipSpace()
		if p.eof() {
			p.pos = start
			return Value{}, p.errorf("unterminated list")
		}
		if p.src[p.pos] == close {
			p.pos++
			return List(items...), nil
		}
		v, err := p.value()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
}

func (p *parser) str() (Value, error) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			p.pos = start
			return Value{}, p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return String(b.String()), nil
		case '\\':
			p.pos++
			if p.eof() {
				p.pos = start
				return Value{}, p.errorf("unterminated string escape")
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'e':
				b.WriteByte(0x1b)
			case '\n':
				// line continuation
			default:
				b.WriteByte(esc)
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '(', ')', '[', ']', '"', ';':
		return true
	}
	return false
}

func (p *parser) atom() (Value, error) {
	start := p.pos
	for !p.eof() && !isDelimiter(p.src[p.pos]) {
		if p.src[p.pos] == '\\' && p.pos+1 < len(p.src) {
			p.pos++
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return Value{}, p.errorf("empty token")
	}

	if tok[0] == ':' && len(tok) > 1 {
		return Keyword(tok[1:]), nil
	}
	if tok == "nil" {
		return Nil, nil
	}
	if looksNumeric(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Int(n), nil
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return Value{Kind: KindFloat, Float: f}, nil
		}
	}
	return Symbol(strings.ReplaceAll(tok, `\`, "")), nil
}

func looksNumeric(tok string) bool {
	i := 0
	if tok[0] == '-' || tok[0] == '+' {
		i = 1
	}
	return i < len(tok) && (tok[i] >= '0' && tok[i] <= '9' || tok[i] == '.' && i+1 < len(tok))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
