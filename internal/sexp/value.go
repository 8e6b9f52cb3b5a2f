// Package sexp parses the s-expression dialect spoken by the mu server and
// provides typed access to its property lists.
package sexp

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNil is the special nil symbol. It is distinct from an empty list.
	KindNil Kind = iota
	KindSymbol
	KindKeyword
	KindString
	KindInt
	KindFloat
	KindList
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindSymbol:
		return "symbol"
	case KindKeyword:
		return "keyword"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one node of a parsed s-expression tree.
//
// Only the field matching Kind is meaningful. Keywords store their name
// without the leading colon.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	List  []Value
}

// Nil is the nil value.
var Nil = Value{Kind: KindNil}

// Symbol returns a symbol value.
func Symbol(name string) Value { return Value{Kind: KindSymbol, Str: name} }

// Keyword returns a keyword value. name must not include the colon.
func Keyword(name string) Value { return Value{Kind: KindKeyword, Str: name} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// List returns a list value.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, List: items}
}

// IsNil reports whether v is the nil symbol.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// IsSymbol reports whether v is the symbol name.
func (v Value) IsSymbol(name string) bool {
	return v.Kind == KindSymbol && v.Str == name
}

// AsString returns the string payload if v is a string.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// AsInt returns the integer payload if v is an integer.
func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// AsList returns the elements if v is a list. nil counts as an empty list
// here because the server writes empty lists as nil.
func (v Value) AsList() ([]Value, bool) {
	switch v.Kind {
	case KindList:
		return v.List, true
	case KindNil:
		return nil, true
	default:
		return nil, false
	}
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindSymbol, KindKeyword, KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v back into s-expression text.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindNil:
		b.WriteString("nil")
	case KindSymbol:
		b.WriteString(v.Str)
	case KindKeyword:
		b.WriteByte(':')
		b.WriteString(v.Str)
	case KindString:
		b.WriteByte('"')
		b.WriteString(Escape(v.Str))
		b.WriteByte('"')
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindList:
		b.WriteByte('(')
		for i, item := range v.List {
			if i > 0 {
				b.WriteByte(' ')
			}
			item.write(b)
		}
		b.WriteByte(')')
	}
}

// Escape prepares s for embedding inside a double-quoted string. Only
// backslash and double quote need escaping in this dialect.
func Escape(s string) string {
	if !strings.ContainsAny(s, `\"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if r == '\\' || r == '"' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EmacsTime converts an Emacs time list (high low [usec ...]) to UTC.
// The seconds value is high*65536 + low; anything after low is ignored.
func EmacsTime(v Value) (time.Time, bool) {
	if v.Kind != KindList || len(v.List) < 2 {
		return time.Time{}, false
	}
	high, ok := v.List[0].AsInt()
	if !ok {
		return time.Time{}, false
	}
	low, ok := v.List[1].AsInt()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(high*65536+low, 0).UTC(), true
}
