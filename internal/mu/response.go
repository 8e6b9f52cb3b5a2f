package mu

import (
	"fmt"
	"time"

	"github.com/nhle/mumail/internal/model"
	"github.com/nhle/mumail/internal/sexp"
)

// ErrorText returns the human-readable text of an error frame, or ok=false
// when v is not an error. :message wins over the :error value itself.
func ErrorText(v sexp.Value) (text string, ok bool) {
	errVal, ok := sexp.Get(v, "error")
	if !ok {
		return "", false
	}
	if msg, ok := sexp.GetString(v, "message"); ok {
		return msg, true
	}
	if s, ok := errVal.AsString(); ok {
		return s, true
	}
	if code, ok := sexp.GetUint(v, "error"); ok {
		return fmt.Sprintf("error code %d", code), true
	}
	return "unknown error", true
}

// Found returns the total match count of an end-of-results frame.
func Found(v sexp.Value) (uint32, bool) {
	if !sexp.Has(v, "found") {
		return 0, false
	}
	n, _ := sexp.GetUint(v, "found")
	return n, true
}

// IsPong reports whether v acknowledges a ping.
func IsPong(v sexp.Value) bool {
	_, ok := sexp.GetString(v, "pong")
	return ok
}

// IsErase reports whether v is a progress marker to be skipped.
func IsErase(v sexp.Value) bool {
	b, _ := sexp.GetBool(v, "erase")
	return b
}

// IsUpdate reports whether v confirms a mutation.
func IsUpdate(v sexp.Value) bool {
	return sexp.Has(v, "update")
}

// IsIndexDone reports whether v marks the end of an index run. Server
// versions differ in which key they use.
func IsIndexDone(v sexp.Value) bool {
	return sexp.Has(v, "index") || sexp.Has(v, "info")
}

// UpdatedDocid extracts the new docid from an :update frame.
func UpdatedDocid(v sexp.Value) (uint32, bool) {
	upd, ok := sexp.Get(v, "update")
	if !ok {
		return 0, false
	}
	return sexp.GetUint(upd, "docid")
}

// IndexProgress extracts the counters of an in-progress index frame.
func IndexProgress(v sexp.Value) (processed, updated uint32) {
	processed, _ = sexp.GetUint(v, "processed")
	updated, _ = sexp.GetUint(v, "updated")
	return processed, updated
}

// DecodeEnvelope converts one header plist. Only a missing docid is an
// error; every other field falls back to a default.
func DecodeEnvelope(v sexp.Value) (model.Envelope, error) {
	docid, ok := sexp.GetUint(v, "docid")
	if !ok {
		return model.Envelope{}, &ParseError{What: "envelope", Err: fmt.Errorf("missing docid")}
	}

	env := model.Envelope{
		Docid:   docid,
		Subject: "(no subject)",
		Date:    time.Now().UTC(),
		Thread:  model.ThreadMeta{Root: true, ThreadSubject: true},
	}
	if s, ok := sexp.GetString(v, "message-id"); ok {
		env.MessageID = s
	}
	if s, ok := sexp.GetString(v, "subject"); ok {
		env.Subject = s
	}
	if s, ok := sexp.GetString(v, "maildir"); ok {
		env.Maildir = s
	}
	if s, ok := sexp.GetString(v, "path"); ok {
		env.Path = s
	}
	if d, ok := sexp.Get(v, "date"); ok {
		if t, ok := sexp.EmacsTime(d); ok {
			env.Date = t
		}
	}
	if list, ok := sexp.Get(v, "from"); ok {
		env.From = decodeAddresses(list)
	}
	if list, ok := sexp.Get(v, "to"); ok {
		env.To = decodeAddresses(list)
	}
	if list, ok := sexp.Get(v, "flags"); ok {
		env.Flags = decodeFlags(list)
	}
	if meta, ok := sexp.Get(v, "meta"); ok {
		env.Thread = decodeThreadMeta(meta)
	}
	return env, nil
}

// DecodeHeaders decodes the :headers list of a find response. A frame
// without :headers yields no envelopes.
func DecodeHeaders(v sexp.Value) ([]model.Envelope, error) {
	headers, ok := sexp.Get(v, "headers")
	if !ok {
		return nil, nil
	}
	items, ok := headers.AsList()
	if !ok {
		return nil, nil
	}
	envs := make([]model.Envelope, 0, len(items))
	for i, item := range items {
		env, err := DecodeEnvelope(item)
		if err != nil {
			return nil, fmt.Errorf("decoding header %d: %w", i, err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func decodeAddresses(v sexp.Value) []model.Address {
	items, ok := v.AsList()
	if !ok {
		return nil
	}
	var out []model.Address
	for _, item := range items {
		email, ok := sexp.GetString(item, "email")
		if !ok {
			continue
		}
		name, _ := sexp.GetString(item, "name")
		out = append(out, model.Address{Name: name, Email: email})
	}
	return out
}

func decodeFlags(v sexp.Value) []model.Flag {
	items, ok := v.AsList()
	if !ok {
		return nil
	}
	var out []model.Flag
	for _, item := range items {
		if item.Kind != sexp.KindSymbol {
			continue
		}
		if f, ok := model.FlagFromSymbol(item.Str); ok {
			out = append(out, f)
		}
	}
	return out
}

func decodeThreadMeta(v sexp.Value) model.ThreadMeta {
	meta := model.ThreadMeta{Root: true, ThreadSubject: true}
	if n, ok := sexp.GetUint(v, "level"); ok {
		meta.Level = n
	}
	if b, ok := sexp.GetBool(v, "root"); ok {
		meta.Root = b
	}
	if b, ok := sexp.GetBool(v, "thread-subject"); ok {
		meta.ThreadSubject = b
	}
	return meta
}

func describe(v sexp.Value) string {
	s := v.String()
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
