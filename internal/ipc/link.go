// Package ipc handles mumail:// links and the control socket a running
// instance listens on.
package ipc

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Scheme is the URL scheme for links into mumail.
const Scheme = "mumail"

// LinkKind identifies what a Link points at.
type LinkKind string

const (
	LinkMessage LinkKind = "message"
	LinkThread  LinkKind = "thread"
	LinkSearch  LinkKind = "search"
	LinkCompose LinkKind = "compose"
)

// Link is a parsed mumail:// URL.
type Link struct {
	Kind LinkKind
	// Target is the message-id for message and thread links and the query
	// for search links.
	Target  string
	To      string
	Subject string
}

// ErrInvalidLink is returned for URLs that are not usable mumail links.
var ErrInvalidLink = errors.New("invalid mumail link")

// MessageLink returns a link to a single message.
func MessageLink(messageID string) Link {
	return Link{Kind: LinkMessage, Target: trimAngles(messageID)}
}

// ThreadLink returns a link to the thread containing messageID.
func ThreadLink(messageID string) Link {
	return Link{Kind: LinkThread, Target: trimAngles(messageID)}
}

// SearchLink returns a link that runs query.
func SearchLink(query string) Link {
	return Link{Kind: LinkSearch, Target: query}
}

// ParseURL parses a mumail:// URL.
func ParseURL(raw string) (Link, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), Scheme+"://")
	if !ok {
		return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}

	kind, arg, _ := strings.Cut(rest, "/")
	if k, q, found := strings.Cut(kind, "?"); found && arg == "" {
		kind, arg = k, "?"+q
	}

	switch LinkKind(kind) {
	case LinkMessage, LinkThread:
		id, err := url.PathUnescape(arg)
		if err != nil || id == "" {
			return Link{}, fmt.Errorf("%w: empty message id in %q", ErrInvalidLink, raw)
		}
		return Link{Kind: LinkKind(kind), Target: id}, nil
	case LinkSearch:
		q, err := url.PathUnescape(arg)
		if err != nil {
			return Link{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
		}
		if q == "" {
			return Link{}, fmt.Errorf("%w: empty query in %q", ErrInvalidLink, raw)
		}
		return Link{Kind: LinkSearch, Target: q}, nil
	case LinkCompose:
		values, err := url.ParseQuery(strings.TrimPrefix(arg, "?"))
		if err != nil {
			return Link{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
		}
		return Link{Kind: LinkCompose, To: values.Get("to"), Subject: values.Get("subject")}, nil
	}
	return Link{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidLink, kind)
}

// String formats the link as a URL that ParseURL accepts.
func (l Link) String() string {
	switch l.Kind {
	case LinkCompose:
		v := url.Values{}
		v.Set("to", l.To)
		v.Set("subject", l.Subject)
		return Scheme + "://compose?" + v.Encode()
	default:
		return Scheme + "://" + string(l.Kind) + "/" + url.PathEscape(l.Target)
	}
}

func trimAngles(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "<"), ">")
}
