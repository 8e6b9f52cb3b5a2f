package imapsync

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mumail/internal/model"
)

// Fetched is one downloaded message.
type Fetched struct {
	UID  uint32
	Seen bool
	Data []byte
}

// Mailbox is the server side of a sync.
type Mailbox interface {
	// Select opens the mailbox and returns its UIDVALIDITY.
	Select(ctx context.Context, name string) (uint32, error)
	// NewUIDs returns UIDs greater than after, or, when after is zero,
	// those received since the given time.
	NewUIDs(ctx context.Context, after uint32, since time.Time) ([]uint32, error)
	// Fetch downloads full messages without setting \Seen.
	Fetch(ctx context.Context, uids []uint32) ([]Fetched, error)
	Close() error
}

// IMAPConn is a Mailbox backed by go-imap.
type IMAPConn struct {
	client *imapclient.Client
}

// Dial connects and logs in. With cfg.TLS the connection is TLS from the
// start; otherwise STARTTLS is required.
func Dial(_ context.Context, cfg model.IMAPConfig, password string) (*IMAPConn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var (
		client *imapclient.Client
		err    error
	)
	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(cfg.Username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", cfg.Username, err)
	}
	return &IMAPConn{client: client}, nil
}

func (c *IMAPConn) Select(_ context.Context, name string) (uint32, error) {
	data, err := c.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("selecting %s: %w", name, err)
	}
	return data.UIDValidity, nil
}

func (c *IMAPConn) NewUIDs(_ context.Context, after uint32, since time.Time) ([]uint32, error) {
	criteria := &imap.SearchCriteria{}
	if after > 0 {
		criteria.UID = []imap.UIDSet{{imap.UIDRange{Start: imap.UID(after + 1), Stop: 0}}}
	} else {
		criteria.Since = since
	}

	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	var uids []uint32
	for _, uid := range data.AllUIDs() {
		// "n:*" always matches the highest UID, even when it is below n.
		if uint32(uid) > after {
			uids = append(uids, uint32(uid))
		}
	}
	return uids, nil
}

func (c *IMAPConn) Fetch(_ context.Context, uids []uint32) ([]Fetched, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}

	section := &imap.FetchItemBodySection{Peek: true}
	cmd := c.client.Fetch(imap.UIDSetNum(set...), &imap.FetchOptions{
		UID:         true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	var out []Fetched
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		f := Fetched{UID: uint32(buf.UID), Data: buf.FindBodySection(section)}
		for _, flag := range buf.Flags {
			if flag == imap.FlagSeen {
				f.Seen = true
			}
		}
		if f.Data != nil {
			out = append(out, f)
		}
	}
	if err := cmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

func (c *IMAPConn) Close() error {
	return c.client.Logout().Wait()
}
