// Package imapsync downloads new INBOX messages into the local Maildir so
// accounts without an external sync tool still receive mail.
package imapsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nhle/mumail/internal/credential"
	"github.com/nhle/mumail/internal/debuglog"
	"github.com/nhle/mumail/internal/jobs"
	"github.com/nhle/mumail/internal/maildir"
	"github.com/nhle/mumail/internal/model"
)

// RemoteMailbox is the server mailbox that is mirrored.
const RemoteMailbox = "INBOX"

// InitialWindow limits the first sync of an account to recent mail.
const InitialWindow = 7 * 24 * time.Hour

// StateStore persists the per-mailbox watermark.
type StateStore interface {
	GetSyncState(ctx context.Context, account, mailbox string) (*model.SyncState, error)
	SaveSyncState(ctx context.Context, st model.SyncState) error
}

// Syncer mirrors one account's INBOX.
type Syncer struct {
	Account model.AccountConfig
	Store   StateStore
	Log     *debuglog.Logger

	// Now is overridable in tests.
	Now func() time.Time
}

// Run fetches everything newer than the stored watermark into the account's
// inbox folder and returns how many messages were delivered.
func (s *Syncer) Run(ctx context.Context, mb Mailbox) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	validity, err := mb.Select(ctx, RemoteMailbox)
	if err != nil {
		return 0, err
	}

	st, err := s.Store.GetSyncState(ctx, s.Account.Name, RemoteMailbox)
	if err != nil {
		return 0, fmt.Errorf("loading sync state: %w", err)
	}
	var after uint32
	if st != nil && st.UIDValidity == validity {
		after = st.LastUID
	} else if st != nil {
		s.Log.Infof("imapsync %s: uidvalidity changed %d -> %d, resyncing", s.Account.Name, st.UIDValidity, validity)
	}

	uids, err := mb.NewUIDs(ctx, after, now().Add(-InitialWindow))
	if err != nil {
		return 0, err
	}
	s.Log.Debugf("imapsync %s: %d new after uid %d", s.Account.Name, len(uids), after)

	next := model.SyncState{Account: s.Account.Name, Mailbox: RemoteMailbox, UIDValidity: validity, LastUID: after}
	if len(uids) == 0 {
		next.SyncedAt = now()
		return 0, s.Store.SaveSyncState(ctx, next)
	}

	msgs, err := mb.Fetch(ctx, uids)
	if err != nil && len(msgs) == 0 {
		return 0, err
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].UID < msgs[j].UID })
	dir := maildir.Folder(model.ExpandHome(s.Account.Maildir), s.Account.Folders.Inbox)
	delivered := 0
	for _, m := range msgs {
		info := ""
		if m.Seen {
			info = "S"
		}
		if _, derr := maildir.Deliver(dir, m.Data, info); derr != nil {
			err = derr
			break
		}
		delivered++
		if m.UID > next.LastUID {
			next.LastUID = m.UID
		}
	}

	next.SyncedAt = now()
	if serr := s.Store.SaveSyncState(ctx, next); serr != nil && err == nil {
		err = fmt.Errorf("saving sync state: %w", serr)
	}
	return delivered, err
}

// Job returns a background job that dials the account's server and runs
// one sync.
func (s *Syncer) Job(ring credential.Getter) jobs.Func {
	return func(ctx context.Context) (string, error) {
		cfg := s.Account.IMAP
		pw, err := credential.Resolve(ctx, credential.Source{
			Command: cfg.PasswordCommand,
			Key:     credential.IMAPKey(s.Account.Name),
			Plain:   cfg.Password,
		}, ring)
		if err != nil {
			return "", fmt.Errorf("imap password for %s: %w", s.Account.Name, err)
		}
		conn, err := Dial(ctx, cfg, pw)
		if err != nil {
			return "", err
		}
		defer conn.Close()

		n, err := s.Run(ctx, conn)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d new", n), nil
	}
}
