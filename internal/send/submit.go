package send

import (
	"context"
	"time"

	"github.com/nhle/mumail/internal/model"
)

// Result describes a sent draft.
type Result struct {
	MessageID string
	SentPath  string
}

// Submit parses the draft at path, sends it through t and files a copy in
// the account's sent folder. A failure to file the copy is reported but the
// message has already gone out.
func Submit(ctx context.Context, t Transport, acct model.AccountConfig, path string) (Result, error) {
	parsed, err := ParseFile(path)
	if err != nil {
		return Result{}, err
	}
	built, err := Build(parsed, acct.Email, time.Now())
	if err != nil {
		return Result{}, err
	}
	if err := t.Send(ctx, built); err != nil {
		return Result{}, err
	}

	res := Result{MessageID: built.MessageID}
	res.SentPath, err = SaveToSent(model.ExpandHome(acct.Maildir), acct.Folders.Sent, built)
	return res, err
}
