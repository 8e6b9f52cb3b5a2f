package store

import (
	"context"

	"github.com/nhle/mumail/internal/model"
)

// Store defines the persistence interface for smart folders and IMAP
// fetch state. Mail itself lives in the Maildir and mu's database.
type Store interface {
	// === Smart folders ===

	CreateSmartFolder(ctx context.Context, folder model.SmartFolder) (model.SmartFolder, error)
	RestoreSmartFolder(ctx context.Context, folder model.SmartFolder) error
	UpdateSmartFolder(ctx context.Context, folder model.SmartFolder) error
	DeleteSmartFolder(ctx context.Context, id string) error
	GetSmartFolderByID(ctx context.Context, id string) (*model.SmartFolder, error)
	GetSmartFolders(ctx context.Context, account string) ([]model.SmartFolder, error)

	// === IMAP sync state ===

	GetSyncState(ctx context.Context, account, mailbox string) (*model.SyncState, error)
	SaveSyncState(ctx context.Context, state model.SyncState) error
}
