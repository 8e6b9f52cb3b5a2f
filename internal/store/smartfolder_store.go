package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mumail/internal/model"
)

// CreateSmartFolder inserts a new smart folder at the end of the
// account's list and returns it with its generated fields.
func (s *SQLiteStore) CreateSmartFolder(
	ctx context.Context,
	folder model.SmartFolder,
) (model.SmartFolder, error) {
	if strings.TrimSpace(folder.Name) == "" {
		return model.SmartFolder{}, fmt.Errorf("smart folder name must not be empty")
	}
	if strings.TrimSpace(folder.Query) == "" {
		return model.SmartFolder{}, fmt.Errorf("smart folder query must not be empty")
	}
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	folder.CreatedAt = time.Now().UTC()

	if folder.Position == 0 {
		var maxPos int
		err := s.db.GetContext(ctx, &maxPos,
			"SELECT COALESCE(MAX(position), 0) FROM smart_folders WHERE account = ?", folder.Account)
		if err != nil {
			return model.SmartFolder{}, fmt.Errorf("finding next smart folder position: %w", err)
		}
		folder.Position = maxPos + 1
	}

	if err := s.insertSmartFolder(ctx, folder); err != nil {
		return model.SmartFolder{}, fmt.Errorf("creating smart folder: %w", err)
	}
	return folder, nil
}

// RestoreSmartFolder reinserts a previously deleted folder with its
// original id and position.
func (s *SQLiteStore) RestoreSmartFolder(ctx context.Context, folder model.SmartFolder) error {
	if err := s.insertSmartFolder(ctx, folder); err != nil {
		return fmt.Errorf("restoring smart folder %s: %w", folder.ID, err)
	}
	return nil
}

func (s *SQLiteStore) insertSmartFolder(ctx context.Context, folder model.SmartFolder) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO smart_folders (id, account, name, query, position, created_at)
		VALUES (:id, :account, :name, :query, :position, :created_at)`,
		folder,
	)
	return err
}

// UpdateSmartFolder changes a folder's name, query and position.
func (s *SQLiteStore) UpdateSmartFolder(ctx context.Context, folder model.SmartFolder) error {
	if strings.TrimSpace(folder.Name) == "" {
		return fmt.Errorf("smart folder name must not be empty")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE smart_folders SET name = ?, query = ?, position = ?
		WHERE id = ?`,
		folder.Name, folder.Query, folder.Position, folder.ID,
	)
	if err != nil {
		return fmt.Errorf("updating smart folder %s: %w", folder.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("smart folder %s not found", folder.ID)
	}
	return nil
}

// DeleteSmartFolder removes a smart folder.
func (s *SQLiteStore) DeleteSmartFolder(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM smart_folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting smart folder %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("smart folder %s not found", id)
	}
	return nil
}

// GetSmartFolderByID retrieves a single smart folder, or nil if absent.
func (s *SQLiteStore) GetSmartFolderByID(
	ctx context.Context,
	id string,
) (*model.SmartFolder, error) {
	var folder model.SmartFolder
	err := s.db.GetContext(ctx, &folder, `
		SELECT id, account, name, query, position, created_at
		FROM smart_folders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting smart folder %s: %w", id, err)
	}
	return &folder, nil
}

// GetSmartFolders lists an account's smart folders in display order.
func (s *SQLiteStore) GetSmartFolders(
	ctx context.Context,
	account string,
) ([]model.SmartFolder, error) {
	var folders []model.SmartFolder
	err := s.db.SelectContext(ctx, &folders, `
		SELECT id, account, name, query, position, created_at
		FROM smart_folders WHERE account = ?
		ORDER BY position, name`, account)
	if err != nil {
		return nil, fmt.Errorf("listing smart folders: %w", err)
	}
	return folders, nil
}
