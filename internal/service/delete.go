package service

import (
	"context"
	"errors"
	"fmt"

	"uploadfast/storage-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deleter removes a stored file and its ledger row and gives the size
// back to the app's usage counters.
type Deleter struct {
	DB    *gorm.DB
	Store ObjectStore
	Usage *Usage
}

func NewDeleter(db *gorm.DB, store ObjectStore, usage *Usage) *Deleter {
	return &Deleter{DB: db, Store: store, Usage: usage}
}

// DeleteFile looks the file up by URL scoped to the calling app. A file
// owned by another app reads as ErrNotFound, ownership is enforced by
// the scope of the lookup itself.
//
// The object is deleted before the ledger row. A crash in between
// leaves a dangling row pointing at a missing object, which re-delete
// cleans up, instead of an untracked object no housekeeping can find.
func (d *Deleter) DeleteFile(ctx context.Context, app *model.App, fileURL string) error {
	var f model.File

	err := d.DB.
		Where("app_id = ? AND url = ?", app.ID, fileURL).
		First(&f).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("failed to look up file, %w", err)
	}

	if err := d.Store.Delete(ctx, f.FileKey); err != nil {
		zap.L().Error("Failed to delete object",
			zap.String("appID", app.ID),
			zap.String("key", f.FileKey),
			zap.Error(err))

		return fmt.Errorf("%w: %s", ErrStorageDelete, f.FileKey)
	}

	err = d.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(model.File{}, f.ID).Error; err != nil {
			return err
		}

		return d.Usage.ApplyDelta(tx, app.ID, f.Size, false)
	})
	if err != nil {
		// Object is gone but the row survived. Re-deleting the same URL
		// retries from a consistent state.
		zap.L().Error("Failed to remove ledger row after object delete",
			zap.String("appID", app.ID),
			zap.String("key", f.FileKey),
			zap.Error(err))

		return fmt.Errorf("%w: %s", ErrLedgerWrite, f.FileKey)
	}

	return nil
}
