package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/validators"
	"uploadfast/storage-api/pkg/util"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultWorkers    = 4
	defaultPutTimeout = time.Minute
)

// Uploader runs the batch upload pipeline: validate everything, enforce
// the quota once for the whole batch, then fan the files out to object
// storage and record each one in the ledger.
type Uploader struct {
	DB    *gorm.DB
	Store ObjectStore
	Usage *Usage

	// Workers bounds the concurrent PUTs per batch so a large batch
	// can't open unbounded object-store connections
	Workers    int
	PutTimeout time.Duration

	locks sync.Map // App ID -> *sync.Mutex
}

func NewUploader(db *gorm.DB, store ObjectStore, usage *Usage) *Uploader {
	return &Uploader{
		DB:         db,
		Store:      store,
		Usage:      usage,
		Workers:    defaultWorkers,
		PutTimeout: defaultPutTimeout,
	}
}

// UploadResult reports the outcome for one file of a batch. Error is
// set when that file failed after the batch was admitted.
type UploadResult struct {
	Name     string  `json:"name"`
	FileKey  string  `json:"file_key,omitempty"`
	Size     float64 `json:"size"` // KB
	MimeType string  `json:"mime_type"`
	Bucket   string  `json:"bucket,omitempty"`
	URL      string  `json:"url,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// UploadBatch validates and admits the whole batch before any side
// effect, then uploads the files concurrently. Files that fail after
// admission don't roll back files that already committed, the per-file
// results surface the split.
func (u *Uploader) UploadBatch(ctx context.Context, app *model.App, files []*validators.File) ([]UploadResult, error) {
	if err := validators.ValidateBatch(files, app.Plan.PlanType); err != nil {
		return nil, err
	}

	var batchKB float64
	for _, f := range files {
		batchKB += util.FileSizeKB(f.Size)
	}

	// Serialize enforce-then-commit per app. Without this two
	// concurrent batches could both pass the check against stats that
	// reflect neither and jointly breach the cap.
	unlock := u.lock(app.ID)
	defer unlock()

	if err := u.Usage.Enforce(app, batchKB); err != nil {
		return nil, err
	}

	results := make([]UploadResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(u.Workers)

	for i, f := range files {
		g.Go(func() error {
			results[i] = u.uploadOne(ctx, app, f)
			return nil
		})
	}

	g.Wait()

	return results, nil
}

func (u *Uploader) uploadOne(ctx context.Context, app *model.App, f *validators.File) UploadResult {
	res := UploadResult{
		Name:     f.Name,
		Size:     util.FileSizeKB(f.Size),
		MimeType: f.MIME,
	}

	key, err := storageKey(f.Name)
	if err != nil {
		zap.L().Error("Failed to derive storage key", zap.String("name", f.Name), zap.Error(err))
		res.Error = ErrStorageWrite.Error()
		return res
	}

	body, err := f.Open()
	if err != nil {
		zap.L().Error("Failed to open upload", zap.String("name", f.Name), zap.Error(err))
		res.Error = ErrStorageWrite.Error()
		return res
	}
	defer body.Close()

	disposition := ""
	if f.IsImage() {
		disposition = fmt.Sprintf("inline; filename=%s", f.Name)
	}

	putCtx, cancel := context.WithTimeout(ctx, u.PutTimeout)
	defer cancel()

	if err := u.Store.Put(putCtx, key, body, f.Size, f.MIME, disposition); err != nil {
		zap.L().Error("Failed to upload object",
			zap.String("appID", app.ID),
			zap.String("key", key),
			zap.Error(err))

		res.Error = ErrStorageWrite.Error()
		return res
	}

	fileEnt := &model.File{
		AppID:        app.ID,
		FileKey:      key,
		OriginalName: f.Name,
		MimeType:     f.MIME,
		Size:         res.Size,
		Bucket:       u.Store.Bucket(),
		URL:          u.Store.PublicURL(key),
		CreatedAt:    time.Now().Unix(),
	}

	err = u.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fileEnt).Error; err != nil {
			return err
		}

		return u.Usage.ApplyDelta(tx, app.ID, res.Size, true)
	})
	if err != nil {
		// The object is now orphaned in storage. Deliberately not
		// auto-deleted here to avoid double-failure loops, the log line
		// is what reconciliation works from.
		zap.L().Error("Ledger write failed, object orphaned",
			zap.String("appID", app.ID),
			zap.String("key", key),
			zap.Error(err))

		res.Error = ErrLedgerWrite.Error()
		return res
	}

	res.FileKey = key
	res.Bucket = fileEnt.Bucket
	res.URL = fileEnt.URL

	return res
}

func (u *Uploader) lock(appID string) func() {
	v, _ := u.locks.LoadOrStore(appID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()

	return m.Unlock
}

// Evict drops the app's lock entry so the map doesn't grow with
// deleted tenants. Callers evict only after the app is gone, a deleted
// app can't start new batches.
func (u *Uploader) Evict(appID string) {
	u.locks.Delete(appID)
}

// storageKey keeps the original name recognizable and appends a short
// random suffix so concurrent uploads with identical names can't
// overwrite each other.
func storageKey(name string) (string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(path.Base(name), ext)

	suffix, err := gonanoid.New(8)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s%s", base, suffix, ext), nil
}
