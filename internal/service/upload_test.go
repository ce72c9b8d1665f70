package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"
	"uploadfast/storage-api/internal/validators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadBatchSingleFile(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	results, err := up.UploadBatch(context.Background(), app, []*validators.File{
		pngUpload("avatar.png", 10*1024),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Empty(t, res.Error)
	assert.Equal(t, "avatar.png", res.Name)
	assert.Equal(t, 10.0, res.Size)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, "root", res.Bucket)
	assert.NotEmpty(t, res.FileKey)
	assert.Equal(t, "https://cdn.test/"+res.FileKey, res.URL)
	assert.True(t, store.has(res.FileKey))

	var f model.File
	require.NoError(t, db.First(&f, "app_id = ?", app.ID).Error)
	assert.Equal(t, res.FileKey, f.FileKey)
	assert.Equal(t, 10.0, f.Size)

	var got model.App
	require.NoError(t, db.First(&got, "id = ?", app.ID).Error)
	assert.Equal(t, 10.0, got.Metrics.TotalUsed)
	assert.Equal(t, int64(1), got.Metrics.FilesCount)
	assert.Equal(t, int64(1), got.Metrics.MonthlyUploads)
}

func TestUploadBatchRejectedOverStorageCap(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	seedFile(t, db, app.ID, float64(app.Plan.StorageCap)-5, time.Now())

	results, err := up.UploadBatch(context.Background(), app, []*validators.File{
		pngUpload("big.png", 10*1024),
	})

	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QuotaStorage, qe.Kind)
	assert.Nil(t, results)

	// Rejection happens before any side effect
	assert.Zero(t, store.putCount())

	var count int64
	require.NoError(t, db.Model(model.File{}).Where("app_id = ?", app.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUploadBatchRejectedOnBadType(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	files := []*validators.File{
		pngUpload("a.png", 1024),
		{Name: "clip.mp4", MIME: "video/mp4", Size: 1024},
		pngUpload("b.png", 1024),
	}

	results, err := up.UploadBatch(context.Background(), app, files)
	require.ErrorIs(t, err, validators.ErrFileTypeUnsupported)
	assert.Nil(t, results)

	// One bad file fails the whole batch, including the good ones
	assert.Zero(t, store.putCount())
}

func TestUploadBatchEmpty(t *testing.T) {
	db := newTestDB(t)
	up := NewUploader(db, newFakeStore(), NewUsage(db))
	app := newTestApp(t, db, plan.Trial)

	_, err := up.UploadBatch(context.Background(), app, nil)
	assert.ErrorIs(t, err, validators.ErrNoFile)
}

func TestUploadBatchTier2IgnoresMonthlyCap(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)

	app := newTestApp(t, db, plan.Tier2)
	app.Plan.UploadCap = 3
	require.NoError(t, db.Save(app).Error)

	for range 10 {
		seedFile(t, db, app.ID, 1, time.Now())
	}

	results, err := up.UploadBatch(context.Background(), app, []*validators.File{
		pngUpload("more.png", 1024),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
}

func TestUploadBatchPartialStorageFailure(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	store.failPut = true
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	results, err := up.UploadBatch(context.Background(), app, []*validators.File{
		pngUpload("a.png", 1024),
		pngUpload("b.png", 1024),
	})

	// Admission succeeded, so the batch as a whole does not error. The
	// per-file results carry the failures.
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, ErrStorageWrite.Error(), res.Error)
		assert.Empty(t, res.URL)
	}

	// No ledger rows and no counter movement for failed files
	var count int64
	require.NoError(t, db.Model(model.File{}).Where("app_id = ?", app.ID).Count(&count).Error)
	assert.Zero(t, count)

	var got model.App
	require.NoError(t, db.First(&got, "id = ?", app.ID).Error)
	assert.Zero(t, got.Metrics.TotalUsed)
}

func TestUploadThenDeleteRestoresUsage(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)
	del := NewDeleter(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	before, err := usage.CurrentStats(app.ID)
	require.NoError(t, err)

	results, err := up.UploadBatch(context.Background(), app, []*validators.File{
		pngUpload("temp.png", 4*1024),
	})
	require.NoError(t, err)
	require.Empty(t, results[0].Error)

	require.NoError(t, del.DeleteFile(context.Background(), app, results[0].URL))

	after, err := usage.CurrentStats(app.ID)
	require.NoError(t, err)

	assert.Equal(t, before.TotalUsed, after.TotalUsed)
	assert.Equal(t, before.FilesCount, after.FilesCount)
	assert.Equal(t, before.MonthlyUploads, after.MonthlyUploads)
	assert.False(t, store.has(results[0].FileKey))
}

func TestUploaderEvictDropsLockEntry(t *testing.T) {
	db := newTestDB(t)
	up := NewUploader(db, newFakeStore(), NewUsage(db))
	app := newTestApp(t, db, plan.Trial)

	unlock := up.lock(app.ID)
	unlock()

	_, ok := up.locks.Load(app.ID)
	require.True(t, ok)

	up.Evict(app.ID)

	_, ok = up.locks.Load(app.ID)
	assert.False(t, ok)
}

func TestUploadBatchSerializedPerApp(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	up := NewUploader(db, store, usage)

	app := newTestApp(t, db, plan.Trial)
	app.Plan.StorageCap = 1000 // KB
	require.NoError(t, db.Save(app).Error)

	// Each batch fits on its own, both together breach the cap. The
	// per-app lock must let exactly one of them through.
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = up.UploadBatch(context.Background(), app, []*validators.File{
				pngUpload("race.png", 600*1024),
			})
		}()
	}
	wg.Wait()

	var rejected int
	for _, err := range errs {
		if err != nil {
			var qe *QuotaExceededError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, QuotaStorage, qe.Kind)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)

	stats, err := usage.CurrentStats(app.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, stats.TotalUsed)
	assert.Equal(t, int64(1), stats.FilesCount)
}
