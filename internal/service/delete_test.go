package service

import (
	"context"
	"testing"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteFileRemovesRowAndDecrements(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	del := NewDeleter(db, store, usage)
	app := newTestApp(t, db, plan.Trial)

	f := seedFile(t, db, app.ID, 80, time.Now())
	store.objects[f.FileKey] = []byte("x")

	app.Metrics.TotalUsed = 80
	app.Metrics.FilesCount = 1
	require.NoError(t, db.Save(app).Error)

	require.NoError(t, del.DeleteFile(context.Background(), app, f.URL))

	assert.False(t, store.has(f.FileKey))

	var count int64
	require.NoError(t, db.Model(model.File{}).Where("app_id = ?", app.ID).Count(&count).Error)
	assert.Zero(t, count)

	var got model.App
	require.NoError(t, db.First(&got, "id = ?", app.ID).Error)
	assert.Zero(t, got.Metrics.TotalUsed)
	assert.Zero(t, got.Metrics.FilesCount)
}

func TestDeleteFileUnknownURL(t *testing.T) {
	db := newTestDB(t)
	del := NewDeleter(db, newFakeStore(), NewUsage(db))
	app := newTestApp(t, db, plan.Trial)

	err := del.DeleteFile(context.Background(), app, "https://cdn.test/nope.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFileScopedToOwningApp(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	usage := NewUsage(db)
	del := NewDeleter(db, store, usage)

	owner := newTestApp(t, db, plan.Trial)
	intruder := newTestApp(t, db, plan.Trial)

	f := seedFile(t, db, owner.ID, 80, time.Now())
	store.objects[f.FileKey] = []byte("x")

	// A valid URL presented by the wrong app reads as not found, and
	// nothing is touched
	err := del.DeleteFile(context.Background(), intruder, f.URL)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, store.has(f.FileKey))

	var count int64
	require.NoError(t, db.Model(model.File{}).Where("app_id = ?", owner.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteFileStorageFailureKeepsLedgerRow(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	store.failDelete = true
	del := NewDeleter(db, store, NewUsage(db))
	app := newTestApp(t, db, plan.Trial)

	f := seedFile(t, db, app.ID, 80, time.Now())

	err := del.DeleteFile(context.Background(), app, f.URL)
	assert.ErrorIs(t, err, ErrStorageDelete)

	// The row survives so the same delete can be retried
	var count int64
	require.NoError(t, db.Model(model.File{}).Where("app_id = ?", app.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
