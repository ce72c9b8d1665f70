package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"
	"uploadfast/storage-api/internal/validators"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.User{}, model.App{}, model.File{}, model.APIKey{}))

	return db
}

func newTestApp(t *testing.T, db *gorm.DB, planType string) *model.App {
	t.Helper()

	limits := plan.LimitsFor(planType)

	app := &model.App{
		ID:     uuid.NewString(),
		UserID: "owner-" + uuid.NewString()[:8],
		Name:   "test-app",
		Plan: model.Plan{
			PlanType:   planType,
			StorageCap: limits.StorageCapKB,
			UploadCap:  limits.UploadCapPerMonth,
		},
		Metrics: model.StorageMetrics{
			LastCalculated: time.Now(),
		},
		CreatedAt: time.Now().Unix(),
	}

	require.NoError(t, db.Create(app).Error)

	return app
}

// seedFile inserts a ledger row directly, bypassing the pipeline
func seedFile(t *testing.T, db *gorm.DB, appID string, sizeKB float64, createdAt time.Time) *model.File {
	t.Helper()

	f := &model.File{
		AppID:        appID,
		FileKey:      "seed-" + uuid.NewString()[:8] + ".png",
		OriginalName: "seed.png",
		MimeType:     "image/png",
		Size:         sizeKB,
		Bucket:       "root",
		CreatedAt:    createdAt.Unix(),
	}
	f.URL = "https://cdn.test/" + f.FileKey

	require.NoError(t, db.Create(f).Error)

	return f
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes int

	failPut    bool
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, body io.Reader, _ int64, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts++

	if f.failPut {
		return fmt.Errorf("injected put failure")
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.objects[key] = b
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes++

	if f.failDelete {
		return fmt.Errorf("injected delete failure")
	}

	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeStore) Bucket() string {
	return "root"
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// pngUpload builds a sniffable candidate of the given declared size.
// The body carries a real PNG signature so content detection agrees
// with the declared type.
func pngUpload(name string, sizeBytes int64) *validators.File {
	body := make([]byte, 64)
	copy(body, pngMagic)

	return &validators.File{
		Name: name,
		MIME: "image/png",
		Size: sizeBytes,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
}
