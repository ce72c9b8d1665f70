package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"
	"uploadfast/storage-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubStore struct{}

func (stubStore) Put(context.Context, string, io.Reader, int64, string, string) error { return nil }
func (stubStore) Delete(context.Context, string) error                                { return nil }
func (stubStore) PublicURL(key string) string                                         { return "https://cdn.test/" + key }
func (stubStore) Bucket() string                                                      { return "root" }

func newUploadRouter(t *testing.T) (*gin.Engine, *gorm.DB, *model.App) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.App{}, model.File{}))

	limits := plan.LimitsFor(plan.Trial)
	app := &model.App{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Name:   "test-app",
		Plan: model.Plan{
			PlanType:   plan.Trial,
			StorageCap: limits.StorageCapKB,
			UploadCap:  limits.UploadCapPerMonth,
		},
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, db.Create(app).Error)

	usage := service.NewUsage(db)
	d := &internal.Deps{
		DB:       db,
		Usage:    usage,
		Uploader: service.NewUploader(db, stubStore{}, usage),
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("requestID", "test")
		c.Set("app", app)
	})
	router.POST("/api/files", func(c *gin.Context) { FileUpload(c, d) })

	return router, db, app
}

func uploadRequest(t *testing.T, parts map[string]string) *http.Request {
	t.Helper()

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	for name, mime := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		h.Set("Content-Type", mime)

		part, err := w.CreatePart(h)
		require.NoError(t, err)

		content := make([]byte, 64)
		copy(content, "\x89PNG\r\n\x1a\n")
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func TestFileUploadOK(t *testing.T) {
	router, _, _ := newUploadRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, map[string]string{"a.png": "image/png"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a.png")
}

func TestFileUploadBadTypeIs400(t *testing.T) {
	router, _, _ := newUploadRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, map[string]string{"clip.mp4": "video/mp4"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file type")
}

func TestFileUploadOverQuotaIs403(t *testing.T) {
	router, db, app := newUploadRouter(t)

	require.NoError(t, db.Create(&model.File{
		AppID:     app.ID,
		FileKey:   "full.png",
		MimeType:  "image/png",
		Size:      float64(app.Plan.StorageCap),
		URL:       "https://cdn.test/full.png",
		CreatedAt: time.Now().Unix(),
	}).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, map[string]string{"a.png": "image/png"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Storage limit exceeded")
}

func TestFileUploadInfraFailureIs500Generic(t *testing.T) {
	router, db, _ := newUploadRouter(t)

	// Kill the database underneath the admission check
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, map[string]string{"a.png": "image/png"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")

	// Driver details must not reach the client
	assert.NotContains(t, w.Body.String(), "sql")
	assert.NotContains(t, w.Body.String(), "database is closed")
}
