package file

import (
	"errors"
	"io"
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/service"
	"uploadfast/storage-api/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileUpload accepts a multipart batch under the "file" field and runs
// it through the upload pipeline for the authenticated app.
func FileUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	app := c.MustGet("app").(*model.App)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid multipart form",
			"requestID": requestID,
		})
		return
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No files provided",
			"requestID": requestID,
		})
		return
	}

	files := make([]*validators.File, 0, len(headers))

	for _, fh := range headers {
		files = append(files, &validators.File{
			Name: fh.Filename,
			MIME: fh.Header.Get("Content-Type"),
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	results, err := d.Uploader.UploadBatch(c.Request.Context(), app, files)
	if err != nil {
		var quotaErr *service.QuotaExceededError

		switch {
		case errors.As(err, &quotaErr):
			c.JSON(http.StatusForbidden, gin.H{
				"error":     quotaErr.Detail,
				"requestID": requestID,
			})
		case validators.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
		default:
			// Enforcement hit an infra failure. The details stay in the
			// logs, the client gets a generic body.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to admit batch",
				zap.String("appID", app.ID),
				zap.Error(err),
				zap.String("requestID", requestID))
		}
		return
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if failed > 0 {
		zap.L().Warn("Batch finished with failed files",
			zap.String("appID", app.ID),
			zap.Int("failed", failed),
			zap.Int("total", len(results)),
			zap.String("requestID", requestID))

		c.JSON(http.StatusMultiStatus, gin.H{
			"results":   results,
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
	})
}
