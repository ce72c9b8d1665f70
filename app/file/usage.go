package file

import (
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileUsage returns the app's usage snapshot next to the caps it is
// enforced against. The snapshot is recomputed from the ledger first if
// it has gone stale.
func FileUsage(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	app := c.MustGet("app").(*model.App)

	stats, err := d.Usage.Snapshot(app)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to load usage snapshot", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_used":      stats.TotalUsed,
		"files_count":     stats.FilesCount,
		"monthly_uploads": stats.MonthlyUploads,
		"last_calculated": stats.LastCalculated,
		"storage_cap":     app.Plan.StorageCap,
		"upload_cap":      app.Plan.UploadCap,
	})
}
