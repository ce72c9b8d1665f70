package file

import (
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func FileList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	app := c.MustGet("app").(*model.App)

	var files []model.File

	err := d.DB.
		Where("app_id = ?", app.ID).
		Order("created_at desc").
		Find(&files).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list files", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}
