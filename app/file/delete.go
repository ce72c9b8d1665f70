package file

import (
	"errors"
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type deleteBody struct {
	URL string `json:"url"`
}

func FileDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	app := c.MustGet("app").(*model.App)

	var data deleteBody
	if err := c.ShouldBind(&data); err != nil || data.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "File URL is missing",
			"requestID": requestID,
		})
		return
	}

	err := d.Deleter.DeleteFile(c.Request.Context(), app, data.URL)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "File not found. It either doesn't exist or you don't own it",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete file", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File deleted successfully",
	})
}
