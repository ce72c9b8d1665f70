package tenant

import (
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func AppList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var apps []model.App

	err := d.DB.
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&apps).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list apps", zap.String("userID", userID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apps": apps,
	})
}
