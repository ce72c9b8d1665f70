// Package key contains the dashboard endpoints for issuing API keys
package key

import (
	"errors"
	"net/http"
	"time"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/service"
	"uploadfast/storage-api/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxKeysPerApp = 3

type createBody struct {
	AppName string `json:"app_name" binding:"required"`
}

// KeyCreate issues a new API key for one of the caller's apps. The
// plain key value appears in this response and nowhere else.
func KeyCreate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data createBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "App name is required",
			"requestID": requestID,
		})
		return
	}

	app, err := d.Apps.ByName(userID, data.AppName)
	if err != nil {
		if errors.Is(err, service.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "App not found or unauthorized",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up app", zap.String("userID", userID), zap.Error(err))
		return
	}

	var count int64

	err = d.DB.
		Model(model.APIKey{}).
		Where("user_id = ? AND app_id = ?", userID, app.ID).
		Count(&count).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count API keys", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	if count >= maxKeysPerApp {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Could not create API key - Limit Exceeded (3)",
			"requestID": requestID,
		})
		return
	}

	plain, err := security.NewAPIKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate API key", zap.Error(err))
		return
	}

	err = d.DB.Create(&model.APIKey{
		UserID:    userID,
		AppID:     app.ID,
		Digest:    security.HashAPIKey(plain),
		CreatedAt: time.Now().Unix(),
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store API key", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Created API key successfully",
		"payload": plain,
	})
}
