package key

import (
	"errors"
	"net/http"
	"strings"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/service"
	"uploadfast/storage-api/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type deleteBody struct {
	AppName string `json:"app_name" binding:"required"`
	APIKey  string `json:"api_key" binding:"required"`
}

func KeyDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data deleteBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "App name and API key are required",
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

	// Accept either the plain key (recognizable prefix) or its digest
	digest := data.APIKey
	if strings.HasPrefix(data.APIKey, security.KeyPrefix) {
		digest = security.HashAPIKey(data.APIKey)
	}

	res := d.DB.
		Where("digest = ? AND user_id = ? AND app_id = ?", digest, userID, app.ID).
		Delete(model.APIKey{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete API key", zap.String("appID", app.ID), zap.Error(res.Error))
		return
	}

	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "API key not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "API key deleted successfully",
	})
}
