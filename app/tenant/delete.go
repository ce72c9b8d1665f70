package tenant

import (
	"errors"
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppDelete removes an app and cascades to everything it owns: stored
// objects, file rows and API keys.
func AppDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "App name is missing",
			"requestID": requestID,
		})
		return
	}

	app, err := d.Apps.ByName(userID, name)
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

	if err := d.Apps.Delete(c.Request.Context(), app); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete app", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	d.Uploader.Evict(app.ID)

	c.JSON(http.StatusOK, gin.H{
		"message": "App and all associated data deleted successfully",
	})
}
