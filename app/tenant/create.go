// Package tenant contains the dashboard endpoints for managing apps
package tenant

import (
	"errors"
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createBody struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=255"`
}

func AppCreate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data createBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Validation error on request body",
			"requestID": requestID,
		})
		return
	}

	app, err := d.Apps.Create(userID, data.Name, data.Description)
	if err != nil {
		if errors.Is(err, service.ErrAppNameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		if errors.Is(err, service.ErrAppLimitReached) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create app", zap.String("userID", userID), zap.Error(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "App created successfully",
		"app":     app,
	})
}
