package middleware

import (
	"net/http"
	"strings"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewAPIKeyMiddleware authenticates data-plane requests. The caller
// sends its key in Authorization and names the target app with
// x-app-name. The key digest has to match a key issued for exactly that
// app, a valid key for a different app reads as not found.
//
// Resolved apps are cached for a short TTL to keep hot upload paths off
// the database. The cache is latency-only: enforcement decisions always
// recompute usage from the ledger, so a stale app row can't admit a
// batch it shouldn't.
func NewAPIKeyMiddleware(d *gorm.DB) gin.HandlerFunc {
	cache := ttlcache.NewCache()
	cache.SetTTL(30 * time.Second)
	cache.SkipTTLExtensionOnHit(true)

	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		key := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if key == "" || !strings.HasPrefix(key, security.KeyPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Missing or malformed API key",
				"requestID": requestID,
			})
			return
		}

		appName := c.GetHeader("x-app-name")
		if appName == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "App name is required",
				"requestID": requestID,
			})
			return
		}

		digest := security.HashAPIKey(key)

		if v, err := cache.Get(digest + "/" + appName); err == nil {
			app := v.(model.App)
			c.Set("app", &app)
			c.Next()
			return
		}

		var apiKey model.APIKey

		err := d.Where("digest = ?", digest).First(&apiKey).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Invalid API key",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to look up API key", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		var app model.App

		err = d.Where("id = ? AND name = ?", apiKey.AppID, appName).First(&app).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"error":     "App not found or unauthorized",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to look up app", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		cache.Set(digest+"/"+appName, app)

		c.Set("app", &app)
		c.Next()
	}
}
