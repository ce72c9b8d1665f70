// Package webhook receives billing events that drive plan switches
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/plan"
	"uploadfast/storage-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type syncBody struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID  string `json:"user_id"`
			AppName string `json:"app_name"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Attributes struct {
			VariantName string `json:"variant_name"`
			Status      string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// Sync applies a billing event to the named app's plan. The raw body is
// authenticated with an HMAC signature before anything is parsed.
func Sync(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No body provided",
			"requestID": requestID,
		})
		return
	}

	signature := c.GetHeader("x-signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No signature provided",
			"requestID": requestID,
		})
		return
	}

	mac := hmac.New(sha256.New, []byte(viper.GetString("security.webhook_secret")))
	mac.Write(raw)
	digest := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(digest), []byte(signature)) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid signature",
			"requestID": requestID,
		})
		return
	}

	var body syncBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid body",
			"requestID": requestID,
		})
		return
	}

	app, err := d.Apps.ByName(body.Meta.CustomData.UserID, body.Meta.CustomData.AppName)
	if err != nil {
		if errors.Is(err, service.ErrAppNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "App not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up app", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	switch body.Meta.EventName {
	case "subscription_updated":
		switch body.Data.Attributes.Status {
		case "active", "on_trial":
			err = d.Apps.SwitchPlan(app, body.Data.Attributes.VariantName)
		case "expired":
			err = d.Apps.SwitchPlan(app, plan.Trial)
		}
	case "subscription_created", "order_created":
		err = d.Apps.SwitchPlan(app, body.Data.Attributes.VariantName)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to switch plan", zap.String("appID", app.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
