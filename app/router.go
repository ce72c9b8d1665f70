// Package app wires the HTTP surface to the core services
package app

import (
	"fmt"
	"time"

	"uploadfast/storage-api/app/file"
	"uploadfast/storage-api/app/key"
	"uploadfast/storage-api/app/root"
	"uploadfast/storage-api/app/tenant"
	"uploadfast/storage-api/app/user"
	"uploadfast/storage-api/app/webhook"
	"uploadfast/storage-api/aws"
	"uploadfast/storage-api/db"
	"uploadfast/storage-api/internal"
	"uploadfast/storage-api/internal/service"
	"uploadfast/storage-api/pkg/middleware"
	"uploadfast/storage-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

func NewRouter() (*gin.Engine, error) {
	d := &internal.Deps{}

	makeLogger()

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	d.DB = database

	s3, err := aws.NewS3()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}

	d.Argon = security.New()
	d.Usage = service.NewUsage(database)
	d.Uploader = service.NewUploader(database, s3, d.Usage)
	d.Uploader.Workers = viper.GetInt("upload.workers")
	d.Uploader.PutTimeout = viper.GetDuration("upload.put_timeout")
	d.Deleter = service.NewDeleter(database, s3, d.Usage)
	d.Apps = service.NewApps(database, s3)

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors_origins"),
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-app-name", "x-signature"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 32 << 20

	rateLimit := viper.GetInt("security.rate_limit")

	jwt := middleware.NewJWTMiddleware(database)
	apiKey := middleware.NewAPIKeyMiddleware(database)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
		CleanupInterval:   time.Second,
	})

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// POST /api/sync		-> Billing webhook, switches an app's plan
		m.POST("/sync", func(c *gin.Context) { webhook.Sync(c, d) })
	}

	u := m.Group("/users", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/users		-> Registers a new user
		u.POST("", func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/login	-> Logs in a user and returns a JWT token
		u.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })
	}

	a := m.Group("/apps", jwt, middleware.BodySizeLimiter(1<<20))
	{
		// GET /api/apps		-> Lists the caller's apps with plan and usage
		a.GET("", func(c *gin.Context) { tenant.AppList(c, d) })

		// POST /api/apps		-> Registers a new app on the Trial plan
		a.POST("", func(c *gin.Context) { tenant.AppCreate(c, d) })

		// DELETE /api/apps/:name	-> Deletes an app and everything it owns
		a.DELETE("/:name", func(c *gin.Context) { tenant.AppDelete(c, d) })

		// POST /api/apps/keys		-> Issues an API key for an app
		a.POST("/keys", func(c *gin.Context) { key.KeyCreate(c, d) })

		// DELETE /api/apps/keys	-> Revokes an API key
		a.DELETE("/keys", func(c *gin.Context) { key.KeyDelete(c, d) })
	}

	f := m.Group("/files", apiKey)
	{
		// GET /api/files		-> Lists the app's files
		f.GET("", func(c *gin.Context) { file.FileList(c, d) })

		// GET /api/files/usage		-> Returns the app's usage snapshot and caps
		f.GET("/usage", cacheFor(15), func(c *gin.Context) { file.FileUsage(c, d) })

		// POST /api/files		-> Uploads a batch of files
		f.POST("", middleware.BodySizeLimiter(viper.GetInt64("upload.max_batch_bytes")), func(c *gin.Context) { file.FileUpload(c, d) })

		// DELETE /api/files		-> Deletes a file by its URL
		f.DELETE("", func(c *gin.Context) { file.FileDelete(c, d) })
	}

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
