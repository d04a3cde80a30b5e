package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/petpath/tracksync/handlers"
	"github.com/petpath/tracksync/internal/archive"
	"github.com/petpath/tracksync/internal/config"
	"github.com/petpath/tracksync/internal/database"
	"github.com/petpath/tracksync/internal/runlock"
	"github.com/petpath/tracksync/internal/store"
	"github.com/petpath/tracksync/internal/syncer"
	"github.com/petpath/tracksync/internal/trackimo"
	"github.com/petpath/tracksync/pkg/logger"
	"github.com/petpath/tracksync/pkg/metrics"
	"github.com/petpath/tracksync/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: trackimo=%v mongo=%v redis=%v", cfg.Trackimo.ServerURL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early: it backs the sync run lock and, when configured,
	// the rate limiter.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-subject when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// Connect to MongoDB — the user directory and audit trail live there, so
	// the service is not useful without it.
	ctx := context.Background()
	var stores *store.Stores
	if cfg.MongoDB.URI != "" {
		client, errConn := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB: %v", errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			stores = store.NewMongoStores(client.Database(cfg.MongoDB.Database))
			logger.Infof("Connected to MongoDB: %s", cfg.MongoDB.Database)
		}
	}

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["storage"] = stores != nil
		if stores == nil {
			ready = false
		}

		// credentials are validated at startup, so this only flips when the
		// process was somehow started with an empty server URL
		deps["trackimo"] = cfg.Trackimo.ServerURL != ""
		if !deps["trackimo"] {
			ready = false
		}

		// Redis readiness only matters when the limiter depends on it; the run
		// lock degrades to noop with a warning.
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			if redisClient == nil {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
	})

	// Optional raw snapshot archive (MinIO). Disabled when no endpoint is set.
	var engineOpts []syncer.Option
	if acfg := archive.LoadConfig(); acfg.Endpoint != "" {
		snap, errArch := archive.New(acfg)
		if errArch != nil {
			logger.Warnf("snapshot archive disabled: %v", errArch)
		} else {
			engineOpts = append(engineOpts, syncer.WithArchiver(snap))
			logger.Infof("snapshot archive enabled: bucket=%s", acfg.Bucket)
		}
	}

	// Sync run lock: Redis-backed when available, otherwise noop.
	var lock runlock.Locker = runlock.NoopLocker{}
	if redisClient != nil {
		lock = runlock.NewRedisLocker(redisClient, "", cfg.Redis.LockTTL)
	} else {
		logger.Warnf("no Redis available: sync runs are not lock-protected")
	}

	// Register API handlers when storage is available
	if stores != nil {
		engine := syncer.New(trackimo.NewClient(cfg.Trackimo), stores, engineOpts...)
		api := r.Group("/api/v1")
		if cfg.Auth.Secret != "" {
			api.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
		} else {
			logger.Warnf("AUTH_SECRET not set: trigger and admin endpoints run unauthenticated")
		}
		handlers.NewSyncHandler(engine, lock).Register(api)
		handlers.NewUsersHandler(stores).Register(api)
	} else {
		logger.Warnf("sync handlers not registered because storage is unavailable")
	}

	// Swagger UI + JSON for API documentation
	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting sync service on %s", addr)
	// run server in goroutine and keep process alive so the container does
	// not exit silently if r.Run ever returns.
	go func() {
		if err := r.Run(addr); err != nil {
			logger.Fatalf("server failed: %v", err)
		}
	}()
	select {}
}
