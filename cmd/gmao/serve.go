package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JBDLC/GMAO/internal/config"
	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/handler"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/JBDLC/GMAO/internal/gmao/sse"
	"github.com/JBDLC/GMAO/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()
		return serve(cfg, zapLogger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "run schema migration before serving")
}

func serve(cfg *config.Config, zapLogger *zap.Logger) error {
	zapLogger.Info("Starting gmao service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is not configured (JWT_SECRET)")
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		return err
	}
	if autoMigrate {
		if err := db.AutoMigrate(entity.Models()...); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	// Redis 只用于看板缓存，不可用时降级为直接查询
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, dashboard cache disabled", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
		cancel()
	}

	hub := sse.NewHub(zapLogger)
	services := service.NewServices(service.Deps{
		DB:     db,
		Repos:  repository.NewRepositories(db),
		Redis:  rdb,
		Hub:    hub,
		Logger: zapLogger,
		Config: cfg,
	})
	handlers := handler.NewHandlers(services, hub, zapLogger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	limit, err := middleware.RateLimit(cfg.RateLimit.Rate, zapLogger)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	registerRoutes(router, handlers, db, cfg, limit)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE 长连接不设写超时
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-quit:
	}

	zapLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	zapLogger.Info("Server exited")
	return nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, cfg *config.Config, limit gin.HandlerFunc) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1")
	api.Use(limit, middleware.JWTAuth(cfg.JWT.Secret))
	h.Register(api)
}
