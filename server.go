package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/clientsync"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/middlewares"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("clients-backend")

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func newCorsConfig(cfg config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction() {
		// no origins configured means no cross-origin access
		corsConfig.AllowOrigins = cfg.CorsAllowedOrigins
		if corsConfig.AllowOrigins == nil {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	return corsConfig
}

type routerDeps struct {
	cfg      config.Config
	logger   *logrus.Logger
	sessions middlewares.SessionStore
	limiter  *middlewares.RateLimiter
	sync     *clientsync.Handler
	clients  *clientHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(newCorsConfig(d.cfg)))
	if d.limiter != nil {
		r.Use(d.limiter.Middleware())
	}
	r.Use(middlewares.SessionMiddleware(d.sessions))
	r.Use(customErrorLogger(d.logger))
	r.Use(gin.Recovery())

	api := r.Group("/api", middlewares.RequireOperator())
	d.sync.RegisterRoutes(api)
	d.clients.registerRoutes(api)

	r.NoRoute(customNotFoundHandler)
	return r
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cipher, err := utils.NewFieldCipherFromBase64(cfg.EncryptionKey)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "encryption"}).Fatal("CLIENT_ENCRYPTION_KEY: " + err.Error())
	}

	clientDB, err := config.ConnectDatabaseWithRetry(sigCtx, "clients", cfg.ClientDB, cfg.GormLog, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal("client database: " + err.Error())
	}
	defer closeDB(clientDB)

	wordPressDB := clientDB
	if cfg.WordPressDB.DSN() != cfg.ClientDB.DSN() {
		wordPressDB, err = config.ConnectDatabaseWithRetry(sigCtx, "wordpress", cfg.WordPressDB, cfg.GormLog, logger)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "database"}).Fatal("wordpress database: " + err.Error())
		}
		defer closeDB(wordPressDB)
	}

	redisStore, err := config.ConnectRedisWithRetry(sigCtx, cfg.RedisAddress, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Fatal(err.Error())
	}
	defer func() { _ = redisStore.Close() }()

	if !cfg.SkipMigrations {
		if err := clientsync.Migrate(sigCtx, clientDB, redisStore, logger); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	stores := clientsync.NewStores(clientDB, wordPressDB, cfg.WpTablePrefix, cipher)
	svc := clientsync.NewGormService(stores, cfg.QueryTimeout, logger, tracer)

	var limiter *middlewares.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middlewares.NewRateLimiter(redisStore.Client(), cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	}
	r := newRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		sessions: redisStore,
		limiter:  limiter,
		sync:     clientsync.NewHandler(svc, logger),
		clients:  &clientHandler{store: stores.Clients, logger: logger},
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :" + cfg.Port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
