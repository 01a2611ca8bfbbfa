package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task_api/internal/cache"
	"task_api/internal/config"
	"task_api/internal/db"
	"task_api/internal/handler"
	"task_api/internal/observability"
	"task_api/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	observability.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Init(&cfg.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database connection")
		}
	}()

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(database); err != nil {
			logrus.WithError(err).Fatal("Failed to run database migrations")
		}
	}

	// Initialize Prometheus metrics
	metrics := observability.InitMetrics()
	prometheus.MustRegister(collectors.NewDBStatsCollector(database, cfg.DB.Name))
	logrus.Info("Metrics initialized")

	deps := handler.Dependencies{
		Config:  cfg,
		DB:      database,
		Metrics: metrics,
	}

	if cfg.Redis.Enabled() {
		rdb, err := cache.SetupRedis(&cfg.Redis)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close redis connection")
			}
		}()
		deps.Redis = rdb
	} else {
		logrus.Info("REDIS_HOST not set, task cache and rate limiting disabled")
	}

	if cfg.RabbitMQ.Enabled() {
		// A signal during startup aborts the broker backoff.
		connectCtx, stopConnect := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		conn, err := queue.SetupRabbitMQ(connectCtx, &cfg.RabbitMQ)
		stopConnect()
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			}
		}()

		publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.Queue, metrics)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to set up task event publisher")
		}
		deps.Publisher = publisher
	} else {
		logrus.Info("RABBITMQ_URL not set, task events disabled")
	}

	r, err := handler.SetupHandler(deps)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up HTTP handler")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shut down")
	}
	logrus.Info("Server exited")
}
