package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genmart/internal/config"
	"genmart/internal/middleware"
	"genmart/internal/notify"
	"genmart/internal/observability"
	"genmart/internal/queue"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// mailDedupeTTL bounds how long a delivered event id is remembered.
const mailDedupeTTL = 72 * time.Hour

func main() {
	addr := flag.String("addr", ":8084", "health and metrics listen address")
	store := flag.String("store", "GenMart", "store name used in e-mails")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger("genmart-notifier")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.InitTracing("genmart-notifier", cfg.TracingEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	notifier := notify.NewNotifier(
		notify.LogMailer{From: cfg.MailFrom, Logger: logger},
		notify.RedisDeduper{RDB: rdb, TTL: mailDedupeTTL},
		*store,
		logger,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, notifier.Handle, logger)
	defer consumer.Close()
	go consumer.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", middleware.PrometheusHandler())

	srv := &http.Server{Addr: *addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()
	logger.Info("Notifier started",
		zap.String("addr", *addr),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down notifier...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Notifier exited")
}
