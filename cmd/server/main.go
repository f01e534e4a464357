package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genmart/internal/config"
	"genmart/internal/middleware"
	"genmart/internal/model"
	"genmart/internal/observability"
	"genmart/internal/queue"
	"genmart/internal/router"
	"genmart/internal/service"
	gmredis "genmart/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// outboxMaxLen caps the Redis stream the API appends events to.
const outboxMaxLen = 100000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.InitTracing(cfg.ServiceName, cfg.TracingEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	db, err := openDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// locks, idempotency and rate limits degrade; the shop keeps selling
		logger.Warn("Redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// API -> Redis stream -> relay -> Kafka
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream, outboxMaxLen)
	relay := queue.NewRelay(rdb, producer, logger, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
	go relay.Run(ctx)

	deps, err := buildServices(cfg, db, rdb, outbox, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	deps.DB = sqlDB
	deps.Redis = rdb

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware())
	router.Setup(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()
	logger.Info("GenMart API started", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

func openDB(cfg config.AppConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	default:
		dialector = sqlite.Open(cfg.DBDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

func buildServices(cfg config.AppConfig, db *gorm.DB, rdb *rd.Client, events service.EventPublisher, logger *zap.Logger) (router.Deps, error) {
	now := time.Now

	settings, err := service.NewSettingsService(service.SettingsServiceDeps{
		DB:     db,
		Cache:  gmredis.NewSettingsBlob(rdb),
		TTL:    cfg.SettingsCacheTTL,
		Clock:  now,
		Logger: logger,
	})
	if err != nil {
		return router.Deps{}, err
	}
	catalog, err := service.NewCatalogService(service.CatalogServiceDeps{DB: db, Clock: now, Logger: logger})
	if err != nil {
		return router.Deps{}, err
	}
	coupons, err := service.NewCouponService(service.CouponServiceDeps{DB: db, Clock: now, Logger: logger})
	if err != nil {
		return router.Deps{}, err
	}
	cart, err := service.NewCartService(service.CartServiceDeps{DB: db, Settings: settings, Clock: now, Logger: logger})
	if err != nil {
		return router.Deps{}, err
	}
	orders, err := service.NewOrderService(service.OrderServiceDeps{
		DB:          db,
		Settings:    settings,
		Locker:      gmredis.NewCheckoutLock(rdb, cfg.CheckoutLockTTL),
		Idempotency: gmredis.NewIdempotencyStore(rdb, cfg.IdempotencyTTL),
		Events:      events,
		Clock:       now,
		Logger:      logger,
	})
	if err != nil {
		return router.Deps{}, err
	}
	services, err := service.NewServiceRequestService(service.ServiceRequestServiceDeps{DB: db, Events: events, Clock: now, Logger: logger})
	if err != nil {
		return router.Deps{}, err
	}
	listings, err := service.NewListingService(service.ListingServiceDeps{DB: db, Events: events, Clock: now, Logger: logger})
	if err != nil {
		return router.Deps{}, err
	}
	reviews, err := service.NewReviewService(db, logger)
	if err != nil {
		return router.Deps{}, err
	}
	stats, err := service.NewStatsService(db)
	if err != nil {
		return router.Deps{}, err
	}

	return router.Deps{
		Settings:   settings,
		Catalog:    catalog,
		Coupons:    coupons,
		Cart:       cart,
		Orders:     orders,
		Services:   services,
		Listings:   listings,
		Reviews:    reviews,
		Stats:      stats,
		Audit:      service.NewAuditService(db),
		JWTSecret:  []byte(cfg.JWTSecret),
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
		Logger:     logger,
	}, nil
}
