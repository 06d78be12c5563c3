package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hail/internal/app"
	"hail/internal/config"
	"hail/internal/handler"
	"hail/internal/logger"
	"hail/internal/pricing"
	internalRedis "hail/internal/redis"
	"hail/internal/repository/postgres"
	"hail/internal/service"
	"hail/internal/ws"
)

func main() {
	// Load configuration. A missing .env is fine; env vars still apply.
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg, log)

	// Start server in goroutine.
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *zap.Logger) *http.Server {
	// Repositories.
	riderRepo := postgres.NewRiderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	promoRepo := postgres.NewPromotionRepository(db)
	fareConfigRepo := postgres.NewFareConfigRepository(db)

	// Redis-backed stores. Fare configuration reads go through a short-TTL
	// cache; the per-rider lock serializes ride creation.
	lockStore := internalRedis.NewLockStore(redisClient)
	fareConfig := internalRedis.NewFareConfigCache(redisClient, fareConfigRepo)

	// Pricing resolvers.
	slabResolver := pricing.NewSlabResolver(fareConfig)
	surgeResolver := pricing.NewSurgeResolver(fareConfig)

	// Realtime notification hub.
	hub := ws.NewHub(log)
	go hub.Run()

	// Services.
	notificationService := service.NewNotificationService(hub, log)
	rideService := service.NewRideService(rideRepo, riderRepo, driverRepo,
		slabResolver, surgeResolver, lockStore, notificationService, log)
	promoService := service.NewPromotionService(rideRepo, promoRepo, log)

	// Handlers.
	rideHandler := handler.NewRideHandler(rideService)
	couponHandler := handler.NewCouponHandler(promoService)
	accountHandler := handler.NewAccountHandler(riderRepo, driverRepo)
	wsHandler := handler.NewWSHandler(hub, log)

	// Router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:    rideHandler,
		CouponHandler:  couponHandler,
		AccountHandler: accountHandler,
		WSHandler:      wsHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
