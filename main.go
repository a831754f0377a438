package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomrental/config"
	"roomrental/cron"
	"roomrental/database"
	bookingRepo "roomrental/database/repository/booking"
	listingRepo "roomrental/database/repository/listing"
	"roomrental/handlers"
	"roomrental/middleware"
	"roomrental/routes"
	"roomrental/services/authz"
	"roomrental/services/booking"
	"roomrental/services/notification"
	"roomrental/services/payment"
	"roomrental/services/tasks"
	"roomrental/services/webhook"
	"roomrental/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		if cfg.StripeWebhookSecret == "" {
			logger.Sugar().Fatal("main: STRIPE_WEBHOOK_SECRET is required in production")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	mongoClient, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	db := mongoClient.Database(cfg.DatabaseName)

	// Redis is optional: without it fan-out stays in-process, webhook replays
	// rely on the store alone, and holds are swept on a ticker.
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		if cache, err = utils.NewCacheClient(cfg); err != nil {
			logger.Sugar().Warnf("main: continuing without Redis: %v", err)
			cache = nil
		}
	}

	// repositories.
	store := bookingRepo.NewMongoBookingRepo(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	listings := listingRepo.NewMongoListingDirectory(db, cache, logger)
	policy := authz.DefaultPolicy()

	// real-time channel.
	var broker notification.Broker = notification.NewLocalBroker()
	if cache != nil {
		broker = notification.NewRedisBroker(cache, logger)
	}
	hub := notification.NewHub(broker, store, policy, logger)
	if err := hub.Start(ctx); err != nil {
		logger.Sugar().Fatalf("main: failed to start notification hub: %v", err)
	}
	var pusher notification.Pusher
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := notification.NewFCMPusher(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Sugar().Warnf("main: push notifications disabled: %v", err)
		} else {
			pusher = fcm
		}
	}
	notifier := notification.NewLifecycleNotifier(hub, pusher, logger)

	// lifecycle engine.
	deps := booking.Deps{
		Store:     store,
		Listings:  listings,
		Authority: payment.NewStripeAuthority(cfg.StripeSecretKey, logger),
		Policy:    policy,
		Notifier:  notifier,
		Logger:    logger,
	}
	var queue *asynq.Client
	if cache != nil {
		queue = asynq.NewClient(cron.RedisOpt(cfg))
		deps.Scheduler = tasks.NewScheduler(queue, logger)
	}
	engine := booking.NewEngine(deps, engineConfig(cfg))

	// background jobs.
	var worker *cron.Worker
	if cache != nil {
		worker = cron.InitBookingWorker(cfg, engine, logger)
	} else {
		cron.StartHoldSweeper(ctx, engine, 15*time.Minute, logger)
	}

	// webhooks.
	var dedupe webhook.Deduper
	if cache != nil {
		dedupe = webhook.NewRedisDeduper(cache, webhook.DefaultDedupeTTL)
	}
	ingestor := webhook.NewIngestor(payment.VerifierFunc(payment.VerifyStripeSignature), cfg.StripeWebhookSecret, engine, dedupe, logger)

	health := utils.NewHealthMonitor(cache, mongoClient)
	health.Start(ctx, 30*time.Second)

	tokens := utils.NewTokenService(cfg.JWTSecret)
	bookingHandler := handlers.NewBookingHandler(engine)
	adminHandler := handlers.NewAdminHandler(engine)
	webhookHandler := handlers.NewWebhookHandler(ingestor)
	socketHandler := handlers.NewSocketHandler(ctx, hub, tokens, cfg.Origins(), logger)

	// Create the Gin router.
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxyList()); err != nil {
		logger.Sugar().Fatalf("main: invalid TRUSTED_PROXIES: %v", err)
	}
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	handlerBundle := &handlers.HandlerBundle{
		Tokens: tokens,

		CreateBooking:  bookingHandler.CreateBooking,
		VerifyBooking:  bookingHandler.VerifyBooking,
		CancelBooking:  bookingHandler.CancelBooking,
		GetBooking:     bookingHandler.GetBooking,
		ListMyBookings: bookingHandler.ListMyBookings,

		AdminListBookings: adminHandler.ListBookingsHandler,

		PaymentAuthorityWebhook: webhookHandler.PaymentAuthorityWebhook,
		SocketConnect:           socketHandler.Connect,
		Health:                  handlers.HealthHandler(health),
	}
	routes.RegisterRoutes(router, handlerBundle, cfg.Origins())

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	// Closes open sockets and stops the sweeper and health checks.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if queue != nil {
		_ = queue.Close()
	}
	_ = broker.Close()
	if cache != nil {
		_ = cache.Close()
	}
	_ = mongoClient.Disconnect(shutdownCtx)

	logger.Sugar().Info("main: server stopped gracefully")
}

func engineConfig(cfg config.Config) booking.Config {
	return booking.Config{
		AuthorityTimeout:    cfg.AuthorityTimeout,
		CaptureTimeout:      cfg.CaptureTimeout,
		CaptureMaxAttempts:  cfg.CaptureMaxAttempts,
		CaptureRetryBackoff: cfg.CaptureRetryBackoff,
		HoldWindow:          cfg.HoldWindow,
		ReconcileDelay:      cfg.ReconcileDelay,
	}
}
