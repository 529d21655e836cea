package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursebook/config"
	"coursebook/cron"
	"coursebook/database"
	bookingRepo "coursebook/database/repository/booking"
	courseRepo "coursebook/database/repository/course"
	notificationRepo "coursebook/database/repository/notification"
	userRepo "coursebook/database/repository/user"
	"coursebook/handlers"
	"coursebook/middleware"
	"coursebook/routes"
	"coursebook/services/booking"
	"coursebook/services/notification"
	"coursebook/services/payment"
	"coursebook/services/tasks"
	"coursebook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger := utils.InitializeLogger(config.IsProduction(), cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	mongoClient, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	db := mongoClient.Database(cfg.DatabaseName)

	// repositories.
	bookings := bookingRepo.NewMongoBookingRepo(db)
	courses := courseRepo.NewMongoCourseRepo(db)
	users := userRepo.NewMongoUserRepo(db)
	notifications := notificationRepo.NewMongoNotificationRepo(db)

	gateway, err := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentTimeout(), logger)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	// Redis backs webhook dedupe; losing it only costs redundant webhook work.
	var deduper booking.EventDeduper
	cacheClient, err := utils.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheDB)
	if err != nil {
		logger.Warn("Webhook dedupe disabled", zap.Error(err))
	} else {
		deduper = utils.NewRedisEventDeduper(cacheClient, utils.WebhookEventTTL)
	}

	var pusher notification.Pusher
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := utils.NewFCMClient(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Warn("Push notifications disabled", zap.Error(err))
		} else {
			pusher = notification.NewFCMPusher(fcm)
		}
	}
	mailer := notification.NewBrevoMailer(cfg.EmailAPIKey, cfg.EmailSender, cfg.EmailSenderName, logger)

	notificationService, err := notification.NewDefaultNotificationService(notifications, users, pusher, mailer, logger.Named("notification"))
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	// side effects.
	var (
		effects booking.EffectDispatcher
		worker  *cron.EffectWorker
	)
	switch cfg.SideEffectsMode {
	case "queue":
		queueOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB}
		queueClient := asynq.NewClient(queueOpts)
		defer queueClient.Close()

		effects = tasks.NewQueueDispatcher(queueClient, logger.Named("effects"))
		worker = cron.NewEffectWorker(queueOpts, notificationService, logger.Named("worker"))
		worker.Start()
	default:
		effects = tasks.NewInlineDispatcher(notificationService, logger.Named("effects"))
	}

	bookingService, err := booking.NewDefaultBookingService(booking.Dependencies{
		Bookings: bookings,
		Courses:  courses,
		Gateway:  gateway,
		Effects:  effects,
		Deduper:  deduper,
		Logger:   logger,
		Currency: cfg.PaymentCurrency,
	})
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	reconciler, err := cron.StartRefundReconciler(cfg.RefundReconcileSchedule, bookingService, cfg.RefundReconcileAfter(), logger.Named("reconciler"))
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	utils.StartHealthMonitor(ctx, 30*time.Second, cacheClient, mongoClient)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	routes.RegisterRoutes(router, handlers.NewBookingHandler(bookingService), utils.NewTokenManager(cfg.JWTSecret))

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	logger.Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	<-reconciler.Stop().Done()
	if worker != nil {
		worker.Shutdown()
	}
	stop()
	if cacheClient != nil {
		_ = cacheClient.Close()
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
