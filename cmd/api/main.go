package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mines-predictor-bot/internal/config"
	"mines-predictor-bot/internal/handlers"
	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/middleware"
	"mines-predictor-bot/internal/render"
	"mines-predictor-bot/internal/services"
	"mines-predictor-bot/internal/storage/memory"
	"mines-predictor-bot/internal/storage/postgres"
	"mines-predictor-bot/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
	}
	defer store.Close()

	bootstrapper := services.NewBootstrapper(store, logger)
	if _, err := bootstrapper.Ensure(ctx); err != nil {
		logger.Error(ctx, "initial key bootstrap failed", "error", err)
	}

	bot, err := telegram.NewBot(cfg.BotToken, "")
	if err != nil {
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}

	renderer := render.NewGridRenderer(&http.Client{Timeout: 15 * time.Second}, cfg.CellImageURL, cfg.DiamondImageURL)
	gate := services.NewActivationGate(store, store, cfg.AdminActivationKey)
	machine := services.NewMachine(gate, renderer, services.FlowConfig{
		PurchaseURL:        cfg.PurchaseURL(),
		ServerSeedGuideURL: cfg.ServerSeedGuideURL,
		BetAmountGuideURL:  cfg.BetAmountGuideURL,
	}, logger)

	hub := handlers.NewWebSocketHub(logger)
	go hub.Run(ctx)

	opts := []services.EngineOption{services.WithBroadcaster(hub)}
	limiter, hasLimiter := store.(services.RateLimiter)
	if hasLimiter {
		opts = append(opts, services.WithRateLimit(limiter, cfg.RateLimit, time.Minute))
	}

	engine := services.NewEngine(store, telegram.NewMessenger(bot), machine, bootstrapper, logger, opts...)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORS())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Mode == config.ModeWebhook {
		router.POST("/telegram/webhook", handlers.NewWebhookHandler(engine, cfg.WebhookSecret, logger).HandleUpdate)
	} else {
		go telegram.Poll(ctx, bot, engine, logger)
	}

	api := router.Group("/api")
	if hasLimiter {
		api.Use(middleware.RateLimitMiddleware(limiter, "verify", services.DefaultRateLimitVerify, time.Minute))
	}
	api.POST("/verify", handlers.NewVerifyHandler().Verify)

	if cfg.AdminAPIEnabled() {
		jwtService := services.NewJWTService(cfg)
		adminHandler := handlers.NewAdminHandler(gate, store, jwtService, cfg.AdminSecret)

		router.POST("/auth/admin", adminHandler.Login)

		admin := router.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		{
			admin.GET("/keys", adminHandler.ListKeys)
			admin.POST("/keys", adminHandler.AddKey)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.GET("/users/:id/predictions", adminHandler.GetUserPredictions)
			admin.GET("/ws", hub.HandleWebSocket)
		}
	} else {
		logger.Info(ctx, "admin API disabled, set JWT_SECRET and ADMIN_SECRET to enable it")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "server shutdown failed", "error", err)
		}
	}()

	logger.Info(ctx, "server starting", "port", cfg.Port, "mode", cfg.Mode, "storage", cfg.StorageDriver, "bot", bot.Self.UserName)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (services.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseDSN)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return services.NewRedisService(cfg)
	}
}
