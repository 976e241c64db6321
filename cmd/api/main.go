package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard-api/internal/config"
	"github.com/pulseboard/pulseboard-api/internal/database"
	"github.com/pulseboard/pulseboard-api/internal/handler"
	"github.com/pulseboard/pulseboard-api/internal/middleware"
	"github.com/pulseboard/pulseboard-api/internal/models"
	"github.com/pulseboard/pulseboard-api/internal/repository"
	"github.com/pulseboard/pulseboard-api/internal/router"
	"github.com/pulseboard/pulseboard-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ActivityEvent{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityRepo := repository.NewActivityEventRepository(db)
	userRepo := repository.NewUserRepository(db)

	streamService := service.NewActivityStreamService(activityRepo, natsConn, service.StreamServiceConfig{
		TickInterval: cfg.StreamTickInterval,
		WindowDays:   cfg.ActivityWindowDays,
		RecentLimit:  cfg.RecentFeedLimit,
		NATSSubject:  cfg.NATSSubject,
	}, logger)

	activityService := service.NewActivityService(activityRepo, streamService, redisClient, service.ActivityServiceConfig{
		CacheTTL:    cfg.ActivityCacheTTL,
		WindowDays:  cfg.ActivityWindowDays,
		RecentLimit: cfg.RecentFeedLimit,
		SeedEnabled: cfg.SeedEnabled,
		SeedToken:   cfg.SeedToken,
	}, validate, logger)

	authService := service.NewAuthService(userRepo, activityService, validate, cfg.JWTSecret, cfg.TokenTTL, logger)
	userService := service.NewUserService(userRepo, activityService, validate, logger)

	activityHandler := handler.NewActivityHandler(activityService, logger)
	streamHandler := handler.NewActivityStreamHandler(streamService, logger, cfg.StreamKeepAlive)
	authHandler := handler.NewAuthHandler(authService, logger)
	userHandler := handler.NewUserHandler(userService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:       activityHandler,
		ActivityStreamHandler: streamHandler,
		AuthHandler:           authHandler,
		UserHandler:           userHandler,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		AdminMiddleware:       middleware.RequireRole("admin"),
	})

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	streamService.Start(streamCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopStream)
}

func waitForShutdown(app *fiber.App, stopStream context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopStream()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
