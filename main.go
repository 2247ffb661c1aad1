package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-accounts/internal/api"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/config"
	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/events"
	"github.com/isdelr/ender-accounts/internal/logger"
	"github.com/isdelr/ender-accounts/internal/monitoring"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/isdelr/ender-accounts/internal/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.AppEnv, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up storage
	userStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to initialize user store")
	}
	defer userStore.Close()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up event bus
	bus, err := openBus(ctx, cfg, hub)
	if err != nil {
		log.Fatal().Err(err).Str("bus", cfg.EventBus).Msg("Failed to initialize event bus")
	}
	defer bus.Close()
	go func() {
		if err := bus.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Event bus stopped")
		}
	}()

	// Set up services
	eventService := services.NewEventService(bus)
	toggle := services.NewRelationToggle(userStore, eventService)
	graphService := services.NewGraphService(userStore, toggle)
	userService := services.NewUserService(userStore, bcrypt.DefaultCost)

	// Set up and run the background reconciler
	reconciler := monitoring.NewReconciler(userStore, eventService, toggle.Locks())
	if cfg.ReconcileSchedule != "" {
		if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("Failed to start reconciler")
		}
	}

	authenticator := auth.NewAuthenticator(signingKey(cfg), cfg.TokenTTL)

	// Set up router
	router := api.NewRouter(userService, graphService, eventService, authenticator, hub, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateBurst:  cfg.AuthRateBurst,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("store", cfg.StoreDriver).Str("bus", cfg.EventBus).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	reconciler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	cancel()

	log.Info().Msg("Server exiting")
}

func openStore(ctx context.Context, cfg *config.Config) (store.UserStore, error) {
	switch cfg.StoreDriver {
	case "mongo":
		client, err := database.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(ctx, client, cfg.MongoDatabase)
	case "memory":
		log.Warn().Msg("Using in-memory user store; data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		return store.NewSQLiteStore(db), nil
	}
}

func openBus(ctx context.Context, cfg *config.Config, sink events.Sink) (events.Bus, error) {
	switch cfg.EventBus {
	case "redis":
		return events.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannel, sink)
	case "amqp":
		return events.NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, sink)
	default:
		return events.NewLocalBus(sink), nil
	}
}

// signingKey falls back to a random per-process key outside production.
// Tokens then stop verifying after a restart.
func signingKey(cfg *config.Config) []byte {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate signing key")
	}
	log.Warn().Msg("JWT_SECRET is not set; using a random signing key")
	return key
}
