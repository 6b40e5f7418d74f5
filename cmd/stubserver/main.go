package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/observability"
	"github.com/spec-kit/market-session/internal/stubserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := stubserver.NewStore(cfg.Stub.BcryptCost)
	if err != nil {
		logger.Fatal("failed to seed fixture store", zap.Error(err))
	}
	tokens := stubserver.NewTokenManager(cfg.Stub.JWTSecret, cfg.Stub.AccessTokenTTLMinutes)
	handler := stubserver.NewHandler(store, tokens, logger)
	hub := stubserver.NewHub(store, logger)

	go hub.Run(ctx, cfg.Stub.PushInterval())

	app := fiber.New()
	app.Use(stubserver.RequestLogger(logger))
	stubserver.RegisterRoutes(app, handler, hub, tokens)

	go func() {
		if err := app.Listen(cfg.Stub.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
