// The client command runs the session core end to end against a backend:
// restore the session, load the merchant snapshot, then follow the push
// stream until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/observability"
	"github.com/spec-kit/market-session/internal/prefs"
	"github.com/spec-kit/market-session/internal/session"
)

const defaultRangeKm = 10

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

	store := prefs.NewRedisStore(cfg.Redis, logger)
	core := session.NewContext(cfg, store, logger)
	defer core.Close()

	core.Broadcaster.LoggedIn.Subscribe(func(loggedIn bool) {
		logger.Info("session state changed", zap.Bool("logged_in", loggedIn))
	})

	core.Dispatcher.Subscribe(events.EventDeltaBatch, func(ctx context.Context, event events.Event) error {
		if !prefs.GetBool(ctx, store, prefs.KeyPopups, true) {
			return nil
		}
		payload, ok := event.Payload.(events.DeltaBatchPayload)
		if !ok {
			return nil
		}
		for _, item := range payload.Items {
			logger.Info("popup",
				zap.String("title", payload.Title),
				zap.String("item", item.Name),
				zap.Float64("price", item.Price),
			)
		}
		return nil
	})

	core.Service.Bootstrap(ctx)

	if email, password := os.Getenv("LOGIN_EMAIL"), os.Getenv("LOGIN_PASSWORD_HASH"); !core.Broadcaster.LoggedIn.Get() && email != "" {
		if err := core.Service.Login(ctx, email, password); err != nil {
			logger.Warn("login failed", zap.Error(err))
		}
	}

	if core.Broadcaster.LoggedIn.Get() {
		loadSnapshot(ctx, core, logger)
	}

	core.Channel.Start()

	waitForShutdown(logger)
}

// loadSnapshot performs the wholesale merchant fetch around the stored
// location, falling back to the origin when none is set.
func loadSnapshot(ctx context.Context, core *session.Context, logger *zap.Logger) {
	lat, lon := coordinates(core.Broadcaster.Location.Get())

	merchants, err := core.API.MerchantsWithinRange(ctx, defaultRangeKm, lat, lon)
	if err != nil {
		logger.Warn("merchant fetch failed", zap.Error(err))
		return
	}
	core.Snapshot.ReplaceAll(merchants)
	logger.Info("snapshot loaded", zap.Int("merchants", len(merchants)))
}

func coordinates(loc *domain.Location) (float64, float64) {
	if loc == nil {
		return 0, 0
	}
	lat, err := strconv.ParseFloat(loc.Lat, 64)
	if err != nil {
		return 0, 0
	}
	lon, err := strconv.ParseFloat(loc.Lon, 64)
	if err != nil {
		return 0, 0
	}
	return lat, lon
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
