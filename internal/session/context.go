package session

import (
	stdcontext "context"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/api"
	"github.com/spec-kit/market-session/internal/auth"
	"github.com/spec-kit/market-session/internal/cache"
	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/notify"
	"github.com/spec-kit/market-session/internal/observability"
	"github.com/spec-kit/market-session/internal/prefs"
	"github.com/spec-kit/market-session/internal/stream"
)

// Context is the explicit aggregate of every session-core collaborator.
// Construction and cross-wiring happen here, in dependency order, and hosts
// pass the aggregate around instead of reaching for package-level globals.
type Context struct {
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Dispatcher  events.Dispatcher
	Prefs       prefs.Store
	Credentials *auth.CredentialStore
	Broadcaster *Broadcaster
	API         *api.Client
	Service     *Service
	Snapshot    *cache.Snapshot
	Ledger      *notify.Ledger
	Channel     *stream.Channel
}

// NewContext wires the full session core. The push channel is created with
// its gating predicate and its sinks registered, but it is not started;
// hosts call Channel.Start once bootstrap has run.
func NewContext(cfg *config.Config, store prefs.Store, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	creds := auth.NewCredentialStore(logger)
	broadcaster := NewBroadcaster()

	client := api.NewClient(cfg.API, creds, dispatcher, logger, metrics)
	service := NewService(client, creds, broadcaster, dispatcher, store, logger)

	snapshot := cache.NewSnapshot(logger, metrics)
	ledger := notify.NewLedger(logger)

	allowed := func() bool {
		if !broadcaster.LoggedIn.Get() {
			return false
		}
		profile := broadcaster.Profile.Get()
		if profile == nil || profile.Role != domain.RoleCustomer {
			return false
		}
		if store == nil {
			return true
		}
		return prefs.GetBool(stdcontext.Background(), store, prefs.KeyLiveUpdates, true)
	}

	channel := stream.NewChannel(cfg.Stream, allowed, dispatcher, logger, metrics)
	channel.AddSink(snapshot)
	channel.AddSink(ledger)

	return &Context{
		Logger:      logger,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Prefs:       store,
		Credentials: creds,
		Broadcaster: broadcaster,
		API:         client,
		Service:     service,
		Snapshot:    snapshot,
		Ledger:      ledger,
		Channel:     channel,
	}
}

// Close stops the push channel. Safe to call more than once.
func (c *Context) Close() {
	if c.Channel != nil {
		c.Channel.Stop()
	}
}
