package api

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/auth"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/observability"
	apierrors "github.com/spec-kit/market-session/pkg/util"
)

// RefreshFunc performs the network call exchanging the refresh cookie for a
// new access token.
type RefreshFunc func(ctx context.Context) (string, error)

type refreshOutcome struct {
	token string
	err   error
}

// RefreshCoordinator guarantees at most one refresh network call in flight.
// Callers arriving while a refresh is in progress join an ordered waiter
// queue and receive the identical outcome; waiters are released in arrival
// order when the refresh resolves.
type RefreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome

	refresh    RefreshFunc
	creds      *auth.CredentialStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRefreshCoordinator constructs the coordinator.
func NewRefreshCoordinator(refresh RefreshFunc, creds *auth.CredentialStore, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *RefreshCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshCoordinator{
		refresh:    refresh,
		creds:      creds,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Refreshing reports whether a refresh call is currently in flight.
func (c *RefreshCoordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Await resolves to a fresh access token, issuing at most one network call
// regardless of how many callers arrive concurrently. On success the token is
// installed into the credential store. On failure the store is cleared, a
// session-expired event is published, and every caller receives the same
// RefreshFailed error.
func (c *RefreshCoordinator) Await(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshOutcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			// The refresh itself keeps running and will drain the queue;
			// this caller just stops waiting for it.
			return "", apierrors.NewNetworkError(ctx.Err())
		case out := <-ch:
			return out.token, out.err
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	// An in-flight refresh is never cancelled: it always resolves either way
	// and always drains the waiter queue.
	token, err := c.refresh(context.WithoutCancel(ctx))
	c.metrics.RecordRefresh(err == nil)

	out := refreshOutcome{token: token}
	if err != nil {
		out.err = apierrors.NewRefreshFailed(err)
		c.creds.Clear()
		c.logger.Warn("credential refresh failed, forcing logout", zap.Error(err))
		if c.dispatcher != nil {
			_ = c.dispatcher.Publish(context.WithoutCancel(ctx), events.New(
				events.EventSessionExpired,
				events.LoggedOutPayload{Reason: events.ReasonSessionExpired},
			))
		}
	} else {
		c.creds.Set(token)
		c.logger.Debug("credential refreshed")
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
	return out.token, out.err
}
