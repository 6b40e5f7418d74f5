// Package stream supervises the long-lived push connection delivering
// product delta batches, with a fixed-delay reconnect policy and a
// host-supplied processing gate.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/notify"
	"github.com/spec-kit/market-session/internal/observability"
)

// State tracks the push-connection lifecycle.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateErroring
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErroring:
		return "erroring"
	default:
		return "unknown"
	}
}

// DeltaSink consumes a parsed delta batch.
type DeltaSink interface {
	ApplyDeltas(batch []domain.ProductDelta)
}

// Channel owns the push connection. Each parsed batch is forwarded,
// unmodified, to every registered sink. Transport errors never propagate to
// callers; they only drive the reconnect policy.
type Channel struct {
	url            string
	reconnectDelay time.Duration
	allowed        func() bool
	httpClient     *http.Client
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	metrics        *observability.Metrics

	mu             sync.Mutex
	state          State
	cancel         context.CancelFunc
	reconnectTimer *time.Timer
	sinks          []DeltaSink
}

// NewChannel builds a channel for the given stream endpoint. The allowed
// predicate is evaluated per inbound message; when it reports false the
// message is discarded silently.
func NewChannel(cfg config.StreamConfig, allowed func() bool, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		url:            cfg.URL,
		reconnectDelay: cfg.ReconnectDelay(),
		allowed:        allowed,
		// no client timeout: the connection is deliberately long-lived
		httpClient: &http.Client{},
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// AddSink registers a batch consumer.
func (c *Channel) AddSink(sink DeltaSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the push connection. No-op while already connecting or open,
// and while a reconnect attempt is pending.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop closes the connection and cancels any pending reconnect. Idempotent.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateClosed
}

func (c *Channel) run(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.handleError(ctx, fmt.Errorf("create request: %w", err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.handleError(ctx, fmt.Errorf("unexpected status: %d", resp.StatusCode))
		return
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.state = StateOpen
	c.mu.Unlock()
	c.logger.Info("push stream connected", zap.String("url", c.url))

	reader := bufio.NewReader(resp.Body)
	for {
		payload, err := readEvent(reader)
		if err != nil {
			c.handleError(ctx, err)
			return
		}
		c.handleMessage(payload)
	}
}

// handleMessage parses one payload and fans it out. Malformed payloads are
// logged and dropped without closing the connection.
func (c *Channel) handleMessage(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if c.allowed != nil && !c.allowed() {
		return
	}

	var batch []domain.ProductDelta
	if err := json.Unmarshal(payload, &batch); err != nil {
		c.logger.Warn("malformed push payload dropped", zap.Error(err))
		c.metrics.RecordDroppedBatch("malformed_payload")
		return
	}
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	sinks := append([]DeltaSink(nil), c.sinks...)
	c.mu.Unlock()

	for _, sink := range sinks {
		sink.ApplyDeltas(batch)
	}

	if c.dispatcher != nil {
		items := make([]domain.NotificationItem, 0, len(batch))
		for _, d := range batch {
			items = append(items, domain.NotificationItem{Name: d.Name, Price: d.FinalPrice})
		}
		_ = c.dispatcher.Publish(context.Background(), events.New(
			events.EventDeltaBatch,
			events.DeltaBatchPayload{Title: notify.DefaultTitle, Items: items},
		))
	}
}

// handleError closes the connection and schedules exactly one reconnect
// attempt after the fixed delay. Repeated errors never stack timers.
func (c *Channel) handleError(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		// deliberate Stop, not a transport failure; leave the state alone if
		// a newer connection has been started since
		if c.cancel == nil {
			c.state = StateClosed
		}
		return
	}

	c.state = StateErroring
	c.logger.Warn("push stream error", zap.Error(err))
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateClosed

	if c.reconnectTimer == nil {
		c.metrics.RecordReconnect()
		c.logger.Info("scheduling reconnect", zap.Duration("delay", c.reconnectDelay))
		c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
			c.mu.Lock()
			c.reconnectTimer = nil
			c.mu.Unlock()
			c.Start()
		})
	}
}
