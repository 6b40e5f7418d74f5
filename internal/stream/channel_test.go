package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/observability"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]domain.ProductDelta
}

func (s *captureSink) ApplyDeltas(batch []domain.ProductDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *captureSink) last() []domain.ProductDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

// sseHandler writes each payload from the channel as one event and holds the
// connection open until the payload channel closes.
func sseHandler(payloads <-chan string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case payload, ok := <-payloads:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

func newTestChannel(url string, allowed func() bool, dispatcher events.Dispatcher, metrics *observability.Metrics) *Channel {
	ch := NewChannel(config.StreamConfig{URL: url}, allowed, dispatcher, zap.NewNop(), metrics)
	ch.reconnectDelay = 50 * time.Millisecond
	return ch
}

func TestChannelDeliversBatchesToSinks(t *testing.T) {
	payloads := make(chan string)
	srv := httptest.NewServer(sseHandler(payloads))
	defer srv.Close()
	defer close(payloads)

	ch := newTestChannel(srv.URL, nil, nil, observability.NewMetrics())
	sink := &captureSink{}
	ch.AddSink(sink)
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return ch.State() == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	payloads <- `[{"foodItemId":101,"merchantId":1,"foodItemName":"Sourdough Loaf","finalPrice":3}]`

	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	batch := sink.last()
	require.Len(t, batch, 1)
	assert.Equal(t, int64(101), batch[0].FoodItemID)
	assert.Equal(t, 3.0, batch[0].FinalPrice)
}

func TestChannelPublishesDeltaBatchEvent(t *testing.T) {
	payloads := make(chan string)
	srv := httptest.NewServer(sseHandler(payloads))
	defer srv.Close()
	defer close(payloads)

	dispatcher := events.NewInMemoryDispatcher()
	var published atomic.Int64
	dispatcher.Subscribe(events.EventDeltaBatch, func(ctx context.Context, e events.Event) error {
		published.Add(1)
		return nil
	})

	ch := newTestChannel(srv.URL, nil, dispatcher, observability.NewMetrics())
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return ch.State() == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	payloads <- `[{"foodItemId":101,"merchantId":1,"foodItemName":"Sourdough Loaf","finalPrice":3}]`

	require.Eventually(t, func() bool {
		return published.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannelGateDiscardsMessages(t *testing.T) {
	payloads := make(chan string)
	srv := httptest.NewServer(sseHandler(payloads))
	defer srv.Close()
	defer close(payloads)

	var allowed atomic.Bool
	metrics := observability.NewMetrics()
	ch := newTestChannel(srv.URL, allowed.Load, nil, metrics)
	sink := &captureSink{}
	ch.AddSink(sink)
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return ch.State() == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	payloads <- `[{"foodItemId":101,"merchantId":1,"foodItemName":"Gated","finalPrice":3}]`
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, sink.count())

	allowed.Store(true)
	payloads <- `[{"foodItemId":102,"merchantId":1,"foodItemName":"Allowed","finalPrice":4}]`

	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Allowed", sink.last()[0].Name)
}

func TestChannelSurvivesMalformedPayload(t *testing.T) {
	payloads := make(chan string)
	srv := httptest.NewServer(sseHandler(payloads))
	defer srv.Close()
	defer close(payloads)

	metrics := observability.NewMetrics()
	ch := newTestChannel(srv.URL, nil, nil, metrics)
	sink := &captureSink{}
	ch.AddSink(sink)
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return ch.State() == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	payloads <- `{not json`
	payloads <- `[{"foodItemId":101,"merchantId":1,"foodItemName":"Sourdough Loaf","finalPrice":3}]`

	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), metrics.DroppedBatches("malformed_payload"))
	assert.Equal(t, StateOpen, ch.State())
}

func TestChannelSchedulesSingleReconnect(t *testing.T) {
	// server drops every connection immediately
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	ch := NewChannel(config.StreamConfig{URL: srv.URL}, nil, nil, zap.NewNop(), metrics)
	ch.reconnectDelay = time.Hour
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return metrics.ReconnectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateClosed, ch.State())

	// further Start calls while the reconnect is pending are no-ops
	ch.Start()
	ch.Start()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), conns.Load())
	assert.Equal(t, int64(1), metrics.ReconnectCount())
}

func TestChannelReconnectsAfterDelay(t *testing.T) {
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	ch := newTestChannel(srv.URL, nil, nil, metrics)
	ch.Start()
	defer ch.Stop()

	require.Eventually(t, func() bool {
		return conns.Load() >= 2 && metrics.ReconnectCount() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestChannelStopIsIdempotentAndCancelsReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	ch := NewChannel(config.StreamConfig{URL: srv.URL}, nil, nil, zap.NewNop(), metrics)
	ch.reconnectDelay = time.Hour
	ch.Start()

	require.Eventually(t, func() bool {
		return metrics.ReconnectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ch.Stop()
	ch.Stop()
	assert.Equal(t, StateClosed, ch.State())

	// after Stop, Start is allowed again
	ch.Start()
	require.Eventually(t, func() bool {
		return metrics.ReconnectCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
	ch.Stop()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "erroring", StateErroring.String())
}
