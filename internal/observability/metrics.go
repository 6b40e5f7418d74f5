package observability

import "sync"

// Metrics provides basic in-memory counters for the session core.
type Metrics struct {
	mu             sync.Mutex
	refreshCount   int64
	refreshFailed  int64
	replayCount    int64
	reconnectCount int64
	droppedBatches map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		droppedBatches: make(map[string]int64),
	}
}

// RecordRefresh counts a completed refresh network call.
func (m *Metrics) RecordRefresh(success bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount++
	if !success {
		m.refreshFailed++
	}
}

// RecordReplay counts a call replayed after a successful refresh.
func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayCount++
}

// RecordReconnect counts a scheduled push-stream reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectCount++
}

// RecordDroppedBatch counts a discarded push payload by reason.
func (m *Metrics) RecordDroppedBatch(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedBatches[reason]++
}

// RefreshCount returns completed and failed refresh call counts.
func (m *Metrics) RefreshCount() (total, failed int64) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCount, m.refreshFailed
}

// ReplayCount returns the number of replayed calls.
func (m *Metrics) ReplayCount() int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replayCount
}

// ReconnectCount returns the number of scheduled reconnects.
func (m *Metrics) ReconnectCount() int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectCount
}

// DroppedBatches returns the drop counter for the given reason.
func (m *Metrics) DroppedBatches(reason string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.droppedBatches[reason]
}
