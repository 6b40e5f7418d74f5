// Package notify derives the user-facing notification list and unread
// counter from push-stream delta batches, independent of the data snapshot.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
)

// DefaultTitle labels notifications built from discount delta batches.
const DefaultTitle = "New discounts available!"

// Ledger is the ordered notification record, newest first.
type Ledger struct {
	mu      sync.Mutex
	records []domain.NotificationRecord
	unread  int

	logger *zap.Logger
}

// NewLedger builds an empty ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger}
}

// Record summarizes one delta batch: a single record is prepended and the
// unread counter is incremented once per batch, not per item.
func (l *Ledger) Record(batch []domain.ProductDelta) domain.NotificationRecord {
	items := make([]domain.NotificationItem, 0, len(batch))
	for _, d := range batch {
		items = append(items, domain.NotificationItem{Name: d.Name, Price: d.FinalPrice})
	}

	record := domain.NotificationRecord{
		ID:         uuid.NewString(),
		Title:      DefaultTitle,
		Items:      items,
		ReceivedAt: time.Now(),
	}

	l.mu.Lock()
	l.records = append([]domain.NotificationRecord{record}, l.records...)
	l.unread++
	l.mu.Unlock()

	l.logger.Debug("notification recorded", zap.String("id", record.ID), zap.Int("items", len(items)))
	return record
}

// ApplyDeltas lets the ledger act as a push-stream sink.
func (l *Ledger) ApplyDeltas(batch []domain.ProductDelta) {
	l.Record(batch)
}

// MarkAllRead flips every record to read and resets the unread counter; list
// length and order are untouched.
func (l *Ledger) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		l.records[i].Read = true
	}
	l.unread = 0
}

// ClearAll empties the list and resets the unread counter.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.unread = 0
}

// Records returns a copy of the notification list, newest first.
func (l *Ledger) Records() []domain.NotificationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.NotificationRecord, len(l.records))
	copy(out, l.records)
	return out
}

// UnreadCount returns the number of unread notifications.
func (l *Ledger) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}
