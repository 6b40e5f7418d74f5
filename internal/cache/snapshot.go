// Package cache keeps the locally cached merchant/product snapshot: a
// best-effort mirror of server state, replaced wholesale by REST responses
// and patched in place by push-stream deltas.
package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/observability"
)

// Snapshot is the merchant -> food-item mirror. Never authoritative.
type Snapshot struct {
	mu        sync.RWMutex
	merchants []domain.Merchant

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSnapshot builds an empty snapshot.
func NewSnapshot(logger *zap.Logger, metrics *observability.Metrics) *Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshot{logger: logger, metrics: metrics}
}

// ReplaceAll swaps in a full refresh from a REST response.
func (s *Snapshot) ReplaceAll(merchants []domain.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants = cloneMerchants(merchants)
}

// Merchants returns a copy of the current snapshot.
func (s *Snapshot) Merchants() []domain.Merchant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMerchants(s.merchants)
}

// MerchantByID looks up a merchant by identity.
func (s *Snapshot) MerchantByID(id int64) (domain.Merchant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.merchants {
		if m.ID == id {
			return cloneMerchant(m), true
		}
	}
	return domain.Merchant{}, false
}

// Clear empties the snapshot. Invoked by the host on logout; the core itself
// never clears the cache.
func (s *Snapshot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants = nil
}

func cloneMerchants(in []domain.Merchant) []domain.Merchant {
	out := make([]domain.Merchant, len(in))
	for i, m := range in {
		out[i] = cloneMerchant(m)
	}
	return out
}

func cloneMerchant(m domain.Merchant) domain.Merchant {
	c := m
	c.FoodList = append([]domain.FoodItem(nil), m.FoodList...)
	return c
}
