package cache

import (
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
)

// ApplyDeltas merges a push-stream batch into the snapshot. Items are grouped
// by merchant; within a known merchant each item replaces an existing food
// item by identity or is inserted at the head of the list. Groups for
// merchants absent from the snapshot are dropped with a diagnostic; no
// merchant is synthesized. Applying the same batch twice leaves the snapshot
// unchanged.
func (s *Snapshot) ApplyDeltas(batch []domain.ProductDelta) {
	if len(batch) == 0 {
		return
	}

	groups := make(map[int64][]domain.ProductDelta)
	var order []int64
	for _, d := range batch {
		if _, seen := groups[d.MerchantID]; !seen {
			order = append(order, d.MerchantID)
		}
		groups[d.MerchantID] = append(groups[d.MerchantID], d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, merchantID := range order {
		idx := -1
		for i := range s.merchants {
			if s.merchants[i].ID == merchantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			s.logger.Warn("delta batch references unknown merchant, dropping group",
				zap.Int64("merchant_id", merchantID),
				zap.Int("items", len(groups[merchantID])))
			s.metrics.RecordDroppedBatch("unknown_merchant")
			continue
		}

		merchant := &s.merchants[idx]
		for _, d := range groups[merchantID] {
			item := d.FoodItem()
			pos := -1
			for i := range merchant.FoodList {
				if merchant.FoodList[i].ID == item.ID {
					pos = i
					break
				}
			}
			if pos >= 0 {
				merchant.FoodList[pos] = item
			} else {
				merchant.FoodList = append([]domain.FoodItem{item}, merchant.FoodList...)
			}
		}
	}
}
