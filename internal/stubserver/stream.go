package stubserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
)

// Hub fans push payloads out to every connected stream subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]chan []byte
	next        int

	store  *Store
	logger *zap.Logger
}

// NewHub builds an empty hub over the fixture store.
func NewHub(store *Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[int]chan []byte),
		store:       store,
		logger:      logger,
	}
}

func (h *Hub) subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan []byte, 8)
	h.subscribers[id] = ch
	return id, ch
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
			// slow subscriber, skip this payload
		}
	}
}

// Run emits a random discount batch on every tick until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := h.randomBatch()
			if len(batch) == 0 {
				continue
			}
			payload, err := json.Marshal(batch)
			if err != nil {
				h.logger.Error("marshal delta batch", zap.Error(err))
				continue
			}
			h.logger.Debug("broadcasting delta batch", zap.Int("items", len(batch)))
			h.broadcast(payload)
		}
	}
}

// randomBatch discounts one random item from a random fixture merchant.
func (h *Hub) randomBatch() []domain.ProductDelta {
	merchants := h.store.Merchants()
	if len(merchants) == 0 {
		return nil
	}
	merchant := merchants[rand.Intn(len(merchants))]
	if len(merchant.FoodList) == 0 {
		return nil
	}
	item := merchant.FoodList[rand.Intn(len(merchant.FoodList))]

	discount := 0.5 + rand.Float64()*0.3
	return []domain.ProductDelta{{
		FoodItemID:      item.ID,
		MerchantID:      merchant.ID,
		Name:            item.Name,
		Description:     item.Description,
		Category:        item.Category,
		OriginalPrice:   item.OriginalPrice,
		DiscountedPrice: item.DiscountedPrice,
		FinalPrice:      item.OriginalPrice * (1 - discount),
		ImageURL:        item.ImageURL,
		MerchantName:    merchant.Name,
		MerchantAddress: merchant.AddressText,
		Quantity:        item.QuantityAvailable,
	}}
}

// Stream handles GET /sse: hold the connection open and relay every broadcast
// payload as a server-sent event.
func (h *Hub) Stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	id, ch := h.subscribe()
	h.logger.Info("stream subscriber connected", zap.Int("id", id))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.unsubscribe(id)
		for payload := range ch {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
