package domain

import "time"

// NotificationItem is one product line inside a notification.
type NotificationItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// NotificationRecord summarizes one delta batch for the notification center.
type NotificationRecord struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Items      []NotificationItem `json:"items"`
	ReceivedAt time.Time          `json:"receivedAt"`
	Read       bool               `json:"read"`
}
