package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/market-session/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoggedIn       EventType = "session_logged_in"
	EventLoggedOut      EventType = "session_logged_out"
	EventSessionExpired EventType = "session_expired"
	EventProfileUpdated EventType = "session_profile_updated"
	EventDeltaBatch     EventType = "stream_delta_batch"
)

// Logout reasons carried by LoggedOutPayload.
const (
	ReasonUserLogout     = "user_logout"
	ReasonSessionExpired = "session_expired"
)

// Event represents a state change emitted by the session core.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// LoggedInPayload payload.
type LoggedInPayload struct {
	Profile domain.UserProfile `json:"profile"`
}

// LoggedOutPayload payload.
type LoggedOutPayload struct {
	Reason string `json:"reason"`
}

// DeltaBatchPayload payload, used by popup display.
type DeltaBatchPayload struct {
	Title string                    `json:"title"`
	Items []domain.NotificationItem `json:"items"`
}
