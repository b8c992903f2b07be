package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered   EventType = "user_registered"
	EventSessionStarted   EventType = "session_started"
	EventSessionRefreshed EventType = "session_refreshed"
	EventSessionRevoked   EventType = "session_revoked"
	EventSessionsSwept    EventType = "sessions_swept"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	Flow             string    `json:"flow"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionRefreshedPayload payload.
type SessionRefreshedPayload struct {
	Rotated bool `json:"rotated"`
}

// SessionsSweptPayload payload.
type SessionsSweptPayload struct {
	Removed int64 `json:"removed"`
}
