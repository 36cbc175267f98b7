package domain

import (
	"encoding/json"
	"time"
)

// Event is a single telemetry event emitted by the server. Metadata is
// event-type specific JSON; consumers treat it as opaque.
type Event struct {
	UserID    string          `json:"user_id,omitempty"`
	DeviceID  string          `json:"device_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
