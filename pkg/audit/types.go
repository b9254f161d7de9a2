package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of security event
type EventType string

const (
	// Authorization events
	EventTypeAuthzGranted       EventType = "authz.permission_granted"
	EventTypeAuthzDenied        EventType = "authz.permission_denied"
	EventTypeAuthzResolverError EventType = "authz.resolver_error"
	EventTypeAuthzInvalidated   EventType = "authz.cache_invalidated"

	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusDenied  EventStatus = "denied"
	EventStatusError   EventStatus = "error"
)

// Event represents a single security-audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and scope
	UserID      string `json:"user_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`

	// The permission decision, split for filterability
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// RetentionPolicy defines how long security events are kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep events
	RetentionDays int

	// SweepSchedule is the cron expression for retention sweeps
	SweepSchedule string
}

// DefaultRetentionPolicy returns the default retention policy (90 days,
// swept nightly).
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
		SweepSchedule: "0 3 * * *",
	}
}
