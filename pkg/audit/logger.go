package audit

import (
	"context"
	"sync"
	"time"
)

// Logger records security events. Implementations must be safe for
// concurrent use and must swallow their own failures; a broken audit sink
// never blocks or fails an authorization decision.
type Logger interface {
	// Log records a fully-formed event
	Log(ctx context.Context, event *Event) error

	// AuthorizationSuccess records a granted permission check
	AuthorizationSuccess(ctx context.Context, userID, resource, action string, fields map[string]interface{})

	// AuthorizationFailure records a denied permission check
	AuthorizationFailure(ctx context.Context, userID, resource, action string, fields map[string]interface{})

	// Error records a resolver or infrastructure failure on the
	// authorization path
	Error(ctx context.Context, message string, fields map[string]interface{})

	// Close flushes any buffered events
	Close() error
}

// buildEvent assembles an event from a permission decision. The workspace
// and request IDs travel in fields so callers with no workspace scope can
// omit them.
func buildEvent(eventType EventType, status EventStatus, userID, resource, action string, fields map[string]interface{}) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    userID,
		Resource:  resource,
		Action:    action,
		Metadata:  make(map[string]interface{}),
	}

	for k, v := range fields {
		switch k {
		case "workspace_id":
			if s, ok := v.(string); ok {
				event.WorkspaceID = s
				continue
			}
		case "request_id":
			if s, ok := v.(string); ok {
				event.RequestID = s
				continue
			}
		case "ip_address":
			if s, ok := v.(string); ok {
				event.IPAddress = s
				continue
			}
		case "message":
			if s, ok := v.(string); ok {
				event.Message = s
				continue
			}
		case "error":
			if s, ok := v.(string); ok {
				event.ErrorMessage = s
				continue
			}
		}
		event.Metadata[k] = v
	}
	if len(event.Metadata) == 0 {
		event.Metadata = nil
	}
	return event
}

// NoopLogger discards every event. Used when audit logging is disabled.
type NoopLogger struct{}

func (l *NoopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (l *NoopLogger) AuthorizationSuccess(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
}
func (l *NoopLogger) AuthorizationFailure(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
}
func (l *NoopLogger) Error(ctx context.Context, message string, fields map[string]interface{}) {}
func (l *NoopLogger) Close() error                                                            { return nil }

// MemoryLogger keeps events in memory. Intended for tests and local
// development only; it grows without bound.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemoryLogger creates an in-memory event sink
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.ID = int64(len(l.events) + 1)
	l.events = append(l.events, event)
	return nil
}

func (l *MemoryLogger) AuthorizationSuccess(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
	l.Log(ctx, buildEvent(EventTypeAuthzGranted, EventStatusSuccess, userID, resource, action, fields))
}

func (l *MemoryLogger) AuthorizationFailure(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
	l.Log(ctx, buildEvent(EventTypeAuthzDenied, EventStatusDenied, userID, resource, action, fields))
}

func (l *MemoryLogger) Error(ctx context.Context, message string, fields map[string]interface{}) {
	event := buildEvent(EventTypeAuthzResolverError, EventStatusError, "", "", "", fields)
	event.Message = message
	l.Log(ctx, event)
}

func (l *MemoryLogger) Close() error { return nil }

// Events returns a snapshot of everything logged so far
func (l *MemoryLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}
