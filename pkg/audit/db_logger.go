package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/loomhq/loom/pkg/observability"
)

// DBLogger writes security events to PostgreSQL. Write failures are logged
// and dropped; the decision path never waits on a retry.
type DBLogger struct {
	db      *sql.DB
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewDBLogger creates a database-backed security logger and ensures the
// security_events table exists.
func NewDBLogger(db *sql.DB, log *observability.Logger) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}

	logger := &DBLogger{db: db, log: log}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure security_events table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS security_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id VARCHAR(255),
		workspace_id VARCHAR(255),
		resource VARCHAR(100),
		action VARCHAR(100),
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_security_events_user_id ON security_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_security_events_workspace_id ON security_events(workspace_id);
	CREATE INDEX IF NOT EXISTS idx_security_events_event_type ON security_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_security_events_status ON security_events(status);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log inserts a single event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO security_events (
			timestamp, event_type, status,
			user_id, workspace_id, resource, action,
			request_id, ip_address,
			message, error_message, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9,
			$10, $11, $12
		) RETURNING id
	`

	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.UserID, event.WorkspaceID, event.Resource, event.Action,
		event.RequestID, event.IPAddress,
		event.Message, event.ErrorMessage, metadataJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// WithMetrics enables per-event-type counting and returns the logger
func (l *DBLogger) WithMetrics(m *observability.Metrics) *DBLogger {
	l.metrics = m
	return l
}

// logBestEffort writes an event and downgrades failure to a log line
func (l *DBLogger) logBestEffort(ctx context.Context, event *Event) {
	if l.metrics != nil {
		l.metrics.SecurityEventsTotal.WithLabelValues(string(event.EventType)).Inc()
	}
	if err := l.Log(ctx, event); err != nil {
		l.log.WithFields(map[string]interface{}{
			"event_type": string(event.EventType),
			"user_id":    event.UserID,
		}).WithError(err).Error("failed to write security event")
	}
}

func (l *DBLogger) AuthorizationSuccess(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
	l.logBestEffort(ctx, buildEvent(EventTypeAuthzGranted, EventStatusSuccess, userID, resource, action, fields))
}

func (l *DBLogger) AuthorizationFailure(ctx context.Context, userID, resource, action string, fields map[string]interface{}) {
	l.logBestEffort(ctx, buildEvent(EventTypeAuthzDenied, EventStatusDenied, userID, resource, action, fields))
}

func (l *DBLogger) Error(ctx context.Context, message string, fields map[string]interface{}) {
	event := buildEvent(EventTypeAuthzResolverError, EventStatusError, "", "", "", fields)
	event.Message = message
	l.logBestEffort(ctx, event)
}

// Close is a no-op; the caller owns the database handle
func (l *DBLogger) Close() error { return nil }

// CountEvents returns the number of stored events, optionally filtered by
// user. Used by the admin surface and tests.
func (l *DBLogger) CountEvents(ctx context.Context, userID string) (int64, error) {
	var count int64
	var err error
	if userID == "" {
		err = l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events").Scan(&count)
	} else {
		err = l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events WHERE user_id = $1", userID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return count, nil
}
