package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoggerAuthorizationEvents(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	logger.AuthorizationSuccess(ctx, "u-1", "card", "create", map[string]interface{}{
		"workspace_id": "ws-1",
		"request_id":   "req-1",
	})
	logger.AuthorizationFailure(ctx, "u-2", "workspace", "delete", map[string]interface{}{
		"workspace_id": "ws-1",
		"role":         "viewer",
	})
	logger.Error(ctx, "membership lookup failed", map[string]interface{}{
		"error": "connection reset",
	})

	events := logger.Events()
	require.Len(t, events, 3)

	granted := events[0]
	assert.Equal(t, EventTypeAuthzGranted, granted.EventType)
	assert.Equal(t, EventStatusSuccess, granted.Status)
	assert.Equal(t, "u-1", granted.UserID)
	assert.Equal(t, "ws-1", granted.WorkspaceID)
	assert.Equal(t, "req-1", granted.RequestID)
	assert.Equal(t, "card", granted.Resource)
	assert.Equal(t, "create", granted.Action)
	assert.Nil(t, granted.Metadata)

	denied := events[1]
	assert.Equal(t, EventTypeAuthzDenied, denied.EventType)
	assert.Equal(t, EventStatusDenied, denied.Status)
	assert.Equal(t, "viewer", denied.Metadata["role"])

	failure := events[2]
	assert.Equal(t, EventTypeAuthzResolverError, failure.EventType)
	assert.Equal(t, "membership lookup failed", failure.Message)
	assert.Equal(t, "connection reset", failure.ErrorMessage)
}

func TestBuildEventLiftsKnownFields(t *testing.T) {
	event := buildEvent(EventTypeAuthzDenied, EventStatusDenied, "u-1", "canvas", "update", map[string]interface{}{
		"workspace_id": "ws-9",
		"ip_address":   "10.0.0.1",
		"message":      "Insufficient permissions",
		"custom":       42,
	})

	assert.Equal(t, "ws-9", event.WorkspaceID)
	assert.Equal(t, "10.0.0.1", event.IPAddress)
	assert.Equal(t, "Insufficient permissions", event.Message)
	assert.Equal(t, 42, event.Metadata["custom"])
	assert.NotContains(t, event.Metadata, "workspace_id")
}

func TestNoopLoggerIsInert(t *testing.T) {
	logger := &NoopLogger{}
	ctx := context.Background()

	logger.AuthorizationSuccess(ctx, "u-1", "card", "read", nil)
	logger.AuthorizationFailure(ctx, "u-1", "card", "delete", nil)
	logger.Error(ctx, "ignored", nil)
	require.NoError(t, logger.Log(ctx, &Event{}))
	require.NoError(t, logger.Close())
}

func TestEventJSONRoundTrip(t *testing.T) {
	event := buildEvent(EventTypeAuthzGranted, EventStatusSuccess, "u-1", "card", "read", map[string]interface{}{
		"workspace_id": "ws-1",
	})

	data, err := event.ToJSON()
	require.NoError(t, err)

	parsed, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, event.EventType, parsed.EventType)
	assert.Equal(t, event.WorkspaceID, parsed.WorkspaceID)
}
