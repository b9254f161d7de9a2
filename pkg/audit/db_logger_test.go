package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDBLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS security_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db, nil)
	require.NoError(t, err)
	return logger, mock, db
}

func TestNewDBLogger_RequiresDB(t *testing.T) {
	_, err := NewDBLogger(nil, nil)
	require.Error(t, err)
}

func TestDBLogger_Log(t *testing.T) {
	logger, mock, db := newMockDBLogger(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO security_events").
		WithArgs(
			sqlmock.AnyArg(), "authz.permission_denied", "denied",
			"u-1", "ws-1", "workspace", "delete",
			"req-1", "", "Insufficient permissions", "", []byte(nil),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	event := &Event{
		Timestamp:   time.Now().UTC(),
		EventType:   EventTypeAuthzDenied,
		Status:      EventStatusDenied,
		UserID:      "u-1",
		WorkspaceID: "ws-1",
		Resource:    "workspace",
		Action:      "delete",
		RequestID:   "req-1",
		Message:     "Insufficient permissions",
	}

	require.NoError(t, logger.Log(context.Background(), event))
	assert.Equal(t, int64(7), event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_AuthorizationFailureSwallowsWriteError(t *testing.T) {
	logger, mock, db := newMockDBLogger(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO security_events").
		WillReturnError(errors.New("disk full"))

	// Must not panic or propagate; audit failures never affect decisions.
	logger.AuthorizationFailure(context.Background(), "u-1", "card", "delete", map[string]interface{}{
		"workspace_id": "ws-1",
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_CountEvents(t *testing.T) {
	logger, mock, db := newMockDBLogger(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM security_events WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := logger.CountEvents(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sweeper, err := NewRetentionSweeper(db, RetentionPolicy{RetentionDays: 30}, nil)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM security_events WHERE timestamp <").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRetentionSweeper_RejectsNonPositiveWindow(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewRetentionSweeper(db, RetentionPolicy{RetentionDays: 0}, nil)
	require.Error(t, err)
}
