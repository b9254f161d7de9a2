package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loomhq/loom/pkg/observability"
)

// RetentionSweeper deletes security events older than the retention window
// on a cron schedule.
type RetentionSweeper struct {
	db     *sql.DB
	policy RetentionPolicy
	log    *observability.Logger
	cron   *cron.Cron
}

// NewRetentionSweeper creates a sweeper for the given policy. A
// non-positive retention window is rejected; retention must be an explicit
// choice, never accidental infinity or accidental deletion.
func NewRetentionSweeper(db *sql.DB, policy RetentionPolicy, log *observability.Logger) (*RetentionSweeper, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if policy.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", policy.RetentionDays)
	}
	if policy.SweepSchedule == "" {
		policy.SweepSchedule = DefaultRetentionPolicy().SweepSchedule
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RetentionSweeper{
		db:     db,
		policy: policy,
		log:    log,
	}, nil
}

// Sweep deletes events older than the retention window and returns the
// number of rows removed.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.policy.RetentionDays)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM security_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep security events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept events: %w", err)
	}
	return deleted, nil
}

// Start schedules sweeps on the policy's cron expression
func (s *RetentionSweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.policy.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		deleted, err := s.Sweep(ctx)
		if err != nil {
			s.log.WithError(err).Error("security event retention sweep failed")
			return
		}
		s.log.WithFields(map[string]interface{}{
			"deleted":        deleted,
			"retention_days": s.policy.RetentionDays,
		}).Info("security event retention sweep completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (s *RetentionSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
