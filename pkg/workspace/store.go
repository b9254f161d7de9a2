package workspace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/observability"
)

// Store reads workspace-membership state from PostgreSQL. It is strictly a
// read adapter: membership rows are created, updated, and deleted by the
// membership-management service, never here.
type Store struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewStore creates a membership store over the given connection
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithMetrics enables per-query instrumentation and returns the store
func (s *Store) WithMetrics(m *observability.Metrics) *Store {
	s.metrics = m
	return s
}

// observe records one query's outcome and duration
func (s *Store) observe(query string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.StoreQueriesTotal.WithLabelValues(query, status).Inc()
	s.metrics.StoreQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

// FindActiveMembership returns the active membership of userID in
// workspaceID, or (nil, nil) when no active row exists.
func (s *Store) FindActiveMembership(ctx context.Context, userID, workspaceID string) (*authz.WorkspaceMember, error) {
	query := `
		SELECT id, workspace_id, user_id, role, permissions, joined_at, is_active
		FROM workspace_members
		WHERE user_id = $1 AND workspace_id = $2 AND is_active = TRUE
	`

	start := time.Now()
	member, err := scanMember(s.db.QueryRowContext(ctx, query, userID, workspaceID))
	if err == sql.ErrNoRows {
		s.observe("find_active_membership", start, nil)
		return nil, nil
	}
	s.observe("find_active_membership", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace member: %w", err)
	}
	return member, nil
}

// FindMembershipsForUser returns every active membership of userID across
// all workspaces.
func (s *Store) FindMembershipsForUser(ctx context.Context, userID string) ([]*authz.WorkspaceMember, error) {
	query := `
		SELECT id, workspace_id, user_id, role, permissions, joined_at, is_active
		FROM workspace_members
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY joined_at ASC
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.observe("find_memberships_for_user", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []*authz.WorkspaceMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// FindWorkspace returns workspace metadata by ID, or (nil, nil) when no
// such workspace exists.
func (s *Store) FindWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	query := `
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`

	var ws Workspace
	var description sql.NullString
	start := time.Now()
	err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(
		&ws.ID, &ws.Name, &description, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		s.observe("find_workspace", start, nil)
		return nil, nil
	}
	s.observe("find_workspace", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	ws.Description = description.String
	return &ws, nil
}

// FindOwnedWorkspaceIDs returns the IDs of every workspace owned by userID
func (s *Store) FindOwnedWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT id FROM workspaces WHERE owner_id = $1 ORDER BY created_at ASC`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.observe("find_owned_workspace_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned workspaces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanMember scans a membership row. Custom permissions are stored as a
// JSON array; a NULL or empty column yields no custom permissions.
func scanMember(scanner interface {
	Scan(dest ...interface{}) error
}) (*authz.WorkspaceMember, error) {
	var member authz.WorkspaceMember
	var permissionsJSON sql.NullString

	err := scanner.Scan(
		&member.ID,
		&member.WorkspaceID,
		&member.UserID,
		&member.Role,
		&permissionsJSON,
		&member.JoinedAt,
		&member.IsActive,
	)
	if err != nil {
		return nil, err
	}

	if permissionsJSON.Valid && permissionsJSON.String != "" {
		if err := json.Unmarshal([]byte(permissionsJSON.String), &member.Permissions); err != nil {
			// A corrupt permissions column downgrades to the bare role set
			// rather than failing the membership read.
			member.Permissions = nil
		}
	}
	return &member, nil
}
