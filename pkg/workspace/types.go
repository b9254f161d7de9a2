package workspace

import "time"

// Workspace is a collaboration space owning canvases, cards, and connections.
// The owner holds the full owner permission set in the workspace regardless of
// whether an explicit membership row exists for them.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
