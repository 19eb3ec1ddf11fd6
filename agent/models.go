package agent

import "time"

// Agent is a plain directory record. The directory carries no lifecycle
// logic; transactions reference agents by id only.
type Agent struct {
	ID        string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams contains the caller-supplied fields for a new agent.
type CreateParams struct {
	FirstName string
	LastName  string
}
