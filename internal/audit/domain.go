package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the audit timeline.
type Entry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Entity    string
	EntityID  string
	OldValues map[string]any
	NewValues map[string]any
	Reason    string
	At        time.Time
}

// Filter narrows the timeline. Zero values mean "no filter".
type Filter struct {
	From    time.Time
	To      time.Time
	ActorID *uuid.UUID
	Entity  string
	Action  string
	Page    int
	PerPage int
}
