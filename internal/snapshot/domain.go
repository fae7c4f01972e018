// Package snapshot freezes a period's reconciliation output and raw
// planning lines into immutable, named exports. Snapshots are append
// only: publishing the same period again creates a new record.
package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/reconcile"
)

// LineType tags the origin of a frozen line.
type LineType string

const (
	LineDemand LineType = "demand"
	LineSupply LineType = "supply"
	LineActual LineType = "actual"
)

// Line is one frozen planning line with names denormalized at publish
// time, so later master-data edits cannot change history.
type Line struct {
	ID              uuid.UUID
	SnapshotID      uuid.UUID
	Type            LineType
	ProjectID       *uuid.UUID
	ProjectName     string
	ResourceID      *uuid.UUID
	ResourceName    string
	PlaceholderID   *uuid.UUID
	PlaceholderName string
	Year            int
	Month           int
	FtePercent      int
}

// Snapshot is one published export: the dashboard as computed at publish
// time plus every contributing line.
type Snapshot struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	PeriodID    uuid.UUID
	Name        string
	Description string
	PublishedBy uuid.UUID
	PublishedAt time.Time
	Dashboard   reconcile.Dashboard
	Lines       []Line
}
