// Package period owns the planning period lifecycle. Every mutation of
// planning or actuals data consults this ledger before writing.
package period

import (
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/shared"
)

// Status enumerates period lifecycle stages.
type Status string

const (
	StatusOpen   Status = "open"
	StatusLocked Status = "locked"
)

// Period is the monthly planning window, unique per (tenant, year, month).
// LockReason records the justification of the most recent unlock.
type Period struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Year       int
	Month      int
	Status     Status
	LockedAt   *time.Time
	LockedBy   *uuid.UUID
	LockReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Label renders the period as YYYY-MM.
func (p Period) Label() string {
	return Label(p.Year, p.Month)
}

// IsOpen reports whether mutations against this period are allowed.
func (p Period) IsOpen() bool {
	return p.Status == StatusOpen
}

// Label formats a (year, month) pair as YYYY-MM.
func Label(year, month int) string {
	return timeFor(year, month).Format("2006-01")
}

func timeFor(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// CreateInput captures the parameters for a new period.
type CreateInput struct {
	Year  int
	Month int
}

// Validate ensures the period coordinates are coherent.
func (in CreateInput) Validate() error {
	if in.Year < 2000 || in.Year > 2100 {
		return shared.Errorf(shared.CodeValidation, "year %d out of range", in.Year)
	}
	if in.Month < 1 || in.Month > 12 {
		return shared.Errorf(shared.CodeValidation, "month %d out of range", in.Month)
	}
	return nil
}
