// Package allocation holds demand, supply and actual lines and enforces the
// write-side invariants: open-period gating, FTE step validation, the
// demand resource-XOR-placeholder rule, and the per-resource 100% actuals
// ceiling.
package allocation

import (
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/shared"
)

// DemandLine requests FTE capacity for a project, satisfied by exactly one
// of a named resource or a placeholder.
type DemandLine struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PeriodID      uuid.UUID
	Year          int
	Month         int
	ProjectID     uuid.UUID
	ResourceID    *uuid.UUID
	PlaceholderID *uuid.UUID
	FtePercent    int
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SupplyLine declares a resource's availability for a period.
type SupplyLine struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PeriodID   uuid.UUID
	Year       int
	Month      int
	ResourceID uuid.UUID
	ProjectID  *uuid.UUID
	FtePercent int
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActualLine records real FTE spent, subject to employee sign-off and the
// downstream approval workflow. Signing is terminal for the line.
type ActualLine struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	PeriodID          uuid.UUID
	Year              int
	Month             int
	ResourceID        uuid.UUID
	ProjectID         uuid.UUID
	PlannedFtePercent *int
	ActualFtePercent  int
	EmployeeSignedAt  *time.Time
	EmployeeSignedBy  *uuid.UUID
	IsProxySigned     bool
	ProxySignReason   string
	ROApprovedAt      *time.Time
	ROApprovedBy      *uuid.UUID
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Signed reports whether the line has been signed by or on behalf of the
// employee.
func (a ActualLine) Signed() bool {
	return a.EmployeeSignedAt != nil
}

// ValidateFte checks the 5%-step constraint. Actual lines may record 0 to
// state "no time spent"; demand and supply must be in [5,100].
func ValidateFte(v int, allowZero bool) error {
	if allowZero && v == 0 {
		return nil
	}
	if v < 5 || v > 100 || v%5 != 0 {
		return shared.NewError(shared.CodeFteInvalid, "FTE must be between 5 and 100 in steps of 5")
	}
	return nil
}

// ValidateAssignment enforces the demand resource-XOR-placeholder rule.
func ValidateAssignment(resourceID, placeholderID *uuid.UUID) error {
	if resourceID != nil && placeholderID != nil {
		return shared.NewError(shared.CodeDemandXOR, "cannot specify both resource_id and placeholder_id")
	}
	if resourceID == nil && placeholderID == nil {
		return shared.NewError(shared.CodeDemandXOR, "either resource_id or placeholder_id is required")
	}
	return nil
}

// monthIndex flattens a calendar coordinate for window comparisons.
func monthIndex(year, month int) int {
	return year*12 + (month - 1)
}

// PlaceholderAllowed applies the four-month forward-commitment window:
// placeholder-backed demand may only be planned in months at least four
// months ahead of now.
func PlaceholderAllowed(now time.Time, year, month int) bool {
	boundary := now.UTC().AddDate(0, 4, 0)
	return monthIndex(year, month) >= monthIndex(boundary.Year(), int(boundary.Month()))
}

// DemandInput carries create/update parameters for demand lines.
type DemandInput struct {
	ProjectID     uuid.UUID
	Year          int
	Month         int
	FtePercent    int
	ResourceID    *uuid.UUID
	PlaceholderID *uuid.UUID
}

// SupplyInput carries create/update parameters for supply lines.
type SupplyInput struct {
	ResourceID uuid.UUID
	ProjectID  *uuid.UUID
	Year       int
	Month      int
	FtePercent int
}

// ActualInput carries create parameters for actual lines.
type ActualInput struct {
	ResourceID       uuid.UUID
	ProjectID        uuid.UUID
	Year             int
	Month            int
	ActualFtePercent int
}

// LineFilter narrows list queries.
type LineFilter struct {
	Year       int
	Month      int
	ProjectID  *uuid.UUID
	ResourceID *uuid.UUID
}
