// Package approval runs the sign-off workflow attached to actual lines.
// An instance carries an ordered list of role-bound steps; the current
// step is always the pending step with the lowest order, and the instance
// becomes terminal on the first rejection or once every step is resolved.
package approval

import (
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/shared"
)

// InstanceStatus enumerates workflow outcomes.
type InstanceStatus string

const (
	InstancePending  InstanceStatus = "pending"
	InstanceApproved InstanceStatus = "approved"
	InstanceRejected InstanceStatus = "rejected"
)

// StepStatus enumerates per-step outcomes.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

// Instance is one run of the approval workflow for a signed actual line.
type Instance struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ActualLineID uuid.UUID
	ResourceID   uuid.UUID
	Year         int
	Month        int
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Steps        []Step
}

// Step is a single role-bound approval stage.
type Step struct {
	ID         uuid.UUID
	InstanceID uuid.UUID
	StepOrder  int
	Role       shared.Role
	ApproverID *uuid.UUID
	Status     StepStatus
	ActedBy    *uuid.UUID
	ActedAt    *time.Time
	Comment    string
	IsProxy    bool
}

// Status derives the workflow outcome from the steps alone, so there is
// no persisted status to drift out of sync. Any rejected step rejects the
// instance; once no pending step remains it is approved.
func (i Instance) Status() InstanceStatus {
	pending := false
	for _, step := range i.Steps {
		switch step.Status {
		case StepRejected:
			return InstanceRejected
		case StepPending:
			pending = true
		}
	}
	if pending {
		return InstancePending
	}
	return InstanceApproved
}

// Terminal reports whether no further actions are possible.
func (i Instance) Terminal() bool {
	return i.Status() != InstancePending
}

// CurrentStep returns the pending step with the lowest order, or nil when
// the workflow has run to completion.
func (i Instance) CurrentStep() *Step {
	var current *Step
	for idx := range i.Steps {
		step := &i.Steps[idx]
		if step.Status != StepPending {
			continue
		}
		if current == nil || step.StepOrder < current.StepOrder {
			current = step
		}
	}
	return current
}

// PriorStep returns the resolved step ordered immediately before the given
// one, or nil for the first step.
func (i Instance) PriorStep(order int) *Step {
	var prior *Step
	for idx := range i.Steps {
		step := &i.Steps[idx]
		if step.StepOrder >= order {
			continue
		}
		if prior == nil || step.StepOrder > prior.StepOrder {
			prior = step
		}
	}
	return prior
}

// actsFor reports whether the principal may act on the step, either as the
// named approver or by holding the step's role.
func actsFor(actor shared.Principal, step Step) bool {
	if step.ApproverID != nil {
		return *step.ApproverID == actor.UserID
	}
	return actor.Role == step.Role
}
