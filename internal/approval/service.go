package approval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/shared"
)

// RepositoryPort describes read operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (Instance, error)
	GetByActualLine(ctx context.Context, tenantID, actualLineID uuid.UUID) (Instance, error)
	ListPending(ctx context.Context, tenantID uuid.UUID) ([]Instance, error)
}

// TxRepository exposes transactional operations. GetForUpdate locks the
// instance row so concurrent approvers serialize on it.
type TxRepository interface {
	Insert(ctx context.Context, inst Instance) (Instance, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Instance, error)
	UpdateStep(ctx context.Context, step Step) error
	RecordAction(ctx context.Context, action Action) error
	MarkActualApproved(ctx context.Context, tenantID, actualLineID, by uuid.UUID, at time.Time) error
}

// Action is one row of the immutable workflow history.
type Action struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	InstanceID uuid.UUID
	StepID     *uuid.UUID
	Verb       string
	ActorID    uuid.UUID
	Comment    string
	At         time.Time
}

// MasterDataPort resolves approvers from reference data.
type MasterDataPort interface {
	GetResource(ctx context.Context, tenantID, resourceID uuid.UUID) (masterdata.ResourceInfo, error)
	DirectorFor(ctx context.Context, tenantID uuid.UUID, departmentID *uuid.UUID) (*uuid.UUID, error)
}

// Service drives approval instances through their steps.
type Service struct {
	repo   RepositoryPort
	refs   MasterDataPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the approval service.
func NewService(repo RepositoryPort, refs MasterDataPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		refs:   refs,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get fetches an instance with its steps.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id uuid.UUID) (Instance, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// GetByActualLine fetches the instance attached to an actual line.
func (s *Service) GetByActualLine(ctx context.Context, actor shared.Principal, actualLineID uuid.UUID) (Instance, error) {
	return s.repo.GetByActualLine(ctx, actor.TenantID, actualLineID)
}

// Inbox returns pending instances whose current step the caller can act on.
func (s *Service) Inbox(ctx context.Context, actor shared.Principal) ([]Instance, error) {
	pending, err := s.repo.ListPending(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range pending {
		current := inst.CurrentStep()
		if current != nil && actsFor(actor, *current) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// CreateForActual starts the workflow for a freshly signed actual line.
// The first step goes to the resource's RO; the second to the department
// director. When both resolve to the same user the director step is
// skipped at creation, so one approval completes the workflow. Creation is
// idempotent per actual line.
func (s *Service) CreateForActual(ctx context.Context, actor shared.Principal, line allocation.ActualLine) error {
	if existing, err := s.repo.GetByActualLine(ctx, actor.TenantID, line.ID); err == nil && existing.ID != uuid.Nil {
		return nil
	}
	res, err := s.refs.GetResource(ctx, actor.TenantID, line.ResourceID)
	if err != nil {
		return err
	}
	director, err := s.refs.DirectorFor(ctx, actor.TenantID, res.DepartmentID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	inst := Instance{
		ID:           uuid.New(),
		TenantID:     actor.TenantID,
		ActualLineID: line.ID,
		ResourceID:   line.ResourceID,
		Year:         line.Year,
		Month:        line.Month,
		CreatedBy:    actor.UserID,
	}
	roStep := Step{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepOrder:  1,
		Role:       shared.RoleRO,
		ApproverID: res.ROUserID,
		Status:     StepPending,
	}
	directorStep := Step{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepOrder:  2,
		Role:       shared.RoleDirector,
		ApproverID: director,
		Status:     StepPending,
	}
	var skipped bool
	if res.ROUserID != nil && director != nil && *res.ROUserID == *director {
		directorStep.Status = StepSkipped
		directorStep.Comment = "approver already covers the responsible officer step"
		at := now
		directorStep.ActedAt = &at
		skipped = true
	}
	inst.Steps = []Step{roStep, directorStep}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.Insert(ctx, inst)
		if err != nil {
			return err
		}
		if err := tx.RecordAction(ctx, Action{
			ID: uuid.New(), TenantID: actor.TenantID, InstanceID: created.ID,
			Verb: "create", ActorID: actor.UserID, At: now,
		}); err != nil {
			return err
		}
		if skipped {
			stepID := directorStep.ID
			return tx.RecordAction(ctx, Action{
				ID: uuid.New(), TenantID: actor.TenantID, InstanceID: created.ID, StepID: &stepID,
				Verb: "skip", ActorID: actor.UserID, Comment: directorStep.Comment, At: now,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "create", inst.ID, map[string]any{
		"actual_line_id": line.ID.String(),
		"director_step_skipped": skipped,
	}, "")
	return nil
}

// ApproveStep resolves the given step and advances or completes the
// workflow. The step must be the current one.
func (s *Service) ApproveStep(ctx context.Context, actor shared.Principal, instanceID, stepID uuid.UUID, comment string) (Instance, error) {
	return s.act(ctx, actor, instanceID, stepID, comment, false, false)
}

// RejectStep resolves the given step and terminates the workflow.
func (s *Service) RejectStep(ctx context.Context, actor shared.Principal, instanceID, stepID uuid.UUID, comment string) (Instance, error) {
	return s.act(ctx, actor, instanceID, stepID, comment, true, false)
}

// ProxyApprove lets the holder of the immediately preceding, already
// approved step approve the current one on its assignee's behalf. A
// comment explaining the substitution is mandatory.
func (s *Service) ProxyApprove(ctx context.Context, actor shared.Principal, instanceID, stepID uuid.UUID, comment string) (Instance, error) {
	if strings.TrimSpace(comment) == "" {
		return Instance{}, shared.NewError(shared.CodeValidation, "a comment is required for proxy approval")
	}
	return s.act(ctx, actor, instanceID, stepID, comment, false, true)
}

func (s *Service) act(ctx context.Context, actor shared.Principal, instanceID, stepID uuid.UUID, comment string, reject, proxy bool) (Instance, error) {
	var result Instance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inst, err := tx.GetForUpdate(ctx, actor.TenantID, instanceID)
		if err != nil {
			return err
		}
		if inst.Terminal() {
			return shared.Errorf(shared.CodeInstanceTerminal, "instance already %s", inst.Status())
		}
		var target *Step
		for idx := range inst.Steps {
			if inst.Steps[idx].ID == stepID {
				target = &inst.Steps[idx]
			}
		}
		if target == nil {
			return shared.NewError(shared.CodeNotFound, "approval step not found")
		}
		current := inst.CurrentStep()
		if current == nil {
			return shared.Errorf(shared.CodeInstanceTerminal, "no pending steps remain")
		}
		if current.ID != target.ID {
			return shared.NewError(shared.CodeNotCurrentStep, "step is not the current pending step")
		}
		if proxy {
			prior := inst.PriorStep(current.StepOrder)
			if prior == nil {
				return shared.NewError(shared.CodeUnauthorizedRole, "the first step cannot be proxy approved")
			}
			if prior.Status != StepApproved {
				return shared.NewError(shared.CodeNotCurrentStep, "the preceding step has not been approved")
			}
			if !actsFor(actor, *prior) {
				return shared.NewError(shared.CodeUnauthorizedRole, "only the preceding approver may act by proxy")
			}
		} else if !actsFor(actor, *current) {
			return shared.NewError(shared.CodeUnauthorizedRole, "you are not the approver for this step")
		}

		now := s.now().UTC()
		actorID := actor.UserID
		current.ActedBy = &actorID
		current.ActedAt = &now
		current.Comment = comment
		current.IsProxy = proxy
		verb := "approve"
		if reject {
			verb = "reject"
			current.Status = StepRejected
		} else {
			current.Status = StepApproved
			if proxy {
				verb = "proxy_approve"
			}
		}
		if err := tx.UpdateStep(ctx, *current); err != nil {
			return err
		}
		stepID := current.ID
		if err := tx.RecordAction(ctx, Action{
			ID: uuid.New(), TenantID: actor.TenantID, InstanceID: inst.ID, StepID: &stepID,
			Verb: verb, ActorID: actor.UserID, Comment: comment, At: now,
		}); err != nil {
			return err
		}
		if !reject && current.Role == shared.RoleRO {
			if err := tx.MarkActualApproved(ctx, actor.TenantID, inst.ActualLineID, actor.UserID, now); err != nil {
				return err
			}
		}
		result = inst
		return nil
	})
	if err != nil {
		return Instance{}, err
	}
	verb := "approve"
	if reject {
		verb = "reject"
	} else if proxy {
		verb = "proxy_approve"
	}
	s.recordAudit(ctx, actor, verb, result.ID, map[string]any{
		"status": string(result.Status()),
	}, comment)
	return result, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action string, instanceID uuid.UUID, values map[string]any, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID:  actor.TenantID,
		ActorID:   actor.UserID,
		Action:    action,
		Entity:    "ApprovalInstance",
		EntityID:  instanceID.String(),
		NewValues: values,
		Reason:    reason,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record approval audit", slog.Any("error", err))
	}
}
