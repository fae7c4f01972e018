package allocation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/shared"
)

// RepositoryPort describes read operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDemand(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error)
	GetSupply(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error)
	GetActual(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error)
	ListDemand(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]DemandLine, error)
	ListSupply(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]SupplyLine, error)
	ListActuals(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]ActualLine, error)
}

// TxRepository exposes transactional operations. PeriodForShare pins the
// period row for the duration of the transaction so a concurrent lock()
// cannot land between the openness check and the write.
type TxRepository interface {
	PeriodForShare(ctx context.Context, tenantID uuid.UUID, year, month int) (period.Period, error)
	AcquireActualsLock(ctx context.Context, key int64) error

	InsertDemand(ctx context.Context, line DemandLine) (DemandLine, error)
	UpdateDemand(ctx context.Context, line DemandLine) error
	DeleteDemand(ctx context.Context, tenantID, id uuid.UUID) error
	GetDemandForUpdate(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error)
	DemandTotalFor(ctx context.Context, tenantID, resourceID, projectID uuid.UUID, year, month int) (int, bool, error)

	InsertSupply(ctx context.Context, line SupplyLine) (SupplyLine, error)
	UpdateSupply(ctx context.Context, line SupplyLine) error
	DeleteSupply(ctx context.Context, tenantID, id uuid.UUID) error
	GetSupplyForUpdate(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error)

	InsertActual(ctx context.Context, line ActualLine) (ActualLine, error)
	UpdateActual(ctx context.Context, line ActualLine) error
	DeleteActual(ctx context.Context, tenantID, id uuid.UUID) error
	GetActualForUpdate(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error)
	ActualsForResource(ctx context.Context, tenantID, resourceID uuid.UUID, year, month int) ([]ActualLine, error)
}

// MasterDataPort validates referential existence and resolves placement.
type MasterDataPort interface {
	GetResource(ctx context.Context, tenantID, resourceID uuid.UUID) (masterdata.ResourceInfo, error)
	GetProject(ctx context.Context, tenantID, projectID uuid.UUID) (masterdata.ProjectInfo, error)
	GetPlaceholder(ctx context.Context, tenantID, placeholderID uuid.UUID) (masterdata.PlaceholderInfo, error)
}

// ApprovalPort starts the sign-off workflow once an actual line is signed.
type ApprovalPort interface {
	CreateForActual(ctx context.Context, actor shared.Principal, line ActualLine) error
}

// DashboardInvalidator busts cached reconciliation output after writes.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context, tenantID, periodID uuid.UUID)
}

// Service orchestrates allocation line mutations.
type Service struct {
	repo      RepositoryPort
	refs      MasterDataPort
	approvals ApprovalPort
	audit     shared.AuditRecorder
	cache     DashboardInvalidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the allocation service.
func NewService(repo RepositoryPort, refs MasterDataPort, approvals ApprovalPort, audit shared.AuditRecorder, cache DashboardInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		refs:      refs,
		approvals: approvals,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func periodLockedError(p period.Period) error {
	return shared.Errorf(shared.CodePeriodLocked, "period %s is locked, no edits allowed", p.Label()).
		With("period_id", p.ID.String()).
		With("year", p.Year).
		With("month", p.Month)
}

func requireOpen(p period.Period) error {
	if !p.IsOpen() {
		return periodLockedError(p)
	}
	return nil
}

// ---------------------------------------------------------------- demand

// ListDemand returns demand lines matching the filter.
func (s *Service) ListDemand(ctx context.Context, actor shared.Principal, f LineFilter) ([]DemandLine, error) {
	return s.repo.ListDemand(ctx, actor.TenantID, f)
}

// CreateDemand validates and inserts a demand line inside the period gate.
func (s *Service) CreateDemand(ctx context.Context, actor shared.Principal, in DemandInput) (DemandLine, error) {
	if err := ValidateFte(in.FtePercent, false); err != nil {
		return DemandLine{}, err
	}
	if err := ValidateAssignment(in.ResourceID, in.PlaceholderID); err != nil {
		return DemandLine{}, err
	}
	if in.PlaceholderID != nil && !PlaceholderAllowed(s.now(), in.Year, in.Month) {
		return DemandLine{}, shared.NewError(shared.CodePlaceholderBlocked,
			"placeholders are only allowed four or more months ahead")
	}
	if _, err := s.refs.GetProject(ctx, actor.TenantID, in.ProjectID); err != nil {
		return DemandLine{}, err
	}
	if in.ResourceID != nil {
		if _, err := s.refs.GetResource(ctx, actor.TenantID, *in.ResourceID); err != nil {
			return DemandLine{}, err
		}
	}
	if in.PlaceholderID != nil {
		if _, err := s.refs.GetPlaceholder(ctx, actor.TenantID, *in.PlaceholderID); err != nil {
			return DemandLine{}, err
		}
	}
	line := DemandLine{
		ID:            uuid.New(),
		TenantID:      actor.TenantID,
		Year:          in.Year,
		Month:         in.Month,
		ProjectID:     in.ProjectID,
		ResourceID:    in.ResourceID,
		PlaceholderID: in.PlaceholderID,
		FtePercent:    in.FtePercent,
		CreatedBy:     actor.UserID,
	}
	var created DemandLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PeriodForShare(ctx, actor.TenantID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		line.PeriodID = p.ID
		created, err = tx.InsertDemand(ctx, line)
		return err
	})
	if err != nil {
		return DemandLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, created.PeriodID)
	s.recordAudit(ctx, actor, "create", "DemandLine", created.ID, nil, map[string]any{
		"project_id": created.ProjectID.String(), "fte_percent": created.FtePercent,
		"year": created.Year, "month": created.Month,
	}, "")
	return created, nil
}

// DemandUpdate carries mutable demand fields.
type DemandUpdate struct {
	FtePercent    int
	ResourceID    *uuid.UUID
	PlaceholderID *uuid.UUID
}

// UpdateDemand changes FTE or the assignment on an existing line.
func (s *Service) UpdateDemand(ctx context.Context, actor shared.Principal, id uuid.UUID, in DemandUpdate) (DemandLine, error) {
	if err := ValidateFte(in.FtePercent, false); err != nil {
		return DemandLine{}, err
	}
	if err := ValidateAssignment(in.ResourceID, in.PlaceholderID); err != nil {
		return DemandLine{}, err
	}
	var updated DemandLine
	var oldFte int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetDemandForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		if in.PlaceholderID != nil && line.PlaceholderID == nil && !PlaceholderAllowed(s.now(), line.Year, line.Month) {
			return shared.NewError(shared.CodePlaceholderBlocked,
				"placeholders are only allowed four or more months ahead")
		}
		oldFte = line.FtePercent
		line.FtePercent = in.FtePercent
		line.ResourceID = in.ResourceID
		line.PlaceholderID = in.PlaceholderID
		if err := tx.UpdateDemand(ctx, line); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return DemandLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, updated.PeriodID)
	s.recordAudit(ctx, actor, "update", "DemandLine", updated.ID,
		map[string]any{"fte_percent": oldFte},
		map[string]any{"fte_percent": updated.FtePercent}, "")
	return updated, nil
}

// DeleteDemand removes a demand line while the period is open.
func (s *Service) DeleteDemand(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	var periodID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetDemandForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		periodID = line.PeriodID
		return tx.DeleteDemand(ctx, actor.TenantID, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, actor.TenantID, periodID)
	s.recordAudit(ctx, actor, "delete", "DemandLine", id, nil, nil, "")
	return nil
}

// ---------------------------------------------------------------- supply

// ListSupply returns supply lines matching the filter.
func (s *Service) ListSupply(ctx context.Context, actor shared.Principal, f LineFilter) ([]SupplyLine, error) {
	return s.repo.ListSupply(ctx, actor.TenantID, f)
}

// CreateSupply validates and inserts a supply line inside the period gate.
func (s *Service) CreateSupply(ctx context.Context, actor shared.Principal, in SupplyInput) (SupplyLine, error) {
	if err := ValidateFte(in.FtePercent, false); err != nil {
		return SupplyLine{}, err
	}
	if _, err := s.refs.GetResource(ctx, actor.TenantID, in.ResourceID); err != nil {
		return SupplyLine{}, err
	}
	if in.ProjectID != nil {
		if _, err := s.refs.GetProject(ctx, actor.TenantID, *in.ProjectID); err != nil {
			return SupplyLine{}, err
		}
	}
	line := SupplyLine{
		ID:         uuid.New(),
		TenantID:   actor.TenantID,
		Year:       in.Year,
		Month:      in.Month,
		ResourceID: in.ResourceID,
		ProjectID:  in.ProjectID,
		FtePercent: in.FtePercent,
		CreatedBy:  actor.UserID,
	}
	var created SupplyLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PeriodForShare(ctx, actor.TenantID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		line.PeriodID = p.ID
		created, err = tx.InsertSupply(ctx, line)
		return err
	})
	if err != nil {
		return SupplyLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, created.PeriodID)
	s.recordAudit(ctx, actor, "create", "SupplyLine", created.ID, nil, map[string]any{
		"resource_id": created.ResourceID.String(), "fte_percent": created.FtePercent,
		"year": created.Year, "month": created.Month,
	}, "")
	return created, nil
}

// UpdateSupply changes the declared FTE on an existing line.
func (s *Service) UpdateSupply(ctx context.Context, actor shared.Principal, id uuid.UUID, ftePercent int) (SupplyLine, error) {
	if err := ValidateFte(ftePercent, false); err != nil {
		return SupplyLine{}, err
	}
	var updated SupplyLine
	var oldFte int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetSupplyForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		oldFte = line.FtePercent
		line.FtePercent = ftePercent
		if err := tx.UpdateSupply(ctx, line); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return SupplyLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, updated.PeriodID)
	s.recordAudit(ctx, actor, "update", "SupplyLine", updated.ID,
		map[string]any{"fte_percent": oldFte},
		map[string]any{"fte_percent": updated.FtePercent}, "")
	return updated, nil
}

// DeleteSupply removes a supply line while the period is open.
func (s *Service) DeleteSupply(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	var periodID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetSupplyForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		periodID = line.PeriodID
		return tx.DeleteSupply(ctx, actor.TenantID, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, actor.TenantID, periodID)
	s.recordAudit(ctx, actor, "delete", "SupplyLine", id, nil, nil, "")
	return nil
}

// ---------------------------------------------------------------- actuals

// ListActuals returns actual lines matching the filter.
func (s *Service) ListActuals(ctx context.Context, actor shared.Principal, f LineFilter) ([]ActualLine, error) {
	return s.repo.ListActuals(ctx, actor.TenantID, f)
}

// ListMyActuals returns the actual lines of the caller's own resource.
func (s *Service) ListMyActuals(ctx context.Context, actor shared.Principal, f LineFilter) ([]ActualLine, error) {
	if !actor.HasResource() {
		return nil, nil
	}
	resourceID := actor.ResourceID
	f.ResourceID = &resourceID
	return s.repo.ListActuals(ctx, actor.TenantID, f)
}

func (s *Service) requireActualOwnership(actor shared.Principal, resourceID uuid.UUID) error {
	if actor.Role != shared.RoleEmployee {
		return nil
	}
	if actor.ResourceID != resourceID {
		return shared.NewError(shared.CodeUnauthorizedRole, "employees may only record their own actuals")
	}
	return nil
}

// CreateActual inserts an actual line. The per-resource 100% ceiling is
// checked against a consistent read of the resource's lines, serialized by
// an advisory lock so concurrent writes cannot jointly exceed the limit.
func (s *Service) CreateActual(ctx context.Context, actor shared.Principal, in ActualInput) (ActualLine, error) {
	if err := ValidateFte(in.ActualFtePercent, true); err != nil {
		return ActualLine{}, err
	}
	if err := s.requireActualOwnership(actor, in.ResourceID); err != nil {
		return ActualLine{}, err
	}
	if _, err := s.refs.GetResource(ctx, actor.TenantID, in.ResourceID); err != nil {
		return ActualLine{}, err
	}
	if _, err := s.refs.GetProject(ctx, actor.TenantID, in.ProjectID); err != nil {
		return ActualLine{}, err
	}
	line := ActualLine{
		ID:               uuid.New(),
		TenantID:         actor.TenantID,
		Year:             in.Year,
		Month:            in.Month,
		ResourceID:       in.ResourceID,
		ProjectID:        in.ProjectID,
		ActualFtePercent: in.ActualFtePercent,
		CreatedBy:        actor.UserID,
	}
	var created ActualLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PeriodForShare(ctx, actor.TenantID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		line.PeriodID = p.ID
		if err := tx.AcquireActualsLock(ctx, shared.ActualsLockKey(actor.TenantID, in.ResourceID, p.ID)); err != nil {
			return err
		}
		existing, err := tx.ActualsForResource(ctx, actor.TenantID, in.ResourceID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if err := checkCeiling(existing, in.ActualFtePercent, in.ResourceID, in.Year, in.Month, uuid.Nil); err != nil {
			return err
		}
		for _, e := range existing {
			if e.ProjectID == in.ProjectID {
				return shared.NewError(shared.CodeConflict,
					"an actual line already exists for this resource/project/month")
			}
		}
		planned, found, err := tx.DemandTotalFor(ctx, actor.TenantID, in.ResourceID, in.ProjectID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if found {
			line.PlannedFtePercent = &planned
		}
		created, err = tx.InsertActual(ctx, line)
		return err
	})
	if err != nil {
		return ActualLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, created.PeriodID)
	s.recordAudit(ctx, actor, "create", "ActualLine", created.ID, nil, map[string]any{
		"resource_id": created.ResourceID.String(), "project_id": created.ProjectID.String(),
		"actual_fte_percent": created.ActualFtePercent, "year": created.Year, "month": created.Month,
	}, "")
	return created, nil
}

// UpdateActual changes the recorded FTE on an unsigned line.
func (s *Service) UpdateActual(ctx context.Context, actor shared.Principal, id uuid.UUID, ftePercent int) (ActualLine, error) {
	if err := ValidateFte(ftePercent, true); err != nil {
		return ActualLine{}, err
	}
	var updated ActualLine
	var oldFte int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetActualForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if err := s.requireActualOwnership(actor, line.ResourceID); err != nil {
			return err
		}
		if line.Signed() {
			return shared.NewError(shared.CodeAlreadySigned, "cannot edit signed actuals")
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		if err := tx.AcquireActualsLock(ctx, shared.ActualsLockKey(actor.TenantID, line.ResourceID, p.ID)); err != nil {
			return err
		}
		existing, err := tx.ActualsForResource(ctx, actor.TenantID, line.ResourceID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := checkCeiling(existing, ftePercent, line.ResourceID, line.Year, line.Month, line.ID); err != nil {
			return err
		}
		oldFte = line.ActualFtePercent
		line.ActualFtePercent = ftePercent
		if err := tx.UpdateActual(ctx, line); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return ActualLine{}, err
	}
	s.invalidate(ctx, actor.TenantID, updated.PeriodID)
	s.recordAudit(ctx, actor, "update", "ActualLine", updated.ID,
		map[string]any{"actual_fte_percent": oldFte},
		map[string]any{"actual_fte_percent": updated.ActualFtePercent}, "")
	return updated, nil
}

// DeleteActual removes an unsigned actual line.
func (s *Service) DeleteActual(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	var periodID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetActualForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if err := s.requireActualOwnership(actor, line.ResourceID); err != nil {
			return err
		}
		if line.Signed() {
			return shared.NewError(shared.CodeAlreadySigned, "cannot delete signed actuals")
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		periodID = line.PeriodID
		return tx.DeleteActual(ctx, actor.TenantID, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, actor.TenantID, periodID)
	s.recordAudit(ctx, actor, "delete", "ActualLine", id, nil, nil, "")
	return nil
}

// Sign records the employee's sign-off and starts the approval workflow.
// Signing is terminal for the line.
func (s *Service) Sign(ctx context.Context, actor shared.Principal, id uuid.UUID) (ActualLine, error) {
	return s.sign(ctx, actor, id, false, "")
}

// ProxySign records an RO sign-off on behalf of an absent employee. The
// reason is mandatory and lands in the audit trail.
func (s *Service) ProxySign(ctx context.Context, actor shared.Principal, id uuid.UUID, reason string) (ActualLine, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ActualLine{}, shared.NewError(shared.CodeValidation, "a reason is required for proxy signing")
	}
	return s.sign(ctx, actor, id, true, reason)
}

func (s *Service) sign(ctx context.Context, actor shared.Principal, id uuid.UUID, proxy bool, reason string) (ActualLine, error) {
	var signed ActualLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetActualForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if line.Signed() {
			return shared.NewError(shared.CodeAlreadySigned, "actuals already signed")
		}
		if !proxy {
			if !actor.HasResource() || actor.ResourceID != line.ResourceID {
				return shared.NewError(shared.CodeUnauthorizedRole, "only the resource owner may sign their actuals")
			}
		}
		p, err := tx.PeriodForShare(ctx, actor.TenantID, line.Year, line.Month)
		if err != nil {
			return err
		}
		if err := requireOpen(p); err != nil {
			return err
		}
		now := s.now().UTC()
		actorID := actor.UserID
		line.EmployeeSignedAt = &now
		line.EmployeeSignedBy = &actorID
		line.IsProxySigned = proxy
		line.ProxySignReason = reason
		if err := tx.UpdateActual(ctx, line); err != nil {
			return err
		}
		signed = line
		return nil
	})
	if err != nil {
		return ActualLine{}, err
	}
	if s.approvals != nil {
		if err := s.approvals.CreateForActual(ctx, actor, signed); err != nil && s.logger != nil {
			s.logger.Error("create approval instance", slog.String("actual_id", signed.ID.String()), slog.Any("error", err))
		}
	}
	action := "sign"
	if proxy {
		action = "proxy_sign"
	}
	s.recordAudit(ctx, actor, action, "ActualLine", signed.ID, nil, map[string]any{
		"employee_signed_at": signed.EmployeeSignedAt.Format(time.RFC3339),
		"is_proxy_signed":    signed.IsProxySigned,
	}, reason)
	return signed, nil
}

// checkCeiling enforces the 100% per-resource ceiling, reporting the IDs
// that make up the offending total.
func checkCeiling(existing []ActualLine, candidate int, resourceID uuid.UUID, year, month int, excludeID uuid.UUID) error {
	total := candidate
	var offending []string
	for _, line := range existing {
		if line.ID == excludeID {
			continue
		}
		total += line.ActualFtePercent
		offending = append(offending, line.ID.String())
	}
	if total > 100 {
		return shared.Errorf(shared.CodeActualsOver100,
			"total actuals would be %d%%, which exceeds the 100%% limit", total).
			With("total_percent", total).
			With("offending_line_ids", offending).
			With("resource_id", resourceID.String()).
			With("year", year).
			With("month", month)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, tenantID, periodID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID, periodID)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action, entity string, entityID uuid.UUID, oldValues, newValues map[string]any, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID:  actor.TenantID,
		ActorID:   actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID.String(),
		OldValues: oldValues,
		NewValues: newValues,
		Reason:    reason,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record allocation audit", slog.Any("error", err))
	}
}
