package period

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, tenantID uuid.UUID) ([]Period, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Period, error)
	GetByYearMonth(ctx context.Context, tenantID uuid.UUID, year, month int) (Period, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, p Period) (Period, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Period, error)
	UpdateStatus(ctx context.Context, p Period) error
}

// Service orchestrates the period lifecycle.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
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

// List returns the tenant's periods, newest first.
func (s *Service) List(ctx context.Context, actor shared.Principal) ([]Period, error) {
	return s.repo.List(ctx, actor.TenantID)
}

// Get returns a single period.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id uuid.UUID) (Period, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// GetCurrent returns the period covering the current month, if created.
func (s *Service) GetCurrent(ctx context.Context, actor shared.Principal) (Period, error) {
	now := s.now().UTC()
	return s.repo.GetByYearMonth(ctx, actor.TenantID, now.Year(), int(now.Month()))
}

// Create opens a new period. Duplicate (tenant, year, month) fails with
// CONFLICT.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	p := Period{
		ID:       uuid.New(),
		TenantID: actor.TenantID,
		Year:     in.Year,
		Month:    in.Month,
		Status:   StatusOpen,
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		created, e = tx.Insert(ctx, p)
		return e
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor, "create", created.ID, nil, map[string]any{
		"year": created.Year, "month": created.Month, "status": string(created.Status),
	}, "")
	return created, nil
}

// Lock transitions open -> locked, stamping actor and time. Locking an
// already locked period fails with INVALID_STATE.
func (s *Service) Lock(ctx context.Context, actor shared.Principal, id uuid.UUID) (Period, error) {
	var locked Period
	var oldStatus Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if p.Status == StatusLocked {
			return shared.Errorf(shared.CodeInvalidState, "period %s is already locked", p.Label())
		}
		oldStatus = p.Status
		now := s.now().UTC()
		p.Status = StatusLocked
		p.LockedAt = &now
		actorID := actor.UserID
		p.LockedBy = &actorID
		p.LockReason = ""
		if err := tx.UpdateStatus(ctx, p); err != nil {
			return err
		}
		locked = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor, "lock", locked.ID,
		map[string]any{"status": string(oldStatus)},
		map[string]any{"status": string(StatusLocked), "locked_at": locked.LockedAt.Format(time.RFC3339)},
		"")
	return locked, nil
}

// Unlock transitions locked -> open and requires a non-empty reason, which
// is written to the audit trail.
func (s *Service) Unlock(ctx context.Context, actor shared.Principal, id uuid.UUID, reason string) (Period, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Period{}, shared.NewError(shared.CodeValidation, "a reason is required to unlock a period")
	}
	var unlocked Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if p.Status == StatusOpen {
			return shared.Errorf(shared.CodeInvalidState, "period %s is already open", p.Label())
		}
		p.Status = StatusOpen
		p.LockReason = reason
		if err := tx.UpdateStatus(ctx, p); err != nil {
			return err
		}
		unlocked = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor, "unlock", unlocked.ID,
		map[string]any{"status": string(StatusLocked)},
		map[string]any{"status": string(StatusOpen)},
		reason)
	return unlocked, nil
}

// IsOpen reports whether the period accepts writes. Callers performing
// mutations must not rely on this check alone: the allocation store
// re-validates openness inside its own transaction.
func (s *Service) IsOpen(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	p, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	return p.IsOpen(), nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, action string, entityID uuid.UUID, oldValues, newValues map[string]any, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID:  actor.TenantID,
		ActorID:   actor.UserID,
		Action:    action,
		Entity:    "Period",
		EntityID:  entityID.String(),
		OldValues: oldValues,
		NewValues: newValues,
		Reason:    reason,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record period audit", slog.Any("error", err))
	}
}
