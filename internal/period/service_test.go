package period

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/shared"
)

type memoryPeriodRepo struct {
	periods map[uuid.UUID]Period
}

type memoryPeriodTx struct {
	repo *memoryPeriodRepo
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{periods: make(map[uuid.UUID]Period)}
}

func (r *memoryPeriodRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPeriodTx{repo: r})
}

func (r *memoryPeriodRepo) List(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPeriodRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (Period, error) {
	p, ok := r.periods[id]
	if !ok || p.TenantID != tenantID {
		return Period{}, shared.NewError(shared.CodeNotFound, "period not found")
	}
	return p, nil
}

func (r *memoryPeriodRepo) GetByYearMonth(ctx context.Context, tenantID uuid.UUID, year, month int) (Period, error) {
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.Year == year && p.Month == month {
			return p, nil
		}
	}
	return Period{}, shared.NewError(shared.CodeNotFound, "period not found")
}

func (t *memoryPeriodTx) Insert(ctx context.Context, p Period) (Period, error) {
	for _, existing := range t.repo.periods {
		if existing.TenantID == p.TenantID && existing.Year == p.Year && existing.Month == p.Month {
			return Period{}, shared.Errorf(shared.CodeConflict, "period %s already exists", p.Label())
		}
	}
	t.repo.periods[p.ID] = p
	return p, nil
}

func (t *memoryPeriodTx) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Period, error) {
	return t.repo.Get(ctx, tenantID, id)
}

func (t *memoryPeriodTx) UpdateStatus(ctx context.Context, p Period) error {
	t.repo.periods[p.ID] = p
	return nil
}

type recordedAudit struct {
	logs []shared.AuditLog
}

func (a *recordedAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func testActor() shared.Principal {
	return shared.Principal{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Role:     shared.RoleFinance,
	}
}

func TestCreatePeriodRejectsDuplicate(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &recordedAudit{}, nil)
	actor := testActor()

	_, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 3})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 3})
	require.Error(t, err)
	require.Equal(t, shared.CodeConflict, shared.CodeOf(err))
}

func TestCreatePeriodValidatesCoordinates(t *testing.T) {
	svc := NewService(newMemoryPeriodRepo(), &recordedAudit{}, nil)
	actor := testActor()

	_, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 13})
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))

	_, err = svc.Create(context.Background(), actor, CreateInput{Year: 1999, Month: 1})
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestLockThenUnlockRoundTrip(t *testing.T) {
	repo := newMemoryPeriodRepo()
	audit := &recordedAudit{}
	svc := NewService(repo, audit, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	actor := testActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 3})
	require.NoError(t, err)
	require.True(t, created.IsOpen())

	locked, err := svc.Lock(context.Background(), actor, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusLocked, locked.Status)
	require.NotNil(t, locked.LockedAt)
	require.Equal(t, actor.UserID, *locked.LockedBy)

	_, err = svc.Lock(context.Background(), actor, created.ID)
	require.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))

	unlocked, err := svc.Unlock(context.Background(), actor, created.ID, "late correction from finance")
	require.NoError(t, err)
	require.Equal(t, StatusOpen, unlocked.Status)
	require.Equal(t, "late correction from finance", unlocked.LockReason)

	_, err = svc.Unlock(context.Background(), actor, created.ID, "again")
	require.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))
}

func TestUnlockRequiresReason(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &recordedAudit{}, nil)
	actor := testActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 4})
	require.NoError(t, err)
	_, err = svc.Lock(context.Background(), actor, created.ID)
	require.NoError(t, err)

	_, err = svc.Unlock(context.Background(), actor, created.ID, "   ")
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestUnlockAuditCarriesReason(t *testing.T) {
	repo := newMemoryPeriodRepo()
	audit := &recordedAudit{}
	svc := NewService(repo, audit, nil)
	actor := testActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 5})
	require.NoError(t, err)
	_, err = svc.Lock(context.Background(), actor, created.ID)
	require.NoError(t, err)
	_, err = svc.Unlock(context.Background(), actor, created.ID, "payroll restatement")
	require.NoError(t, err)

	require.Len(t, audit.logs, 3)
	last := audit.logs[len(audit.logs)-1]
	require.Equal(t, "unlock", last.Action)
	require.Equal(t, "payroll restatement", last.Reason)
	require.Equal(t, actor.UserID, last.ActorID)
}

func TestIsOpenReflectsStatus(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &recordedAudit{}, nil)
	actor := testActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Year: 2024, Month: 6})
	require.NoError(t, err)

	open, err := svc.IsOpen(context.Background(), actor.TenantID, created.ID)
	require.NoError(t, err)
	require.True(t, open)

	_, err = svc.Lock(context.Background(), actor, created.ID)
	require.NoError(t, err)

	open, err = svc.IsOpen(context.Background(), actor.TenantID, created.ID)
	require.NoError(t, err)
	require.False(t, open)
}

func TestGetCurrentUsesClock(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo, &recordedAudit{}, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC) })
	actor := testActor()

	created, err := svc.Create(context.Background(), actor, CreateInput{Year: 2025, Month: 11})
	require.NoError(t, err)

	current, err := svc.GetCurrent(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, created.ID, current.ID)
}
