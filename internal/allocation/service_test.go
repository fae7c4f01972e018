package allocation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/shared"
)

type memoryLineRepo struct {
	periods map[uuid.UUID]period.Period
	demand  map[uuid.UUID]DemandLine
	supply  map[uuid.UUID]SupplyLine
	actuals map[uuid.UUID]ActualLine
}

func newMemoryLineRepo() *memoryLineRepo {
	return &memoryLineRepo{
		periods: make(map[uuid.UUID]period.Period),
		demand:  make(map[uuid.UUID]DemandLine),
		supply:  make(map[uuid.UUID]SupplyLine),
		actuals: make(map[uuid.UUID]ActualLine),
	}
}

func (r *memoryLineRepo) addPeriod(tenantID uuid.UUID, year, month int, status period.Status) period.Period {
	p := period.Period{ID: uuid.New(), TenantID: tenantID, Year: year, Month: month, Status: status}
	r.periods[p.ID] = p
	return p
}

type memoryLineTx struct {
	repo *memoryLineRepo
}

func (r *memoryLineRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryLineTx{repo: r})
}

func (r *memoryLineRepo) GetDemand(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error) {
	line, ok := r.demand[id]
	if !ok || line.TenantID != tenantID {
		return DemandLine{}, shared.NewError(shared.CodeNotFound, "demand line not found")
	}
	return line, nil
}

func (r *memoryLineRepo) GetSupply(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error) {
	line, ok := r.supply[id]
	if !ok || line.TenantID != tenantID {
		return SupplyLine{}, shared.NewError(shared.CodeNotFound, "supply line not found")
	}
	return line, nil
}

func (r *memoryLineRepo) GetActual(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error) {
	line, ok := r.actuals[id]
	if !ok || line.TenantID != tenantID {
		return ActualLine{}, shared.NewError(shared.CodeNotFound, "actual line not found")
	}
	return line, nil
}

func matchFilter(tenantID uuid.UUID, lineTenant uuid.UUID, year, month int, projectID uuid.UUID, resourceID *uuid.UUID, f LineFilter) bool {
	if lineTenant != tenantID {
		return false
	}
	if f.Year != 0 && f.Year != year {
		return false
	}
	if f.Month != 0 && f.Month != month {
		return false
	}
	if f.ProjectID != nil && *f.ProjectID != projectID {
		return false
	}
	if f.ResourceID != nil && (resourceID == nil || *f.ResourceID != *resourceID) {
		return false
	}
	return true
}

func (r *memoryLineRepo) ListDemand(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]DemandLine, error) {
	var out []DemandLine
	for _, line := range r.demand {
		if matchFilter(tenantID, line.TenantID, line.Year, line.Month, line.ProjectID, line.ResourceID, f) {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryLineRepo) ListSupply(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]SupplyLine, error) {
	var out []SupplyLine
	for _, line := range r.supply {
		rid := line.ResourceID
		var pid uuid.UUID
		if line.ProjectID != nil {
			pid = *line.ProjectID
		}
		if matchFilter(tenantID, line.TenantID, line.Year, line.Month, pid, &rid, f) {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryLineRepo) ListActuals(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]ActualLine, error) {
	var out []ActualLine
	for _, line := range r.actuals {
		rid := line.ResourceID
		if matchFilter(tenantID, line.TenantID, line.Year, line.Month, line.ProjectID, &rid, f) {
			out = append(out, line)
		}
	}
	return out, nil
}

func (t *memoryLineTx) PeriodForShare(ctx context.Context, tenantID uuid.UUID, year, month int) (period.Period, error) {
	for _, p := range t.repo.periods {
		if p.TenantID == tenantID && p.Year == year && p.Month == month {
			return p, nil
		}
	}
	return period.Period{}, shared.Errorf(shared.CodeNotFound, "period %s does not exist", period.Label(year, month))
}

func (t *memoryLineTx) AcquireActualsLock(ctx context.Context, key int64) error { return nil }

func (t *memoryLineTx) InsertDemand(ctx context.Context, line DemandLine) (DemandLine, error) {
	t.repo.demand[line.ID] = line
	return line, nil
}

func (t *memoryLineTx) UpdateDemand(ctx context.Context, line DemandLine) error {
	t.repo.demand[line.ID] = line
	return nil
}

func (t *memoryLineTx) DeleteDemand(ctx context.Context, tenantID, id uuid.UUID) error {
	delete(t.repo.demand, id)
	return nil
}

func (t *memoryLineTx) GetDemandForUpdate(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error) {
	return t.repo.GetDemand(ctx, tenantID, id)
}

func (t *memoryLineTx) DemandTotalFor(ctx context.Context, tenantID, resourceID, projectID uuid.UUID, year, month int) (int, bool, error) {
	total, found := 0, false
	for _, line := range t.repo.demand {
		if line.TenantID == tenantID && line.Year == year && line.Month == month &&
			line.ProjectID == projectID && line.ResourceID != nil && *line.ResourceID == resourceID {
			total += line.FtePercent
			found = true
		}
	}
	return total, found, nil
}

func (t *memoryLineTx) InsertSupply(ctx context.Context, line SupplyLine) (SupplyLine, error) {
	t.repo.supply[line.ID] = line
	return line, nil
}

func (t *memoryLineTx) UpdateSupply(ctx context.Context, line SupplyLine) error {
	t.repo.supply[line.ID] = line
	return nil
}

func (t *memoryLineTx) DeleteSupply(ctx context.Context, tenantID, id uuid.UUID) error {
	delete(t.repo.supply, id)
	return nil
}

func (t *memoryLineTx) GetSupplyForUpdate(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error) {
	return t.repo.GetSupply(ctx, tenantID, id)
}

func (t *memoryLineTx) InsertActual(ctx context.Context, line ActualLine) (ActualLine, error) {
	t.repo.actuals[line.ID] = line
	return line, nil
}

func (t *memoryLineTx) UpdateActual(ctx context.Context, line ActualLine) error {
	t.repo.actuals[line.ID] = line
	return nil
}

func (t *memoryLineTx) DeleteActual(ctx context.Context, tenantID, id uuid.UUID) error {
	delete(t.repo.actuals, id)
	return nil
}

func (t *memoryLineTx) GetActualForUpdate(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error) {
	return t.repo.GetActual(ctx, tenantID, id)
}

func (t *memoryLineTx) ActualsForResource(ctx context.Context, tenantID, resourceID uuid.UUID, year, month int) ([]ActualLine, error) {
	var out []ActualLine
	for _, line := range t.repo.actuals {
		if line.TenantID == tenantID && line.ResourceID == resourceID && line.Year == year && line.Month == month {
			out = append(out, line)
		}
	}
	return out, nil
}

type stubRefs struct {
	resources    map[uuid.UUID]masterdata.ResourceInfo
	projects     map[uuid.UUID]masterdata.ProjectInfo
	placeholders map[uuid.UUID]masterdata.PlaceholderInfo
}

func newStubRefs() *stubRefs {
	return &stubRefs{
		resources:    make(map[uuid.UUID]masterdata.ResourceInfo),
		projects:     make(map[uuid.UUID]masterdata.ProjectInfo),
		placeholders: make(map[uuid.UUID]masterdata.PlaceholderInfo),
	}
}

func (s *stubRefs) GetResource(ctx context.Context, tenantID, id uuid.UUID) (masterdata.ResourceInfo, error) {
	r, ok := s.resources[id]
	if !ok {
		return masterdata.ResourceInfo{}, shared.NewError(shared.CodeNotFound, "resource not found")
	}
	return r, nil
}

func (s *stubRefs) GetProject(ctx context.Context, tenantID, id uuid.UUID) (masterdata.ProjectInfo, error) {
	p, ok := s.projects[id]
	if !ok {
		return masterdata.ProjectInfo{}, shared.NewError(shared.CodeNotFound, "project not found")
	}
	return p, nil
}

func (s *stubRefs) GetPlaceholder(ctx context.Context, tenantID, id uuid.UUID) (masterdata.PlaceholderInfo, error) {
	p, ok := s.placeholders[id]
	if !ok {
		return masterdata.PlaceholderInfo{}, shared.NewError(shared.CodeNotFound, "placeholder not found")
	}
	return p, nil
}

type stubApprovals struct {
	created []ActualLine
}

func (s *stubApprovals) CreateForActual(ctx context.Context, actor shared.Principal, line ActualLine) error {
	s.created = append(s.created, line)
	return nil
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) Invalidate(ctx context.Context, tenantID, periodID uuid.UUID) {
	s.calls++
}

type recordedAudit struct {
	logs []shared.AuditLog
}

func (a *recordedAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	repo      *memoryLineRepo
	refs      *stubRefs
	approvals *stubApprovals
	cache     *stubInvalidator
	audit     *recordedAudit
	service   *Service
	tenantID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemoryLineRepo(),
		refs:      newStubRefs(),
		approvals: &stubApprovals{},
		cache:     &stubInvalidator{},
		audit:     &recordedAudit{},
		tenantID:  uuid.New(),
	}
	f.service = NewService(f.repo, f.refs, f.approvals, f.audit, f.cache, slog.Default())
	f.service.WithNow(func() time.Time {
		return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	})
	return f
}

func (f *fixture) addResource() uuid.UUID {
	id := uuid.New()
	f.refs.resources[id] = masterdata.ResourceInfo{ID: id, DisplayName: "Dana"}
	return id
}

func (f *fixture) addProject() uuid.UUID {
	id := uuid.New()
	f.refs.projects[id] = masterdata.ProjectInfo{ID: id, Name: "Atlas"}
	return id
}

func (f *fixture) addPlaceholder() uuid.UUID {
	id := uuid.New()
	f.refs.placeholders[id] = masterdata.PlaceholderInfo{ID: id, Name: "Senior Dev TBD"}
	return id
}

func (f *fixture) actor(role shared.Role) shared.Principal {
	return shared.Principal{TenantID: f.tenantID, UserID: uuid.New(), Role: role}
}

func requireCode(t *testing.T, err error, code shared.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, shared.CodeOf(err))
}

func TestCreateDemandLockedPeriod(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusLocked)
	resourceID := f.addResource()
	projectID := f.addProject()

	_, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 3, FtePercent: 50, ResourceID: &resourceID,
	})
	requireCode(t, err, shared.CodePeriodLocked)
	require.Empty(t, f.repo.demand)
}

func TestCreateDemandInvalidFte(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	for _, fte := range []int{0, 3, 101, 52} {
		_, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
			ProjectID: projectID, Year: 2026, Month: 3, FtePercent: fte, ResourceID: &resourceID,
		})
		requireCode(t, err, shared.CodeFteInvalid)
	}
}

func TestCreateDemandAssignmentXOR(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	placeholderID := f.addPlaceholder()
	projectID := f.addProject()

	_, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 3, FtePercent: 50,
		ResourceID: &resourceID, PlaceholderID: &placeholderID,
	})
	requireCode(t, err, shared.CodeDemandXOR)

	_, err = f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 3, FtePercent: 50,
	})
	requireCode(t, err, shared.CodeDemandXOR)
}

func TestCreateDemandPlaceholderWindow(t *testing.T) {
	f := newFixture(t)
	// Clock is pinned to 2026-03-10, so the earliest placeholder month is
	// 2026-07.
	f.repo.addPeriod(f.tenantID, 2026, 6, period.StatusOpen)
	f.repo.addPeriod(f.tenantID, 2026, 7, period.StatusOpen)
	placeholderID := f.addPlaceholder()
	projectID := f.addProject()

	_, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 6, FtePercent: 50, PlaceholderID: &placeholderID,
	})
	requireCode(t, err, shared.CodePlaceholderBlocked)

	line, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 7, FtePercent: 50, PlaceholderID: &placeholderID,
	})
	require.NoError(t, err)
	require.NotNil(t, line.PlaceholderID)
}

func TestCreateActualCeiling(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	first := f.addProject()
	second := f.addProject()

	existing, err := f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: first, Year: 2026, Month: 3, ActualFtePercent: 60,
	})
	require.NoError(t, err)

	_, err = f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: second, Year: 2026, Month: 3, ActualFtePercent: 50,
	})
	requireCode(t, err, shared.CodeActualsOver100)

	derr, ok := shared.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, 110, derr.Extra["total_percent"])
	require.Contains(t, derr.Extra["offending_line_ids"], existing.ID.String())
}

func TestCreateActualDuplicateProject(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	_, err := f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 40,
	})
	require.NoError(t, err)

	_, err = f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 20,
	})
	requireCode(t, err, shared.CodeConflict)
}

func TestCreateActualDerivesPlanned(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	_, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 3, FtePercent: 45, ResourceID: &resourceID,
	})
	require.NoError(t, err)

	line, err := f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 40,
	})
	require.NoError(t, err)
	require.NotNil(t, line.PlannedFtePercent)
	require.Equal(t, 45, *line.PlannedFtePercent)
}

func TestEmployeeCannotWriteOthersActuals(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	actor := f.actor(shared.RoleEmployee)
	actor.ResourceID = uuid.New()
	_, err := f.service.CreateActual(context.Background(), actor, ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 40,
	})
	requireCode(t, err, shared.CodeUnauthorizedRole)
}

func TestSignIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	actor := f.actor(shared.RoleEmployee)
	actor.ResourceID = resourceID
	line, err := f.service.CreateActual(context.Background(), actor, ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 40,
	})
	require.NoError(t, err)

	signed, err := f.service.Sign(context.Background(), actor, line.ID)
	require.NoError(t, err)
	require.True(t, signed.Signed())
	require.False(t, signed.IsProxySigned)
	require.Len(t, f.approvals.created, 1)

	_, err = f.service.Sign(context.Background(), actor, line.ID)
	requireCode(t, err, shared.CodeAlreadySigned)
	_, err = f.service.UpdateActual(context.Background(), actor, line.ID, 50)
	requireCode(t, err, shared.CodeAlreadySigned)
	err = f.service.DeleteActual(context.Background(), actor, line.ID)
	requireCode(t, err, shared.CodeAlreadySigned)
}

func TestProxySignRequiresReason(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	line, err := f.service.CreateActual(context.Background(), f.actor(shared.RoleFinance), ActualInput{
		ResourceID: resourceID, ProjectID: projectID, Year: 2026, Month: 3, ActualFtePercent: 40,
	})
	require.NoError(t, err)

	ro := f.actor(shared.RoleRO)
	_, err = f.service.ProxySign(context.Background(), ro, line.ID, "   ")
	requireCode(t, err, shared.CodeValidation)

	signed, err := f.service.ProxySign(context.Background(), ro, line.ID, "employee on leave")
	require.NoError(t, err)
	require.True(t, signed.IsProxySigned)
	require.Equal(t, "employee on leave", signed.ProxySignReason)

	var found bool
	for _, log := range f.audit.logs {
		if log.Action == "proxy_sign" {
			require.Equal(t, "employee on leave", log.Reason)
			found = true
		}
	}
	require.True(t, found)
}

func TestWritesBustDashboardCache(t *testing.T) {
	f := newFixture(t)
	f.repo.addPeriod(f.tenantID, 2026, 3, period.StatusOpen)
	resourceID := f.addResource()
	projectID := f.addProject()

	line, err := f.service.CreateDemand(context.Background(), f.actor(shared.RolePM), DemandInput{
		ProjectID: projectID, Year: 2026, Month: 3, FtePercent: 50, ResourceID: &resourceID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.calls)

	// A rejected write must not invalidate.
	_, err = f.service.UpdateDemand(context.Background(), f.actor(shared.RolePM), line.ID, DemandUpdate{
		FtePercent: 57, ResourceID: &resourceID,
	})
	requireCode(t, err, shared.CodeFteInvalid)
	require.Equal(t, 1, f.cache.calls)

	updated, err := f.service.UpdateDemand(context.Background(), f.actor(shared.RolePM), line.ID, DemandUpdate{
		FtePercent: 55, ResourceID: &resourceID,
	})
	require.NoError(t, err)
	require.Equal(t, 55, updated.FtePercent)
	require.Equal(t, 2, f.cache.calls)

	require.NoError(t, f.service.DeleteDemand(context.Background(), f.actor(shared.RolePM), line.ID))
	require.Equal(t, 3, f.cache.calls)
}
