package snapshot

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/reconcile"
	"github.com/planora-app/planora/internal/shared"
)

type memorySnapshotRepo struct {
	snapshots map[uuid.UUID]Snapshot
}

func (r *memorySnapshotRepo) Insert(ctx context.Context, snap Snapshot) (Snapshot, error) {
	lines := make([]Line, len(snap.Lines))
	copy(lines, snap.Lines)
	snap.Lines = lines
	r.snapshots[snap.ID] = snap
	return snap, nil
}

func (r *memorySnapshotRepo) List(ctx context.Context, tenantID uuid.UUID, periodID *uuid.UUID) ([]Snapshot, error) {
	var out []Snapshot
	for _, snap := range r.snapshots {
		if snap.TenantID != tenantID {
			continue
		}
		if periodID != nil && snap.PeriodID != *periodID {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *memorySnapshotRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (Snapshot, error) {
	snap, ok := r.snapshots[id]
	if !ok || snap.TenantID != tenantID {
		return Snapshot{}, shared.NewError(shared.CodeNotFound, "snapshot not found")
	}
	return snap, nil
}

type stubPeriods struct {
	periods map[uuid.UUID]period.Period
}

func (s *stubPeriods) Get(ctx context.Context, tenantID, id uuid.UUID) (period.Period, error) {
	p, ok := s.periods[id]
	if !ok {
		return period.Period{}, shared.NewError(shared.CodeNotFound, "period not found")
	}
	return p, nil
}

type stubDashboard struct {
	dash reconcile.Dashboard
}

func (s *stubDashboard) Dashboard(ctx context.Context, actor shared.Principal, periodID uuid.UUID) (reconcile.Dashboard, error) {
	return s.dash, nil
}

type stubLines struct {
	demand  []allocation.DemandLine
	supply  []allocation.SupplyLine
	actuals []allocation.ActualLine
}

func (s *stubLines) ListDemand(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.DemandLine, error) {
	return s.demand, nil
}

func (s *stubLines) ListSupply(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.SupplyLine, error) {
	return s.supply, nil
}

func (s *stubLines) ListActuals(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.ActualLine, error) {
	return s.actuals, nil
}

type stubSnapshotRefs struct {
	resources map[uuid.UUID]masterdata.ResourceInfo
	projects  map[uuid.UUID]masterdata.ProjectInfo
}

func (s *stubSnapshotRefs) ListResources(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ResourceInfo, error) {
	return s.resources, nil
}

func (s *stubSnapshotRefs) ListPlaceholders(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.PlaceholderInfo, error) {
	return map[uuid.UUID]masterdata.PlaceholderInfo{}, nil
}

func (s *stubSnapshotRefs) ListProjects(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ProjectInfo, error) {
	return s.projects, nil
}

type publishFixture struct {
	repo     *memorySnapshotRepo
	lines    *stubLines
	refs     *stubSnapshotRefs
	service  *Service
	tenantID uuid.UUID
	periodID uuid.UUID
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	f := &publishFixture{
		repo:     &memorySnapshotRepo{snapshots: make(map[uuid.UUID]Snapshot)},
		lines:    &stubLines{},
		refs:     &stubSnapshotRefs{resources: map[uuid.UUID]masterdata.ResourceInfo{}, projects: map[uuid.UUID]masterdata.ProjectInfo{}},
		tenantID: uuid.New(),
		periodID: uuid.New(),
	}
	periods := &stubPeriods{periods: map[uuid.UUID]period.Period{
		f.periodID: {ID: f.periodID, TenantID: f.tenantID, Year: 2026, Month: 3, Status: period.StatusOpen},
	}}
	dashboard := &stubDashboard{dash: reconcile.Dashboard{PeriodID: f.periodID, Period: "2026-03"}}
	f.service = NewService(f.repo, periods, dashboard, f.lines, f.refs, nil, slog.Default())
	f.service.WithNow(func() time.Time {
		return time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	})
	return f
}

func (f *publishFixture) actor() shared.Principal {
	return shared.Principal{TenantID: f.tenantID, UserID: uuid.New(), Role: shared.RoleFinance}
}

func TestPublishRequiresName(t *testing.T) {
	f := newPublishFixture(t)
	_, err := f.service.Publish(context.Background(), f.actor(), PublishInput{PeriodID: f.periodID, Name: "   "})
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestPublishUnknownPeriod(t *testing.T) {
	f := newPublishFixture(t)
	_, err := f.service.Publish(context.Background(), f.actor(), PublishInput{PeriodID: uuid.New(), Name: "March close"})
	require.Equal(t, shared.CodeNotFound, shared.CodeOf(err))
}

func TestPublishFreezesLinesWithNames(t *testing.T) {
	f := newPublishFixture(t)
	resourceID := uuid.New()
	projectID := uuid.New()
	f.refs.resources[resourceID] = masterdata.ResourceInfo{ID: resourceID, DisplayName: "Riley"}
	f.refs.projects[projectID] = masterdata.ProjectInfo{ID: projectID, Name: "Atlas"}
	f.lines.demand = []allocation.DemandLine{
		{ID: uuid.New(), ProjectID: projectID, ResourceID: &resourceID, Year: 2026, Month: 3, FtePercent: 60},
	}
	f.lines.supply = []allocation.SupplyLine{
		{ID: uuid.New(), ResourceID: resourceID, Year: 2026, Month: 3, FtePercent: 100},
	}
	f.lines.actuals = []allocation.ActualLine{
		{ID: uuid.New(), ProjectID: projectID, ResourceID: resourceID, Year: 2026, Month: 3, ActualFtePercent: 55},
	}

	snap, err := f.service.Publish(context.Background(), f.actor(), PublishInput{PeriodID: f.periodID, Name: "March close"})
	require.NoError(t, err)
	require.Len(t, snap.Lines, 3)
	require.Equal(t, "2026-03", snap.Dashboard.Period)

	byType := make(map[LineType]Line)
	for _, line := range snap.Lines {
		require.Equal(t, snap.ID, line.SnapshotID)
		byType[line.Type] = line
	}
	require.Equal(t, "Atlas", byType[LineDemand].ProjectName)
	require.Equal(t, "Riley", byType[LineSupply].ResourceName)
	require.Equal(t, 55, byType[LineActual].FtePercent)
}

func TestPublishIsImmutableAgainstLaterWrites(t *testing.T) {
	f := newPublishFixture(t)
	resourceID := uuid.New()
	projectID := uuid.New()
	f.refs.resources[resourceID] = masterdata.ResourceInfo{ID: resourceID, DisplayName: "Riley"}
	f.refs.projects[projectID] = masterdata.ProjectInfo{ID: projectID, Name: "Atlas"}
	f.lines.demand = []allocation.DemandLine{
		{ID: uuid.New(), ProjectID: projectID, ResourceID: &resourceID, Year: 2026, Month: 3, FtePercent: 60},
	}

	snap, err := f.service.Publish(context.Background(), f.actor(), PublishInput{PeriodID: f.periodID, Name: "before"})
	require.NoError(t, err)

	f.lines.demand[0].FtePercent = 95
	f.refs.projects[projectID] = masterdata.ProjectInfo{ID: projectID, Name: "Renamed"}

	stored, err := f.service.Get(context.Background(), f.actor(), snap.ID)
	require.NoError(t, err)
	require.Equal(t, 60, stored.Lines[0].FtePercent)
	require.Equal(t, "Atlas", stored.Lines[0].ProjectName)
}

func TestPublishAllowsDuplicateNames(t *testing.T) {
	f := newPublishFixture(t)
	actor := f.actor()
	first, err := f.service.Publish(context.Background(), actor, PublishInput{PeriodID: f.periodID, Name: "close"})
	require.NoError(t, err)
	second, err := f.service.Publish(context.Background(), actor, PublishInput{PeriodID: f.periodID, Name: "close"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	snaps, err := f.service.List(context.Background(), actor, &f.periodID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
}
