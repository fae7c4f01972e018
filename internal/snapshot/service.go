package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/reconcile"
	"github.com/planora-app/planora/internal/shared"
)

// RepositoryPort persists snapshots.
type RepositoryPort interface {
	Insert(ctx context.Context, snap Snapshot) (Snapshot, error)
	List(ctx context.Context, tenantID uuid.UUID, periodID *uuid.UUID) ([]Snapshot, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Snapshot, error)
}

// PeriodPort resolves periods by id.
type PeriodPort interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (period.Period, error)
}

// DashboardPort computes the reconciliation output to freeze.
type DashboardPort interface {
	Dashboard(ctx context.Context, actor shared.Principal, periodID uuid.UUID) (reconcile.Dashboard, error)
}

// LineSource reads the period's raw lines for the export.
type LineSource interface {
	ListDemand(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.DemandLine, error)
	ListSupply(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.SupplyLine, error)
	ListActuals(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.ActualLine, error)
}

// MasterDataPort loads reference maps for name denormalization.
type MasterDataPort interface {
	ListResources(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ResourceInfo, error)
	ListPlaceholders(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.PlaceholderInfo, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ProjectInfo, error)
}

// Service publishes and serves snapshots.
type Service struct {
	repo      RepositoryPort
	periods   PeriodPort
	dashboard DashboardPort
	lines     LineSource
	refs      MasterDataPort
	audit     shared.AuditRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the snapshot service.
func NewService(repo RepositoryPort, periods PeriodPort, dashboard DashboardPort, lines LineSource, refs MasterDataPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		periods:   periods,
		dashboard: dashboard,
		lines:     lines,
		refs:      refs,
		audit:     audit,
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

// PublishInput carries publish parameters.
type PublishInput struct {
	PeriodID    uuid.UUID
	Name        string
	Description string
}

// Publish freezes the period's dashboard and every contributing line
// into one immutable record. Names are not unique; each publish creates
// a new snapshot.
func (s *Service) Publish(ctx context.Context, actor shared.Principal, in PublishInput) (Snapshot, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Snapshot{}, shared.NewError(shared.CodeValidation, "snapshot name must not be blank")
	}
	p, err := s.periods.Get(ctx, actor.TenantID, in.PeriodID)
	if err != nil {
		return Snapshot{}, err
	}
	dash, err := s.dashboard.Dashboard(ctx, actor, in.PeriodID)
	if err != nil {
		return Snapshot{}, err
	}
	lines, err := s.collectLines(ctx, actor.TenantID, p)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ID:          uuid.New(),
		TenantID:    actor.TenantID,
		PeriodID:    in.PeriodID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		PublishedBy: actor.UserID,
		PublishedAt: s.now().UTC(),
		Dashboard:   dash,
		Lines:       lines,
	}
	for idx := range snap.Lines {
		snap.Lines[idx].ID = uuid.New()
		snap.Lines[idx].SnapshotID = snap.ID
	}
	created, err := s.repo.Insert(ctx, snap)
	if err != nil {
		return Snapshot{}, err
	}
	s.recordAudit(ctx, actor, created, len(created.Lines))
	return created, nil
}

// List returns snapshots newest first, optionally filtered by period.
func (s *Service) List(ctx context.Context, actor shared.Principal, periodID *uuid.UUID) ([]Snapshot, error) {
	return s.repo.List(ctx, actor.TenantID, periodID)
}

// Get fetches one snapshot with its lines.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id uuid.UUID) (Snapshot, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

func (s *Service) collectLines(ctx context.Context, tenantID uuid.UUID, p period.Period) ([]Line, error) {
	filter := allocation.LineFilter{Year: p.Year, Month: p.Month}
	demand, err := s.lines.ListDemand(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	supply, err := s.lines.ListSupply(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	actuals, err := s.lines.ListActuals(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	resources, err := s.refs.ListResources(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	placeholders, err := s.refs.ListPlaceholders(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	projects, err := s.refs.ListProjects(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resourceName := func(id *uuid.UUID) string {
		if id == nil {
			return ""
		}
		return resources[*id].DisplayName
	}
	projectName := func(id uuid.UUID) string {
		return projects[id].Name
	}

	out := make([]Line, 0, len(demand)+len(supply)+len(actuals))
	for _, d := range demand {
		projectID := d.ProjectID
		line := Line{
			Type:        LineDemand,
			ProjectID:   &projectID,
			ProjectName: projectName(d.ProjectID),
			Year:        d.Year,
			Month:       d.Month,
			FtePercent:  d.FtePercent,
		}
		line.ResourceID = d.ResourceID
		line.ResourceName = resourceName(d.ResourceID)
		if d.PlaceholderID != nil {
			line.PlaceholderID = d.PlaceholderID
			line.PlaceholderName = placeholders[*d.PlaceholderID].Name
		}
		out = append(out, line)
	}
	for _, sl := range supply {
		resourceID := sl.ResourceID
		line := Line{
			Type:         LineSupply,
			ResourceID:   &resourceID,
			ResourceName: resourceName(&resourceID),
			Year:         sl.Year,
			Month:        sl.Month,
			FtePercent:   sl.FtePercent,
		}
		if sl.ProjectID != nil {
			line.ProjectID = sl.ProjectID
			line.ProjectName = projectName(*sl.ProjectID)
		}
		out = append(out, line)
	}
	for _, a := range actuals {
		projectID := a.ProjectID
		resourceID := a.ResourceID
		out = append(out, Line{
			Type:         LineActual,
			ProjectID:    &projectID,
			ProjectName:  projectName(a.ProjectID),
			ResourceID:   &resourceID,
			ResourceName: resourceName(&resourceID),
			Year:         a.Year,
			Month:        a.Month,
			FtePercent:   a.ActualFtePercent,
		})
	}
	return out, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, snap Snapshot, lineCount int) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   "publish",
		Entity:   "PublishSnapshot",
		EntityID: snap.ID.String(),
		NewValues: map[string]any{
			"period_id":   snap.PeriodID.String(),
			"name":        snap.Name,
			"lines_count": lineCount,
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record snapshot audit", slog.Any("error", err))
	}
}
