package reconcile

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/shared"
)

// PeriodPort resolves periods by id.
type PeriodPort interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (period.Period, error)
}

// LineSource reads the period's planning lines.
type LineSource interface {
	ListDemand(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.DemandLine, error)
	ListSupply(ctx context.Context, tenantID uuid.UUID, f allocation.LineFilter) ([]allocation.SupplyLine, error)
}

// MasterDataPort loads the reference maps used to resolve names.
type MasterDataPort interface {
	ListResources(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ResourceInfo, error)
	ListPlaceholders(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.PlaceholderInfo, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]masterdata.ProjectInfo, error)
}

// DashboardCache stores computed dashboards between writes.
type DashboardCache interface {
	Get(ctx context.Context, tenantID, periodID uuid.UUID) (Dashboard, bool)
	Set(ctx context.Context, tenantID, periodID uuid.UUID, dash Dashboard)
}

// CacheMetrics counts cache lookup outcomes.
type CacheMetrics interface {
	DashboardCacheObserved(outcome string)
}

// Service computes dashboards, serving cached copies when available.
type Service struct {
	periods PeriodPort
	lines   LineSource
	refs    MasterDataPort
	cache   DashboardCache
	metrics CacheMetrics
	logger  *slog.Logger
}

// NewService constructs the reconciliation service. cache may be nil.
func NewService(periods PeriodPort, lines LineSource, refs MasterDataPort, cache DashboardCache, logger *slog.Logger) *Service {
	return &Service{
		periods: periods,
		lines:   lines,
		refs:    refs,
		cache:   cache,
		logger:  logger,
	}
}

// WithMetrics attaches cache outcome counters.
func (s *Service) WithMetrics(metrics CacheMetrics) {
	s.metrics = metrics
}

// Dashboard returns the reconciliation output for a period. Locked
// periods are readable; locking only gates writes.
func (s *Service) Dashboard(ctx context.Context, actor shared.Principal, periodID uuid.UUID) (Dashboard, error) {
	p, err := s.periods.Get(ctx, actor.TenantID, periodID)
	if err != nil {
		return Dashboard{}, err
	}
	if s.cache != nil {
		if dash, ok := s.cache.Get(ctx, actor.TenantID, periodID); ok {
			s.observeCache("hit")
			return dash, nil
		}
		s.observeCache("miss")
	}
	dash, err := s.compute(ctx, actor.TenantID, p)
	if err != nil {
		return Dashboard{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, actor.TenantID, periodID, dash)
	}
	return dash, nil
}

func (s *Service) observeCache(outcome string) {
	if s.metrics != nil {
		s.metrics.DashboardCacheObserved(outcome)
	}
}

func (s *Service) compute(ctx context.Context, tenantID uuid.UUID, p period.Period) (Dashboard, error) {
	filter := allocation.LineFilter{Year: p.Year, Month: p.Month}
	demand, err := s.lines.ListDemand(ctx, tenantID, filter)
	if err != nil {
		return Dashboard{}, err
	}
	supply, err := s.lines.ListSupply(ctx, tenantID, filter)
	if err != nil {
		return Dashboard{}, err
	}
	resources, err := s.refs.ListResources(ctx, tenantID)
	if err != nil {
		return Dashboard{}, err
	}
	placeholders, err := s.refs.ListPlaceholders(ctx, tenantID)
	if err != nil {
		return Dashboard{}, err
	}
	projects, err := s.refs.ListProjects(ctx, tenantID)
	if err != nil {
		return Dashboard{}, err
	}
	return Compute(Inputs{
		PeriodID:     p.ID,
		PeriodLabel:  p.Label(),
		Demand:       demand,
		Supply:       supply,
		Resources:    resources,
		Placeholders: placeholders,
		Projects:     projects,
	}), nil
}
