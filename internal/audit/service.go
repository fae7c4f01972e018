package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// RepositoryPort reads the audit timeline.
type RepositoryPort interface {
	Timeline(ctx context.Context, tenantID uuid.UUID, filter Filter, limit, offset int) ([]Entry, error)
	TimelineAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Entry, error)
}

// Result bundles a timeline page with its paging metadata.
type Result struct {
	Rows     []Entry
	Page     int
	PerPage  int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Service serves the audit timeline read model.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the audit timeline service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries, newest first. It fetches
// one row past the page size to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, actor shared.Principal, filter Filter) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	window := shared.ClampPage(filter.Page, filter.PerPage, defaultPageSize, maxPageSize)
	rows, err := s.repo.Timeline(ctx, actor.TenantID, filter, window.PerPage+1, window.Offset())
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > window.PerPage
	if hasNext {
		rows = rows[:window.PerPage]
	}
	result := Result{Rows: rows, Page: window.Number, PerPage: window.PerPage, HasNext: hasNext}
	if window.Number > 1 {
		result.PrevPage = window.Number - 1
	}
	if hasNext {
		result.NextPage = window.Number + 1
	}
	return result, nil
}

// Export returns the full filtered timeline without paging.
func (s *Service) Export(ctx context.Context, actor shared.Principal, filter Filter) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.TimelineAll(ctx, actor.TenantID, filter)
}
