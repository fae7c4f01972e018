package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/shared"
)

type memoryTimelineRepo struct {
	entries []Entry
}

func (r *memoryTimelineRepo) matching(tenantID uuid.UUID, filter Filter) []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.TenantID != tenantID {
			continue
		}
		if !filter.From.IsZero() && e.At.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.At.After(filter.To) {
			continue
		}
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.Entity != "" && e.Entity != filter.Entity {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *memoryTimelineRepo) Timeline(ctx context.Context, tenantID uuid.UUID, filter Filter, limit, offset int) ([]Entry, error) {
	rows := r.matching(tenantID, filter)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *memoryTimelineRepo) TimelineAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Entry, error) {
	return r.matching(tenantID, filter), nil
}

func seedEntries(tenantID uuid.UUID, count int) []Entry {
	base := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, Entry{
			ID:       uuid.New(),
			TenantID: tenantID,
			ActorID:  uuid.New(),
			Action:   "update",
			Entity:   "DemandLine",
			EntityID: uuid.NewString(),
			At:       base.Add(time.Duration(i) * time.Minute),
		})
	}
	return entries
}

func TestTimelinePaging(t *testing.T) {
	tenantID := uuid.New()
	repo := &memoryTimelineRepo{entries: seedEntries(tenantID, 25)}
	service := NewService(repo)
	actor := shared.Principal{TenantID: tenantID, UserID: uuid.New(), Role: shared.RoleFinance}

	first, err := service.Timeline(context.Background(), actor, Filter{PerPage: 20})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.HasNext)
	require.Equal(t, 2, first.NextPage)
	require.Zero(t, first.PrevPage)

	second, err := service.Timeline(context.Background(), actor, Filter{Page: 2, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, second.Rows, 5)
	require.False(t, second.HasNext)
	require.Equal(t, 1, second.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	tenantID := uuid.New()
	repo := &memoryTimelineRepo{entries: seedEntries(tenantID, 60)}
	service := NewService(repo)
	actor := shared.Principal{TenantID: tenantID, UserID: uuid.New(), Role: shared.RoleAdmin}

	result, err := service.Timeline(context.Background(), actor, Filter{PerPage: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.PerPage)
}

func TestTimelineScopedToTenant(t *testing.T) {
	tenantID := uuid.New()
	repo := &memoryTimelineRepo{entries: append(seedEntries(tenantID, 3), seedEntries(uuid.New(), 4)...)}
	service := NewService(repo)
	actor := shared.Principal{TenantID: tenantID, UserID: uuid.New(), Role: shared.RoleFinance}

	result, err := service.Timeline(context.Background(), actor, Filter{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
}

func TestExportHonorsFilters(t *testing.T) {
	tenantID := uuid.New()
	entries := seedEntries(tenantID, 5)
	entries[2].Action = "proxy_sign"
	entries[2].Entity = "ActualLine"
	repo := &memoryTimelineRepo{entries: entries}
	service := NewService(repo)
	actor := shared.Principal{TenantID: tenantID, UserID: uuid.New(), Role: shared.RoleFinance}

	rows, err := service.Export(context.Background(), actor, Filter{Action: "proxy_sign"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ActualLine", rows[0].Entity)
}
