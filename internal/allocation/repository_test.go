package allocation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/period"
)

type stubRow struct {
	vals []any
}

func (r stubRow) Scan(dest ...any) error {
	for i := range dest {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = r.vals[i].(uuid.UUID)
		case *int:
			*d = r.vals[i].(int)
		case *string:
			*d = r.vals[i].(string)
		case *pgtype.Timestamptz:
			*d = r.vals[i].(pgtype.Timestamptz)
		case *pgtype.UUID:
			*d = r.vals[i].(pgtype.UUID)
		}
	}
	return nil
}

func TestScanTxPeriodMapsLockedRow(t *testing.T) {
	id, tenantID, lockedBy := uuid.New(), uuid.New(), uuid.New()
	lockedAt := time.Date(2026, time.March, 31, 18, 0, 0, 0, time.UTC)
	created := lockedAt.AddDate(0, -1, 0)

	p, err := scanTxPeriod(stubRow{vals: []any{
		id, tenantID, 2026, 3, "locked",
		pgtype.Timestamptz{Time: lockedAt, Valid: true},
		pgtype.UUID{Bytes: lockedBy, Valid: true},
		"month closed",
		pgtype.Timestamptz{Time: created, Valid: true},
		pgtype.Timestamptz{Time: lockedAt, Valid: true},
	}})
	require.NoError(t, err)
	require.Equal(t, id, p.ID)
	require.Equal(t, tenantID, p.TenantID)
	require.Equal(t, 2026, p.Year)
	require.Equal(t, 3, p.Month)
	require.Equal(t, period.StatusLocked, p.Status)
	require.Equal(t, lockedAt, *p.LockedAt)
	require.Equal(t, lockedBy, *p.LockedBy)
	require.Equal(t, "month closed", p.LockReason)
	require.False(t, p.IsOpen())
}

func TestScanTxPeriodMapsOpenRow(t *testing.T) {
	created := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	p, err := scanTxPeriod(stubRow{vals: []any{
		uuid.New(), uuid.New(), 2026, 4, "open",
		pgtype.Timestamptz{},
		pgtype.UUID{},
		"",
		pgtype.Timestamptz{Time: created, Valid: true},
		pgtype.Timestamptz{Time: created, Valid: true},
	}})
	require.NoError(t, err)
	require.True(t, p.IsOpen())
	require.Nil(t, p.LockedAt)
	require.Nil(t, p.LockedBy)
}
