package period

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planora-app/planora/internal/platform/db"
	"github.com/planora-app/planora/internal/shared"
)

const periodColumns = `id, tenant_id, year, month, status, locked_at, locked_by, COALESCE(lock_reason, ''), created_at, updated_at`

// Repository persists periods in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("period: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// List returns the tenant's periods ordered newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id = $1 ORDER BY year DESC, month DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// Get fetches a single period by id.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.NewError(shared.CodeNotFound, "period not found")
		}
		return Period{}, err
	}
	return p, nil
}

// GetByYearMonth fetches a period by its calendar coordinates.
func (r *Repository) GetByYearMonth(ctx context.Context, tenantID uuid.UUID, year, month int) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id = $1 AND year = $2 AND month = $3`, tenantID, year, month)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.Errorf(shared.CodeNotFound, "period %s does not exist", Label(year, month))
		}
		return Period{}, err
	}
	return p, nil
}

// Insert creates a new period row. The (tenant_id, year, month) unique
// index turns duplicates into CONFLICT.
func (t *txRepo) Insert(ctx context.Context, p Period) (Period, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO periods (id, tenant_id, year, month, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+periodColumns, p.ID, p.TenantID, p.Year, p.Month, string(p.Status))
	created, err := scanPeriod(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, shared.Errorf(shared.CodeConflict, "period %s already exists", p.Label())
		}
		return Period{}, err
	}
	return created, nil
}

// GetForUpdate locks the period row for a status transition.
func (t *txRepo) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.NewError(shared.CodeNotFound, "period not found")
		}
		return Period{}, err
	}
	return p, nil
}

// UpdateStatus persists a status transition on a previously locked row.
func (t *txRepo) UpdateStatus(ctx context.Context, p Period) error {
	_, err := t.tx.Exec(ctx, `UPDATE periods
SET status = $3, locked_at = $4, locked_by = $5, lock_reason = NULLIF($6, ''), updated_at = NOW()
WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, string(p.Status), p.LockedAt, p.LockedBy, p.LockReason)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (Period, error) {
	var p Period
	var status string
	var lockedAt pgtype.Timestamptz
	var lockedBy pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&p.ID, &p.TenantID, &p.Year, &p.Month, &status, &lockedAt, &lockedBy, &p.LockReason, &createdAt, &updatedAt); err != nil {
		return Period{}, err
	}
	p.Status = Status(status)
	if lockedAt.Valid {
		t := lockedAt.Time
		p.LockedAt = &t
	}
	if lockedBy.Valid {
		id := uuid.UUID(lockedBy.Bytes)
		p.LockedBy = &id
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}
