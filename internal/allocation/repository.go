package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planora-app/planora/internal/period"
	"github.com/planora-app/planora/internal/platform/db"
	"github.com/planora-app/planora/internal/shared"
)

const demandColumns = `id, tenant_id, period_id, year, month, project_id, resource_id, placeholder_id, fte_percent, created_by, created_at, updated_at`

const supplyColumns = `id, tenant_id, period_id, year, month, resource_id, project_id, fte_percent, created_by, created_at, updated_at`

const actualColumns = `id, tenant_id, period_id, year, month, resource_id, project_id, planned_fte_percent, actual_fte_percent,
employee_signed_at, employee_signed_by, is_proxy_signed, COALESCE(proxy_sign_reason, ''), ro_approved_at, ro_approved_by,
created_by, created_at, updated_at`

const periodColumns = `id, tenant_id, year, month, status, locked_at, locked_by, COALESCE(lock_reason, ''), created_at, updated_at`

// Repository persists allocation lines in PostgreSQL.
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
		return fmt.Errorf("allocation: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// PeriodForShare pins the period row with a share lock. A concurrent
// lock() blocks until this transaction commits, so an openness check made
// here stays valid for the whole write.
func (t *txRepo) PeriodForShare(ctx context.Context, tenantID uuid.UUID, year, month int) (period.Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id = $1 AND year = $2 AND month = $3 FOR SHARE`, tenantID, year, month)
	p, err := scanTxPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return period.Period{}, shared.Errorf(shared.CodeNotFound, "period %s does not exist", period.Label(year, month))
		}
		return period.Period{}, err
	}
	return p, nil
}

// AcquireActualsLock serializes concurrent actuals writes for one
// resource/period pair. Released automatically at transaction end.
func (t *txRepo) AcquireActualsLock(ctx context.Context, key int64) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}

// ---------------------------------------------------------------- demand

func (r *Repository) GetDemand(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+demandColumns+` FROM demand_lines
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanDemand(row, "demand line not found")
}

func (r *Repository) ListDemand(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]DemandLine, error) {
	query, args := filterQuery(`SELECT `+demandColumns+` FROM demand_lines`, tenantID, f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []DemandLine
	for rows.Next() {
		line, err := scanDemand(rows, "")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) InsertDemand(ctx context.Context, line DemandLine) (DemandLine, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO demand_lines
(id, tenant_id, period_id, year, month, project_id, resource_id, placeholder_id, fte_percent, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+demandColumns,
		line.ID, line.TenantID, line.PeriodID, line.Year, line.Month,
		line.ProjectID, line.ResourceID, line.PlaceholderID, line.FtePercent, line.CreatedBy)
	created, err := scanDemand(row, "")
	if err != nil {
		return DemandLine{}, conflictOr(err, "duplicate demand line")
	}
	return created, nil
}

func (t *txRepo) UpdateDemand(ctx context.Context, line DemandLine) error {
	_, err := t.tx.Exec(ctx, `UPDATE demand_lines
SET fte_percent = $3, resource_id = $4, placeholder_id = $5, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2`,
		line.TenantID, line.ID, line.FtePercent, line.ResourceID, line.PlaceholderID)
	return err
}

func (t *txRepo) DeleteDemand(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM demand_lines WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func (t *txRepo) GetDemandForUpdate(ctx context.Context, tenantID, id uuid.UUID) (DemandLine, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+demandColumns+` FROM demand_lines
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	return scanDemand(row, "demand line not found")
}

// DemandTotalFor sums planned FTE for a resource/project/month, used to
// denormalize planned_fte_percent onto new actual lines.
func (t *txRepo) DemandTotalFor(ctx context.Context, tenantID, resourceID, projectID uuid.UUID, year, month int) (int, bool, error) {
	var total int
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(fte_percent), 0), COUNT(*) FROM demand_lines
WHERE tenant_id = $1 AND resource_id = $2 AND project_id = $3 AND year = $4 AND month = $5`,
		tenantID, resourceID, projectID, year, month).Scan(&total, &count)
	if err != nil {
		return 0, false, err
	}
	return total, count > 0, nil
}

// ---------------------------------------------------------------- supply

func (r *Repository) GetSupply(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+supplyColumns+` FROM supply_lines
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanSupply(row, "supply line not found")
}

func (r *Repository) ListSupply(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]SupplyLine, error) {
	query, args := filterQuery(`SELECT `+supplyColumns+` FROM supply_lines`, tenantID, f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SupplyLine
	for rows.Next() {
		line, err := scanSupply(rows, "")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) InsertSupply(ctx context.Context, line SupplyLine) (SupplyLine, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO supply_lines
(id, tenant_id, period_id, year, month, resource_id, project_id, fte_percent, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+supplyColumns,
		line.ID, line.TenantID, line.PeriodID, line.Year, line.Month,
		line.ResourceID, line.ProjectID, line.FtePercent, line.CreatedBy)
	created, err := scanSupply(row, "")
	if err != nil {
		return SupplyLine{}, conflictOr(err, "duplicate supply line")
	}
	return created, nil
}

func (t *txRepo) UpdateSupply(ctx context.Context, line SupplyLine) error {
	_, err := t.tx.Exec(ctx, `UPDATE supply_lines
SET fte_percent = $3, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2`, line.TenantID, line.ID, line.FtePercent)
	return err
}

func (t *txRepo) DeleteSupply(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM supply_lines WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func (t *txRepo) GetSupplyForUpdate(ctx context.Context, tenantID, id uuid.UUID) (SupplyLine, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+supplyColumns+` FROM supply_lines
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	return scanSupply(row, "supply line not found")
}

// ---------------------------------------------------------------- actuals

func (r *Repository) GetActual(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+actualColumns+` FROM actual_lines
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanActual(row, "actual line not found")
}

func (r *Repository) ListActuals(ctx context.Context, tenantID uuid.UUID, f LineFilter) ([]ActualLine, error) {
	query, args := filterQuery(`SELECT `+actualColumns+` FROM actual_lines`, tenantID, f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ActualLine
	for rows.Next() {
		line, err := scanActual(rows, "")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) InsertActual(ctx context.Context, line ActualLine) (ActualLine, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO actual_lines
(id, tenant_id, period_id, year, month, resource_id, project_id, planned_fte_percent, actual_fte_percent, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+actualColumns,
		line.ID, line.TenantID, line.PeriodID, line.Year, line.Month,
		line.ResourceID, line.ProjectID, line.PlannedFtePercent, line.ActualFtePercent, line.CreatedBy)
	created, err := scanActual(row, "")
	if err != nil {
		return ActualLine{}, conflictOr(err, "an actual line already exists for this resource/project/month")
	}
	return created, nil
}

func (t *txRepo) UpdateActual(ctx context.Context, line ActualLine) error {
	_, err := t.tx.Exec(ctx, `UPDATE actual_lines
SET actual_fte_percent = $3, employee_signed_at = $4, employee_signed_by = $5,
    is_proxy_signed = $6, proxy_sign_reason = NULLIF($7, ''),
    ro_approved_at = $8, ro_approved_by = $9, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2`,
		line.TenantID, line.ID, line.ActualFtePercent,
		line.EmployeeSignedAt, line.EmployeeSignedBy,
		line.IsProxySigned, line.ProxySignReason,
		line.ROApprovedAt, line.ROApprovedBy)
	return err
}

func (t *txRepo) DeleteActual(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM actual_lines WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func (t *txRepo) GetActualForUpdate(ctx context.Context, tenantID, id uuid.UUID) (ActualLine, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+actualColumns+` FROM actual_lines
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	return scanActual(row, "actual line not found")
}

func (t *txRepo) ActualsForResource(ctx context.Context, tenantID, resourceID uuid.UUID, year, month int) ([]ActualLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+actualColumns+` FROM actual_lines
WHERE tenant_id = $1 AND resource_id = $2 AND year = $3 AND month = $4
ORDER BY created_at`, tenantID, resourceID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ActualLine
	for rows.Next() {
		line, err := scanActual(rows, "")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ---------------------------------------------------------------- helpers

func filterQuery(base string, tenantID uuid.UUID, f LineFilter) (string, []any) {
	query := base + ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if f.Year != 0 {
		args = append(args, f.Year)
		query += fmt.Sprintf(" AND year = $%d", len(args))
	}
	if f.Month != 0 {
		args = append(args, f.Month)
		query += fmt.Sprintf(" AND month = $%d", len(args))
	}
	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if f.ResourceID != nil {
		args = append(args, *f.ResourceID)
		query += fmt.Sprintf(" AND resource_id = $%d", len(args))
	}
	query += ` ORDER BY created_at`
	return query, args
}

func conflictOr(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.NewError(shared.CodeConflict, msg)
	}
	return err
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) && msg != "" {
		return shared.NewError(shared.CodeNotFound, msg)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDemand(row rowScanner, notFound string) (DemandLine, error) {
	var line DemandLine
	var resourceID, placeholderID pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&line.ID, &line.TenantID, &line.PeriodID, &line.Year, &line.Month,
		&line.ProjectID, &resourceID, &placeholderID, &line.FtePercent,
		&line.CreatedBy, &createdAt, &updatedAt); err != nil {
		return DemandLine{}, notFoundOr(err, notFound)
	}
	line.ResourceID = uuidPtr(resourceID)
	line.PlaceholderID = uuidPtr(placeholderID)
	line.CreatedAt = createdAt.Time
	line.UpdatedAt = updatedAt.Time
	return line, nil
}

func scanSupply(row rowScanner, notFound string) (SupplyLine, error) {
	var line SupplyLine
	var projectID pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&line.ID, &line.TenantID, &line.PeriodID, &line.Year, &line.Month,
		&line.ResourceID, &projectID, &line.FtePercent,
		&line.CreatedBy, &createdAt, &updatedAt); err != nil {
		return SupplyLine{}, notFoundOr(err, notFound)
	}
	line.ProjectID = uuidPtr(projectID)
	line.CreatedAt = createdAt.Time
	line.UpdatedAt = updatedAt.Time
	return line, nil
}

func scanActual(row rowScanner, notFound string) (ActualLine, error) {
	var line ActualLine
	var planned pgtype.Int4
	var signedAt, approvedAt pgtype.Timestamptz
	var signedBy, approvedBy pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&line.ID, &line.TenantID, &line.PeriodID, &line.Year, &line.Month,
		&line.ResourceID, &line.ProjectID, &planned, &line.ActualFtePercent,
		&signedAt, &signedBy, &line.IsProxySigned, &line.ProxySignReason, &approvedAt, &approvedBy,
		&line.CreatedBy, &createdAt, &updatedAt); err != nil {
		return ActualLine{}, notFoundOr(err, notFound)
	}
	if planned.Valid {
		v := int(planned.Int32)
		line.PlannedFtePercent = &v
	}
	if signedAt.Valid {
		t := signedAt.Time
		line.EmployeeSignedAt = &t
	}
	line.EmployeeSignedBy = uuidPtr(signedBy)
	if approvedAt.Valid {
		t := approvedAt.Time
		line.ROApprovedAt = &t
	}
	line.ROApprovedBy = uuidPtr(approvedBy)
	line.CreatedAt = createdAt.Time
	line.UpdatedAt = updatedAt.Time
	return line, nil
}

func scanTxPeriod(row rowScanner) (period.Period, error) {
	var p period.Period
	var status string
	var lockedAt pgtype.Timestamptz
	var lockedBy pgtype.UUID
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&p.ID, &p.TenantID, &p.Year, &p.Month, &status,
		&lockedAt, &lockedBy, &p.LockReason, &createdAt, &updatedAt); err != nil {
		return period.Period{}, err
	}
	p.Status = period.Status(status)
	if lockedAt.Valid {
		t := lockedAt.Time
		p.LockedAt = &t
	}
	p.LockedBy = uuidPtr(lockedBy)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
