package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planora-app/planora/internal/platform/db"
	"github.com/planora-app/planora/internal/shared"
)

const instanceColumns = `id, tenant_id, actual_line_id, resource_id, year, month, created_by, created_at, updated_at`

const stepColumns = `id, instance_id, step_order, role, approver_id, status, acted_by, acted_at, COALESCE(comment, ''), is_proxy`

// Repository persists approval instances in PostgreSQL.
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
		return fmt.Errorf("approval: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Get fetches an instance with its steps.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Instance, error) {
	return getInstance(ctx, r.pool, `SELECT `+instanceColumns+` FROM approval_instances
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

// GetByActualLine fetches the instance attached to an actual line.
func (r *Repository) GetByActualLine(ctx context.Context, tenantID, actualLineID uuid.UUID) (Instance, error) {
	return getInstance(ctx, r.pool, `SELECT `+instanceColumns+` FROM approval_instances
WHERE tenant_id = $1 AND actual_line_id = $2`, tenantID, actualLineID)
}

// ListPending returns all pending instances with their steps, newest
// first. Instance status is not stored, so pending means at least one
// pending step and no rejected one.
func (r *Repository) ListPending(ctx context.Context, tenantID uuid.UUID) ([]Instance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+instanceColumns+` FROM approval_instances i
WHERE i.tenant_id = $1
  AND EXISTS (SELECT 1 FROM approval_steps s WHERE s.instance_id = i.id AND s.status = 'pending')
  AND NOT EXISTS (SELECT 1 FROM approval_steps s WHERE s.instance_id = i.id AND s.status = 'rejected')
ORDER BY i.created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var instances []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(instances))
	byID := make(map[uuid.UUID]*Instance, len(instances))
	for idx := range instances {
		ids = append(ids, instances[idx].ID)
		byID[instances[idx].ID] = &instances[idx]
	}
	stepRows, err := r.pool.Query(ctx, `SELECT `+stepColumns+` FROM approval_steps
WHERE instance_id = ANY($1) ORDER BY step_order`, ids)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()
	for stepRows.Next() {
		step, err := scanStep(stepRows)
		if err != nil {
			return nil, err
		}
		if inst, ok := byID[step.InstanceID]; ok {
			inst.Steps = append(inst.Steps, step)
		}
	}
	return instances, stepRows.Err()
}

func getInstance(ctx context.Context, q querier, query string, args ...any) (Instance, error) {
	row := q.QueryRow(ctx, query, args...)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instance{}, shared.NewError(shared.CodeNotFound, "approval instance not found")
		}
		return Instance{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+stepColumns+` FROM approval_steps
WHERE instance_id = $1 ORDER BY step_order`, inst.ID)
	if err != nil {
		return Instance{}, err
	}
	defer rows.Close()
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return Instance{}, err
		}
		inst.Steps = append(inst.Steps, step)
	}
	return inst, rows.Err()
}

// Insert creates the instance and its steps. The unique index on
// (tenant_id, actual_line_id) keeps creation idempotent under races.
func (t *txRepo) Insert(ctx context.Context, inst Instance) (Instance, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO approval_instances
(id, tenant_id, actual_line_id, resource_id, year, month, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+instanceColumns,
		inst.ID, inst.TenantID, inst.ActualLineID, inst.ResourceID,
		inst.Year, inst.Month, inst.CreatedBy)
	created, err := scanInstance(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Instance{}, shared.NewError(shared.CodeConflict, "an approval instance already exists for this line")
		}
		return Instance{}, err
	}
	for _, step := range inst.Steps {
		_, err := t.tx.Exec(ctx, `INSERT INTO approval_steps
(id, instance_id, step_order, role, approver_id, status, acted_by, acted_at, comment, is_proxy)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
			step.ID, step.InstanceID, step.StepOrder, string(step.Role), step.ApproverID,
			string(step.Status), step.ActedBy, step.ActedAt, step.Comment, step.IsProxy)
		if err != nil {
			return Instance{}, err
		}
	}
	created.Steps = inst.Steps
	return created, nil
}

// GetForUpdate locks the instance row for a workflow transition.
func (t *txRepo) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Instance, error) {
	return getInstance(ctx, t.tx, `SELECT `+instanceColumns+` FROM approval_instances
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
}

// UpdateStep persists a step resolution.
func (t *txRepo) UpdateStep(ctx context.Context, step Step) error {
	_, err := t.tx.Exec(ctx, `UPDATE approval_steps
SET status = $2, acted_by = $3, acted_at = $4, comment = NULLIF($5, ''), is_proxy = $6
WHERE id = $1`,
		step.ID, string(step.Status), step.ActedBy, step.ActedAt, step.Comment, step.IsProxy)
	return err
}

// RecordAction appends to the immutable workflow history.
func (t *txRepo) RecordAction(ctx context.Context, action Action) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO approval_actions
(id, tenant_id, instance_id, step_id, verb, actor_id, comment, acted_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		action.ID, action.TenantID, action.InstanceID, action.StepID,
		action.Verb, action.ActorID, action.Comment, action.At)
	return err
}

// MarkActualApproved writes the RO approval back onto the actual line.
func (t *txRepo) MarkActualApproved(ctx context.Context, tenantID, actualLineID, by uuid.UUID, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE actual_lines
SET ro_approved_at = $3, ro_approved_by = $4, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2`, tenantID, actualLineID, at, by)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (Instance, error) {
	var inst Instance
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&inst.ID, &inst.TenantID, &inst.ActualLineID, &inst.ResourceID,
		&inst.Year, &inst.Month, &inst.CreatedBy, &createdAt, &updatedAt); err != nil {
		return Instance{}, err
	}
	inst.CreatedAt = createdAt.Time
	inst.UpdatedAt = updatedAt.Time
	return inst, nil
}

func scanStep(row rowScanner) (Step, error) {
	var step Step
	var role, status string
	var approverID, actedBy pgtype.UUID
	var actedAt pgtype.Timestamptz
	if err := row.Scan(&step.ID, &step.InstanceID, &step.StepOrder, &role, &approverID,
		&status, &actedBy, &actedAt, &step.Comment, &step.IsProxy); err != nil {
		return Step{}, err
	}
	step.Role = shared.Role(role)
	step.Status = StepStatus(status)
	step.ApproverID = uuidPtr(approverID)
	step.ActedBy = uuidPtr(actedBy)
	if actedAt.Valid {
		t := actedAt.Time
		step.ActedAt = &t
	}
	return step, nil
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
