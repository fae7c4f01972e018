package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads reminder backlogs from PostgreSQL. All queries span
// every tenant with an open period for the given month; the scheduler
// runs outside any single tenant's scope.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new jobs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) PlannerNudges(ctx context.Context, phase Phase, year, month int) ([]PlannerNudge, error) {
	var roles []string
	switch phase {
	case PhasePMRO:
		roles = []string{"PM", "RO"}
	case PhaseFinance:
		roles = []string{"Finance"}
	default:
		return nil, fmt.Errorf("jobs: phase %q has no planner nudge", phase)
	}
	rows, err := r.pool.Query(ctx, `SELECT u.tenant_id, u.id, p.year, p.month
FROM periods p
JOIN users u ON u.tenant_id = p.tenant_id AND u.role = ANY($3)
WHERE p.year = $1 AND p.month = $2 AND p.status = 'open'`, year, month, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlannerNudge
	for rows.Next() {
		var nudge PlannerNudge
		if err := rows.Scan(&nudge.TenantID, &nudge.UserID, &nudge.Year, &nudge.Month); err != nil {
			return nil, err
		}
		out = append(out, nudge)
	}
	return out, rows.Err()
}

func (r *Repository) UnsignedActuals(ctx context.Context, year, month int) ([]UnsignedReminder, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.tenant_id, res.user_id, res.display_name, COUNT(*)
FROM actual_lines a
JOIN periods p ON p.id = a.period_id AND p.status = 'open'
JOIN resources res ON res.id = a.resource_id AND res.tenant_id = a.tenant_id
WHERE a.year = $1 AND a.month = $2 AND a.employee_signed_at IS NULL AND res.user_id IS NOT NULL
GROUP BY a.tenant_id, res.user_id, res.display_name`, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnsignedReminder
	for rows.Next() {
		var reminder UnsignedReminder
		if err := rows.Scan(&reminder.TenantID, &reminder.UserID, &reminder.ResourceName, &reminder.LineCount); err != nil {
			return nil, err
		}
		out = append(out, reminder)
	}
	return out, rows.Err()
}

func (r *Repository) PendingApprovals(ctx context.Context, year, month int) ([]ApproverReminder, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.tenant_id, s.approver_id, COUNT(*)
FROM approval_steps s
JOIN approval_instances i ON i.id = s.instance_id
WHERE i.year = $1 AND i.month = $2 AND s.status = 'pending'
  AND s.approver_id IS NOT NULL
  AND s.step_order = (
      SELECT MIN(s2.step_order) FROM approval_steps s2
      WHERE s2.instance_id = s.instance_id AND s2.status = 'pending')
  AND NOT EXISTS (
      SELECT 1 FROM approval_steps s3
      WHERE s3.instance_id = s.instance_id AND s3.status = 'rejected')
GROUP BY i.tenant_id, s.approver_id`, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApproverReminder
	for rows.Next() {
		var reminder ApproverReminder
		if err := rows.Scan(&reminder.TenantID, &reminder.UserID, &reminder.StepCount); err != nil {
			return nil, err
		}
		out = append(out, reminder)
	}
	return out, rows.Err()
}
