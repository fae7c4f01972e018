package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditColumns = `id, tenant_id, actor_id, action, entity, entity_id, old_values, new_values, COALESCE(reason, ''), occurred_at`

// Repository reads audit_logs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new audit Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Timeline(ctx context.Context, tenantID uuid.UUID, filter Filter, limit, offset int) ([]Entry, error) {
	query, args := timelineQuery(tenantID, filter)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.query(ctx, query, args)
}

func (r *Repository) TimelineAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Entry, error) {
	query, args := timelineQuery(tenantID, filter)
	return r.query(ctx, query, args)
}

func (r *Repository) query(ctx context.Context, query string, args []any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func timelineQuery(tenantID uuid.UUID, filter Filter) (string, []any) {
	var where strings.Builder
	where.WriteString(`SELECT ` + auditColumns + ` FROM audit_logs WHERE tenant_id = $1`)
	args := []any{tenantID}
	next := func() int { return len(args) + 1 }
	if !filter.From.IsZero() {
		where.WriteString(fmt.Sprintf(` AND occurred_at >= $%d`, next()))
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		where.WriteString(fmt.Sprintf(` AND occurred_at <= $%d`, next()))
		args = append(args, filter.To)
	}
	if filter.ActorID != nil {
		where.WriteString(fmt.Sprintf(` AND actor_id = $%d`, next()))
		args = append(args, *filter.ActorID)
	}
	if entity := strings.TrimSpace(filter.Entity); entity != "" {
		where.WriteString(fmt.Sprintf(` AND entity = $%d`, next()))
		args = append(args, entity)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		where.WriteString(fmt.Sprintf(` AND action = $%d`, next()))
		args = append(args, action)
	}
	where.WriteString(` ORDER BY occurred_at DESC, id DESC`)
	return where.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		id         pgtype.UUID
		tenantID   pgtype.UUID
		actorID    pgtype.UUID
		oldValues  []byte
		newValues  []byte
		occurredAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &tenantID, &actorID, &entry.Action, &entry.Entity, &entry.EntityID,
		&oldValues, &newValues, &entry.Reason, &occurredAt)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id.Bytes
	entry.TenantID = tenantID.Bytes
	entry.ActorID = actorID.Bytes
	if occurredAt.Valid {
		entry.At = occurredAt.Time
	}
	if len(oldValues) > 0 {
		if err := json.Unmarshal(oldValues, &entry.OldValues); err != nil {
			return Entry{}, err
		}
	}
	if len(newValues) > 0 {
		if err := json.Unmarshal(newValues, &entry.NewValues); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}
