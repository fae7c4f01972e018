package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planora-app/planora/internal/reconcile"
	"github.com/planora-app/planora/internal/shared"
)

const snapshotColumns = `id, tenant_id, period_id, name, COALESCE(description, ''), published_by, published_at, dashboard`

const lineColumns = `id, snapshot_id, line_type, project_id, COALESCE(project_name, ''), resource_id, COALESCE(resource_name, ''),
placeholder_id, COALESCE(placeholder_name, ''), year, month, fte_percent`

// Repository persists snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes the snapshot and all its lines in one transaction.
func (r *Repository) Insert(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if r == nil || r.pool == nil {
		return Snapshot{}, fmt.Errorf("snapshot: repository not initialised")
	}
	dashboard, err := json.Marshal(snap.Dashboard)
	if err != nil {
		return Snapshot{}, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO publish_snapshots
(id, tenant_id, period_id, name, description, published_by, published_at, dashboard)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		snap.ID, snap.TenantID, snap.PeriodID, snap.Name, snap.Description,
		snap.PublishedBy, snap.PublishedAt, dashboard)
	if err != nil {
		return Snapshot{}, err
	}
	for _, line := range snap.Lines {
		_, err := tx.Exec(ctx, `INSERT INTO publish_snapshot_lines
(id, snapshot_id, line_type, project_id, project_name, resource_id, resource_name,
 placeholder_id, placeholder_name, year, month, fte_percent)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, $12)`,
			line.ID, line.SnapshotID, string(line.Type),
			line.ProjectID, line.ProjectName, line.ResourceID, line.ResourceName,
			line.PlaceholderID, line.PlaceholderName, line.Year, line.Month, line.FtePercent)
		if err != nil {
			return Snapshot{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// List returns snapshot headers newest first, optionally scoped to a
// period. Lines are loaded on Get only.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, periodID *uuid.UUID) ([]Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM publish_snapshots WHERE tenant_id = $1`
	args := []any{tenantID}
	if periodID != nil {
		args = append(args, *periodID)
		query += ` AND period_id = $2`
	}
	query += ` ORDER BY published_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Get fetches one snapshot with its lines.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Snapshot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM publish_snapshots
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, shared.NewError(shared.CodeNotFound, "snapshot not found")
		}
		return Snapshot{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM publish_snapshot_lines
WHERE snapshot_id = $1 ORDER BY line_type, year, month`, id)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var snap Snapshot
	var publishedAt pgtype.Timestamptz
	var dashboard []byte
	if err := row.Scan(&snap.ID, &snap.TenantID, &snap.PeriodID, &snap.Name, &snap.Description,
		&snap.PublishedBy, &publishedAt, &dashboard); err != nil {
		return Snapshot{}, err
	}
	snap.PublishedAt = publishedAt.Time
	if len(dashboard) > 0 {
		var dash reconcile.Dashboard
		if err := json.Unmarshal(dashboard, &dash); err != nil {
			return Snapshot{}, err
		}
		snap.Dashboard = dash
	}
	return snap, nil
}

func scanLine(row rowScanner) (Line, error) {
	var line Line
	var lineType string
	var projectID, resourceID, placeholderID pgtype.UUID
	if err := row.Scan(&line.ID, &line.SnapshotID, &lineType,
		&projectID, &line.ProjectName, &resourceID, &line.ResourceName,
		&placeholderID, &line.PlaceholderName, &line.Year, &line.Month, &line.FtePercent); err != nil {
		return Line{}, err
	}
	line.Type = LineType(lineType)
	line.ProjectID = uuidPtr(projectID)
	line.ResourceID = uuidPtr(resourceID)
	line.PlaceholderID = uuidPtr(placeholderID)
	return line, nil
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
