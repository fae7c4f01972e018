// Package masterdata exposes read-only lookups over externally managed
// reference data. The planning core validates that referenced IDs exist and
// resolves organisational placement; it never mutates master data.
package masterdata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planora-app/planora/internal/shared"
)

// ResourceInfo carries a resource's organisational placement.
type ResourceInfo struct {
	ID             uuid.UUID
	DisplayName    string
	CostCenterID   *uuid.UUID
	CostCenterName string
	DepartmentID   *uuid.UUID
	DepartmentName string
	ROUserID       *uuid.UUID
}

// PlaceholderInfo describes a TBD-hire placeholder.
type PlaceholderInfo struct {
	ID             uuid.UUID
	Name           string
	CostCenterID   *uuid.UUID
	CostCenterName string
	DepartmentID   *uuid.UUID
	DepartmentName string
}

// ProjectInfo is the minimal project projection the core needs.
type ProjectInfo struct {
	ID   uuid.UUID
	Name string
}

// Repository reads reference data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const resourceInfoQuery = `SELECT r.id, r.display_name,
	cc.id, COALESCE(cc.name, ''), d.id, COALESCE(d.name, ''), cc.ro_user_id
FROM resources r
LEFT JOIN cost_centers cc ON cc.id = r.cost_center_id AND cc.tenant_id = r.tenant_id
LEFT JOIN departments d ON d.id = cc.department_id AND d.tenant_id = r.tenant_id
WHERE r.tenant_id = $1`

// GetResource resolves one resource with its cost center and department.
func (r *Repository) GetResource(ctx context.Context, tenantID, resourceID uuid.UUID) (ResourceInfo, error) {
	row := r.pool.QueryRow(ctx, resourceInfoQuery+` AND r.id = $2`, tenantID, resourceID)
	info, err := scanResourceInfo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResourceInfo{}, shared.NewError(shared.CodeNotFound, "resource not found")
		}
		return ResourceInfo{}, err
	}
	return info, nil
}

// ListResources returns all of the tenant's resources keyed by id.
func (r *Repository) ListResources(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]ResourceInfo, error) {
	rows, err := r.pool.Query(ctx, resourceInfoQuery, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ResourceInfo)
	for rows.Next() {
		info, err := scanResourceInfo(rows)
		if err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

const placeholderInfoQuery = `SELECT p.id, p.name,
	cc.id, COALESCE(cc.name, ''), d.id, COALESCE(d.name, '')
FROM placeholders p
LEFT JOIN cost_centers cc ON cc.id = p.cost_center_id AND cc.tenant_id = p.tenant_id
LEFT JOIN departments d ON d.id = p.department_id AND d.tenant_id = p.tenant_id
WHERE p.tenant_id = $1`

// GetPlaceholder resolves one placeholder.
func (r *Repository) GetPlaceholder(ctx context.Context, tenantID, placeholderID uuid.UUID) (PlaceholderInfo, error) {
	row := r.pool.QueryRow(ctx, placeholderInfoQuery+` AND p.id = $2`, tenantID, placeholderID)
	info, err := scanPlaceholderInfo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlaceholderInfo{}, shared.NewError(shared.CodeNotFound, "placeholder not found")
		}
		return PlaceholderInfo{}, err
	}
	return info, nil
}

// ListPlaceholders returns all of the tenant's placeholders keyed by id.
func (r *Repository) ListPlaceholders(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]PlaceholderInfo, error) {
	rows, err := r.pool.Query(ctx, placeholderInfoQuery, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]PlaceholderInfo)
	for rows.Next() {
		info, err := scanPlaceholderInfo(rows)
		if err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

// GetProject resolves one project.
func (r *Repository) GetProject(ctx context.Context, tenantID, projectID uuid.UUID) (ProjectInfo, error) {
	var info ProjectInfo
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM projects WHERE tenant_id = $1 AND id = $2`,
		tenantID, projectID).Scan(&info.ID, &info.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectInfo{}, shared.NewError(shared.CodeNotFound, "project not found")
		}
		return ProjectInfo{}, err
	}
	return info, nil
}

// ListProjects returns all of the tenant's projects keyed by id.
func (r *Repository) ListProjects(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]ProjectInfo, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM projects WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ProjectInfo)
	for rows.Next() {
		var info ProjectInfo
		if err := rows.Scan(&info.ID, &info.Name); err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

// DirectorFor finds the Director user of a department, if any.
func (r *Repository) DirectorFor(ctx context.Context, tenantID uuid.UUID, departmentID *uuid.UUID) (*uuid.UUID, error) {
	if departmentID == nil {
		return nil, nil
	}
	var directorID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users
WHERE tenant_id = $1 AND department_id = $2 AND role = 'Director'
ORDER BY created_at LIMIT 1`, tenantID, departmentID).Scan(&directorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &directorID, nil
}

func scanResourceInfo(row pgx.Row) (ResourceInfo, error) {
	var info ResourceInfo
	var ccID, deptID, roUserID pgtype.UUID
	if err := row.Scan(&info.ID, &info.DisplayName, &ccID, &info.CostCenterName, &deptID, &info.DepartmentName, &roUserID); err != nil {
		return ResourceInfo{}, err
	}
	info.CostCenterID = uuidPtr(ccID)
	info.DepartmentID = uuidPtr(deptID)
	info.ROUserID = uuidPtr(roUserID)
	return info, nil
}

func scanPlaceholderInfo(row pgx.Row) (PlaceholderInfo, error) {
	var info PlaceholderInfo
	var ccID, deptID pgtype.UUID
	if err := row.Scan(&info.ID, &info.Name, &ccID, &info.CostCenterName, &deptID, &info.DepartmentName); err != nil {
		return PlaceholderInfo{}, err
	}
	info.CostCenterID = uuidPtr(ccID)
	info.DepartmentID = uuidPtr(deptID)
	return info, nil
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
