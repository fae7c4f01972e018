package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role matches the app roles issued by the identity gateway.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleFinance  Role = "Finance"
	RolePM       Role = "PM"
	RoleRO       Role = "RO"
	RoleDirector Role = "Director"
	RoleEmployee Role = "Employee"
)

// ValidRole reports whether r is a known app role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleFinance, RolePM, RoleRO, RoleDirector, RoleEmployee:
		return true
	default:
		return false
	}
}

// Principal is the authenticated caller resolved by the upstream gateway.
// ResourceID is non-nil only for users linked to a planning resource.
type Principal struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Role       Role
	ResourceID uuid.UUID
}

// HasResource reports whether the principal is linked to a resource.
func (p Principal) HasResource() bool {
	return p.ResourceID != uuid.Nil
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
