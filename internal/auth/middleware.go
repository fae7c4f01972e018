// Package auth resolves the authenticated principal supplied by the
// identity gateway and centralises role-based capability checks.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/shared"
)

// Headers populated by the upstream gateway after token validation.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderResourceID = "X-Resource-ID"
)

// Middleware parses gateway identity headers into a shared.Principal.
// Requests without a resolvable principal are rejected; the core never
// sees raw credentials.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := principalFromRequest(r)
			if err != nil {
				if logger != nil {
					logger.Warn("reject unauthenticated request",
						slog.String("path", r.URL.Path),
						slog.Any("error", err))
				}
				httpx.Problem(w, httpx.ProblemDetail{
					Title:  "Unauthorized",
					Status: http.StatusUnauthorized,
					Detail: "missing or invalid identity headers",
					Code:   "UNAUTHORIZED",
				})
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromRequest(r *http.Request) (shared.Principal, error) {
	tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderTenantID)))
	if err != nil {
		return shared.Principal{}, shared.NewError(shared.CodeValidation, "tenant header missing or malformed")
	}
	userID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderUserID)))
	if err != nil {
		return shared.Principal{}, shared.NewError(shared.CodeValidation, "user header missing or malformed")
	}
	role := shared.Role(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
	if !shared.ValidRole(role) {
		return shared.Principal{}, shared.Errorf(shared.CodeValidation, "unknown role %q", role)
	}
	principal := shared.Principal{TenantID: tenantID, UserID: userID, Role: role}
	if raw := strings.TrimSpace(r.Header.Get(HeaderResourceID)); raw != "" {
		resourceID, err := uuid.Parse(raw)
		if err != nil {
			return shared.Principal{}, shared.NewError(shared.CodeValidation, "resource header malformed")
		}
		principal.ResourceID = resourceID
	}
	return principal, nil
}

// Require rejects requests whose principal lacks the capability.
func Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok || !Can(principal, action) {
				httpx.RespondError(w, shared.Errorf(shared.CodeUnauthorizedRole,
					"role is not permitted to %s", action))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
