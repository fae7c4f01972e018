package reconcile

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/auth"
	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/shared"
)

// Handler wires the consolidation dashboard endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a reconciliation HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(auth.Require(auth.ActionDashboardView)).
		Get("/consolidation/dashboard/{periodID}", h.dashboard)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	periodID, err := uuid.Parse(chi.URLParam(r, "periodID"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed period id"))
		return
	}
	dash, err := h.service.Dashboard(r.Context(), actor, periodID)
	if err != nil {
		if _, ok := shared.AsDomainError(err); !ok && h.logger != nil {
			h.logger.Error("compute dashboard", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}
