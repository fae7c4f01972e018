package period

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/auth"
	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/shared"
)

// Handler wires HTTP endpoints for managing planning periods.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a period HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/periods", func(r chi.Router) {
		r.With(auth.Require(auth.ActionPeriodView)).Get("/", h.list)
		r.With(auth.Require(auth.ActionPeriodView)).Get("/current", h.current)
		r.With(auth.Require(auth.ActionPeriodView)).Get("/{id}", h.get)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.ActionPeriodManage))
			r.Post("/", h.create)
			r.Post("/{id}/lock", h.lock)
			r.Post("/{id}/unlock", h.unlock)
		})
	})
}

type createRequest struct {
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

type unlockRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type periodResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Label      string     `json:"label"`
	Status     string     `json:"status"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LockedBy   *uuid.UUID `json:"locked_by,omitempty"`
	LockReason string     `json:"lock_reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toResponse(p Period) periodResponse {
	return periodResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		Year:       p.Year,
		Month:      p.Month,
		Label:      p.Label(),
		Status:     string(p.Status),
		LockedAt:   p.LockedAt,
		LockedBy:   p.LockedBy,
		LockReason: p.LockReason,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	periods, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, "list periods", err)
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	p, err := h.service.GetCurrent(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, "get current period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed period id"))
		return
	}
	p, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "get period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid period payload", validationFields(err))
		return
	}
	p, err := h.service.Create(r.Context(), actor, CreateInput{Year: req.Year, Month: req.Month})
	if err != nil {
		h.respondError(w, r, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed period id"))
		return
	}
	p, err := h.service.Lock(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "lock period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed period id"))
		return
	}
	var req unlockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	p, err := h.service.Unlock(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.respondError(w, r, "unlock period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if _, ok := shared.AsDomainError(err); !ok && h.logger != nil {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func validationFields(err error) []httpx.ProblemField {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]httpx.ProblemField, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, httpx.ProblemField{Field: fe.Field(), Message: fe.Tag()})
	}
	return fields
}
