package allocation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/auth"
	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/shared"
)

// Handler wires HTTP endpoints for demand, supply and actual lines.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs an allocation HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/planning/demand", func(r chi.Router) {
		r.With(auth.Require(auth.ActionDashboardView)).Get("/", h.listDemand)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.ActionDemandWrite))
			r.Post("/", h.createDemand)
			r.Put("/{id}", h.updateDemand)
			r.Delete("/{id}", h.deleteDemand)
		})
	})
	r.Route("/planning/supply", func(r chi.Router) {
		r.With(auth.Require(auth.ActionDashboardView)).Get("/", h.listSupply)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.ActionSupplyWrite))
			r.Post("/", h.createSupply)
			r.Put("/{id}", h.updateSupply)
			r.Delete("/{id}", h.deleteSupply)
		})
	})
	r.Route("/actuals", func(r chi.Router) {
		r.With(auth.Require(auth.ActionDashboardView)).Get("/", h.listActuals)
		r.With(auth.Require(auth.ActionActualWrite)).Get("/mine", h.listMyActuals)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.ActionActualWrite))
			r.Post("/", h.createActual)
			r.Put("/{id}", h.updateActual)
			r.Delete("/{id}", h.deleteActual)
			r.Post("/{id}/sign", h.sign)
		})
		r.With(auth.Require(auth.ActionActualProxySign)).Post("/{id}/proxy-sign", h.proxySign)
	})
}

type demandRequest struct {
	ProjectID     uuid.UUID  `json:"project_id" validate:"required"`
	Year          int        `json:"year" validate:"required,min=2000,max=2100"`
	Month         int        `json:"month" validate:"required,min=1,max=12"`
	FtePercent    int        `json:"fte_percent" validate:"required"`
	ResourceID    *uuid.UUID `json:"resource_id"`
	PlaceholderID *uuid.UUID `json:"placeholder_id"`
}

type demandUpdateRequest struct {
	FtePercent    int        `json:"fte_percent" validate:"required"`
	ResourceID    *uuid.UUID `json:"resource_id"`
	PlaceholderID *uuid.UUID `json:"placeholder_id"`
}

type supplyRequest struct {
	ResourceID uuid.UUID  `json:"resource_id" validate:"required"`
	ProjectID  *uuid.UUID `json:"project_id"`
	Year       int        `json:"year" validate:"required,min=2000,max=2100"`
	Month      int        `json:"month" validate:"required,min=1,max=12"`
	FtePercent int        `json:"fte_percent" validate:"required"`
}

type ftePatchRequest struct {
	FtePercent int `json:"fte_percent" validate:"required"`
}

type actualRequest struct {
	ResourceID       uuid.UUID `json:"resource_id" validate:"required"`
	ProjectID        uuid.UUID `json:"project_id" validate:"required"`
	Year             int       `json:"year" validate:"required,min=2000,max=2100"`
	Month            int       `json:"month" validate:"required,min=1,max=12"`
	ActualFtePercent int       `json:"actual_fte_percent" validate:"min=0,max=100"`
}

type actualPatchRequest struct {
	ActualFtePercent int `json:"actual_fte_percent" validate:"min=0,max=100"`
}

type proxySignRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type demandResponse struct {
	ID            uuid.UUID  `json:"id"`
	PeriodID      uuid.UUID  `json:"period_id"`
	Year          int        `json:"year"`
	Month         int        `json:"month"`
	ProjectID     uuid.UUID  `json:"project_id"`
	ResourceID    *uuid.UUID `json:"resource_id,omitempty"`
	PlaceholderID *uuid.UUID `json:"placeholder_id,omitempty"`
	FtePercent    int        `json:"fte_percent"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toDemandResponse(d DemandLine) demandResponse {
	return demandResponse{
		ID:            d.ID,
		PeriodID:      d.PeriodID,
		Year:          d.Year,
		Month:         d.Month,
		ProjectID:     d.ProjectID,
		ResourceID:    d.ResourceID,
		PlaceholderID: d.PlaceholderID,
		FtePercent:    d.FtePercent,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type supplyResponse struct {
	ID         uuid.UUID  `json:"id"`
	PeriodID   uuid.UUID  `json:"period_id"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	ResourceID uuid.UUID  `json:"resource_id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	FtePercent int        `json:"fte_percent"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toSupplyResponse(s SupplyLine) supplyResponse {
	return supplyResponse{
		ID:         s.ID,
		PeriodID:   s.PeriodID,
		Year:       s.Year,
		Month:      s.Month,
		ResourceID: s.ResourceID,
		ProjectID:  s.ProjectID,
		FtePercent: s.FtePercent,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type actualResponse struct {
	ID                uuid.UUID  `json:"id"`
	PeriodID          uuid.UUID  `json:"period_id"`
	Year              int        `json:"year"`
	Month             int        `json:"month"`
	ResourceID        uuid.UUID  `json:"resource_id"`
	ProjectID         uuid.UUID  `json:"project_id"`
	PlannedFtePercent *int       `json:"planned_fte_percent,omitempty"`
	ActualFtePercent  int        `json:"actual_fte_percent"`
	EmployeeSignedAt  *time.Time `json:"employee_signed_at,omitempty"`
	EmployeeSignedBy  *uuid.UUID `json:"employee_signed_by,omitempty"`
	IsProxySigned     bool       `json:"is_proxy_signed"`
	ProxySignReason   string     `json:"proxy_sign_reason,omitempty"`
	ROApprovedAt      *time.Time `json:"ro_approved_at,omitempty"`
	ROApprovedBy      *uuid.UUID `json:"ro_approved_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toActualResponse(a ActualLine) actualResponse {
	return actualResponse{
		ID:                a.ID,
		PeriodID:          a.PeriodID,
		Year:              a.Year,
		Month:             a.Month,
		ResourceID:        a.ResourceID,
		ProjectID:         a.ProjectID,
		PlannedFtePercent: a.PlannedFtePercent,
		ActualFtePercent:  a.ActualFtePercent,
		EmployeeSignedAt:  a.EmployeeSignedAt,
		EmployeeSignedBy:  a.EmployeeSignedBy,
		IsProxySigned:     a.IsProxySigned,
		ProxySignReason:   a.ProxySignReason,
		ROApprovedAt:      a.ROApprovedAt,
		ROApprovedBy:      a.ROApprovedBy,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func lineFilterFromQuery(r *http.Request) (LineFilter, error) {
	var f LineFilter
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 0 {
			return f, shared.NewError(shared.CodeValidation, "malformed year")
		}
		f.Year = year
	}
	if v := q.Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return f, shared.NewError(shared.CodeValidation, "malformed month")
		}
		f.Month = month
	}
	if v := q.Get("project_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, shared.NewError(shared.CodeValidation, "malformed project_id")
		}
		f.ProjectID = &id
	}
	if v := q.Get("resource_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, shared.NewError(shared.CodeValidation, "malformed resource_id")
		}
		f.ResourceID = &id
	}
	return f, nil
}

// ---------------------------------------------------------------- demand

func (h *Handler) listDemand(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	f, err := lineFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.ListDemand(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, r, "list demand", err)
		return
	}
	out := make([]demandResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toDemandResponse(line))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createDemand(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req demandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid demand payload", validationFields(err))
		return
	}
	line, err := h.service.CreateDemand(r.Context(), actor, DemandInput{
		ProjectID:     req.ProjectID,
		Year:          req.Year,
		Month:         req.Month,
		FtePercent:    req.FtePercent,
		ResourceID:    req.ResourceID,
		PlaceholderID: req.PlaceholderID,
	})
	if err != nil {
		h.respondError(w, r, "create demand", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDemandResponse(line))
}

func (h *Handler) updateDemand(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	var req demandUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid demand payload", validationFields(err))
		return
	}
	line, err := h.service.UpdateDemand(r.Context(), actor, id, DemandUpdate{
		FtePercent:    req.FtePercent,
		ResourceID:    req.ResourceID,
		PlaceholderID: req.PlaceholderID,
	})
	if err != nil {
		h.respondError(w, r, "update demand", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDemandResponse(line))
}

func (h *Handler) deleteDemand(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	if err := h.service.DeleteDemand(r.Context(), actor, id); err != nil {
		h.respondError(w, r, "delete demand", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------- supply

func (h *Handler) listSupply(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	f, err := lineFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.ListSupply(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, r, "list supply", err)
		return
	}
	out := make([]supplyResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toSupplyResponse(line))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createSupply(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req supplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid supply payload", validationFields(err))
		return
	}
	line, err := h.service.CreateSupply(r.Context(), actor, SupplyInput{
		ResourceID: req.ResourceID,
		ProjectID:  req.ProjectID,
		Year:       req.Year,
		Month:      req.Month,
		FtePercent: req.FtePercent,
	})
	if err != nil {
		h.respondError(w, r, "create supply", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSupplyResponse(line))
}

func (h *Handler) updateSupply(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	var req ftePatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid supply payload", validationFields(err))
		return
	}
	line, err := h.service.UpdateSupply(r.Context(), actor, id, req.FtePercent)
	if err != nil {
		h.respondError(w, r, "update supply", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplyResponse(line))
}

func (h *Handler) deleteSupply(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	if err := h.service.DeleteSupply(r.Context(), actor, id); err != nil {
		h.respondError(w, r, "delete supply", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------- actuals

func (h *Handler) listActuals(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	f, err := lineFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.ListActuals(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, r, "list actuals", err)
		return
	}
	out := make([]actualResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toActualResponse(line))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listMyActuals(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	f, err := lineFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.ListMyActuals(r.Context(), actor, f)
	if err != nil {
		h.respondError(w, r, "list my actuals", err)
		return
	}
	out := make([]actualResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toActualResponse(line))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createActual(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req actualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid actuals payload", validationFields(err))
		return
	}
	line, err := h.service.CreateActual(r.Context(), actor, ActualInput{
		ResourceID:       req.ResourceID,
		ProjectID:        req.ProjectID,
		Year:             req.Year,
		Month:            req.Month,
		ActualFtePercent: req.ActualFtePercent,
	})
	if err != nil {
		h.respondError(w, r, "create actual", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toActualResponse(line))
}

func (h *Handler) updateActual(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	var req actualPatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid actuals payload", validationFields(err))
		return
	}
	line, err := h.service.UpdateActual(r.Context(), actor, id, req.ActualFtePercent)
	if err != nil {
		h.respondError(w, r, "update actual", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActualResponse(line))
}

func (h *Handler) deleteActual(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	if err := h.service.DeleteActual(r.Context(), actor, id); err != nil {
		h.respondError(w, r, "delete actual", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	line, err := h.service.Sign(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "sign actual", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActualResponse(line))
}

func (h *Handler) proxySign(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed line id"))
		return
	}
	var req proxySignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid proxy sign payload", validationFields(err))
		return
	}
	line, err := h.service.ProxySign(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.respondError(w, r, "proxy sign actual", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActualResponse(line))
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
