package approval

import (
	"context"
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

// Handler wires HTTP endpoints for the approval workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs an approval HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Use(auth.Require(auth.ActionApprovalAct))
		r.Get("/inbox", h.inbox)
		r.Get("/{id}", h.get)
		r.Post("/{id}/steps/{stepID}/approve", h.approve)
		r.Post("/{id}/steps/{stepID}/reject", h.reject)
		r.Post("/{id}/steps/{stepID}/proxy-approve", h.proxyApprove)
	})
}

type actRequest struct {
	Comment string `json:"comment"`
}

type proxyActRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type stepResponse struct {
	ID         uuid.UUID  `json:"id"`
	StepOrder  int        `json:"step_order"`
	Role       string     `json:"role"`
	ApproverID *uuid.UUID `json:"approver_id,omitempty"`
	Status     string     `json:"status"`
	ActedBy    *uuid.UUID `json:"acted_by,omitempty"`
	ActedAt    *time.Time `json:"acted_at,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	IsProxy    bool       `json:"is_proxy"`
}

type instanceResponse struct {
	ID           uuid.UUID      `json:"id"`
	ActualLineID uuid.UUID      `json:"actual_line_id"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	Year         int            `json:"year"`
	Month        int            `json:"month"`
	Status       string         `json:"status"`
	CurrentStep  *int           `json:"current_step_order,omitempty"`
	Steps        []stepResponse `json:"steps"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toResponse(inst Instance) instanceResponse {
	out := instanceResponse{
		ID:           inst.ID,
		ActualLineID: inst.ActualLineID,
		ResourceID:   inst.ResourceID,
		Year:         inst.Year,
		Month:        inst.Month,
		Status:       string(inst.Status()),
		Steps:        make([]stepResponse, 0, len(inst.Steps)),
		CreatedAt:    inst.CreatedAt,
		UpdatedAt:    inst.UpdatedAt,
	}
	if current := inst.CurrentStep(); current != nil {
		order := current.StepOrder
		out.CurrentStep = &order
	}
	for _, step := range inst.Steps {
		out.Steps = append(out.Steps, stepResponse{
			ID:         step.ID,
			StepOrder:  step.StepOrder,
			Role:       string(step.Role),
			ApproverID: step.ApproverID,
			Status:     string(step.Status),
			ActedBy:    step.ActedBy,
			ActedAt:    step.ActedAt,
			Comment:    step.Comment,
			IsProxy:    step.IsProxy,
		})
	}
	return out
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	instances, err := h.service.Inbox(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, "approval inbox", err)
		return
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toResponse(inst))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed instance id"))
		return
	}
	inst, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "get approval instance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inst))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.actOnStep(w, r, "approve step", h.service.ApproveStep)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.actOnStep(w, r, "reject step", h.service.RejectStep)
}

func (h *Handler) proxyApprove(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, stepID, ok := h.stepParams(w, r)
	if !ok {
		return
	}
	var req proxyActRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid proxy approval payload", validationFields(err))
		return
	}
	inst, err := h.service.ProxyApprove(r.Context(), actor, id, stepID, req.Comment)
	if err != nil {
		h.respondError(w, r, "proxy approve step", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inst))
}

func (h *Handler) actOnStep(w http.ResponseWriter, r *http.Request, op string, act func(context.Context, shared.Principal, uuid.UUID, uuid.UUID, string) (Instance, error)) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, stepID, ok := h.stepParams(w, r)
	if !ok {
		return
	}
	var req actRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	inst, err := act(r.Context(), actor, id, stepID, req.Comment)
	if err != nil {
		h.respondError(w, r, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inst))
}

func (h *Handler) stepParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed instance id"))
		return uuid.Nil, uuid.Nil, false
	}
	stepID, err := uuid.Parse(chi.URLParam(r, "stepID"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed step id"))
		return uuid.Nil, uuid.Nil, false
	}
	return id, stepID, true
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
