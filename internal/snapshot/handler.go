package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/auth"
	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/reconcile"
	"github.com/planora-app/planora/internal/shared"
)

const idempotencyScope = "snapshot_publish"

// IdempotencyGuard deduplicates publish requests that carry an
// Idempotency-Key header.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, tenantID uuid.UUID, key, scope string) error
	Delete(ctx context.Context, tenantID uuid.UUID, key, scope string) error
}

// Handler wires HTTP endpoints for publishing and reading snapshots.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validator.Validate
	idempotency IdempotencyGuard
}

// NewHandler constructs a snapshot HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// WithIdempotency enables publish deduplication. guard may be nil.
func (h *Handler) WithIdempotency(guard IdempotencyGuard) {
	h.idempotency = guard
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/consolidation/snapshots", func(r chi.Router) {
		r.With(auth.Require(auth.ActionSnapshotView)).Get("/", h.list)
		r.With(auth.Require(auth.ActionSnapshotView)).Get("/{id}", h.get)
		r.With(auth.Require(auth.ActionSnapshotView)).Get("/{id}/export.csv", h.exportCSV)
		r.With(auth.Require(auth.ActionSnapshotPublish)).Post("/", h.publish)
	})
}

type publishRequest struct {
	PeriodID    uuid.UUID `json:"period_id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
}

type lineResponse struct {
	ID              uuid.UUID  `json:"id"`
	Type            string     `json:"line_type"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
	ProjectName     string     `json:"project_name,omitempty"`
	ResourceID      *uuid.UUID `json:"resource_id,omitempty"`
	ResourceName    string     `json:"resource_name,omitempty"`
	PlaceholderID   *uuid.UUID `json:"placeholder_id,omitempty"`
	PlaceholderName string     `json:"placeholder_name,omitempty"`
	Year            int        `json:"year"`
	Month           int        `json:"month"`
	FtePercent      int        `json:"fte_percent"`
}

type snapshotResponse struct {
	ID          uuid.UUID            `json:"id"`
	PeriodID    uuid.UUID            `json:"period_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	PublishedBy uuid.UUID            `json:"published_by"`
	PublishedAt time.Time            `json:"published_at"`
	Dashboard   *reconcile.Dashboard `json:"dashboard,omitempty"`
	Lines       []lineResponse       `json:"lines,omitempty"`
	LinesCount  int                  `json:"lines_count"`
}

func toResponse(snap Snapshot, includeDetail bool) snapshotResponse {
	out := snapshotResponse{
		ID:          snap.ID,
		PeriodID:    snap.PeriodID,
		Name:        snap.Name,
		Description: snap.Description,
		PublishedBy: snap.PublishedBy,
		PublishedAt: snap.PublishedAt,
		LinesCount:  len(snap.Lines),
	}
	if includeDetail {
		dash := snap.Dashboard
		out.Dashboard = &dash
		out.Lines = make([]lineResponse, 0, len(snap.Lines))
		for _, line := range snap.Lines {
			out.Lines = append(out.Lines, lineResponse{
				ID:              line.ID,
				Type:            string(line.Type),
				ProjectID:       line.ProjectID,
				ProjectName:     line.ProjectName,
				ResourceID:      line.ResourceID,
				ResourceName:    line.ResourceName,
				PlaceholderID:   line.PlaceholderID,
				PlaceholderName: line.PlaceholderName,
				Year:            line.Year,
				Month:           line.Month,
				FtePercent:      line.FtePercent,
			})
		}
	}
	return out
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req publishRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, "invalid publish payload", validationFields(err))
		return
	}
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" && h.idempotency != nil {
		err := h.idempotency.CheckAndInsert(r.Context(), actor.TenantID, idemKey, idempotencyScope)
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.RespondError(w, shared.NewError(shared.CodeConflict, "snapshot already published for this idempotency key"))
			return
		}
		if err != nil {
			h.respondError(w, r, "check idempotency key", err)
			return
		}
	}
	snap, err := h.service.Publish(r.Context(), actor, PublishInput{
		PeriodID:    req.PeriodID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), actor.TenantID, idemKey, idempotencyScope); delErr != nil && h.logger != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.respondError(w, r, "publish snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(snap, true))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var periodID *uuid.UUID
	if v := r.URL.Query().Get("period_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed period_id"))
			return
		}
		periodID = &id
	}
	snaps, err := h.service.List(r.Context(), actor, periodID)
	if err != nil {
		h.respondError(w, r, "list snapshots", err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toResponse(snap, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed snapshot id"))
		return
	}
	snap, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "get snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(snap, true))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.CodeValidation, "malformed snapshot id"))
		return
	}
	snap, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, "export snapshot", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "snapshot-"+snap.ID.String()+".csv"))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"line_type", "project", "resource", "placeholder", "year", "month", "fte_percent"})
	for _, line := range snap.Lines {
		_ = writer.Write([]string{
			string(line.Type),
			line.ProjectName,
			line.ResourceName,
			line.PlaceholderName,
			fmt.Sprintf("%d", line.Year),
			fmt.Sprintf("%02d", line.Month),
			fmt.Sprintf("%d", line.FtePercent),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil && h.logger != nil {
		h.logger.Error("write snapshot csv", slog.Any("error", err))
	}
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
