package audit

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/auth"
	"github.com/planora-app/planora/internal/platform/httpx"
	"github.com/planora-app/planora/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Handler wires HTTP endpoints for the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs an audit HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes. The CSV export is rate limited per
// user because it scans the full filtered window.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Route("/audit", func(r chi.Router) {
		r.Use(auth.Require(auth.ActionAuditView))
		r.Get("/", h.timeline)
		r.With(limiter).Get("/export.csv", h.exportCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.PrincipalFromContext(r.Context()); ok {
		return "user:" + actor.UserID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type entryResponse struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   uuid.UUID      `json:"actor_id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	At        time.Time      `json:"at"`
}

type timelineResponse struct {
	Rows     []entryResponse `json:"rows"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	HasNext  bool            `json:"has_next"`
	PrevPage int             `json:"prev_page,omitempty"`
	NextPage int             `json:"next_page,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		OldValues: e.OldValues,
		NewValues: e.NewValues,
		Reason:    e.Reason,
		At:        e.At,
	}
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	filter, err := filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, r, "audit timeline", err)
		return
	}
	rows := make([]entryResponse, 0, len(result.Rows))
	for _, e := range result.Rows {
		rows = append(rows, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Rows:     rows,
		Page:     result.Page,
		PerPage:  result.PerPage,
		HasNext:  result.HasNext,
		PrevPage: result.PrevPage,
		NextPage: result.NextPage,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	filter, err := filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, r, "audit export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"occurred_at", "actor_id", "action", "entity", "entity_id", "reason"})
	for _, e := range rows {
		record := []string{
			e.At.UTC().Format(time.RFC3339),
			e.ActorID.String(),
			e.Action,
			e.Entity,
			e.EntityID,
			e.Reason,
		}
		if err := writer.Write(record); err != nil {
			if h.logger != nil {
				h.logger.Error("write audit csv", slog.Any("error", err))
			}
			return
		}
	}
	writer.Flush()
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, shared.NewError(shared.CodeValidation, "malformed from timestamp")
		}
		filter.From = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, shared.NewError(shared.CodeValidation, "malformed to timestamp")
		}
		filter.To = ts
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, shared.NewError(shared.CodeValidation, "malformed actor id")
		}
		filter.ActorID = &id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, shared.NewError(shared.CodeValidation, "malformed page")
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, shared.NewError(shared.CodeValidation, "malformed per_page")
		}
		filter.PerPage = perPage
	}
	return filter, nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if _, ok := shared.AsDomainError(err); !ok && h.logger != nil {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
