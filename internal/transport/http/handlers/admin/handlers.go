package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"revwork/internal/domain/audit"
	"revwork/internal/domain/auth"
	"revwork/internal/platform/metrics"
	"revwork/internal/transport/http/api"
	"revwork/internal/transport/http/middleware"
	"revwork/internal/transport/http/shared"
)

// Handler exposes operator-only surfaces: the audit trail and
// in-process request counters.
type Handler struct {
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(auditSvc *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Audit: auditSvc, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleAdmin))
		r.Get("/audit", h.handleListAudit)
		r.Get("/metrics", h.handleMetrics)
	})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		ActorID:    r.URL.Query().Get("actorId"),
	}

	total, err := h.Audit.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "audit lookup failed", reqID)
		return
	}
	events, err := h.Audit.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "audit lookup failed", reqID)
		return
	}

	api.List(w, events, api.Meta{Total: total, Limit: page.Limit, Offset: page.Offset}, reqID)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	api.Success(w, h.Metrics.Snapshot(), reqID)
}
