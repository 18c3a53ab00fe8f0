package performance

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"revwork/internal/domain/auth"
	"revwork/internal/domain/notifications"
	"revwork/internal/domain/org"
	"revwork/internal/domain/performance"
	"revwork/internal/transport/http/api"
	"revwork/internal/transport/http/middleware"
	"revwork/internal/transport/http/shared"
)

type Handler struct {
	Service *performance.Service
	Org     *org.Service
	Notify  *notifications.Service
}

func NewHandler(service *performance.Service, orgSvc *org.Service, notify *notifications.Service) *Handler {
	return &Handler{Service: service, Org: orgSvc, Notify: notify}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance", func(r chi.Router) {
		r.Get("/goals", h.handleMyGoals)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/goals/{employeeID}", h.handleGoalsOf)
		r.Post("/goals", h.handleCreateGoal)
		r.Put("/goals/{id}/status", h.handleUpdateGoalStatus)

		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Post("/reviews", h.handleCreateReview)
		r.Get("/reviews", h.handleMyReviews)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/reviews/{employeeID}", h.handleReviewsOf)
	})
}

func (h *Handler) requireEmployee(w http.ResponseWriter, r *http.Request) (*org.Employee, bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return nil, false
	}
	emp, err := h.Org.Store.GetEmployeeByUserID(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusForbidden, "forbidden", "no employee record linked to this account", reqID)
			return nil, false
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "employee lookup failed", reqID)
		return nil, false
	}
	return emp, true
}

func (h *Handler) handleMyGoals(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	goals, err := h.Service.Store.ListGoals(r.Context(), emp.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "goal list failed", reqID)
		return
	}
	api.Success(w, goals, reqID)
}

func (h *Handler) handleGoalsOf(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	goals, err := h.Service.Store.ListGoals(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "goal list failed", reqID)
		return
	}
	api.Success(w, goals, reqID)
}

type goalPayload struct {
	EmployeeID  string `json:"employeeId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TargetDate  string `json:"targetDate"`
}

func (h *Handler) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	var payload goalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	targetEmployee := payload.EmployeeID
	if targetEmployee == "" {
		targetEmployee = emp.ID
	}
	// Employees set goals for themselves; managers and admins may set
	// them for others.
	if targetEmployee != emp.ID && user.Role == auth.RoleEmployee {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot create goals for other employees", reqID)
		return
	}

	goal, err := h.Service.CreateGoal(r.Context(), targetEmployee, emp.ID, payload.Title, payload.Description, parseOptionalDate(payload.TargetDate))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
		return
	}

	if targetEmployee != emp.ID {
		h.notifyEmployee(r, targetEmployee, notifications.TypeGoalCreated, "New goal assigned",
			fmt.Sprintf("%s set a new goal for you: %s", emp.FullName(), goal.Title))
	}
	api.Created(w, goal, reqID)
}

type goalStatusPayload struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateGoalStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	var payload goalStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	goal, err := h.Service.Store.GetGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}
	if goal.EmployeeID != emp.ID && user.Role == auth.RoleEmployee {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot update goals of other employees", reqID)
		return
	}

	updated, err := h.Service.UpdateGoalStatus(r.Context(), goal.ID, performance.GoalStatus(payload.Status))
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

type reviewPayload struct {
	EmployeeID string `json:"employeeId"`
	Period     string `json:"period"`
	Rating     int    `json:"rating"`
	Comments   string `json:"comments"`
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	var payload reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}
	if payload.EmployeeID == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId is required", reqID)
		return
	}
	if payload.EmployeeID == emp.ID {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot review yourself", reqID)
		return
	}

	id, err := h.Service.RecordReview(r.Context(), payload.EmployeeID, emp.ID, payload.Period, payload.Rating, payload.Comments)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyEmployee(r, payload.EmployeeID, notifications.TypeReviewRecorded, "Performance review recorded",
		fmt.Sprintf("%s recorded a review for period %s.", emp.FullName(), payload.Period))

	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleMyReviews(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	reviews, err := h.Service.Store.ListReviews(r.Context(), emp.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "review list failed", reqID)
		return
	}
	api.Success(w, reviews, reqID)
}

func (h *Handler) handleReviewsOf(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	reviews, err := h.Service.Store.ListReviews(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "review list failed", reqID)
		return
	}
	api.Success(w, reviews, reqID)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, performance.ErrGoalNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	case errors.Is(err, performance.ErrInvalidStatus), errors.Is(err, performance.ErrInvalidRating):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		slog.Warn("performance operation failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}

func (h *Handler) notifyEmployee(r *http.Request, employeeID, ntype, title, body string) {
	emp, err := h.Org.Store.GetEmployee(r.Context(), employeeID)
	if err != nil || emp.UserID == "" {
		return
	}
	if err := h.Notify.Create(r.Context(), emp.UserID, ntype, title, body); err != nil {
		slog.Warn("notification failed", "type", ntype, "error", err)
	}
}

func parseOptionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := shared.ParseDate(raw)
	if err != nil || parsed.IsZero() {
		return nil
	}
	return &parsed
}
