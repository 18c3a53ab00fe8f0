package leave

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"revwork/internal/domain/audit"
	"revwork/internal/domain/auth"
	"revwork/internal/domain/leave"
	"revwork/internal/domain/notifications"
	"revwork/internal/domain/org"
	"revwork/internal/transport/http/api"
	"revwork/internal/transport/http/middleware"
	"revwork/internal/transport/http/shared"
)

type Handler struct {
	Service *leave.Service
	Org     *org.Service
	Notify  *notifications.Service
	Audit   *audit.Service
}

func NewHandler(service *leave.Service, orgSvc *org.Service, notify *notifications.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Org: orgSvc, Notify: notify, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Route("/types", func(r chi.Router) {
			r.Get("/", h.handleListTypes)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreateType)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Put("/{id}", h.handleUpdateType)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/", h.handleMyBalances)
			r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/{employeeID}", h.handleBalancesOf)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/{employeeID}/adjust", h.handleAdjustBalance)
		})

		r.Route("/quotas", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Post("/employee/{id}", h.handleAssignQuotaEmployee)
			r.Post("/department/{id}", h.handleAssignQuotaDepartment)
			r.Post("/all", h.handleAssignQuotaAll)
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.handleSubmit)
			r.Get("/", h.handleMyApplications)
			r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/pending", h.handlePending)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Get("/all", h.handleAll)
			r.Post("/{id}/approve", h.handleApprove)
			r.Post("/{id}/reject", h.handleReject)
			r.Post("/{id}/cancel", h.handleCancel)
			r.Post("/{id}/revoke", h.handleRevoke)
		})
	})
}

// requireEmployee resolves the caller to an employee record. Users
// without one (a bare admin login) cannot act in employee-scoped flows.
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

type submitPayload struct {
	LeaveTypeID string `json:"leaveTypeId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	start, err := shared.ParseDate(payload.StartDate)
	if err != nil || start.IsZero() {
		api.Fail(w, http.StatusBadRequest, "validation_error", "startDate must be YYYY-MM-DD", reqID)
		return
	}
	end, err := shared.ParseDate(payload.EndDate)
	if err != nil || end.IsZero() {
		api.Fail(w, http.StatusBadRequest, "validation_error", "endDate must be YYYY-MM-DD", reqID)
		return
	}

	app, err := h.Service.Submit(r.Context(), emp.ID, leave.SubmitRequest{
		LeaveTypeID: payload.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		Reason:      payload.Reason,
	})
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyManager(r, emp, notifications.TypeLeaveSubmitted, "Leave request submitted",
		fmt.Sprintf("%s requested %d day(s) of %s from %s.", emp.FullName(), app.TotalDays, app.LeaveTypeName, shared.FormatDate(app.StartDate)))

	api.Created(w, app, reqID)
}

func (h *Handler) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	apps, err := h.Service.Store.ListByEmployee(r.Context(), emp.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "application list failed", reqID)
		return
	}
	api.Success(w, apps, reqID)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	apps, err := h.Service.Store.ListPendingForManager(r.Context(), emp.ID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "pending list failed", reqID)
		return
	}
	api.Success(w, apps, reqID)
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		if _, err := leave.ParseStatus(statusFilter); err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
			return
		}
	}

	apps, err := h.Service.Store.ListAll(r.Context(), statusFilter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "application list failed", reqID)
		return
	}
	api.Success(w, apps, reqID)
}

type decisionPayload struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	var payload decisionPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	app, err := h.Service.Approve(r.Context(), chi.URLParam(r, "id"), leave.Actor{EmployeeID: emp.ID, Role: user.Role}, payload.Comments)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyEmployee(r, app.EmployeeID, notifications.TypeLeaveApproved, "Leave approved",
		fmt.Sprintf("Your %s request starting %s was approved.", app.LeaveTypeName, shared.FormatDate(app.StartDate)))
	h.record(r, audit.ActionLeaveApproved, "leave_application", app.ID, map[string]any{
		"employeeId": app.EmployeeID, "totalDays": app.TotalDays,
	})

	api.Success(w, app, reqID)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	var payload decisionPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload.Comments == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "comments are required when rejecting", reqID)
		return
	}

	app, err := h.Service.Reject(r.Context(), chi.URLParam(r, "id"), leave.Actor{EmployeeID: emp.ID, Role: user.Role}, payload.Comments)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyEmployee(r, app.EmployeeID, notifications.TypeLeaveRejected, "Leave rejected",
		fmt.Sprintf("Your %s request starting %s was rejected: %s", app.LeaveTypeName, shared.FormatDate(app.StartDate), payload.Comments))
	h.record(r, audit.ActionLeaveRejected, "leave_application", app.ID, map[string]any{
		"employeeId": app.EmployeeID, "comments": payload.Comments,
	})

	api.Success(w, app, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	app, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), emp.ID)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyManager(r, emp, notifications.TypeLeaveCancelled, "Leave request cancelled",
		fmt.Sprintf("%s cancelled the %s request starting %s.", emp.FullName(), app.LeaveTypeName, shared.FormatDate(app.StartDate)))

	api.Success(w, app, reqID)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	var payload decisionPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload.Reason == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "reason is required when revoking", reqID)
		return
	}

	app, err := h.Service.Revoke(r.Context(), chi.URLParam(r, "id"), leave.Actor{EmployeeID: emp.ID, Role: user.Role}, payload.Reason)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.notifyEmployee(r, app.EmployeeID, notifications.TypeLeaveRevoked, "Approved leave revoked",
		fmt.Sprintf("Your approved %s leave starting %s was revoked: %s", app.LeaveTypeName, shared.FormatDate(app.StartDate), payload.Reason))
	h.record(r, audit.ActionLeaveRevoked, "leave_application", app.ID, map[string]any{
		"employeeId": app.EmployeeID, "reason": payload.Reason, "restoredDays": app.TotalDays,
	})

	api.Success(w, app, reqID)
}

func (h *Handler) handleMyBalances(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, ok := h.requireEmployee(w, r)
	if !ok {
		return
	}

	balances, err := h.Service.Store.Balances(r.Context(), emp.ID, h.yearParam(r))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "balance lookup failed", reqID)
		return
	}
	api.Success(w, balances, reqID)
}

func (h *Handler) handleBalancesOf(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	balances, err := h.Service.Store.Balances(r.Context(), chi.URLParam(r, "employeeID"), h.yearParam(r))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "balance lookup failed", reqID)
		return
	}
	api.Success(w, balances, reqID)
}

type adjustPayload struct {
	LeaveTypeID   string `json:"leaveTypeId"`
	Year          int    `json:"year"`
	AllocatedDays int    `json:"allocatedDays"`
	UsedDays      int    `json:"usedDays"`
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	var payload adjustPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}
	if payload.LeaveTypeID == "" || payload.Year == 0 {
		api.Fail(w, http.StatusBadRequest, "validation_error", "leaveTypeId and year are required", reqID)
		return
	}
	if payload.AllocatedDays < 0 || payload.UsedDays < 0 {
		api.Fail(w, http.StatusBadRequest, "validation_error", "allocatedDays and usedDays cannot be negative", reqID)
		return
	}

	if err := h.Service.Store.AdjustBalance(r.Context(), employeeID, payload.LeaveTypeID, payload.Year, payload.AllocatedDays, payload.UsedDays); err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.record(r, audit.ActionBalanceAdjust, "leave_balance", employeeID, map[string]any{
		"leaveTypeId": payload.LeaveTypeID, "year": payload.Year,
		"allocatedDays": payload.AllocatedDays, "usedDays": payload.UsedDays,
	})

	balances, err := h.Service.Store.Balances(r.Context(), employeeID, payload.Year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "balance lookup failed", reqID)
		return
	}
	api.Success(w, balances, reqID)
}

func (h *Handler) handleAssignQuotaEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "id")

	year := h.yearParam(r)
	if err := h.Service.AssignQuotaToEmployee(r.Context(), employeeID, year); err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.record(r, audit.ActionQuotaAssigned, "leave_balance", employeeID, map[string]any{"year": year})
	h.notifyEmployee(r, employeeID, notifications.TypeQuotaAssigned, "Leave quota assigned",
		fmt.Sprintf("Your leave balances for %d are ready.", year))
	api.Created(w, map[string]any{"employeeId": employeeID, "year": year, "created": true}, reqID)
}

func (h *Handler) handleAssignQuotaDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	report, err := h.Service.AssignQuotasToDepartment(r.Context(), chi.URLParam(r, "id"), h.yearParam(r))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "quota assignment failed", reqID)
		return
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleAssignQuotaAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	report, err := h.Service.AssignQuotasToAll(r.Context(), h.yearParam(r))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "quota assignment failed", reqID)
		return
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	types, err := h.Service.Store.ListTypes(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "type list failed", reqID)
		return
	}
	api.Success(w, types, reqID)
}

type typePayload struct {
	Name           string `json:"name"`
	Code           string `json:"code"`
	MaxDaysPerYear int    `json:"maxDaysPerYear"`
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload typePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}
	if payload.Name == "" || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "name and code are required", reqID)
		return
	}
	if payload.MaxDaysPerYear <= 0 {
		api.Fail(w, http.StatusBadRequest, "validation_error", "maxDaysPerYear must be positive", reqID)
		return
	}

	id, err := h.Service.Store.CreateType(r.Context(), payload.Name, payload.Code, payload.MaxDaysPerYear)
	if err != nil {
		api.Fail(w, http.StatusConflict, "conflict", "leave type name or code already exists", reqID)
		return
	}
	api.Created(w, map[string]any{"id": id, "name": payload.Name, "code": payload.Code, "maxDaysPerYear": payload.MaxDaysPerYear}, reqID)
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload typePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}
	if payload.MaxDaysPerYear <= 0 {
		api.Fail(w, http.StatusBadRequest, "validation_error", "maxDaysPerYear must be positive", reqID)
		return
	}

	if err := h.Service.Store.UpdateTypeMaxDays(r.Context(), chi.URLParam(r, "id"), payload.MaxDaysPerYear); err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"id": chi.URLParam(r, "id"), "maxDaysPerYear": payload.MaxDaysPerYear}, reqID)
}

func (h *Handler) yearParam(r *http.Request) int {
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil && year > 1900 {
			return year
		}
	}
	return time.Now().Year()
}

func (h *Handler) writeError(w http.ResponseWriter, err error, reqID string) {
	var verr *leave.ValidationError
	var berr *leave.InsufficientBalanceError
	switch {
	case errors.As(err, &verr):
		api.Fail(w, http.StatusBadRequest, "validation_error", verr.Error(), reqID)
	case errors.As(err, &berr):
		api.Fail(w, http.StatusUnprocessableEntity, "insufficient_balance", berr.Error(), reqID)
	case errors.Is(err, leave.ErrNoQuota):
		api.Fail(w, http.StatusUnprocessableEntity, "no_quota", err.Error(), reqID)
	case errors.Is(err, leave.ErrNotFound), errors.Is(err, leave.ErrTypeNotFound),
		errors.Is(err, leave.ErrBalanceNotFound), errors.Is(err, org.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), reqID)
	case errors.Is(err, leave.ErrQuotaAssigned):
		api.Fail(w, http.StatusConflict, "quota_exists", err.Error(), reqID)
	case errors.Is(err, leave.ErrOverlap):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), reqID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), reqID)
	default:
		slog.Warn("leave operation failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}

func (h *Handler) record(r *http.Request, action, entityType, entityID string, details map[string]any) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Audit.Record(r.Context(), user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "error", err)
	}
}

func (h *Handler) notifyManager(r *http.Request, emp *org.Employee, ntype, title, body string) {
	if emp.ManagerID == "" {
		return
	}
	manager, err := h.Org.Store.GetEmployee(r.Context(), emp.ManagerID)
	if err != nil || manager.UserID == "" {
		return
	}
	if err := h.Notify.Create(r.Context(), manager.UserID, ntype, title, body); err != nil {
		slog.Warn("notification failed", "type", ntype, "error", err)
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
