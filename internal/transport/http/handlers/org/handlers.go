package org

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"revwork/internal/domain/auth"
	"revwork/internal/domain/org"
	"revwork/internal/transport/http/api"
	"revwork/internal/transport/http/middleware"
	"revwork/internal/transport/http/shared"
)

type Handler struct {
	Service *org.Service
	Users   *auth.Service
}

func NewHandler(service *org.Service, users *auth.Service) *Handler {
	return &Handler{Service: service, Users: users}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleProfile)

	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/", h.handleList)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Put("/{id}", h.handleUpdate)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Put("/{id}/manager", h.handleSetManager)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)).Get("/{id}/reports", h.handleDirectReports)
	})

	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.handleListDepartments)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreateDepartment)
	})

	r.Route("/designations", func(r chi.Router) {
		r.Get("/", h.handleListDesignations)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreateDesignation)
	})

	r.Route("/holidays", func(r chi.Router) {
		r.Get("/", h.handleListHolidays)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreateHoliday)
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	emp, err := h.Service.Store.GetEmployeeByUserID(r.Context(), user.UserID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "profile lookup failed", reqID)
		return
	}

	payload := map[string]any{"userId": user.UserID, "role": user.Role}
	if emp != nil {
		payload["employee"] = emp
	}
	api.Success(w, payload, reqID)
}

type employeePayload struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DepartmentID  string `json:"departmentId"`
	DesignationID string `json:"designationId"`
	ManagerID     string `json:"managerId"`
	JoiningDate   string `json:"joiningDate"`
	Status        string `json:"status"`
	LoginPassword string `json:"loginPassword"`
	LoginRole     string `json:"loginRole"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	emp := &org.Employee{
		FirstName:     payload.FirstName,
		LastName:      payload.LastName,
		Email:         payload.Email,
		Phone:         payload.Phone,
		DepartmentID:  payload.DepartmentID,
		DesignationID: payload.DesignationID,
		ManagerID:     payload.ManagerID,
	}
	if payload.JoiningDate != "" {
		joined, err := shared.ParseDate(payload.JoiningDate)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "joiningDate must be YYYY-MM-DD", reqID)
			return
		}
		emp.JoiningDate = &joined
	}

	// Optionally provision a login alongside the record.
	if payload.LoginPassword != "" {
		role := payload.LoginRole
		if role == "" {
			role = auth.RoleEmployee
		}
		if role != auth.RoleAdmin && role != auth.RoleManager && role != auth.RoleEmployee {
			api.Fail(w, http.StatusBadRequest, "validation_error", "unknown login role", reqID)
			return
		}
		userID, err := h.Users.CreateUser(r.Context(), payload.Email, payload.LoginPassword, role)
		if err != nil {
			api.Fail(w, http.StatusConflict, "conflict", "could not create login for employee", reqID)
			return
		}
		emp.UserID = userID
	}

	id, err := h.Service.CreateEmployee(r.Context(), emp)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	created, err := h.Service.Store.GetEmployee(r.Context(), id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "employee lookup failed", reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	emp, err := h.Service.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "employee lookup failed", reqID)
		return
	}

	if user.Role == auth.RoleEmployee && emp.UserID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view other employees", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	employees, err := h.Service.Store.ListEmployees(r.Context(), r.URL.Query().Get("departmentId"), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "employee list failed", reqID)
		return
	}
	api.Success(w, employees, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := h.Service.Store.GetEmployee(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "employee lookup failed", reqID)
		return
	}

	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	if payload.FirstName != "" {
		existing.FirstName = payload.FirstName
	}
	if payload.LastName != "" {
		existing.LastName = payload.LastName
	}
	if payload.Email != "" {
		existing.Email = payload.Email
	}
	if payload.Phone != "" {
		existing.Phone = payload.Phone
	}
	if payload.DepartmentID != "" {
		existing.DepartmentID = payload.DepartmentID
	}
	if payload.DesignationID != "" {
		existing.DesignationID = payload.DesignationID
	}
	if payload.Status != "" {
		existing.Status = payload.Status
	}

	if err := h.Service.Store.UpdateEmployee(r.Context(), existing); err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, existing, reqID)
}

type managerPayload struct {
	ManagerID string `json:"managerId"`
}

func (h *Handler) handleSetManager(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload managerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}

	if err := h.Service.UpdateManager(r.Context(), chi.URLParam(r, "id"), payload.ManagerID); err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, map[string]string{"employeeId": chi.URLParam(r, "id"), "managerId": payload.ManagerID}, reqID)
}

func (h *Handler) handleDirectReports(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	reports, err := h.Service.Store.DirectReports(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "reports lookup failed", reqID)
		return
	}
	api.Success(w, reports, reqID)
}

type namePayload struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload namePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Name == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "name is required", reqID)
		return
	}

	id, err := h.Service.Store.CreateDepartment(r.Context(), payload.Name)
	if err != nil {
		api.Fail(w, http.StatusConflict, "conflict", "department already exists", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id, "name": payload.Name}, reqID)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	departments, err := h.Service.Store.ListDepartments(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "department list failed", reqID)
		return
	}
	api.Success(w, departments, reqID)
}

func (h *Handler) handleListDesignations(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	designations, err := h.Service.Store.ListDesignations(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "designation list failed", reqID)
		return
	}
	api.Success(w, designations, reqID)
}

func (h *Handler) handleCreateDesignation(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload namePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Title == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "title is required", reqID)
		return
	}

	id, err := h.Service.Store.CreateDesignation(r.Context(), payload.Title)
	if err != nil {
		api.Fail(w, http.StatusConflict, "conflict", "designation already exists", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id, "title": payload.Title}, reqID)
}

type holidayPayload struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload holidayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON body", reqID)
		return
	}
	if payload.Name == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "name is required", reqID)
		return
	}
	date, err := shared.ParseDate(payload.Date)
	if err != nil || date.IsZero() {
		api.Fail(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD", reqID)
		return
	}

	id, err := h.Service.Store.CreateHoliday(r.Context(), payload.Name, date)
	if err != nil {
		api.Fail(w, http.StatusConflict, "conflict", "holiday already exists on that date", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id, "name": payload.Name, "date": shared.FormatDate(date)}, reqID)
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 1900 {
			api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a four digit year", reqID)
			return
		}
		year = parsed
	}

	holidays, err := h.Service.Store.ListHolidays(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "holiday list failed", reqID)
		return
	}
	api.Success(w, holidays, reqID)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, org.ErrHierarchyCycle):
		api.Fail(w, http.StatusConflict, "hierarchy_cycle", err.Error(), reqID)
	case errors.Is(err, org.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	case errors.Is(err, org.ErrInvalidEmployee):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}
