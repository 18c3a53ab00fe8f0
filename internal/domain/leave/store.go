package leave

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.BeginTx(ctx, pgx.TxOptions{})
}

const applicationColumns = `
    la.id, la.employee_id,
    e.first_name || ' ' || e.last_name,
    la.leave_type_id, lt.name,
    la.start_date, la.end_date, la.total_days, la.reason, la.status,
    COALESCE(la.manager_comments, ''),
    la.applied_at, la.approved_at,
    COALESCE(la.approved_by::text, '')
  FROM leave_applications la
  JOIN employees e ON e.id = la.employee_id
  JOIN leave_types lt ON lt.id = la.leave_type_id`

func scanApplication(row interface{ Scan(dest ...any) error }) (*Application, error) {
	var app Application
	var status string
	err := row.Scan(
		&app.ID, &app.EmployeeID, &app.EmployeeName,
		&app.LeaveTypeID, &app.LeaveTypeName,
		&app.StartDate, &app.EndDate, &app.TotalDays, &app.Reason, &status,
		&app.ManagerComments, &app.AppliedAt, &app.ApprovedAt, &app.ApprovedBy,
	)
	if err != nil {
		return nil, err
	}
	app.Status = Status(status)
	return &app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*Application, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+applicationColumns+" WHERE la.id = $1", id)
	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

// getApplicationTx loads an application inside a workflow transaction
// with its row locked, so concurrent decisions serialize.
func (s *Store) getApplicationTx(ctx context.Context, tx pgx.Tx, id string) (*Application, error) {
	row := tx.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, total_days, reason, status,
           COALESCE(manager_comments, ''), applied_at, approved_at, COALESCE(approved_by::text, '')
    FROM leave_applications
    WHERE id = $1
    FOR UPDATE
  `, id)

	var app Application
	var status string
	err := row.Scan(
		&app.ID, &app.EmployeeID, &app.LeaveTypeID,
		&app.StartDate, &app.EndDate, &app.TotalDays, &app.Reason, &status,
		&app.ManagerComments, &app.AppliedAt, &app.ApprovedAt, &app.ApprovedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	app.Status = Status(status)
	return &app, nil
}

func (s *Store) insertApplication(ctx context.Context, req SubmitRequest, employeeID string, totalDays int) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_applications (employee_id, leave_type_id, start_date, end_date, total_days, reason, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id
  `, employeeID, req.LeaveTypeID, req.StartDate, req.EndDate, totalDays, req.Reason, string(StatusPending)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// hasOpenOverlap reports whether the employee already has a pending or
// approved application crossing the requested range.
func (s *Store) hasOpenOverlap(ctx context.Context, employeeID string, start, end time.Time) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications
    WHERE employee_id = $1
      AND status IN ($2, $3)
      AND start_date <= $4
      AND end_date >= $5
  `, employeeID, string(StatusPending), string(StatusApproved), end, start).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// setStatusTx flips the workflow columns, guarded on the status the
// caller observed. Zero rows affected means the application moved under
// us.
func (s *Store) setStatusTx(ctx context.Context, tx pgx.Tx, id string, from, to Status, comments, decidedBy string, decidedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE leave_applications
    SET status = $1, manager_comments = $2, approved_by = $3, approved_at = $4
    WHERE id = $5 AND status = $6
  `, string(to), comments, nullIfEmpty(decidedBy), decidedAt, id, string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// cancelPending withdraws a pending application. The status guard makes
// the cancel lose cleanly against a concurrent decision.
func (s *Store) cancelPending(ctx context.Context, id string) (bool, error) {
	tag, err := s.DB.Exec(ctx,
		"UPDATE leave_applications SET status = $1 WHERE id = $2 AND status = $3",
		string(StatusCancelled), id, string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string) ([]Application, error) {
	rows, err := s.DB.Query(ctx,
		"SELECT "+applicationColumns+" WHERE la.employee_id = $1 ORDER BY la.applied_at DESC",
		employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

// ListPendingForManager returns pending requests from the manager's
// direct reports, oldest first.
func (s *Store) ListPendingForManager(ctx context.Context, managerEmployeeID string) ([]Application, error) {
	rows, err := s.DB.Query(ctx,
		"SELECT "+applicationColumns+" WHERE e.manager_id = $1 AND la.status = $2 ORDER BY la.applied_at ASC",
		managerEmployeeID, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (s *Store) ListAll(ctx context.Context, statusFilter string, limit, offset int) ([]Application, error) {
	query := "SELECT " + applicationColumns
	args := []any{}
	if statusFilter != "" {
		query += " WHERE la.status = $1"
		args = append(args, statusFilter)
	}
	query += " ORDER BY la.applied_at DESC LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows pgx.Rows) ([]Application, error) {
	var out []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *app)
	}
	return out, rows.Err()
}

func (s *Store) GetType(ctx context.Context, id string) (*LeaveType, error) {
	var lt LeaveType
	err := s.DB.QueryRow(ctx,
		"SELECT id, name, code, max_days_per_year, created_at FROM leave_types WHERE id = $1",
		id).Scan(&lt.ID, &lt.Name, &lt.Code, &lt.MaxDaysPerYear, &lt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTypeNotFound
		}
		return nil, err
	}
	return &lt, nil
}

func (s *Store) ListTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, code, max_days_per_year, created_at FROM leave_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveType
	for rows.Next() {
		var lt LeaveType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Code, &lt.MaxDaysPerYear, &lt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

func (s *Store) CreateType(ctx context.Context, name, code string, maxDays int) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx,
		"INSERT INTO leave_types (name, code, max_days_per_year) VALUES ($1, $2, $3) RETURNING id",
		name, code, maxDays).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateTypeMaxDays changes the cap for future quota assignments.
// Existing balance rows keep the allocation they were assigned with.
func (s *Store) UpdateTypeMaxDays(ctx context.Context, id string, maxDays int) error {
	tag, err := s.DB.Exec(ctx, "UPDATE leave_types SET max_days_per_year = $1 WHERE id = $2", maxDays, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTypeNotFound
	}
	return nil
}
