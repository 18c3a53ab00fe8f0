package org

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    id,
    COALESCE(user_id::text, ''),
    first_name, last_name, email,
    COALESCE(phone, ''),
    COALESCE(department_id::text, ''),
    COALESCE(designation_id::text, ''),
    COALESCE(manager_id::text, ''),
    joining_date, status, created_at, updated_at`

func scanEmployee(row interface{ Scan(dest ...any) error }) (*Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Phone,
		&emp.DepartmentID, &emp.DesignationID, &emp.ManagerID,
		&emp.JoiningDate, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (*Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", employeeID)
	return scanEmployee(row)
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (*Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE user_id = $1", userID)
	return scanEmployee(row)
}

// ListEmployees returns active employees, optionally narrowed to one
// department.
func (s *Store) ListEmployees(ctx context.Context, departmentID string, limit, offset int) ([]Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE status = 'active'"
	args := []any{}
	if departmentID != "" {
		query += " AND department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY last_name, first_name"
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	return out, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, emp *Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, email, phone, department_id, designation_id, manager_id, joining_date, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
    RETURNING id
  `, nullIfEmpty(emp.UserID), emp.FirstName, emp.LastName, emp.Email, nullIfEmpty(emp.Phone),
		nullIfEmpty(emp.DepartmentID), nullIfEmpty(emp.DesignationID), nullIfEmpty(emp.ManagerID),
		emp.JoiningDate).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, emp *Employee) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET first_name = $1, last_name = $2, email = $3, phone = $4,
        department_id = $5, designation_id = $6, status = $7, updated_at = now()
    WHERE id = $8
  `, emp.FirstName, emp.LastName, emp.Email, nullIfEmpty(emp.Phone),
		nullIfEmpty(emp.DepartmentID), nullIfEmpty(emp.DesignationID), emp.Status, emp.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) SetManager(ctx context.Context, employeeID, managerID string) error {
	tag, err := s.DB.Exec(ctx,
		"UPDATE employees SET manager_id = $1, updated_at = now() WHERE id = $2",
		nullIfEmpty(managerID), employeeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) DirectReports(ctx context.Context, managerID string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE manager_id = $1 AND status = 'active' ORDER BY last_name, first_name",
		managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	return out, rows.Err()
}

// ManagerID implements Directory.
func (s *Store) ManagerID(ctx context.Context, employeeID string) (string, error) {
	var managerID string
	err := s.DB.QueryRow(ctx,
		"SELECT COALESCE(manager_id::text, '') FROM employees WHERE id = $1",
		employeeID).Scan(&managerID)
	if err != nil {
		return "", err
	}
	return managerID, nil
}

// EmployeeCount implements Directory.
func (s *Store) EmployeeCount(ctx context.Context) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreateDepartment(ctx context.Context, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO departments (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, created_at FROM departments ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDesignation(ctx context.Context, title string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO designations (title) VALUES ($1) RETURNING id", title).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListDesignations(ctx context.Context) ([]Designation, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, title, created_at FROM designations ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Designation
	for rows.Next() {
		var d Designation
		if err := rows.Scan(&d.ID, &d.Title, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
