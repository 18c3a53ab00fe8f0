package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrInvalidEmployee  = errors.New("invalid employee data")
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) CreateEmployee(ctx context.Context, emp *Employee) (string, error) {
	if strings.TrimSpace(emp.FirstName) == "" || strings.TrimSpace(emp.LastName) == "" {
		return "", fmt.Errorf("%w: first and last name are required", ErrInvalidEmployee)
	}
	if strings.TrimSpace(emp.Email) == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidEmployee)
	}
	if emp.ManagerID != "" {
		if _, err := s.Store.GetEmployee(ctx, emp.ManagerID); err != nil {
			return "", fmt.Errorf("%w: manager %s", ErrEmployeeNotFound, emp.ManagerID)
		}
	}
	return s.Store.CreateEmployee(ctx, emp)
}

// UpdateManager reassigns an employee under a new manager. The
// assignment is refused when it would loop the reporting chain; lookup
// failures during the walk also refuse the assignment.
func (s *Service) UpdateManager(ctx context.Context, employeeID, managerID string) error {
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return ErrEmployeeNotFound
	}
	if managerID != "" {
		if _, err := s.Store.GetEmployee(ctx, managerID); err != nil {
			return fmt.Errorf("%w: manager %s", ErrEmployeeNotFound, managerID)
		}
	}

	cycle, err := WouldCreateCycle(ctx, s.Store, employeeID, managerID)
	if err != nil {
		return fmt.Errorf("hierarchy check failed: %w", err)
	}
	if cycle {
		return ErrHierarchyCycle
	}

	return s.Store.SetManager(ctx, employeeID, managerID)
}

// IsManagerOf reports whether managerEmployeeID directly manages
// employeeID.
func (s *Service) IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error) {
	managerID, err := s.Store.ManagerID(ctx, employeeID)
	if err != nil {
		return false, err
	}
	return managerID != "" && managerID == managerEmployeeID, nil
}
