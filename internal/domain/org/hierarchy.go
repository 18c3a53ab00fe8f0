package org

import (
	"context"
	"errors"
)

var ErrHierarchyCycle = errors.New("manager assignment would create a reporting cycle")

// Directory is the minimal view of the employee graph the cycle check
// needs. Store implements it.
type Directory interface {
	// ManagerID returns the employee's manager id, or "" when the
	// employee has no manager.
	ManagerID(ctx context.Context, employeeID string) (string, error)
	EmployeeCount(ctx context.Context) (int, error)
}

// WouldCreateCycle reports whether putting employeeID under
// candidateManagerID would make the reporting chain loop. It walks the
// candidate's manager chain upward; seeing employeeID anywhere in that
// chain means a cycle. The walk is bounded by the employee count, so an
// already-corrupt graph (a pre-existing loop) is reported as a cycle
// rather than walked forever.
func WouldCreateCycle(ctx context.Context, dir Directory, employeeID, candidateManagerID string) (bool, error) {
	if candidateManagerID == "" {
		return false, nil
	}
	if employeeID == candidateManagerID {
		return true, nil
	}

	limit, err := dir.EmployeeCount(ctx)
	if err != nil {
		return true, err
	}

	current := candidateManagerID
	for steps := 0; current != ""; steps++ {
		if steps > limit {
			return true, nil
		}
		if current == employeeID {
			return true, nil
		}
		next, err := dir.ManagerID(ctx, current)
		if err != nil {
			return true, err
		}
		current = next
	}
	return false, nil
}
