package leave

import (
	"context"
	"fmt"
	"log/slog"

	"revwork/internal/domain/org"
)

// AssignQuotaToEmployee provisions the year's balances for one
// employee. An already assigned year reports ErrQuotaAssigned.
func (s *Service) AssignQuotaToEmployee(ctx context.Context, employeeID string, year int) error {
	if _, err := s.Org.Store.GetEmployee(ctx, employeeID); err != nil {
		return fmt.Errorf("%w: employee %s", org.ErrEmployeeNotFound, employeeID)
	}
	created, err := s.Store.AssignQuota(ctx, employeeID, year)
	if err != nil {
		return err
	}
	if !created {
		return ErrQuotaAssigned
	}
	return nil
}

// AssignQuotasToDepartment runs the assignment for every active
// employee of a department. One employee failing does not stop the
// rest; failures are logged and counted as skipped.
func (s *Service) AssignQuotasToDepartment(ctx context.Context, departmentID string, year int) (QuotaReport, error) {
	employees, err := s.Org.Store.ListEmployees(ctx, departmentID, 0, 0)
	if err != nil {
		return QuotaReport{}, err
	}
	return s.assignQuotas(ctx, employees, year), nil
}

// AssignQuotasToAll runs the assignment company-wide.
func (s *Service) AssignQuotasToAll(ctx context.Context, year int) (QuotaReport, error) {
	employees, err := s.Org.Store.ListEmployees(ctx, "", 0, 0)
	if err != nil {
		return QuotaReport{}, err
	}
	return s.assignQuotas(ctx, employees, year), nil
}

func (s *Service) assignQuotas(ctx context.Context, employees []org.Employee, year int) QuotaReport {
	var report QuotaReport
	for _, emp := range employees {
		created, err := s.Store.AssignQuota(ctx, emp.ID, year)
		if err != nil {
			slog.Warn("quota assignment failed", "employee", emp.ID, "year", year, "error", err)
			report.Skipped++
			continue
		}
		if created {
			report.Assigned++
		} else {
			report.Skipped++
		}
	}
	return report
}
