package leave

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Balances returns the employee's ledger rows for one year, ordered by
// leave type name. Types with no quota assigned simply have no row.
func (s *Store) Balances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT lb.id, lb.employee_id, lb.leave_type_id, lt.name, lb.year,
           lb.allocated_days, lb.used_days, lb.remaining_days, lb.updated_at
    FROM leave_balances lb
    JOIN leave_types lt ON lt.id = lb.leave_type_id
    WHERE lb.employee_id = $1 AND lb.year = $2
    ORDER BY lt.name
  `, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.LeaveTypeName, &b.Year,
			&b.AllocatedDays, &b.UsedDays, &b.RemainingDays, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) remainingDays(ctx context.Context, employeeID, leaveTypeID string, year int) (int, error) {
	var remaining int
	err := s.DB.QueryRow(ctx, `
    SELECT remaining_days FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
  `, employeeID, leaveTypeID, year).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoQuota
		}
		return 0, err
	}
	return remaining, nil
}

// AssignQuota creates one balance row per leave type for the
// employee-year, allocation snapshotted from max_days_per_year. The
// whole call is one transaction: if the employee already has any row
// for that year nothing is written and created is false, so repeated
// calls are safe.
func (s *Store) AssignQuota(ctx context.Context, employeeID string, year int) (created bool, err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("quota assignment rollback failed", "error", rbErr)
			}
		}
	}()

	var existing int
	err = tx.QueryRow(ctx,
		"SELECT COUNT(1) FROM leave_balances WHERE employee_id = $1 AND year = $2",
		employeeID, year).Scan(&existing)
	if err != nil {
		return false, err
	}
	if existing > 0 {
		_ = tx.Rollback(ctx)
		return false, nil
	}

	tag, err := tx.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type_id, year, allocated_days, used_days, remaining_days)
    SELECT $1, lt.id, $2, lt.max_days_per_year, 0, lt.max_days_per_year
    FROM leave_types lt
  `, employeeID, year)
	if err != nil {
		// A concurrent assignment can slip past the count check; the
		// unique constraint decides, and the loser reports not-created.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			_ = tx.Rollback(ctx)
			return false, nil
		}
		return false, err
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return false, nil
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// consumeTx books approved days against the balance row. The
// remaining_days guard keeps two concurrent approvals from
// over-spending the same balance.
func (s *Store) consumeTx(ctx context.Context, tx pgx.Tx, employeeID, leaveTypeID string, year, days int) error {
	tag, err := tx.Exec(ctx, `
    UPDATE leave_balances
    SET used_days = used_days + $1, remaining_days = remaining_days - $1, updated_at = now()
    WHERE employee_id = $2 AND leave_type_id = $3 AND year = $4 AND remaining_days >= $1
  `, days, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var remaining int
	err = tx.QueryRow(ctx, `
    SELECT remaining_days FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
  `, employeeID, leaveTypeID, year).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoQuota
		}
		return err
	}
	return &InsufficientBalanceError{Available: remaining, Requested: days}
}

// restoreTx gives days back after a revoke, keyed by the same year the
// approval consumed.
func (s *Store) restoreTx(ctx context.Context, tx pgx.Tx, employeeID, leaveTypeID string, year, days int) error {
	tag, err := tx.Exec(ctx, `
    UPDATE leave_balances
    SET used_days = used_days - $1, remaining_days = remaining_days + $1, updated_at = now()
    WHERE employee_id = $2 AND leave_type_id = $3 AND year = $4
  `, days, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBalanceNotFound
	}
	return nil
}

// AdjustBalance is the admin correction path. It rewrites allocation
// and usage together; remaining may go negative, which flags an
// over-consumed balance rather than hiding it.
func (s *Store) AdjustBalance(ctx context.Context, employeeID, leaveTypeID string, year, allocated, used int) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_balances
    SET allocated_days = $1, used_days = $2, remaining_days = $1 - $2, updated_at = now()
    WHERE employee_id = $3 AND leave_type_id = $4 AND year = $5
  `, allocated, used, employeeID, leaveTypeID, year)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBalanceNotFound
	}
	return nil
}
