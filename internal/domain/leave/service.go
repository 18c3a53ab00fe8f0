package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"revwork/internal/domain/auth"
	"revwork/internal/domain/org"
)

type Service struct {
	Store *Store
	Org   *org.Service
	Clock Clock
}

func NewService(store *Store, orgSvc *org.Service) *Service {
	return &Service{Store: store, Org: orgSvc, Clock: RealClock{}}
}

// Submit validates the request against the rules and the ledger, then
// files it as pending. The balance check here is advisory; the binding
// check happens again inside the approval transaction.
func (s *Service) Submit(ctx context.Context, employeeID string, req SubmitRequest) (*Application, error) {
	if err := ValidateRequest(s.Clock.Now(), req.StartDate, req.EndDate, req.Reason); err != nil {
		return nil, err
	}

	if _, err := s.Store.GetType(ctx, req.LeaveTypeID); err != nil {
		return nil, err
	}

	overlap, err := s.Store.hasOpenOverlap(ctx, employeeID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrOverlap
	}

	total := TotalDays(req.StartDate, req.EndDate)
	year := FiscalYear(req.StartDate)

	remaining, err := s.Store.remainingDays(ctx, employeeID, req.LeaveTypeID, year)
	if err != nil {
		return nil, err
	}
	if remaining < total {
		return nil, &InsufficientBalanceError{Available: remaining, Requested: total}
	}

	id, err := s.Store.insertApplication(ctx, req, employeeID, total)
	if err != nil {
		return nil, err
	}
	return s.Store.GetApplication(ctx, id)
}

// Approve moves a pending application to approved and books the days,
// both inside one transaction. If the ledger refuses, the status change
// rolls back with it.
func (s *Service) Approve(ctx context.Context, applicationID string, actor Actor, comments string) (*Application, error) {
	if err := s.runDecision(ctx, applicationID, actor, StatusApproved, comments, true); err != nil {
		return nil, err
	}
	return s.Store.GetApplication(ctx, applicationID)
}

// Reject closes a pending application without touching the ledger.
func (s *Service) Reject(ctx context.Context, applicationID string, actor Actor, comments string) (*Application, error) {
	if err := s.runDecision(ctx, applicationID, actor, StatusRejected, comments, false); err != nil {
		return nil, err
	}
	return s.Store.GetApplication(ctx, applicationID)
}

func (s *Service) runDecision(ctx context.Context, applicationID string, actor Actor, to Status, comments string, consume bool) (err error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("leave decision rollback failed", "error", rbErr)
			}
		}
	}()

	app, err := s.Store.getApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return err
	}

	if err = s.authorizeDecision(ctx, app, actor); err != nil {
		return err
	}
	if !CanTransition(app.Status, to) {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, applicationID, app.Status)
	}

	moved, err := s.Store.setStatusTx(ctx, tx, applicationID, StatusPending, to, comments, actor.EmployeeID, s.Clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("%w: application changed concurrently", ErrInvalidState)
	}

	if consume {
		if err = s.Store.consumeTx(ctx, tx, app.EmployeeID, app.LeaveTypeID, FiscalYear(app.StartDate), app.TotalDays); err != nil {
			return fmt.Errorf("approval failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Service) authorizeDecision(ctx context.Context, app *Application, actor Actor) error {
	if actor.EmployeeID == app.EmployeeID {
		return fmt.Errorf("%w: cannot decide your own request", ErrForbidden)
	}
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	isManager, err := s.Org.IsManagerOf(ctx, actor.EmployeeID, app.EmployeeID)
	if err != nil {
		return err
	}
	if !isManager {
		return fmt.Errorf("%w: only the direct manager may decide", ErrForbidden)
	}
	return nil
}

// Cancel lets the requester withdraw a still-pending application.
func (s *Service) Cancel(ctx context.Context, applicationID, requesterEmployeeID string) (*Application, error) {
	app, err := s.Store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.EmployeeID != requesterEmployeeID {
		return nil, fmt.Errorf("%w: only the requester may cancel", ErrForbidden)
	}
	if app.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidState, applicationID, app.Status)
	}

	cancelled, err := s.Store.cancelPending(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("%w: application changed concurrently", ErrInvalidState)
	}
	return s.Store.GetApplication(ctx, applicationID)
}

// Revoke withdraws an already-approved leave and gives the days back,
// in one transaction. The comments record who forced it and why.
func (s *Service) Revoke(ctx context.Context, applicationID string, actor Actor, reason string) (app *Application, err error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("leave revoke rollback failed", "error", rbErr)
			}
		}
	}()

	app, err = s.Store.getApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}

	if err = s.authorizeDecision(ctx, app, actor); err != nil {
		return nil, err
	}
	if app.Status != StatusApproved {
		return nil, fmt.Errorf("%w: only approved leave can be revoked, %s is %s", ErrInvalidState, applicationID, app.Status)
	}

	moved, err := s.Store.setStatusTx(ctx, tx, applicationID, StatusApproved, StatusCancelled, "REVOKED: "+reason, actor.EmployeeID, s.Clock.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: application changed concurrently", ErrInvalidState)
	}

	if err = s.Store.restoreTx(ctx, tx, app.EmployeeID, app.LeaveTypeID, FiscalYear(app.StartDate), app.TotalDays); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Store.GetApplication(ctx, applicationID)
}
