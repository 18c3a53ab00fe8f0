package performance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrGoalNotFound  = errors.New("goal not found")
	ErrInvalidStatus = errors.New("invalid goal status")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateGoal(ctx context.Context, g *Goal) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO goals (employee_id, title, description, target_date, status, created_by)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id
  `, g.EmployeeID, g.Title, nullIfEmpty(g.Description), g.TargetDate, string(GoalOpen), nullIfEmpty(g.CreatedBy)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateGoalStatus(ctx context.Context, goalID string, status GoalStatus) error {
	tag, err := s.DB.Exec(ctx,
		"UPDATE goals SET status = $1, updated_at = now() WHERE id = $2",
		string(status), goalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, goalID string) (*Goal, error) {
	var g Goal
	var status string
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, title, COALESCE(description, ''), target_date, status,
           COALESCE(created_by::text, ''), created_at, updated_at
    FROM goals WHERE id = $1
  `, goalID).Scan(&g.ID, &g.EmployeeID, &g.Title, &g.Description, &g.TargetDate,
		&status, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	g.Status = GoalStatus(status)
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, employeeID string) ([]Goal, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, title, COALESCE(description, ''), target_date, status,
           COALESCE(created_by::text, ''), created_at, updated_at
    FROM goals
    WHERE employee_id = $1
    ORDER BY created_at DESC
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var g Goal
		var status string
		if err := rows.Scan(&g.ID, &g.EmployeeID, &g.Title, &g.Description, &g.TargetDate,
			&status, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Status = GoalStatus(status)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) CreateReview(ctx context.Context, rv *Review) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO performance_reviews (employee_id, reviewer_id, period, rating, comments)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, rv.EmployeeID, rv.ReviewerID, rv.Period, rv.Rating, nullIfEmpty(rv.Comments)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListReviews(ctx context.Context, employeeID string) ([]Review, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, reviewer_id, period, rating, COALESCE(comments, ''), created_at
    FROM performance_reviews
    WHERE employee_id = $1
    ORDER BY created_at DESC
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.EmployeeID, &rv.ReviewerID, &rv.Period, &rv.Rating, &rv.Comments, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
