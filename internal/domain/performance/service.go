package performance

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) CreateGoal(ctx context.Context, employeeID, createdBy, title, description string, targetDate *time.Time) (*Goal, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("goal title is required")
	}
	goal := &Goal{
		EmployeeID:  employeeID,
		Title:       title,
		Description: description,
		TargetDate:  targetDate,
		CreatedBy:   createdBy,
	}
	id, err := s.Store.CreateGoal(ctx, goal)
	if err != nil {
		return nil, err
	}
	return s.Store.GetGoal(ctx, id)
}

func (s *Service) UpdateGoalStatus(ctx context.Context, goalID string, status GoalStatus) (*Goal, error) {
	if !ValidGoalStatus(status) {
		return nil, ErrInvalidStatus
	}
	if err := s.Store.UpdateGoalStatus(ctx, goalID, status); err != nil {
		return nil, err
	}
	return s.Store.GetGoal(ctx, goalID)
}

func (s *Service) RecordReview(ctx context.Context, employeeID, reviewerID, period string, rating int, comments string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", ErrInvalidRating
	}
	if strings.TrimSpace(period) == "" {
		return "", fmt.Errorf("review period is required")
	}
	return s.Store.CreateReview(ctx, &Review{
		EmployeeID: employeeID,
		ReviewerID: reviewerID,
		Period:     period,
		Rating:     rating,
		Comments:   comments,
	})
}
