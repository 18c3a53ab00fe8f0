package org

import (
	"context"
	"time"
)

func (s *Store) CreateHoliday(ctx context.Context, name string, date time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO holidays (name, holiday_date)
    VALUES ($1, $2)
    RETURNING id
  `, name, date).Scan(&id)
	return id, err
}

// ListHolidays returns the calendar in date order, restricted to one
// year when year is positive.
func (s *Store) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	query := `
    SELECT id, name, holiday_date, created_at
    FROM holidays
    ORDER BY holiday_date`
	args := []any{}
	if year > 0 {
		query = `
    SELECT id, name, holiday_date, created_at
    FROM holidays
    WHERE EXTRACT(YEAR FROM holiday_date) = $1
    ORDER BY holiday_date`
		args = append(args, year)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
