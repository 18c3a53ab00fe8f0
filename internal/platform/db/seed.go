package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revwork/internal/domain/auth"
	"revwork/internal/platform/config"
)

// Seed makes sure a fresh database is usable: an admin account to log in
// with and the standard leave types. Safe to run on every boot.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureAdminUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}
	return ensureLeaveTypes(ctx, pool)
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		"INSERT INTO users (email, password_hash, role, status) VALUES ($1, $2, $3, 'active')",
		email, hash, auth.RoleAdmin)
	return err
}

func ensureLeaveTypes(ctx context.Context, pool *pgxpool.Pool) error {
	defaults := []struct {
		name    string
		code    string
		maxDays int
	}{
		{"Casual Leave", "CL", 12},
		{"Sick Leave", "SL", 10},
		{"Earned Leave", "EL", 20},
	}

	for _, lt := range defaults {
		_, err := pool.Exec(ctx,
			"INSERT INTO leave_types (name, code, max_days_per_year) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING",
			lt.name, lt.code, lt.maxDays)
		if err != nil {
			return err
		}
	}
	return nil
}
