package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type User struct {
	ID     string
	Email  string
	Role   string
	Status string
}

type Service struct {
	DB        *pgxpool.Pool
	JWTSecret string
}

func NewService(db *pgxpool.Pool, secret string) *Service {
	return &Service{DB: db, JWTSecret: secret}
}

// Login verifies the credentials and mints a session token. Inactive
// accounts are treated the same as bad credentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	var user User
	var hash string
	err := s.DB.QueryRow(ctx,
		"SELECT id, email, password_hash, role, status FROM users WHERE email = $1",
		email).Scan(&user.ID, &user.Email, &hash, &user.Role, &user.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, err
	}

	if user.Status != "active" {
		return "", User{}, ErrInvalidCredentials
	}
	if err := CheckPassword(hash, password); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.JWTSecret, Claims{UserID: user.ID, Role: user.Role}, TokenTTL)
	if err != nil {
		return "", User{}, err
	}

	_, _ = s.DB.Exec(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", time.Now(), user.ID)

	return token, user, nil
}

// CreateUser provisions a login for an employee account.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	var id string
	err = s.DB.QueryRow(ctx,
		"INSERT INTO users (email, password_hash, role, status) VALUES ($1, $2, $3, 'active') RETURNING id",
		email, hash, role).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
