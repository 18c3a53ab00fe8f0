package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service writes notification rows at workflow trigger points and,
// when a mailer is wired, mirrors them to email. Email failures never
// fail the triggering operation.
type Service struct {
	Store  *Store
	Mailer Mailer
	From   string
}

func New(store *Store, mailer Mailer, from string) *Service {
	return &Service{Store: store, Mailer: mailer, From: from}
}

func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	if userID == "" {
		return nil
	}
	if err := s.Store.Create(ctx, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}
	email, err := s.Store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "user", userID, "error", err)
		return nil
	}
	if err := s.Mailer.Send(ctx, s.From, email, title, body); err != nil {
		slog.Warn("notification email send failed", "user", userID, "error", err)
	}
	return nil
}
