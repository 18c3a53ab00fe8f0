package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revwork/internal/domain/audit"
	"revwork/internal/domain/auth"
	"revwork/internal/domain/leave"
	"revwork/internal/domain/notifications"
	"revwork/internal/domain/org"
	"revwork/internal/domain/performance"
	"revwork/internal/platform/config"
	"revwork/internal/platform/db"
	"revwork/internal/platform/email"
	"revwork/internal/platform/jobs"
	"revwork/internal/platform/metrics"
	adminhandler "revwork/internal/transport/http/handlers/admin"
	authhandler "revwork/internal/transport/http/handlers/auth"
	leavehandler "revwork/internal/transport/http/handlers/leave"
	notificationshandler "revwork/internal/transport/http/handlers/notifications"
	orghandler "revwork/internal/transport/http/handlers/org"
	performancehandler "revwork/internal/transport/http/handlers/performance"
	"revwork/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	cancel context.CancelFunc
}

// New connects, migrates, seeds and wires the HTTP surface. The app
// owns a derived context so Close can stop its background goroutines.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("db connect failed: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			cancel()
			pool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			cancel()
			pool.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	authService := auth.NewService(pool, cfg.JWTSecret)
	orgService := org.NewService(org.NewStore(pool))
	leaveService := leave.NewService(leave.NewStore(pool), orgService)
	performanceService := performance.NewService(performance.NewStore(pool))
	notifyService := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	auditService := audit.New(pool)
	collector := metrics.New()

	runner := jobs.New(pool, leaveService)
	runner.Start(ctx, cfg.QuotaSweepInterval)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		loginLimit := middleware.RateLimit(cfg.LoginRatePerMin, time.Minute)
		r.With(loginLimit).Post("/auth/login", authhandler.NewHandler(authService).HandleLogin)

		orghandler.NewHandler(orgService, authService).RegisterRoutes(r)
		leavehandler.NewHandler(leaveService, orgService, notifyService, auditService).RegisterRoutes(r)
		performancehandler.NewHandler(performanceService, orgService, notifyService).RegisterRoutes(r)
		notificationshandler.NewHandler(notifyService).RegisterRoutes(r)
		adminhandler.NewHandler(auditService, collector).RegisterRoutes(r)
	})

	return &App{Config: cfg, DB: pool, Router: router, cancel: cancel}, nil
}

func (a *App) Close() {
	a.cancel()
	a.DB.Close()
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
