// Package jobs runs background maintenance work on a single worker
// goroutine and records every run in job_runs.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"revwork/internal/domain/leave"
)

const JobQuotaSweep = "quota_sweep"

type Runner struct {
	DB    *pgxpool.Pool
	Leave *leave.Service
	queue chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, leaveSvc *leave.Service) *Runner {
	return &Runner{
		DB:    db,
		Leave: leaveSvc,
		queue: make(chan job, 32),
	}
}

// Start launches the worker and, when interval is positive, a
// periodic quota sweep. The sweep tops up missing yearly quotas and
// is safe to repeat; already assigned employees are skipped.
func (r *Runner) Start(ctx context.Context, sweepInterval time.Duration) {
	go r.worker(ctx)
	if sweepInterval > 0 {
		go r.scheduleQuotaSweep(ctx, sweepInterval)
	}
}

func (r *Runner) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case r.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (r *Runner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			if _, err := r.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "error", err)
			}
		}
	}
}

func (r *Runner) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := r.DB.QueryRow(ctx, `
		INSERT INTO job_runs (job_type, status)
		VALUES ($1, 'running')
		RETURNING id`, j.Type).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "error", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "error", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := r.DB.Exec(ctx, `
			UPDATE job_runs
			SET status = $1, details_json = $2, completed_at = now()
			WHERE id = $3`, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "error", updErr)
		}
	}
	return details, err
}

func (r *Runner) scheduleQuotaSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			year := time.Now().Year()
			r.Enqueue(JobQuotaSweep, func(ctx context.Context) (any, error) {
				report, err := r.Leave.AssignQuotasToAll(ctx, year)
				if err != nil {
					return nil, err
				}
				return map[string]any{"year": year, "assigned": report.Assigned, "skipped": report.Skipped}, nil
			})
		}
	}
}
