// Package runner turns a list of ids into rate limited delete jobs and waits
// for every job to settle.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/retry"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/scheduler"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// Deleter performs one remote delete. It returns the response status and a
// non-nil error for anything other than 2xx.
type Deleter interface {
	Delete(ctx context.Context, entity domain.EntityType, id, token string) (int, error)
}

// Gate asks the operator to confirm a run. A nil Gate skips confirmation.
type Gate interface {
	Confirm(count int, entity domain.EntityType) error
}

// Config holds the per-run settings.
type Config struct {
	Entity    domain.EntityType
	RunID     string
	Scheduler scheduler.Config
	Retry     retry.Config
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Entity    domain.EntityType `json:"entity"`
	RunID     string            `json:"run_id"`
	Running   bool              `json:"running"`
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	NotFound  int               `json:"not_found"` // failures with 404, included in Failed
	Retries   int               `json:"retries"`
	InFlight  int               `json:"in_flight"`
	StartedAt time.Time         `json:"started_at"`
}

// Runner executes bulk delete runs.
type Runner struct {
	cfg     Config
	deleter Deleter
	gate    Gate
	ledger  retry.Recorder
	log     *slog.Logger

	mu       sync.RWMutex
	progress Progress
	inFlight func() int
}

type settlement struct {
	id      string
	outcome domain.Outcome
}

// New creates a Runner.
func New(cfg Config, deleter Deleter, gate Gate, ledger retry.Recorder) *Runner {
	return &Runner{
		cfg:     cfg,
		deleter: deleter,
		gate:    gate,
		ledger:  ledger,
		log:     slog.Default().With("component", "runner", "entity", string(cfg.Entity)),
		progress: Progress{
			Entity: cfg.Entity,
			RunID:  cfg.RunID,
		},
	}
}

// Run deletes every id with token. Individual failures never stop the run;
// they end up in the ledger. Run returns once every job has settled, or once
// ctx is cancelled and the in-flight calls have finished, in which case the
// unsettled jobs are reported as Aborted together with ctx's error.
func (r *Runner) Run(ctx context.Context, ids []string, token string) (domain.Summary, error) {
	start := time.Now()

	if r.gate != nil {
		if err := r.gate.Confirm(len(ids), r.cfg.Entity); err != nil {
			return domain.Summary{}, err
		}
	}

	summary := domain.Summary{Attempted: len(ids)}
	if len(ids) == 0 {
		r.log.Info("Nothing to delete")
		return summary, nil
	}

	// every job settles exactly once, so the buffer never blocks a handler
	settled := make(chan settlement, len(ids))

	var policy *retry.Policy
	sched := scheduler.New(r.cfg.Scheduler, func(ctx context.Context, job *domain.Job) {
		status, err := r.deleter.Delete(ctx, r.cfg.Entity, job.ID, token)
		outcome := policy.Classify(*job, err)
		if outcome.Kind == domain.OutcomeSuccess {
			outcome.StatusCode = status
		}
		if outcome.Kind == domain.OutcomeRetryable {
			r.update(func(p *Progress) { p.Retries++ })
		}
		if policy.Settle(ctx, job, outcome) {
			settled <- settlement{id: job.ID, outcome: outcome}
		}
	})
	policy = retry.NewPolicy(r.cfg.Retry, r.cfg.Entity, r.cfg.RunID, sched, r.ledger)

	r.update(func(p *Progress) {
		p.Running = true
		p.Attempted = len(ids)
		p.StartedAt = start
	})
	r.mu.Lock()
	r.inFlight = sched.InFlight
	r.mu.Unlock()

	r.log.Info("Starting bulk delete",
		"count", len(ids),
		"max_concurrent", r.cfg.Scheduler.MaxConcurrent,
		"min_delay", r.cfg.Scheduler.MinDelay,
		"max_retries", r.cfg.Retry.MaxRetries,
	)

	schedCtx, stop := context.WithCancel(ctx)
	defer stop()
	sched.Start(schedCtx)
	for _, id := range ids {
		sched.Submit(&domain.Job{ID: id})
	}

	notFound := 0
	tally := func(s settlement) {
		switch s.outcome.Kind {
		case domain.OutcomeSuccess:
			summary.Succeeded++
		case domain.OutcomePermanent, domain.OutcomeRetryable:
			summary.Failed++
			if s.outcome.StatusCode == http.StatusNotFound {
				notFound++
			}
		}
		r.update(func(p *Progress) {
			p.Succeeded = summary.Succeeded
			p.Failed = summary.Failed
			p.NotFound = notFound
		})
	}

wait:
	for summary.Succeeded+summary.Failed < len(ids) {
		select {
		case s := <-settled:
			tally(s)
		case <-ctx.Done():
			r.log.Warn("Run interrupted, waiting for in-flight deletes", "in_flight", sched.InFlight())
			break wait
		}
	}

	stop()
	sched.Wait()

	// in-flight calls may have settled while we were stopping
drain:
	for {
		select {
		case s := <-settled:
			tally(s)
		default:
			break drain
		}
	}

	summary.Aborted = len(ids) - summary.Succeeded - summary.Failed
	summary.Duration = time.Since(start)
	r.update(func(p *Progress) { p.Running = false })

	if summary.Aborted > 0 {
		return summary, fmt.Errorf("run aborted with %d jobs unsettled: %w", summary.Aborted, context.Cause(ctx))
	}
	return summary, nil
}

// Progress returns a snapshot of the current run.
func (r *Runner) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.progress
	if r.inFlight != nil {
		p.InFlight = r.inFlight()
	}
	return p
}

func (r *Runner) update(fn func(p *Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
}
