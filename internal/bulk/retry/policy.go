// Package retry decides what happens to a job after each delete call.
//
// Classification is pure: a 429 is retryable while the job still has retry
// budget, every other failure is permanent. Settle applies the decision by
// readmitting the job through the scheduler or writing a failure record.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/juju/clock"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/metrics"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries int           // retries allowed per job after rate limiting
	MinDelay   time.Duration // floor for every backoff
	MaxBackoff time.Duration // cap applied to server Retry-After hints
	Jitter     time.Duration // random extra delay in [0, Jitter)

	// Clock defaults to clock.WallClock.
	Clock clock.Clock
}

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatusCode() int
	RetryAfterDelay() time.Duration
}

// Readmitter re-queues a job after a delay.
type Readmitter interface {
	Readmit(job *domain.Job, delay time.Duration)
}

// Recorder persists permanent failures.
type Recorder interface {
	Record(ctx context.Context, rec domain.FailureRecord)
}

// Policy classifies delete results and applies the outcome.
type Policy struct {
	cfg     Config
	entity  domain.EntityType
	runID   string
	readmit Readmitter
	ledger  Recorder
	clock   clock.Clock
	log     *slog.Logger
}

// NewPolicy creates a retry policy for one run.
func NewPolicy(
	cfg Config,
	entity domain.EntityType,
	runID string,
	readmit Readmitter,
	ledger Recorder,
) *Policy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxBackoff < cfg.MinDelay {
		cfg.MaxBackoff = cfg.MinDelay
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Policy{
		cfg:     cfg,
		entity:  entity,
		runID:   runID,
		readmit: readmit,
		ledger:  ledger,
		clock:   clk,
		log:     slog.Default().With("component", "retry", "entity", string(entity)),
	}
}

// Classify maps the result of a delete call to an Outcome. A nil error is a
// success. Errors without a status code, such as transport failures, are
// permanent with status 0.
func (p *Policy) Classify(job domain.Job, err error) domain.Outcome {
	if err == nil {
		return domain.Success(0)
	}

	status := 0
	var retryAfter time.Duration
	var se StatusError
	if errors.As(err, &se) {
		status = se.HTTPStatusCode()
		retryAfter = se.RetryAfterDelay()
	}

	if status == http.StatusTooManyRequests && job.Attempt < p.cfg.MaxRetries {
		return domain.Retryable(status, retryAfter)
	}
	return domain.Permanent(status)
}

// Settle applies outcome to job and reports whether the job is finished.
func (p *Policy) Settle(ctx context.Context, job *domain.Job, outcome domain.Outcome) bool {
	metrics.Outcomes.WithLabelValues(
		string(p.entity),
		outcome.Kind.String(),
		strconv.Itoa(outcome.StatusCode),
	).Inc()

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		p.log.Info("Deleted", "id", job.ID, "status", outcome.StatusCode, "attempt", job.Attempt)
		return true

	case domain.OutcomeRetryable:
		if job.Attempt >= p.cfg.MaxRetries {
			// Classify never produces this, keep the invariant anyway
			return p.fail(ctx, job, domain.Permanent(outcome.StatusCode))
		}
		job.Attempt++
		delay := p.Backoff(outcome.RetryAfter)
		p.log.Warn("Delete rate limited, will be retried",
			"id", job.ID,
			"status", outcome.StatusCode,
			"retry", job.Attempt,
			"max_retries", p.cfg.MaxRetries,
			"delay", delay,
		)
		metrics.Retries.WithLabelValues(string(p.entity)).Inc()
		p.readmit.Readmit(job, delay)
		return false

	case domain.OutcomePermanent:
		return p.fail(ctx, job, outcome)
	}

	p.log.Error("Unknown outcome, treating as permanent", "id", job.ID, "kind", int(outcome.Kind))
	return p.fail(ctx, job, domain.Permanent(outcome.StatusCode))
}

func (p *Policy) fail(ctx context.Context, job *domain.Job, outcome domain.Outcome) bool {
	if outcome.StatusCode == http.StatusTooManyRequests {
		p.log.Error("Delete failed in spite of max retries",
			"id", job.ID,
			"status", outcome.StatusCode,
			"retries", job.Attempt,
		)
	} else {
		p.log.Error("Delete failed, will not be retried",
			"id", job.ID,
			"status", outcome.StatusCode,
		)
	}

	p.ledger.Record(ctx, domain.FailureRecord{
		ID:         job.ID,
		StatusCode: outcome.StatusCode,
		EntityType: p.entity,
		Attempts:   job.Attempt + 1,
		RunID:      p.runID,
		FailedAt:   p.clock.Now(),
	})
	return true
}

// Backoff returns the delay before a rate limited job is readmitted: the
// server hint when it is longer than MinDelay (capped at MaxBackoff), plus
// jitter. The result is never below MinDelay.
func (p *Policy) Backoff(hint time.Duration) time.Duration {
	delay := p.cfg.MinDelay
	if hint > delay {
		delay = min(hint, p.cfg.MaxBackoff)
	}
	if p.cfg.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(p.cfg.Jitter)))
	}
	return delay
}
