package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

type httpErr struct {
	code       int
	retryAfter time.Duration
}

func (e *httpErr) Error() string                  { return fmt.Sprintf("http %d", e.code) }
func (e *httpErr) HTTPStatusCode() int            { return e.code }
func (e *httpErr) RetryAfterDelay() time.Duration { return e.retryAfter }

type fakeReadmitter struct {
	mu     sync.Mutex
	jobs   []*domain.Job
	delays []time.Duration
}

func (f *fakeReadmitter) Readmit(job *domain.Job, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	f.delays = append(f.delays, delay)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.FailureRecord
}

func (f *fakeRecorder) Record(_ context.Context, rec domain.FailureRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func newTestPolicy(maxRetries int) (*Policy, *fakeReadmitter, *fakeRecorder) {
	rd := &fakeReadmitter{}
	rc := &fakeRecorder{}
	cfg := Config{
		MaxRetries: maxRetries,
		MinDelay:   300 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
	}
	return NewPolicy(cfg, domain.EntityUsers, "run-1", rd, rc), rd, rc
}

func TestPolicy_Classify(t *testing.T) {
	p, _, _ := newTestPolicy(3)

	tests := []struct {
		name    string
		attempt int
		err     error
		kind    domain.OutcomeKind
		status  int
	}{
		{"success", 0, nil, domain.OutcomeSuccess, 0},
		{"429 first attempt", 0, &httpErr{code: 429}, domain.OutcomeRetryable, 429},
		{"429 last retry left", 2, &httpErr{code: 429}, domain.OutcomeRetryable, 429},
		{"429 budget exhausted", 3, &httpErr{code: 429}, domain.OutcomePermanent, 429},
		{"500 never retried", 0, &httpErr{code: 500}, domain.OutcomePermanent, 500},
		{"404 never retried", 0, &httpErr{code: 404}, domain.OutcomePermanent, 404},
		{"403 never retried", 0, &httpErr{code: 403}, domain.OutcomePermanent, 403},
		{"wrapped 429", 1, fmt.Errorf("delete u1: %w", &httpErr{code: 429}), domain.OutcomeRetryable, 429},
		{"transport error", 0, errors.New("connection reset by peer"), domain.OutcomePermanent, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Classify(domain.Job{ID: "u1", Attempt: tt.attempt}, tt.err)
			if got.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", got.StatusCode, tt.status)
			}
		})
	}
}

func TestPolicy_ClassifyZeroRetries(t *testing.T) {
	p, _, _ := newTestPolicy(0)
	got := p.Classify(domain.Job{ID: "u1"}, &httpErr{code: 429})
	if got.Kind != domain.OutcomePermanent {
		t.Errorf("kind = %v, want permanent when no retries are configured", got.Kind)
	}
}

func TestPolicy_RateLimitedUntilExhausted(t *testing.T) {
	p, rd, rc := newTestPolicy(3)
	job := &domain.Job{ID: "u2"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out := p.Classify(*job, &httpErr{code: 429})
		if p.Settle(ctx, job, out) {
			t.Fatalf("attempt %d: job settled early", i)
		}
	}
	out := p.Classify(*job, &httpErr{code: 429})
	if !p.Settle(ctx, job, out) {
		t.Fatal("job not terminal after exhausting retries")
	}

	if job.Attempt != 3 {
		t.Errorf("attempt = %d, want 3", job.Attempt)
	}
	if len(rd.jobs) != 3 {
		t.Errorf("readmissions = %d, want 3", len(rd.jobs))
	}
	if len(rc.records) != 1 {
		t.Fatalf("failure records = %d, want 1", len(rc.records))
	}
	rec := rc.records[0]
	if rec.ID != "u2" || rec.StatusCode != 429 || rec.Attempts != 4 || rec.RunID != "run-1" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestPolicy_PermanentRecordedOnce(t *testing.T) {
	p, rd, rc := newTestPolicy(3)
	job := &domain.Job{ID: "u3"}

	out := p.Classify(*job, &httpErr{code: 500})
	if !p.Settle(context.Background(), job, out) {
		t.Fatal("500 should be terminal")
	}
	if len(rd.jobs) != 0 {
		t.Errorf("500 was readmitted %d times", len(rd.jobs))
	}
	if len(rc.records) != 1 || rc.records[0].Line() != "u3,500" {
		t.Errorf("records = %+v, want single u3,500", rc.records)
	}
	if job.Attempt != 0 {
		t.Errorf("attempt = %d, retry budget spent on non-429", job.Attempt)
	}
}

func TestPolicy_SuccessNoSideEffects(t *testing.T) {
	p, rd, rc := newTestPolicy(3)
	job := &domain.Job{ID: "u1"}
	if !p.Settle(context.Background(), job, p.Classify(*job, nil)) {
		t.Fatal("success should be terminal")
	}
	if len(rd.jobs) != 0 || len(rc.records) != 0 {
		t.Errorf("success produced side effects: readmits=%d records=%d", len(rd.jobs), len(rc.records))
	}
}

func TestPolicy_SettleGuardsBudget(t *testing.T) {
	p, rd, rc := newTestPolicy(1)
	job := &domain.Job{ID: "u4", Attempt: 1}

	// a retryable outcome for a job with no budget left must not be readmitted
	if !p.Settle(context.Background(), job, domain.Retryable(429, 0)) {
		t.Fatal("expected terminal")
	}
	if len(rd.jobs) != 0 || len(rc.records) != 1 {
		t.Errorf("readmits=%d records=%d, want 0 and 1", len(rd.jobs), len(rc.records))
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p, _, _ := newTestPolicy(3)

	tests := []struct {
		hint time.Duration
		want time.Duration
	}{
		{0, 300 * time.Millisecond},
		{100 * time.Millisecond, 300 * time.Millisecond},
		{2 * time.Second, 2 * time.Second},
		{time.Minute, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.hint); got != tt.want {
			t.Errorf("Backoff(%v) = %v, want %v", tt.hint, got, tt.want)
		}
	}
}

func TestPolicy_BackoffJitter(t *testing.T) {
	cfg := Config{MaxRetries: 1, MinDelay: 300 * time.Millisecond, Jitter: 100 * time.Millisecond}
	p := NewPolicy(cfg, domain.EntityClients, "", &fakeReadmitter{}, &fakeRecorder{})

	for i := 0; i < 50; i++ {
		d := p.Backoff(0)
		if d < 300*time.Millisecond || d >= 400*time.Millisecond {
			t.Fatalf("Backoff = %v, want in [300ms, 400ms)", d)
		}
	}
}
