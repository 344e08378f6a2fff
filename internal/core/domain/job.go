package domain

import "time"

// Job is one delete operation for one entity.
type Job struct {
	ID      string
	Attempt int // retries spent so far; only the retry policy changes it
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomePermanent:
		return "permanent"
	}
	return "unknown"
}

// Outcome is the classified result of one dispatched delete call.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int

	// RetryAfter is the server's hint for when to try again, if it sent one.
	RetryAfter time.Duration
}

// Success returns a successful outcome.
func Success(status int) Outcome {
	return Outcome{Kind: OutcomeSuccess, StatusCode: status}
}

// Retryable returns an outcome that should be re-admitted after a backoff.
func Retryable(status int, retryAfter time.Duration) Outcome {
	return Outcome{Kind: OutcomeRetryable, StatusCode: status, RetryAfter: retryAfter}
}

// Permanent returns a terminal failure outcome.
func Permanent(status int) Outcome {
	return Outcome{Kind: OutcomePermanent, StatusCode: status}
}

// Terminal reports whether the job is finished after this outcome.
func (o Outcome) Terminal() bool {
	return o.Kind != OutcomeRetryable
}

// Summary aggregates the terminal states of a run.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	Aborted   int // never settled because the run was interrupted
	Duration  time.Duration
}
