package domain

import "time"

const (
	// MaxDeadLetterAttempts caps total attempts across the original series
	// and dead-letter retries.
	MaxDeadLetterAttempts = 5
	// DeadLetterRetryAfter is the minimum cool-down before a dead-lettered
	// submission may be retried.
	DeadLetterRetryAfter = 5 * time.Minute
)

// DeadLetterEntry holds a submission that exhausted its retries, keyed by
// lead id. Attempts is monotonically non-decreasing; the entry is removed
// only when a later retry succeeds.
type DeadLetterEntry struct {
	LeadID      string         `json:"leadId"`
	Payload     LeadSubmission `json:"payload"`
	Attempts    int            `json:"attempts"`
	LastAttempt time.Time      `json:"lastAttempt"`
	Errors      []string       `json:"errors"`
}

// CanRetry reports whether the entry is eligible for another attempt.
func (e *DeadLetterEntry) CanRetry(now time.Time) bool {
	if e == nil {
		return false
	}
	if e.Attempts >= MaxDeadLetterAttempts {
		return false
	}
	return now.Sub(e.LastAttempt) >= DeadLetterRetryAfter
}

// RecordAttempts appends an attempt batch to the entry's history.
func (e *DeadLetterEntry) RecordAttempts(count int, at time.Time, errs ...string) {
	if count > 0 {
		e.Attempts += count
	}
	e.LastAttempt = at
	e.Errors = append(e.Errors, errs...)
}
