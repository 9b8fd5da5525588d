package domain

import (
	"testing"
	"time"
)

func TestDeadLetterEntryCanRetry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	entry := &DeadLetterEntry{LeadID: "LD-1-a", Attempts: 3, LastAttempt: now}

	if entry.CanRetry(now) {
		t.Fatal("entry should not be retryable immediately after an attempt")
	}
	if entry.CanRetry(now.Add(4 * time.Minute)) {
		t.Fatal("entry should not be retryable before the cool-down elapses")
	}
	if !entry.CanRetry(now.Add(DeadLetterRetryAfter)) {
		t.Fatal("entry should be retryable once the cool-down elapses")
	}

	entry.Attempts = MaxDeadLetterAttempts
	if entry.CanRetry(now.Add(time.Hour)) {
		t.Fatal("entry at the attempt ceiling should never be retryable")
	}

	var nilEntry *DeadLetterEntry
	if nilEntry.CanRetry(now) {
		t.Fatal("nil entry should not be retryable")
	}
}

func TestDeadLetterEntryRecordAttempts(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &DeadLetterEntry{LeadID: "LD-1-a", Attempts: 3, LastAttempt: now, Errors: []string{"timeout"}}

	later := now.Add(10 * time.Minute)
	entry.RecordAttempts(1, later, "connection refused")

	if entry.Attempts != 4 {
		t.Fatalf("Attempts = %d, want 4", entry.Attempts)
	}
	if !entry.LastAttempt.Equal(later) {
		t.Fatalf("LastAttempt = %v, want %v", entry.LastAttempt, later)
	}
	if len(entry.Errors) != 2 || entry.Errors[1] != "connection refused" {
		t.Fatalf("Errors = %v, want history appended in order", entry.Errors)
	}

	// Attempts never decreases, even for a zero-count record.
	entry.RecordAttempts(0, later.Add(time.Minute))
	if entry.Attempts != 4 {
		t.Fatalf("Attempts = %d, want 4 after zero-count record", entry.Attempts)
	}
}
