package notify

import "context"

// Notifier is the outbound message delivery port used by the outreach
// orchestrator.
type Notifier interface {
	SendSMS(ctx context.Context, to, body string) (*SendResult, error)
	SendEmail(ctx context.Context, to, subject, body string) (*SendResult, error)
	Healthy(ctx context.Context) error
}

// SendResult stores provider call metadata for the attempt record.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string

	// Segments is the estimated SMS part count, computed for cost and
	// length visibility only; it is never enforced.
	Segments int
}
