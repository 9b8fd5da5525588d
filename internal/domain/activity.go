package domain

import "time"

// ActivityType tags an audit trail entry.
type ActivityType string

const (
	ActivityAbandonmentDetected  ActivityType = "abandonment_detected"
	ActivityReturnTokenRefreshed ActivityType = "return_token_refreshed"
	ActivityOutreachSent         ActivityType = "outreach_sent"
	ActivityOutreachFailed       ActivityType = "outreach_failed"
	ActivityChatOpened           ActivityType = "chat_opened"
	ActivityLeadSubmitted        ActivityType = "lead_submitted"
	ActivityLeadFallback         ActivityType = "lead_fallback"
	ActivityLeadFailed           ActivityType = "lead_failed"
)

// VisitorActivity is an append-only audit entry for a visitor touch.
type VisitorActivity struct {
	ID        string
	VisitorID string
	Type      ActivityType
	Detail    string
	CreatedAt time.Time
}
