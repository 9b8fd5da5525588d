package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the outreach delivery channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// AttemptStatus is the delivery state of a single outreach attempt.
type AttemptStatus string

const (
	AttemptStatusSent      AttemptStatus = "sent"
	AttemptStatusDelivered AttemptStatus = "delivered"
	AttemptStatusFailed    AttemptStatus = "failed"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptStatusSent, AttemptStatusDelivered, AttemptStatusFailed:
		return true
	}
	return false
}

func ParseAttemptStatusFromString(s string) (AttemptStatus, error) {
	st := AttemptStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt status %q", ErrValidation, s)
	}
	return st, nil
}

// OutreachAttempt is an immutable record of one dispatched message. Delivery
// callbacks update Status by ProviderMessageID; nothing else mutates it.
type OutreachAttempt struct {
	ID                string
	VisitorID         string
	Channel           Channel
	Message           string
	ProviderMessageID string
	Status            AttemptStatus
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Cadence windows: minimum wait since the last attempt before a visitor at a
// given step is eligible for a follow-up.
const (
	cadenceClicked        = 2 * time.Hour
	cadenceFormStarted    = 6 * time.Hour
	cadencePartialContact = 24 * time.Hour
)

// CadenceWindow returns the follow-up wait for an abandonment step.
func CadenceWindow(step AbandonmentStep) time.Duration {
	switch step {
	case StepFormStarted:
		return cadenceFormStarted
	case StepPartialContact:
		return cadencePartialContact
	default:
		return cadenceClicked
	}
}
