package domain

import (
	"strings"
	"time"
)

// AbandonmentStep classifies how far a visitor got before disengaging.
type AbandonmentStep int

const (
	StepNone           AbandonmentStep = 0
	StepClicked        AbandonmentStep = 1
	StepFormStarted    AbandonmentStep = 2
	StepPartialContact AbandonmentStep = 3
)

func (s AbandonmentStep) IsValid() bool {
	return s >= StepClicked && s <= StepPartialContact
}

// Visitor is a site visitor moving through the financing funnel. A visitor is
// never deleted; a completed funnel pass supersedes it with a Lead.
type Visitor struct {
	SessionID string

	FirstName string
	LastName  string
	Email     string
	EmailHash string
	Phone     string

	Address string
	City    string
	State   string
	Zip     string

	Employer        string
	JobTitle        string
	AnnualIncome    float64
	TimeOnJobMonths int

	CreditScore     int
	RequestedAmount float64

	FormStarted   bool
	FormCompleted bool

	AbandonmentStep      AbandonmentStep
	AbandonmentDetected  bool
	ReturnToken          string
	ReturnTokenExpiresAt *time.Time

	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasContactMethod reports whether outreach can reach this visitor at all.
func (v *Visitor) HasContactMethod() bool {
	return strings.TrimSpace(v.Phone) != "" ||
		strings.TrimSpace(v.Email) != "" ||
		strings.TrimSpace(v.EmailHash) != ""
}

// ClassifyStep derives the abandonment step from the evidence on the record:
// a captured contact field beats a started form, which beats a bare click.
func (v *Visitor) ClassifyStep() AbandonmentStep {
	if v.HasContactMethod() {
		return StepPartialContact
	}
	if v.FormStarted {
		return StepFormStarted
	}
	return StepClicked
}

// ReturnTokenValid reports whether the resume capability is still usable.
func (v *Visitor) ReturnTokenValid(now time.Time) bool {
	if strings.TrimSpace(v.ReturnToken) == "" || v.ReturnTokenExpiresAt == nil {
		return false
	}
	return v.ReturnTokenExpiresAt.After(now)
}
