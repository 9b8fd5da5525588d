package domain

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus is the lifecycle state of a persisted lead. Transitions are
// append-only: a lead never moves backwards from a later state.
type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusProcessing LeadStatus = "processing"
	LeadStatusSubmitted  LeadStatus = "submitted"
	LeadStatusFailed     LeadStatus = "failed"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusPending, LeadStatusProcessing, LeadStatusSubmitted, LeadStatusFailed:
		return true
	}
	return false
}

func (s LeadStatus) rank() int {
	switch s {
	case LeadStatusPending:
		return 0
	case LeadStatusProcessing:
		return 1
	case LeadStatusSubmitted, LeadStatusFailed:
		return 2
	}
	return -1
}

func (s LeadStatus) terminal() bool {
	return s == LeadStatusSubmitted || s == LeadStatusFailed
}

// CanTransitionTo reports whether moving to next would regress the lifecycle.
// Terminal states admit only themselves; submitted and failed share a rank
// but never swap.
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s.terminal() {
		return next == s
	}
	return next.rank() >= s.rank()
}

// Lead is the persisted row for one submission attempt series.
type Lead struct {
	ID            string
	VisitorID     string
	LeadPackageID string

	FirstName string
	LastName  string
	Email     string
	Phone     string

	Status LeadStatus

	BoberdooSubmitted bool
	BoberdooStatus    string
	Price             float64
	BuyerID           string
	DealerFallback    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLeadID builds the globally unique lead identifier.
func NewLeadID(now time.Time, visitorID string) string {
	return fmt.Sprintf("LD-%d-%s", now.Unix(), visitorID)
}

// PackagerVersion is stamped into every assembled package.
const PackagerVersion = "2.1.0"

// ContactInfo is the validated PII snapshot carried by a LeadPackage.
type ContactInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	EmailHash string `json:"emailHash,omitempty"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

// EmploymentInfo is the employment slice of the PII snapshot.
type EmploymentInfo struct {
	Employer        string  `json:"employer"`
	JobTitle        string  `json:"jobTitle"`
	AnnualIncome    float64 `json:"annualIncome"`
	TimeOnJobMonths int     `json:"timeOnJobMonths"`
}

// EngagementSummary aggregates prior touches for buyer context.
type EngagementSummary struct {
	OutreachAttempts int        `json:"outreachAttempts"`
	ChatSessions     int        `json:"chatSessions"`
	FirstTouchAt     *time.Time `json:"firstTouchAt,omitempty"`
	LastTouchAt      *time.Time `json:"lastTouchAt,omitempty"`
}

// CreditInfo is the credit assessment snapshot at packaging time.
type CreditInfo struct {
	Score           int     `json:"score"`
	RequestedAmount float64 `json:"requestedAmount"`
	Assessment      string  `json:"assessment,omitempty"`
}

// PackageMeta records provenance for the assembled package.
type PackageMeta struct {
	CreatedAt       time.Time `json:"createdAt"`
	PackagerVersion string    `json:"packagerVersion"`
	Source          string    `json:"source"`
}

// LeadPackage is the canonical value object sold to the marketplace. It is
// only ever constructed from a visitor that passed complete-PII validation.
type LeadPackage struct {
	LeadID     string            `json:"leadId"`
	VisitorID  string            `json:"visitorId"`
	Contact    ContactInfo       `json:"contact"`
	Employment EmploymentInfo    `json:"employment"`
	Engagement EngagementSummary `json:"engagement"`
	Credit     CreditInfo        `json:"credit"`
	Meta       PackageMeta       `json:"meta"`
}

// Validate is the schema re-check applied after assembly, guarding against
// drift between PII validation and package construction.
func (p *LeadPackage) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: lead package is nil", ErrValidation)
	}
	if !strings.HasPrefix(p.LeadID, "LD-") {
		return fmt.Errorf("%w: malformed lead id %q", ErrValidation, p.LeadID)
	}
	if strings.TrimSpace(p.VisitorID) == "" {
		return fmt.Errorf("%w: visitor id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Contact.FirstName) == "" || strings.TrimSpace(p.Contact.LastName) == "" {
		return fmt.Errorf("%w: contact name is incomplete", ErrValidation)
	}
	if strings.TrimSpace(p.Contact.Phone) == "" {
		return fmt.Errorf("%w: contact phone is required", ErrValidation)
	}
	if strings.TrimSpace(p.Contact.Email) == "" && strings.TrimSpace(p.Contact.EmailHash) == "" {
		return fmt.Errorf("%w: email or email hash is required", ErrValidation)
	}
	if strings.TrimSpace(p.Contact.Address) == "" ||
		strings.TrimSpace(p.Contact.City) == "" ||
		strings.TrimSpace(p.Contact.State) == "" ||
		strings.TrimSpace(p.Contact.Zip) == "" {
		return fmt.Errorf("%w: address is incomplete", ErrValidation)
	}
	if strings.TrimSpace(p.Employment.Employer) == "" || strings.TrimSpace(p.Employment.JobTitle) == "" {
		return fmt.Errorf("%w: employment is incomplete", ErrValidation)
	}
	if p.Employment.AnnualIncome <= 0 {
		return fmt.Errorf("%w: annual income must be positive", ErrValidation)
	}
	if p.Employment.TimeOnJobMonths <= 0 {
		return fmt.Errorf("%w: time on job must be positive", ErrValidation)
	}
	if p.Meta.PackagerVersion == "" {
		return fmt.Errorf("%w: packager version is required", ErrValidation)
	}
	return nil
}

// LeadSubmission is the wire payload for one marketplace submission.
type LeadSubmission struct {
	LeadID          string  `json:"leadId"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Address         string  `json:"address"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	Zip             string  `json:"zip"`
	Employer        string  `json:"employer"`
	JobTitle        string  `json:"jobTitle"`
	AnnualIncome    float64 `json:"annualIncome"`
	TimeOnJobMonths int     `json:"timeOnJobMonths"`
	CreditScore     int     `json:"creditScore"`
	LoanAmount      float64 `json:"loanAmount"`
	Source          string  `json:"source"`
}

// SubmissionFromPackage projects a LeadPackage onto the marketplace payload.
func SubmissionFromPackage(p *LeadPackage) LeadSubmission {
	return LeadSubmission{
		LeadID:          p.LeadID,
		FirstName:       p.Contact.FirstName,
		LastName:        p.Contact.LastName,
		Email:           p.Contact.Email,
		Phone:           p.Contact.Phone,
		Address:         p.Contact.Address,
		City:            p.Contact.City,
		State:           p.Contact.State,
		Zip:             p.Contact.Zip,
		Employer:        p.Employment.Employer,
		JobTitle:        p.Employment.JobTitle,
		AnnualIncome:    p.Employment.AnnualIncome,
		TimeOnJobMonths: p.Employment.TimeOnJobMonths,
		CreditScore:     p.Credit.Score,
		LoanAmount:      p.Credit.RequestedAmount,
		Source:          p.Meta.Source,
	}
}
