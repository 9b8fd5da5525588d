package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewLeadID(t *testing.T) {
	t.Parallel()

	at := time.Unix(1_750_000_000, 0)
	got := NewLeadID(at, "sess-42")
	if got != "LD-1750000000-sess-42" {
		t.Fatalf("NewLeadID() = %q, want %q", got, "LD-1750000000-sess-42")
	}
}

func TestLeadStatusCanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from LeadStatus
		to   LeadStatus
		want bool
	}{
		{name: "pending to processing", from: LeadStatusPending, to: LeadStatusProcessing, want: true},
		{name: "processing to submitted", from: LeadStatusProcessing, to: LeadStatusSubmitted, want: true},
		{name: "submitted back to pending", from: LeadStatusSubmitted, to: LeadStatusPending, want: false},
		{name: "failed back to processing", from: LeadStatusFailed, to: LeadStatusProcessing, want: false},
		{name: "submitted stays submitted", from: LeadStatusSubmitted, to: LeadStatusSubmitted, want: true},
		{name: "submitted to failed", from: LeadStatusSubmitted, to: LeadStatusFailed, want: false},
		{name: "failed to submitted", from: LeadStatusFailed, to: LeadStatusSubmitted, want: false},
		{name: "invalid target", from: LeadStatusPending, to: LeadStatus("bogus"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func completePackage() *LeadPackage {
	return &LeadPackage{
		LeadID:    "LD-1750000000-sess-1",
		VisitorID: "sess-1",
		Contact: ContactInfo{
			FirstName: "Dana",
			LastName:  "Reyes",
			Email:     "dana@example.com",
			Phone:     "+15551234567",
			Address:   "12 Main St",
			City:      "Austin",
			State:     "TX",
			Zip:       "78701",
		},
		Employment: EmploymentInfo{
			Employer:        "Acme Corp",
			JobTitle:        "Technician",
			AnnualIncome:    54000,
			TimeOnJobMonths: 18,
		},
		Credit: CreditInfo{Score: 652, RequestedAmount: 18000},
		Meta:   PackageMeta{CreatedAt: time.Now(), PackagerVersion: PackagerVersion, Source: "web"},
	}
}

func TestLeadPackageValidate(t *testing.T) {
	t.Parallel()

	if err := completePackage().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(p *LeadPackage)
	}{
		{name: "missing employer", mutate: func(p *LeadPackage) { p.Employment.Employer = "" }},
		{name: "missing phone", mutate: func(p *LeadPackage) { p.Contact.Phone = "" }},
		{name: "missing email and hash", mutate: func(p *LeadPackage) { p.Contact.Email = ""; p.Contact.EmailHash = "" }},
		{name: "zero income", mutate: func(p *LeadPackage) { p.Employment.AnnualIncome = 0 }},
		{name: "bad lead id", mutate: func(p *LeadPackage) { p.LeadID = "1750000000" }},
		{name: "missing zip", mutate: func(p *LeadPackage) { p.Contact.Zip = "" }},
	}

	for _, tt := range mutations {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := completePackage()
			tt.mutate(p)
			if err := p.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLeadPackageValidateAcceptsEmailHashOnly(t *testing.T) {
	t.Parallel()

	p := completePackage()
	p.Contact.Email = ""
	p.Contact.EmailHash = "f3b1"
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
}

func TestSubmissionFromPackage(t *testing.T) {
	t.Parallel()

	p := completePackage()
	sub := SubmissionFromPackage(p)

	if sub.LeadID != p.LeadID {
		t.Fatalf("LeadID = %q, want %q", sub.LeadID, p.LeadID)
	}
	if sub.Employer != "Acme Corp" || sub.JobTitle != "Technician" {
		t.Fatalf("employment not carried: %+v", sub)
	}
	if sub.LoanAmount != 18000 || sub.CreditScore != 652 {
		t.Fatalf("credit snapshot not carried: %+v", sub)
	}
	if sub.Source != "web" {
		t.Fatalf("Source = %q, want web", sub.Source)
	}
}
