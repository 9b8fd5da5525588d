package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/dealer"
	"github.com/dealerlink/lead-recovery/internal/domain"
)

func completeVisitor(id string) *domain.Visitor {
	return &domain.Visitor{
		SessionID:       id,
		FirstName:       "Dana",
		LastName:        "Reyes",
		Email:           "dana@example.com",
		Phone:           "+15551234567",
		Address:         "12 Main St",
		City:            "Austin",
		State:           "TX",
		Zip:             "78701",
		Employer:        "Acme Corp",
		JobTitle:        "Technician",
		AnnualIncome:    54000,
		TimeOnJobMonths: 18,
		CreditScore:     652,
		RequestedAmount: 18000,
	}
}

func newTestPackagerService(t *testing.T, visitors *fakeVisitorRepo, leads *fakeLeadRepo, submitter *fakeSubmitter, dealerCRM *fakeDealerClient) *PackagerService {
	t.Helper()

	svc, err := NewPackagerService(
		visitors, leads, &fakeOutreachRepo{}, &fakeActivityRepo{},
		&fakeChatStore{}, submitter, dealerCRM, zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewPackagerService() error = %v", err)
	}
	return svc
}

func TestValidatePII(t *testing.T) {
	t.Parallel()

	if missing := ValidatePII(completeVisitor("v-1")); len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}

	v := completeVisitor("v-1")
	v.Employer = ""
	v.AnnualIncome = 0
	missing := ValidatePII(v)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want employer and annualIncome", missing)
	}
	found := map[string]bool{}
	for _, field := range missing {
		found[field] = true
	}
	if !found["employer"] || !found["annualIncome"] {
		t.Fatalf("missing = %v", missing)
	}

	// Validation mutates nothing; a second pass agrees with the first.
	if again := ValidatePII(v); len(again) != len(missing) {
		t.Fatalf("second pass missing = %v, first was %v", again, missing)
	}

	// A hashed email satisfies the email requirement.
	hashed := completeVisitor("v-2")
	hashed.Email = ""
	hashed.EmailHash = "ab12cd"
	if missing := ValidatePII(hashed); len(missing) != 0 {
		t.Fatalf("missing = %v, want none for hashed email", missing)
	}
}

func TestAssembleLeadBuildsPackage(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	firstTouch := now.Add(-48 * time.Hour)
	lastTouch := now.Add(-2 * time.Hour)

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			return completeVisitor(sessionID), nil
		},
	}

	svc, err := NewPackagerService(
		visitors, &fakeLeadRepo{},
		&fakeOutreachRepo{
			listByVisitorFn: func(ctx context.Context, visitorID string) ([]domain.OutreachAttempt, error) {
				return []domain.OutreachAttempt{
					{VisitorID: visitorID, CreatedAt: firstTouch},
					{VisitorID: visitorID, CreatedAt: lastTouch},
				}, nil
			},
		},
		&fakeActivityRepo{},
		&fakeChatStore{
			sessionCountFn: func(ctx context.Context, visitorID string) (int, error) { return 2, nil },
		},
		&fakeSubmitter{}, &fakeDealerClient{}, zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewPackagerService() error = %v", err)
	}
	svc.now = func() time.Time { return now }

	pkg, err := svc.AssembleLead(context.Background(), "v-1", "web")
	if err != nil {
		t.Fatalf("AssembleLead() error = %v", err)
	}

	wantLeadID := domain.NewLeadID(now, "v-1")
	if pkg.LeadID != wantLeadID {
		t.Fatalf("LeadID = %q, want %q", pkg.LeadID, wantLeadID)
	}
	if pkg.Engagement.OutreachAttempts != 2 || pkg.Engagement.ChatSessions != 2 {
		t.Fatalf("engagement = %+v", pkg.Engagement)
	}
	if pkg.Engagement.FirstTouchAt == nil || !pkg.Engagement.FirstTouchAt.Equal(firstTouch) {
		t.Fatalf("FirstTouchAt = %v, want %v", pkg.Engagement.FirstTouchAt, firstTouch)
	}
	if pkg.Credit.Assessment != "near-prime" {
		t.Fatalf("assessment = %q, want near-prime", pkg.Credit.Assessment)
	}
	if pkg.Meta.PackagerVersion != domain.PackagerVersion || pkg.Meta.Source != "web" {
		t.Fatalf("meta = %+v", pkg.Meta)
	}
}

func TestAssembleLeadIncompletePII(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			v := completeVisitor(sessionID)
			v.Employer = ""
			return v, nil
		},
	}

	svc := newTestPackagerService(t, visitors, &fakeLeadRepo{}, &fakeSubmitter{}, &fakeDealerClient{})

	_, err := svc.AssembleLead(context.Background(), "v-1", "web")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("AssembleLead() error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "employer") {
		t.Fatalf("error %q does not itemize the missing field", err.Error())
	}
}

func TestPackageAndSubmitMarketplaceAccepted(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			return completeVisitor(sessionID), nil
		},
	}

	var created *domain.Lead
	statuses := make([]domain.LeadStatus, 0, 2)
	var marketplaceRecorded bool
	leads := &fakeLeadRepo{
		createFn: func(ctx context.Context, l *domain.Lead) error {
			created = l
			return nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.LeadStatus) error {
			statuses = append(statuses, status)
			return nil
		},
		updateMarketplaceResultFn: func(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error {
			marketplaceRecorded = true
			if !submitted || boberdooStatus != "accepted" || price != 25 || buyerID != "B1" {
				t.Fatalf("marketplace result = (%v, %q, %v, %q)", submitted, boberdooStatus, price, buyerID)
			}
			return nil
		},
	}

	submitter := &fakeSubmitter{
		configured: true,
		submitFn: func(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
			return &SubmitOutcome{
				LeadID:   sub.LeadID,
				Accepted: true,
				Status:   "accepted",
				Price:    25,
				BuyerID:  "B1",
				Attempts: 1,
			}, nil
		},
	}

	dealerCRM := &fakeDealerClient{
		configured: true,
		forwardFn: func(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error) {
			t.Fatal("dealer fallback must not run after marketplace acceptance")
			return nil, nil
		},
	}

	svc := newTestPackagerService(t, visitors, leads, submitter, dealerCRM)

	report, err := svc.PackageAndSubmitLead(context.Background(), "v-1", "web")
	if err != nil {
		t.Fatalf("PackageAndSubmitLead() error = %v", err)
	}

	if !report.Success {
		t.Fatalf("report = %+v, want success", report)
	}
	if report.Revenue == nil || *report.Revenue != 25 {
		t.Fatalf("revenue = %v, want 25.00", report.Revenue)
	}
	if report.DealerFallback {
		t.Fatal("dealer fallback flagged on marketplace acceptance")
	}

	if created == nil || created.Status != domain.LeadStatusPending {
		t.Fatalf("created lead = %+v", created)
	}
	if !strings.HasPrefix(created.ID, "LD-") || !strings.HasSuffix(created.ID, "-v-1") {
		t.Fatalf("lead id = %q", created.ID)
	}
	if !marketplaceRecorded {
		t.Fatal("marketplace result not persisted")
	}

	wantStatuses := []domain.LeadStatus{domain.LeadStatusProcessing, domain.LeadStatusSubmitted}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("status transitions = %v", statuses)
	}
	for i, want := range wantStatuses {
		if statuses[i] != want {
			t.Fatalf("status[%d] = %s, want %s", i, statuses[i], want)
		}
	}
}

func TestPackageAndSubmitUnconfiguredFallsBackToDealer(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			return completeVisitor(sessionID), nil
		},
	}

	fallbackFlagged := false
	leads := &fakeLeadRepo{
		setDealerFallbackFn: func(ctx context.Context, id string) error {
			fallbackFlagged = true
			return nil
		},
	}

	forwarded := false
	dealerCRM := &fakeDealerClient{
		configured: true,
		forwardFn: func(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error) {
			forwarded = true
			if pkg.Contact.FirstName != "Dana" {
				t.Fatalf("package contact = %+v", pkg.Contact)
			}
			return &dealer.ForwardResult{StatusCode: 202}, nil
		},
	}

	svc := newTestPackagerService(t, visitors, leads, &fakeSubmitter{configured: false}, dealerCRM)

	report, err := svc.PackageAndSubmitLead(context.Background(), "v-1", "web")
	if err != nil {
		t.Fatalf("PackageAndSubmitLead() error = %v", err)
	}

	if !report.Success || !report.DealerFallback {
		t.Fatalf("report = %+v, want dealer fallback success", report)
	}
	if report.Revenue != nil {
		t.Fatalf("revenue = %v, want none on the dealer path", *report.Revenue)
	}
	if !forwarded || !fallbackFlagged {
		t.Fatalf("forwarded = %v, fallbackFlagged = %v", forwarded, fallbackFlagged)
	}
}

func TestPackageAndSubmitRejectionCascadesToDealer(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			return completeVisitor(sessionID), nil
		},
	}

	var recordedStatus string
	leads := &fakeLeadRepo{
		updateMarketplaceResultFn: func(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error {
			recordedStatus = boberdooStatus
			if submitted {
				t.Fatal("rejected lead recorded as submitted")
			}
			return nil
		},
	}

	submitter := &fakeSubmitter{
		configured: true,
		submitFn: func(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
			return &SubmitOutcome{LeadID: sub.LeadID, Rejected: true, Status: "rejected", Attempts: 1, LastError: "rejected (104): no buyer"}, nil
		},
	}

	forwarded := false
	dealerCRM := &fakeDealerClient{
		configured: true,
		forwardFn: func(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error) {
			forwarded = true
			return &dealer.ForwardResult{StatusCode: 200}, nil
		},
	}

	svc := newTestPackagerService(t, visitors, leads, submitter, dealerCRM)

	report, err := svc.PackageAndSubmitLead(context.Background(), "v-1", "web")
	if err != nil {
		t.Fatalf("PackageAndSubmitLead() error = %v", err)
	}

	if !report.Success || !report.DealerFallback {
		t.Fatalf("report = %+v, want dealer rescue", report)
	}
	if recordedStatus != "rejected" {
		t.Fatalf("recorded marketplace status = %q", recordedStatus)
	}
	if !forwarded {
		t.Fatal("dealer fallback not attempted after rejection")
	}
}

func TestPackageAndSubmitBothPathsFail(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			return completeVisitor(sessionID), nil
		},
	}

	var finalStatus domain.LeadStatus
	leads := &fakeLeadRepo{
		updateStatusFn: func(ctx context.Context, id string, status domain.LeadStatus) error {
			finalStatus = status
			return nil
		},
	}

	submitter := &fakeSubmitter{
		configured: true,
		submitFn: func(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
			return &SubmitOutcome{LeadID: sub.LeadID, DeadLettered: true, Attempts: 3, LastError: "request timed out"}, nil
		},
	}

	dealerCRM := &fakeDealerClient{
		configured: true,
		forwardFn: func(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error) {
			return nil, errors.New("dealer crm returned status 503")
		},
	}

	svc := newTestPackagerService(t, visitors, leads, submitter, dealerCRM)

	report, err := svc.PackageAndSubmitLead(context.Background(), "v-1", "web")
	if err != nil {
		t.Fatalf("PackageAndSubmitLead() error = %v", err)
	}

	if report.Success {
		t.Fatalf("report = %+v, want failure", report)
	}
	if !strings.Contains(report.Error, "timed out") || !strings.Contains(report.Error, "503") {
		t.Fatalf("report error = %q, want both failure causes", report.Error)
	}
	if finalStatus != domain.LeadStatusFailed {
		t.Fatalf("final lead status = %s, want failed", finalStatus)
	}
}

func TestPackageAndSubmitIncompletePIICreatesNoLead(t *testing.T) {
	t.Parallel()

	visitors := &fakeVisitorRepo{
		getByIDFn: func(ctx context.Context, sessionID string) (*domain.Visitor, error) {
			v := completeVisitor(sessionID)
			v.Phone = ""
			return v, nil
		},
	}

	leads := &fakeLeadRepo{
		createFn: func(ctx context.Context, l *domain.Lead) error {
			t.Fatal("lead row created for incomplete PII")
			return nil
		},
	}

	submitter := &fakeSubmitter{
		configured: true,
		submitFn: func(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
			t.Fatal("marketplace called for incomplete PII")
			return nil, nil
		},
	}

	svc := newTestPackagerService(t, visitors, leads, submitter, &fakeDealerClient{configured: true})

	_, err := svc.PackageAndSubmitLead(context.Background(), "v-1", "web")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("PackageAndSubmitLead() error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "Incomplete PII") {
		t.Fatalf("PackageAndSubmitLead() error = %q, want Incomplete PII mention", err)
	}
}
