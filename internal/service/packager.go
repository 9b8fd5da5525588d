package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/chat"
	"github.com/dealerlink/lead-recovery/internal/dealer"
	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/repository"
)

// DealerClient is the dealer-CRM fallback collaborator.
type DealerClient interface {
	Configured() bool
	Forward(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error)
}

// Submitter is the marketplace retry series, satisfied by SubmissionService.
type Submitter interface {
	Configured() bool
	SubmitWithRetry(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error)
}

// PackageReport is the terminal result of one packaging call.
type PackageReport struct {
	Success        bool     `json:"success"`
	LeadID         string   `json:"leadId"`
	Revenue        *float64 `json:"revenue,omitempty"`
	BuyerID        string   `json:"buyerId,omitempty"`
	DealerFallback bool     `json:"dealerFallback"`
	Error          string   `json:"error,omitempty"`
}

// PackagerService validates PII, assembles the canonical lead package, and
// drives the marketplace-then-dealer priority cascade.
type PackagerService struct {
	visitors   repository.VisitorRepository
	leads      repository.LeadRepository
	attempts   repository.OutreachRepository
	activities repository.ActivityRepository
	sessions   chat.Store
	submitter  Submitter
	dealerCRM  DealerClient
	logger     *zap.Logger

	now func() time.Time
}

func NewPackagerService(
	visitors repository.VisitorRepository,
	leads repository.LeadRepository,
	attempts repository.OutreachRepository,
	activities repository.ActivityRepository,
	sessions chat.Store,
	submitter Submitter,
	dealerCRM DealerClient,
	logger *zap.Logger,
) (*PackagerService, error) {
	if visitors == nil {
		return nil, fmt.Errorf("visitor repository is required")
	}
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("outreach repository is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("activity repository is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if dealerCRM == nil {
		return nil, fmt.Errorf("dealer client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PackagerService{
		visitors:   visitors,
		leads:      leads,
		attempts:   attempts,
		activities: activities,
		sessions:   sessions,
		submitter:  submitter,
		dealerCRM:  dealerCRM,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ValidatePII itemizes the required fields missing from a visitor record. An
// empty slice means the visitor can be packaged. The check mutates nothing,
// so repeated calls always agree.
func ValidatePII(v *domain.Visitor) []string {
	if v == nil {
		return []string{"visitor"}
	}

	var missing []string
	require := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	require(v.FirstName, "firstName")
	require(v.LastName, "lastName")
	require(v.Phone, "phone")
	if strings.TrimSpace(v.Email) == "" && strings.TrimSpace(v.EmailHash) == "" {
		missing = append(missing, "email")
	}
	require(v.Address, "address")
	require(v.City, "city")
	require(v.State, "state")
	require(v.Zip, "zip")
	require(v.Employer, "employer")
	require(v.JobTitle, "jobTitle")
	if v.AnnualIncome <= 0 {
		missing = append(missing, "annualIncome")
	}
	if v.TimeOnJobMonths <= 0 {
		missing = append(missing, "timeOnJob")
	}

	return missing
}

// AssembleLead re-validates PII and builds the canonical package from the
// current visitor and engagement snapshot.
func (s *PackagerService) AssembleLead(ctx context.Context, visitorID, source string) (*domain.LeadPackage, error) {
	visitor, err := s.visitors.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, visitor, source)
}

func (s *PackagerService) assemble(ctx context.Context, visitor *domain.Visitor, source string) (*domain.LeadPackage, error) {
	if missing := ValidatePII(visitor); len(missing) > 0 {
		return nil, fmt.Errorf("%w: Incomplete PII: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}

	now := s.now().UTC()
	engagement, err := s.engagementSummary(ctx, visitor.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to build engagement summary: %w", err)
	}

	pkg := &domain.LeadPackage{
		LeadID:    domain.NewLeadID(now, visitor.SessionID),
		VisitorID: visitor.SessionID,
		Contact: domain.ContactInfo{
			FirstName: visitor.FirstName,
			LastName:  visitor.LastName,
			Email:     visitor.Email,
			EmailHash: visitor.EmailHash,
			Phone:     visitor.Phone,
			Address:   visitor.Address,
			City:      visitor.City,
			State:     visitor.State,
			Zip:       visitor.Zip,
		},
		Employment: domain.EmploymentInfo{
			Employer:        visitor.Employer,
			JobTitle:        visitor.JobTitle,
			AnnualIncome:    visitor.AnnualIncome,
			TimeOnJobMonths: visitor.TimeOnJobMonths,
		},
		Engagement: engagement,
		Credit: domain.CreditInfo{
			Score:           visitor.CreditScore,
			RequestedAmount: visitor.RequestedAmount,
			Assessment:      assessCredit(visitor.CreditScore),
		},
		Meta: domain.PackageMeta{
			CreatedAt:       now,
			PackagerVersion: domain.PackagerVersion,
			Source:          source,
		},
	}

	// Schema re-check guards against drift between PII validation and
	// package construction.
	if err := pkg.Validate(); err != nil {
		return nil, err
	}

	return pkg, nil
}

func (s *PackagerService) engagementSummary(ctx context.Context, visitorID string) (domain.EngagementSummary, error) {
	attempts, err := s.attempts.ListByVisitor(ctx, visitorID)
	if err != nil {
		return domain.EngagementSummary{}, err
	}

	summary := domain.EngagementSummary{OutreachAttempts: len(attempts)}
	if len(attempts) > 0 {
		first := attempts[0].CreatedAt
		last := attempts[len(attempts)-1].CreatedAt
		summary.FirstTouchAt = &first
		summary.LastTouchAt = &last
	}

	if s.sessions != nil {
		count, err := s.sessions.SessionCount(ctx, visitorID)
		if err != nil {
			// Chat counts enrich the package; a store hiccup should not
			// block monetization.
			s.logger.Warn("failed to count chat sessions",
				zap.String("visitorId", visitorID),
				zap.Error(err),
			)
		} else {
			summary.ChatSessions = count
		}
	}

	return summary, nil
}

// PackageAndSubmitLead is the priority cascade: validate, assemble, try the
// marketplace, fall back to the dealer CRM. The marketplace always goes
// first because it monetizes the lead.
func (s *PackagerService) PackageAndSubmitLead(ctx context.Context, visitorID, source string) (*PackageReport, error) {
	visitor, err := s.visitors.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	pkg, err := s.assemble(ctx, visitor, source)
	if err != nil {
		return nil, err
	}

	lead := &domain.Lead{
		ID:            pkg.LeadID,
		VisitorID:     visitor.SessionID,
		LeadPackageID: uuid.NewString(),
		FirstName:     visitor.FirstName,
		LastName:      visitor.LastName,
		Email:         visitor.Email,
		Phone:         visitor.Phone,
		Status:        domain.LeadStatusPending,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to persist lead: %w", err)
	}
	if err := s.leads.UpdateStatus(ctx, lead.ID, domain.LeadStatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to mark lead processing: %w", err)
	}

	report := &PackageReport{LeadID: pkg.LeadID}
	marketplaceError := ""

	if s.submitter.Configured() {
		outcome, err := s.submitter.SubmitWithRetry(ctx, domain.SubmissionFromPackage(pkg))
		switch {
		case err != nil:
			marketplaceError = err.Error()
			if recordErr := s.leads.UpdateMarketplaceResult(ctx, lead.ID, false, "error", 0, ""); recordErr != nil {
				s.logger.Error("failed to record marketplace result",
					zap.String("leadId", lead.ID),
					zap.Error(recordErr),
				)
			}
		case outcome.Accepted:
			if err := s.leads.UpdateMarketplaceResult(ctx, lead.ID, true, outcome.Status, outcome.Price, outcome.BuyerID); err != nil {
				s.logger.Error("failed to record marketplace result",
					zap.String("leadId", lead.ID),
					zap.Error(err),
				)
			}
			s.finishLead(ctx, lead.ID, visitor.SessionID, domain.LeadStatusSubmitted, domain.ActivityLeadSubmitted,
				fmt.Sprintf("marketplace accepted, buyer %s", outcome.BuyerID))

			revenue := outcome.Price
			report.Success = true
			report.Revenue = &revenue
			report.BuyerID = outcome.BuyerID
			return report, nil
		default:
			status := "failed"
			if outcome.Rejected {
				status = "rejected"
			} else if outcome.DeadLettered {
				status = "dead_lettered"
			}
			marketplaceError = outcome.LastError
			if err := s.leads.UpdateMarketplaceResult(ctx, lead.ID, false, status, 0, ""); err != nil {
				s.logger.Error("failed to record marketplace result",
					zap.String("leadId", lead.ID),
					zap.Error(err),
				)
			}
		}
	} else {
		marketplaceError = "marketplace integration is not configured"
	}

	// Best-effort rescue: the dealer works the lead directly instead of
	// selling it.
	if s.dealerCRM.Configured() {
		if _, err := s.dealerCRM.Forward(ctx, pkg); err != nil {
			s.logger.Error("dealer fallback failed",
				zap.String("leadId", lead.ID),
				zap.Error(err),
			)
			report.Error = fmt.Sprintf("marketplace: %s; dealer: %s", marketplaceError, err.Error())
		} else {
			if err := s.leads.SetDealerFallback(ctx, lead.ID); err != nil {
				s.logger.Error("failed to flag dealer fallback",
					zap.String("leadId", lead.ID),
					zap.Error(err),
				)
			}
			s.finishLead(ctx, lead.ID, visitor.SessionID, domain.LeadStatusSubmitted, domain.ActivityLeadFallback, "forwarded to dealer crm")

			report.Success = true
			report.DealerFallback = true
			return report, nil
		}
	} else if report.Error == "" {
		report.Error = fmt.Sprintf("marketplace: %s; dealer crm is not configured", marketplaceError)
	}

	s.finishLead(ctx, lead.ID, visitor.SessionID, domain.LeadStatusFailed, domain.ActivityLeadFailed, report.Error)
	return report, nil
}

func (s *PackagerService) finishLead(ctx context.Context, leadID, visitorID string, status domain.LeadStatus, activityType domain.ActivityType, detail string) {
	if err := s.leads.UpdateStatus(ctx, leadID, status); err != nil && !errors.Is(err, domain.ErrConflict) {
		s.logger.Error("failed to update lead status",
			zap.String("leadId", leadID),
			zap.String("status", status.String()),
			zap.Error(err),
		)
	}

	activity := &domain.VisitorActivity{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Type:      activityType,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to record lead activity",
			zap.String("leadId", leadID),
			zap.Error(err),
		)
	}
}

func assessCredit(score int) string {
	switch {
	case score >= 720:
		return "prime"
	case score >= 620:
		return "near-prime"
	case score > 0:
		return "subprime"
	default:
		return ""
	}
}
