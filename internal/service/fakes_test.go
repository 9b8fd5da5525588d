package service

import (
	"context"
	"time"

	"github.com/dealerlink/lead-recovery/internal/chat"
	"github.com/dealerlink/lead-recovery/internal/dealer"
	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/marketplace"
	"github.com/dealerlink/lead-recovery/internal/notify"
	"github.com/dealerlink/lead-recovery/internal/repository"
)

type fakeVisitorRepo struct {
	upsertFn                   func(ctx context.Context, v *domain.Visitor) error
	getByIDFn                  func(ctx context.Context, sessionID string) (*domain.Visitor, error)
	getByReturnTokenFn         func(ctx context.Context, token string) (*domain.Visitor, error)
	listIdleSinceFn            func(ctx context.Context, cutoff, now time.Time, limit int) ([]domain.Visitor, error)
	listAbandonedContactableFn func(ctx context.Context, limit int) ([]domain.Visitor, error)
	markAbandonedFn            func(ctx context.Context, sessionID string, step domain.AbandonmentStep, token string, tokenExpiresAt time.Time) error
	refreshReturnTokenFn       func(ctx context.Context, sessionID, token string, tokenExpiresAt, now time.Time) error
	pingFn                     func(ctx context.Context) error
}

func (f *fakeVisitorRepo) Upsert(ctx context.Context, v *domain.Visitor) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, v)
	}
	return nil
}

func (f *fakeVisitorRepo) GetByID(ctx context.Context, sessionID string) (*domain.Visitor, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, sessionID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeVisitorRepo) GetByReturnToken(ctx context.Context, token string) (*domain.Visitor, error) {
	if f.getByReturnTokenFn != nil {
		return f.getByReturnTokenFn(ctx, token)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeVisitorRepo) ListIdleSince(ctx context.Context, cutoff, now time.Time, limit int) ([]domain.Visitor, error) {
	if f.listIdleSinceFn != nil {
		return f.listIdleSinceFn(ctx, cutoff, now, limit)
	}
	return nil, nil
}

func (f *fakeVisitorRepo) ListAbandonedContactable(ctx context.Context, limit int) ([]domain.Visitor, error) {
	if f.listAbandonedContactableFn != nil {
		return f.listAbandonedContactableFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeVisitorRepo) MarkAbandoned(ctx context.Context, sessionID string, step domain.AbandonmentStep, token string, tokenExpiresAt time.Time) error {
	if f.markAbandonedFn != nil {
		return f.markAbandonedFn(ctx, sessionID, step, token, tokenExpiresAt)
	}
	return nil
}

func (f *fakeVisitorRepo) RefreshReturnToken(ctx context.Context, sessionID, token string, tokenExpiresAt, now time.Time) error {
	if f.refreshReturnTokenFn != nil {
		return f.refreshReturnTokenFn(ctx, sessionID, token, tokenExpiresAt, now)
	}
	return nil
}

func (f *fakeVisitorRepo) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeOutreachRepo struct {
	createFn             func(ctx context.Context, a *domain.OutreachAttempt) error
	getLatestByVisitorFn func(ctx context.Context, visitorID string) (*domain.OutreachAttempt, error)
	listByVisitorFn      func(ctx context.Context, visitorID string) ([]domain.OutreachAttempt, error)
	countByVisitorFn     func(ctx context.Context, visitorID string) (int64, error)
	updateStatusFn       func(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error
}

func (f *fakeOutreachRepo) Create(ctx context.Context, a *domain.OutreachAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeOutreachRepo) GetLatestByVisitor(ctx context.Context, visitorID string) (*domain.OutreachAttempt, error) {
	if f.getLatestByVisitorFn != nil {
		return f.getLatestByVisitorFn(ctx, visitorID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOutreachRepo) ListByVisitor(ctx context.Context, visitorID string) ([]domain.OutreachAttempt, error) {
	if f.listByVisitorFn != nil {
		return f.listByVisitorFn(ctx, visitorID)
	}
	return nil, nil
}

func (f *fakeOutreachRepo) CountByVisitor(ctx context.Context, visitorID string) (int64, error) {
	if f.countByVisitorFn != nil {
		return f.countByVisitorFn(ctx, visitorID)
	}
	return 0, nil
}

func (f *fakeOutreachRepo) UpdateStatusByProviderMessageID(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, providerMessageID, status)
	}
	return nil
}

type fakeActivityRepo struct {
	createFn        func(ctx context.Context, a *domain.VisitorActivity) error
	listByVisitorFn func(ctx context.Context, visitorID string) ([]domain.VisitorActivity, error)
}

func (f *fakeActivityRepo) Create(ctx context.Context, a *domain.VisitorActivity) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeActivityRepo) ListByVisitor(ctx context.Context, visitorID string) ([]domain.VisitorActivity, error) {
	if f.listByVisitorFn != nil {
		return f.listByVisitorFn(ctx, visitorID)
	}
	return nil, nil
}

type fakeLeadRepo struct {
	createFn                  func(ctx context.Context, l *domain.Lead) error
	getByIDFn                 func(ctx context.Context, id string) (*domain.Lead, error)
	updateStatusFn            func(ctx context.Context, id string, status domain.LeadStatus) error
	updateMarketplaceResultFn func(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error
	setDealerFallbackFn       func(ctx context.Context, id string) error
	getStatusSummaryFn        func(ctx context.Context) ([]repository.StatusSummary, error)
	sumAcceptedPriceFn        func(ctx context.Context) (float64, error)
}

func (f *fakeLeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLeadRepo) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeLeadRepo) UpdateMarketplaceResult(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error {
	if f.updateMarketplaceResultFn != nil {
		return f.updateMarketplaceResultFn(ctx, id, submitted, boberdooStatus, price, buyerID)
	}
	return nil
}

func (f *fakeLeadRepo) SetDealerFallback(ctx context.Context, id string) error {
	if f.setDealerFallbackFn != nil {
		return f.setDealerFallbackFn(ctx, id)
	}
	return nil
}

func (f *fakeLeadRepo) GetStatusSummary(ctx context.Context) ([]repository.StatusSummary, error) {
	if f.getStatusSummaryFn != nil {
		return f.getStatusSummaryFn(ctx)
	}
	return nil, nil
}

func (f *fakeLeadRepo) SumAcceptedPrice(ctx context.Context) (float64, error) {
	if f.sumAcceptedPriceFn != nil {
		return f.sumAcceptedPriceFn(ctx)
	}
	return 0, nil
}

type fakeNotifier struct {
	sendSMSFn   func(ctx context.Context, to, body string) (*notify.SendResult, error)
	sendEmailFn func(ctx context.Context, to, subject, body string) (*notify.SendResult, error)
	healthyFn   func(ctx context.Context) error
}

func (f *fakeNotifier) SendSMS(ctx context.Context, to, body string) (*notify.SendResult, error) {
	if f.sendSMSFn != nil {
		return f.sendSMSFn(ctx, to, body)
	}
	return &notify.SendResult{StatusCode: 200, MessageID: "msg-1"}, nil
}

func (f *fakeNotifier) SendEmail(ctx context.Context, to, subject, body string) (*notify.SendResult, error) {
	if f.sendEmailFn != nil {
		return f.sendEmailFn(ctx, to, subject, body)
	}
	return &notify.SendResult{StatusCode: 200, MessageID: "msg-1"}, nil
}

func (f *fakeNotifier) Healthy(ctx context.Context) error {
	if f.healthyFn != nil {
		return f.healthyFn(ctx)
	}
	return nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel string) (bool, error)
	waitFn  func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channel)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeChatStore struct {
	openSessionFn  func(ctx context.Context, visitorID, returnToken string) (*chat.Session, error)
	getSessionFn   func(ctx context.Context, visitorID string) (*chat.Session, error)
	sessionCountFn func(ctx context.Context, visitorID string) (int, error)
}

func (f *fakeChatStore) OpenSession(ctx context.Context, visitorID, returnToken string) (*chat.Session, error) {
	if f.openSessionFn != nil {
		return f.openSessionFn(ctx, visitorID, returnToken)
	}
	return &chat.Session{VisitorID: visitorID, ReturnToken: returnToken}, nil
}

func (f *fakeChatStore) GetSession(ctx context.Context, visitorID string) (*chat.Session, error) {
	if f.getSessionFn != nil {
		return f.getSessionFn(ctx, visitorID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeChatStore) SessionCount(ctx context.Context, visitorID string) (int, error) {
	if f.sessionCountFn != nil {
		return f.sessionCountFn(ctx, visitorID)
	}
	return 0, nil
}

type fakeMarketplaceClient struct {
	configured bool
	submitFn   func(ctx context.Context, sub domain.LeadSubmission) (marketplace.ParsedResponse, error)
}

func (f *fakeMarketplaceClient) Configured() bool {
	return f.configured
}

func (f *fakeMarketplaceClient) Submit(ctx context.Context, sub domain.LeadSubmission) (marketplace.ParsedResponse, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, sub)
	}
	return marketplace.Accepted{LeadID: sub.LeadID, Status: "accepted"}, nil
}

type fakeSubmitter struct {
	configured bool
	submitFn   func(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error)
}

func (f *fakeSubmitter) Configured() bool {
	return f.configured
}

func (f *fakeSubmitter) SubmitWithRetry(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, sub)
	}
	return &SubmitOutcome{LeadID: sub.LeadID, Accepted: true, Attempts: 1}, nil
}

type fakeDealerClient struct {
	configured bool
	forwardFn  func(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error)
}

func (f *fakeDealerClient) Configured() bool {
	return f.configured
}

func (f *fakeDealerClient) Forward(ctx context.Context, pkg *domain.LeadPackage) (*dealer.ForwardResult, error) {
	if f.forwardFn != nil {
		return f.forwardFn(ctx, pkg)
	}
	return &dealer.ForwardResult{StatusCode: 200}, nil
}

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}
