package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/marketplace"
	"github.com/dealerlink/lead-recovery/internal/observability"
)

const (
	defaultSubmitMaxAttempts = 3
	baseSubmitDelayMillis    = 1000
	maxSubmitDelayMillis     = 30000
)

// MarketplaceClient is the external submission collaborator.
type MarketplaceClient interface {
	Configured() bool
	Submit(ctx context.Context, sub domain.LeadSubmission) (marketplace.ParsedResponse, error)
}

// SubmitOutcome is the terminal result of one retry series.
type SubmitOutcome struct {
	LeadID       string  `json:"leadId"`
	Accepted     bool    `json:"accepted"`
	Rejected     bool    `json:"rejected"`
	Status       string  `json:"status,omitempty"`
	Price        float64 `json:"price,omitempty"`
	BuyerID      string  `json:"buyerId,omitempty"`
	Attempts     int     `json:"attempts"`
	DeadLettered bool    `json:"deadLettered"`
	LastError    string  `json:"lastError,omitempty"`
}

// DeadLetterView annotates an entry with its current retry eligibility.
type DeadLetterView struct {
	domain.DeadLetterEntry
	CanRetry bool `json:"canRetry"`
}

// SubmissionStats are the in-memory counters for the ops surface.
type SubmissionStats struct {
	Accepted       int `json:"accepted"`
	Rejected       int `json:"rejected"`
	DeadLettered   int `json:"deadLettered"`
	DeadLetterSize int `json:"deadLetterSize"`
}

// SubmissionService is the marketplace retry state machine. Each series makes
// up to maxAttempts submissions with exponential backoff, dead-lettering on
// exhaustion. The dead-letter queue and counters live in memory and are only
// mutated here.
type SubmissionService struct {
	client  MarketplaceClient
	logger  *zap.Logger
	metrics *observability.Metrics

	maxAttempts int

	mu         sync.Mutex
	deadLetter map[string]*domain.DeadLetterEntry
	inFlight   map[string]struct{}
	stats      SubmissionStats

	now      func() time.Time
	randIntn func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSubmissionService(client MarketplaceClient, maxAttempts int, logger *zap.Logger) (*SubmissionService, error) {
	if client == nil {
		return nil, fmt.Errorf("marketplace client is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultSubmitMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubmissionService{
		client:      client,
		logger:      logger,
		maxAttempts: maxAttempts,
		deadLetter:  make(map[string]*domain.DeadLetterEntry),
		inFlight:    make(map[string]struct{}),
		now:         time.Now,
		randIntn:    rand.Intn,
		sleep:       sleepWithContext,
	}, nil
}

func (s *SubmissionService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *SubmissionService) Configured() bool {
	return s.client.Configured()
}

// SubmitWithRetry runs the full retry series for one submission. A concurrent
// series for the same lead id is rejected; a given lead id is only ever
// submitted by one packaging call, so a duplicate means a caller bug.
func (s *SubmissionService) SubmitWithRetry(ctx context.Context, sub domain.LeadSubmission) (*SubmitOutcome, error) {
	if !s.client.Configured() {
		return nil, fmt.Errorf("%w: marketplace integration is not set", domain.ErrNotConfigured)
	}

	if err := s.acquireLead(sub.LeadID); err != nil {
		return nil, err
	}
	defer s.releaseLead(sub.LeadID)

	outcome := &SubmitOutcome{LeadID: sub.LeadID}
	attemptErrors := make([]string, 0, s.maxAttempts)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.backoffDelay(attempt-1)); err != nil {
				outcome.Attempts = attempt - 1
				s.pushDeadLetter(sub, outcome.Attempts, append(attemptErrors, err.Error()))
				outcome.DeadLettered = true
				outcome.LastError = err.Error()
				return outcome, nil
			}
		}

		outcome.Attempts = attempt
		start := s.now()
		parsed, err := s.client.Submit(ctx, sub)
		if s.metrics != nil {
			s.metrics.ObserveSubmissionDuration(s.now().Sub(start))
		}

		if err != nil {
			attemptErrors = append(attemptErrors, err.Error())
			outcome.LastError = err.Error()
			if !marketplace.IsTransient(err) {
				s.logger.Error("submission failed permanently",
					zap.String("leadId", sub.LeadID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				s.recordOutcome("failed")
				return outcome, err
			}
			s.logger.Warn("submission attempt failed",
				zap.String("leadId", sub.LeadID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		switch response := parsed.(type) {
		case marketplace.Accepted:
			outcome.Accepted = true
			outcome.Status = response.Status
			outcome.Price = response.Price
			outcome.BuyerID = response.BuyerID
			outcome.LastError = ""
			s.recordOutcome("accepted")
			s.logger.Info("lead accepted by marketplace",
				zap.String("leadId", sub.LeadID),
				zap.Float64("price", response.Price),
				zap.String("buyerId", response.BuyerID),
				zap.Int("attempt", attempt),
			)
			return outcome, nil
		case marketplace.Rejected:
			// A rejection is a business outcome, not a failure. No retry,
			// no dead letter.
			outcome.Rejected = true
			outcome.Status = "rejected"
			outcome.LastError = fmt.Sprintf("rejected (%s): %s", response.Code, response.Message)
			s.recordOutcome("rejected")
			s.logger.Info("lead rejected by marketplace",
				zap.String("leadId", sub.LeadID),
				zap.String("code", response.Code),
				zap.String("reason", response.Message),
			)
			return outcome, nil
		default:
			attemptErrors = append(attemptErrors, fmt.Sprintf("unexpected response type %T", parsed))
			outcome.LastError = attemptErrors[len(attemptErrors)-1]
		}
	}

	s.pushDeadLetter(sub, outcome.Attempts, attemptErrors)
	outcome.DeadLettered = true
	s.recordOutcome("dead_lettered")
	s.logger.Error("submission exhausted retries",
		zap.String("leadId", sub.LeadID),
		zap.Int("attempts", outcome.Attempts),
	)

	return outcome, nil
}

// backoffDelay is the wait before attempt completedAttempts+1: exponential
// from one second, capped at thirty, with up to 10% jitter on top.
func (s *SubmissionService) backoffDelay(completedAttempts int) time.Duration {
	if completedAttempts < 1 {
		completedAttempts = 1
	}

	delayMillis := baseSubmitDelayMillis
	for i := 1; i < completedAttempts; i++ {
		delayMillis *= 2
		if delayMillis >= maxSubmitDelayMillis {
			delayMillis = maxSubmitDelayMillis
			break
		}
	}
	if delayMillis > maxSubmitDelayMillis {
		delayMillis = maxSubmitDelayMillis
	}

	jitterMillis := 0
	if s.randIntn != nil {
		if ceiling := delayMillis / 10; ceiling > 0 {
			jitterMillis = s.randIntn(ceiling + 1)
		}
	}

	return time.Duration(delayMillis+jitterMillis) * time.Millisecond
}

func (s *SubmissionService) acquireLead(leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[leadID]; busy {
		return fmt.Errorf("%w: submission already in flight for lead %s", domain.ErrConflict, leadID)
	}
	s.inFlight[leadID] = struct{}{}
	return nil
}

func (s *SubmissionService) releaseLead(leadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, leadID)
}

// pushDeadLetter appends to an existing entry for the lead id rather than
// duplicating it.
func (s *SubmissionService) pushDeadLetter(sub domain.LeadSubmission, attempts int, errs []string) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.deadLetter[sub.LeadID]
	if !exists {
		entry = &domain.DeadLetterEntry{
			LeadID:  sub.LeadID,
			Payload: sub,
		}
		s.deadLetter[sub.LeadID] = entry
	}
	entry.RecordAttempts(attempts, now, errs...)

	s.stats.DeadLetterSize = len(s.deadLetter)
	if s.metrics != nil {
		s.metrics.SetDeadLetterSize(len(s.deadLetter))
	}
}

func (s *SubmissionService) recordOutcome(outcome string) {
	s.mu.Lock()
	switch outcome {
	case "accepted":
		s.stats.Accepted++
	case "rejected":
		s.stats.Rejected++
	case "dead_lettered":
		s.stats.DeadLettered++
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncSubmission(outcome)
	}
}

// GetDeadLetterQueue snapshots the queue ordered by lead id, each entry
// annotated with its retry eligibility at call time.
func (s *SubmissionService) GetDeadLetterQueue() []DeadLetterView {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]DeadLetterView, 0, len(s.deadLetter))
	for _, entry := range s.deadLetter {
		view := DeadLetterView{
			DeadLetterEntry: *entry,
			CanRetry:        entry.CanRetry(now),
		}
		view.Errors = append([]string(nil), entry.Errors...)
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].LeadID < views[j].LeadID
	})

	return views
}

// RetryFromDeadLetter makes a single fresh attempt for a dead-lettered lead.
// The entry is removed only on success; a failure is appended to its history.
func (s *SubmissionService) RetryFromDeadLetter(ctx context.Context, leadID string) (*SubmitOutcome, error) {
	now := s.now().UTC()

	s.mu.Lock()
	entry, exists := s.deadLetter[leadID]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no dead-letter entry for lead %s", domain.ErrNotFound, leadID)
	}
	if !entry.CanRetry(now) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: lead %s is not eligible for retry", domain.ErrConflict, leadID)
	}
	sub := entry.Payload
	s.mu.Unlock()

	if err := s.acquireLead(leadID); err != nil {
		return nil, err
	}
	defer s.releaseLead(leadID)

	outcome := &SubmitOutcome{LeadID: leadID, Attempts: 1}

	start := s.now()
	parsed, err := s.client.Submit(ctx, sub)
	if s.metrics != nil {
		s.metrics.ObserveSubmissionDuration(s.now().Sub(start))
	}

	if err != nil {
		s.appendDeadLetterFailure(leadID, err.Error())
		outcome.LastError = err.Error()
		return outcome, nil
	}

	switch response := parsed.(type) {
	case marketplace.Accepted:
		outcome.Accepted = true
		outcome.Status = response.Status
		outcome.Price = response.Price
		outcome.BuyerID = response.BuyerID
		s.removeDeadLetter(leadID)
		s.recordOutcome("accepted")
		return outcome, nil
	case marketplace.Rejected:
		// Terminal: the buyer said no. Drop the entry so it is not retried.
		outcome.Rejected = true
		outcome.Status = "rejected"
		outcome.LastError = fmt.Sprintf("rejected (%s): %s", response.Code, response.Message)
		s.removeDeadLetter(leadID)
		s.recordOutcome("rejected")
		return outcome, nil
	default:
		msg := fmt.Sprintf("unexpected response type %T", parsed)
		s.appendDeadLetterFailure(leadID, msg)
		outcome.LastError = msg
		return outcome, nil
	}
}

func (s *SubmissionService) appendDeadLetterFailure(leadID, errMsg string) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.deadLetter[leadID]; exists {
		entry.RecordAttempts(1, now, errMsg)
	}
}

func (s *SubmissionService) removeDeadLetter(leadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.deadLetter, leadID)
	s.stats.DeadLetterSize = len(s.deadLetter)
	if s.metrics != nil {
		s.metrics.SetDeadLetterSize(len(s.deadLetter))
	}
}

// Stats snapshots the in-memory counters.
func (s *SubmissionService) Stats() SubmissionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.DeadLetterSize = len(s.deadLetter)
	return stats
}
