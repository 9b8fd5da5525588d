package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/chat"
	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/notify"
	"github.com/dealerlink/lead-recovery/internal/observability"
	"github.com/dealerlink/lead-recovery/internal/ratelimit"
	"github.com/dealerlink/lead-recovery/internal/repository"
)

const (
	defaultOutreachScanLimit = 500
	// dispatchPacing is a fixed gap between sends on top of the limiter,
	// smoothing bursts within a single window.
	dispatchPacing = 100 * time.Millisecond
)

// OutreachResult summarizes one orchestrator pass.
type OutreachResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// OutreachService contacts flagged visitors over SMS or email, honoring the
// per-step cadence policy. Overlapping runs are rejected like the detector.
type OutreachService struct {
	visitors    repository.VisitorRepository
	attempts    repository.OutreachRepository
	activities  repository.ActivityRepository
	notifier    notify.Notifier
	rateLimiter ratelimit.RateLimiter
	sessions    chat.Store
	logger      *zap.Logger
	metrics     *observability.Metrics

	returnBaseURL string
	scanLimit     int

	running atomic.Bool
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewOutreachService(
	visitors repository.VisitorRepository,
	attempts repository.OutreachRepository,
	activities repository.ActivityRepository,
	notifier notify.Notifier,
	rateLimiter ratelimit.RateLimiter,
	sessions chat.Store,
	returnBaseURL string,
	scanLimit int,
	logger *zap.Logger,
) (*OutreachService, error) {
	if visitors == nil {
		return nil, fmt.Errorf("visitor repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("outreach repository is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("activity repository is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if scanLimit <= 0 {
		scanLimit = defaultOutreachScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutreachService{
		visitors:      visitors,
		attempts:      attempts,
		activities:    activities,
		notifier:      notifier,
		rateLimiter:   rateLimiter,
		sessions:      sessions,
		logger:        logger,
		returnBaseURL: strings.TrimRight(returnBaseURL, "/"),
		scanLimit:     scanLimit,
		now:           time.Now,
		sleep:         sleepWithContext,
	}, nil
}

func (s *OutreachService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ProcessQueue runs one outreach pass over abandoned, contactable visitors.
func (s *OutreachService) ProcessQueue(ctx context.Context) (*OutreachResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	visitors, err := s.visitors.ListAbandonedContactable(ctx, s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outreach candidates: %w", err)
	}

	now := s.now().UTC()
	result := &OutreachResult{}

	for i := range visitors {
		visitor := visitors[i]

		if !visitor.ReturnTokenValid(now) {
			continue
		}

		channel, recipient, ok := selectChannel(&visitor)
		if !ok {
			// A hashed email alone cannot be messaged.
			continue
		}

		eligible, err := s.cadenceAllows(ctx, &visitor, now)
		if err != nil {
			result.Processed++
			result.Failed++
			s.logger.Error("cadence check failed",
				zap.String("visitorId", visitor.SessionID),
				zap.Error(err),
			)
			continue
		}
		if !eligible {
			continue
		}

		result.Processed++
		if err := s.dispatch(ctx, &visitor, channel, recipient); err != nil {
			result.Failed++
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			continue
		}
		result.Sent++

		if err := s.sleep(ctx, dispatchPacing); err != nil {
			return result, err
		}
	}

	s.logger.Info("outreach pass complete",
		zap.Int("processed", result.Processed),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// cadenceAllows checks the per-step follow-up window against the most recent
// attempt. A visitor with no prior attempts is always eligible.
func (s *OutreachService) cadenceAllows(ctx context.Context, visitor *domain.Visitor, now time.Time) (bool, error) {
	latest, err := s.attempts.GetLatestByVisitor(ctx, visitor.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	window := domain.CadenceWindow(visitor.AbandonmentStep)
	return now.Sub(latest.CreatedAt) >= window, nil
}

func (s *OutreachService) dispatch(ctx context.Context, visitor *domain.Visitor, channel domain.Channel, recipient string) error {
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, channel.String()); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	message := s.composeMessage(visitor, channel)
	now := s.now().UTC()

	var result *notify.SendResult
	var sendErr error
	switch channel {
	case domain.ChannelSMS:
		result, sendErr = s.notifier.SendSMS(ctx, recipient, message)
	default:
		result, sendErr = s.notifier.SendEmail(ctx, recipient, "Finish your financing application", message)
	}

	attempt := &domain.OutreachAttempt{
		ID:        uuid.NewString(),
		VisitorID: visitor.SessionID,
		Channel:   channel,
		Message:   message,
		Status:    domain.AttemptStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	activityType := domain.ActivityOutreachSent

	if sendErr != nil {
		attempt.Status = domain.AttemptStatusFailed
		attempt.Error = sendErr.Error()
		activityType = domain.ActivityOutreachFailed
		if s.metrics != nil {
			reason := "permanent_error"
			if notify.IsTransient(sendErr) {
				reason = "transient_error"
			}
			s.metrics.IncOutreachFailed(channel.String(), reason)
		}
		s.logger.Error("outreach dispatch failed",
			zap.String("visitorId", visitor.SessionID),
			zap.String("channel", channel.String()),
			zap.Error(sendErr),
		)
	} else {
		if result != nil {
			attempt.ProviderMessageID = result.MessageID
		}
		if s.metrics != nil {
			s.metrics.IncOutreachSent(channel.String())
		}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error("failed to record outreach attempt",
			zap.String("visitorId", visitor.SessionID),
			zap.Error(err),
		)
	}

	activity := &domain.VisitorActivity{
		ID:        uuid.NewString(),
		VisitorID: visitor.SessionID,
		Type:      activityType,
		Detail:    channel.String(),
		CreatedAt: now,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to record outreach activity",
			zap.String("visitorId", visitor.SessionID),
			zap.Error(err),
		)
	}

	if sendErr != nil {
		return sendErr
	}

	if channel == domain.ChannelSMS && s.sessions != nil {
		if _, err := s.sessions.OpenSession(ctx, visitor.SessionID, visitor.ReturnToken); err != nil {
			// The message is already out; a reply just loses resume context.
			s.logger.Warn("failed to open chat session",
				zap.String("visitorId", visitor.SessionID),
				zap.Error(err),
			)
		} else {
			chatActivity := &domain.VisitorActivity{
				ID:        uuid.NewString(),
				VisitorID: visitor.SessionID,
				Type:      domain.ActivityChatOpened,
				Detail:    channel.String(),
				CreatedAt: now,
			}
			if err := s.activities.Create(ctx, chatActivity); err != nil {
				s.logger.Warn("failed to record chat activity",
					zap.String("visitorId", visitor.SessionID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

func (s *OutreachService) composeMessage(visitor *domain.Visitor, channel domain.Channel) string {
	link := fmt.Sprintf("%s/return/%s", s.returnBaseURL, visitor.ReturnToken)

	name := strings.TrimSpace(visitor.FirstName)
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}

	switch visitor.AbandonmentStep {
	case domain.StepPartialContact:
		return fmt.Sprintf("%s, your financing application is almost done. Pick up right where you left off: %s", greeting, link)
	case domain.StepFormStarted:
		return fmt.Sprintf("%s, you started a financing application with us. Finish it in a couple of minutes: %s", greeting, link)
	default:
		return fmt.Sprintf("%s, still thinking about financing? Get your personalized options here: %s", greeting, link)
	}
}

// HandleDeliveryStatus applies an asynchronous provider callback to the
// matching outreach attempt.
func (s *OutreachService) HandleDeliveryStatus(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error {
	if strings.TrimSpace(providerMessageID) == "" {
		return fmt.Errorf("%w: provider message id is required", domain.ErrValidation)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", domain.ErrValidation, status)
	}
	return s.attempts.UpdateStatusByProviderMessageID(ctx, providerMessageID, status)
}

// HealthCheck reflects the delivery provider's reachability.
func (s *OutreachService) HealthCheck(ctx context.Context) error {
	return s.notifier.Healthy(ctx)
}

func selectChannel(visitor *domain.Visitor) (domain.Channel, string, bool) {
	if phone := strings.TrimSpace(visitor.Phone); phone != "" {
		return domain.ChannelSMS, phone, true
	}
	if email := strings.TrimSpace(visitor.Email); email != "" {
		return domain.ChannelEmail, email, true
	}
	return "", "", false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
