package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/observability"
	"github.com/dealerlink/lead-recovery/internal/repository"
)

const (
	defaultDetectScanLimit = 500
	defaultAbandonWindow   = 30 * time.Minute
	defaultTokenTTL        = 72 * time.Hour
)

// DetectResult summarizes one detection pass.
type DetectResult struct {
	VisitorsProcessed int      `json:"visitorsProcessed"`
	AbandonedFound    int      `json:"abandonedFound"`
	OutreachTriggered int      `json:"outreachTriggered"`
	Failed            int      `json:"failed"`
	Errors            []string `json:"errors,omitempty"`
}

// DetectorService scans for idle visitors, classifies how far they got, and
// flags them for outreach. A single-flight guard rejects overlapping runs.
type DetectorService struct {
	visitors   repository.VisitorRepository
	activities repository.ActivityRepository
	logger     *zap.Logger
	metrics    *observability.Metrics

	threshold time.Duration
	tokenTTL  time.Duration
	scanLimit int

	running  atomic.Bool
	now      func() time.Time
	newToken func() string
}

func NewDetectorService(
	visitors repository.VisitorRepository,
	activities repository.ActivityRepository,
	threshold time.Duration,
	tokenTTL time.Duration,
	scanLimit int,
	logger *zap.Logger,
) (*DetectorService, error) {
	if visitors == nil {
		return nil, fmt.Errorf("visitor repository is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("activity repository is required")
	}
	if threshold <= 0 {
		threshold = defaultAbandonWindow
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if scanLimit <= 0 {
		scanLimit = defaultDetectScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DetectorService{
		visitors:   visitors,
		activities: activities,
		logger:     logger,
		threshold:  threshold,
		tokenTTL:   tokenTTL,
		scanLimit:  scanLimit,
		now:        time.Now,
		newToken:   uuid.NewString,
	}, nil
}

func (s *DetectorService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Detect runs one scan. Overlapping invocations are rejected, not queued;
// detection is idempotent per run so skipping is safe.
func (s *DetectorService) Detect(ctx context.Context) (*DetectResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	now := s.now().UTC()
	cutoff := now.Add(-s.threshold)

	idle, err := s.visitors.ListIdleSince(ctx, cutoff, now, s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle visitors: %w", err)
	}

	result := &DetectResult{VisitorsProcessed: len(idle)}
	if s.metrics != nil {
		s.metrics.AddVisitorsScanned(len(idle))
	}

	for i := range idle {
		visitor := idle[i]
		if err := s.flagVisitor(ctx, &visitor, now); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", visitor.SessionID, err))
			s.logger.Error("visitor detection failed",
				zap.String("visitorId", visitor.SessionID),
				zap.Error(err),
			)
			continue
		}

		result.AbandonedFound++
		if visitor.HasContactMethod() {
			result.OutreachTriggered++
		}
	}

	if s.metrics != nil {
		s.metrics.AddAbandonmentsDetected(result.AbandonedFound)
		s.metrics.AddOutreachEligible(result.OutreachTriggered)
	}

	s.logger.Info("detection pass complete",
		zap.Int("processed", result.VisitorsProcessed),
		zap.Int("abandoned", result.AbandonedFound),
		zap.Int("eligible", result.OutreachTriggered),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

func (s *DetectorService) flagVisitor(ctx context.Context, visitor *domain.Visitor, now time.Time) error {
	step := visitor.ClassifyStep()
	token := s.newToken()
	expiresAt := now.Add(s.tokenTTL)

	activityType := domain.ActivityAbandonmentDetected
	if visitor.AbandonmentDetected {
		// Already flagged; the scan only returns these once the return
		// token has lapsed, so rotate it instead of re-flagging.
		if err := s.visitors.RefreshReturnToken(ctx, visitor.SessionID, token, expiresAt, now); err != nil {
			return err
		}
		activityType = domain.ActivityReturnTokenRefreshed
	} else {
		if err := s.visitors.MarkAbandoned(ctx, visitor.SessionID, step, token, expiresAt); err != nil {
			return err
		}
		visitor.AbandonmentStep = step
		visitor.AbandonmentDetected = true
	}
	visitor.ReturnToken = token
	visitor.ReturnTokenExpiresAt = &expiresAt

	activity := &domain.VisitorActivity{
		ID:        uuid.NewString(),
		VisitorID: visitor.SessionID,
		Type:      activityType,
		Detail:    fmt.Sprintf("step %d", visitor.AbandonmentStep),
		CreatedAt: now,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		// The flag already landed; a missing audit row is logged, not fatal.
		s.logger.Warn("failed to record detection activity",
			zap.String("visitorId", visitor.SessionID),
			zap.Error(err),
		)
	}

	return nil
}

// HealthCheck verifies the visitor store is reachable.
func (s *DetectorService) HealthCheck(ctx context.Context) error {
	return s.visitors.Ping(ctx)
}
