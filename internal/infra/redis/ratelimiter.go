package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dealerlink/lead-recovery/internal/ratelimit"
)

const (
	defaultDispatchPerSec int64 = 10
	waitStep                    = 25 * time.Millisecond
	waitStepMax                 = 100 * time.Millisecond
	windowSeconds               = 1
)

// dispatchScript counts sends in the current one-second window and rejects
// once the channel budget is spent. EXPIRE on first increment keeps abandoned
// windows from leaking keys.
var dispatchScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*DispatchLimiter)(nil)

// DispatchLimiter is a per-channel, per-second outreach throughput limiter
// backed by Redis, shared across engine replicas.
type DispatchLimiter struct {
	client    *goredis.Client
	perSecond int64
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	script    *goredis.Script
}

func NewDispatchLimiter(client *goredis.Client, perSecond int) (*DispatchLimiter, error) {
	return newDispatchLimiter(client, int64(perSecond), time.Now, sleepWithContext)
}

func newDispatchLimiter(
	client *goredis.Client,
	perSecond int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*DispatchLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if perSecond <= 0 {
		perSecond = defaultDispatchPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &DispatchLimiter{
		client:    client,
		perSecond: perSecond,
		now:       nowFn,
		sleep:     sleepFn,
		script:    dispatchScript,
	}, nil
}

func (l *DispatchLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if l == nil || l.client == nil || l.script == nil {
		return false, fmt.Errorf("dispatch limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return false, fmt.Errorf("channel is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("outreach:rate:%s:%d", normalized, l.now().UTC().Unix())
	result, err := l.script.Run(ctx, l.client, []string{key}, l.perSecond, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate dispatch limit: %w", err)
	}

	return result == 1, nil
}

func (l *DispatchLimiter) Wait(ctx context.Context, channel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := waitStep
	for {
		allowed, err := l.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := l.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += waitStep
		if backoff > waitStepMax {
			backoff = waitStepMax
		}
	}
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
