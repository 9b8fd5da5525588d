package ratelimit

import "context"

// RateLimiter controls outbound dispatch throughput per channel so outreach
// stays under provider limits.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
