package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

const defaultSessionTTL = 48 * time.Hour

// Session is the resumable chat context opened for a visitor after a
// successful SMS. A reply routed by the provider lands back on this session.
type Session struct {
	VisitorID   string    `json:"visitorId"`
	ReturnToken string    `json:"returnToken"`
	Channel     string    `json:"channel"`
	OpenedAt    time.Time `json:"openedAt"`
}

// Store is the port the orchestrator and packager use.
type Store interface {
	OpenSession(ctx context.Context, visitorID, returnToken string) (*Session, error)
	GetSession(ctx context.Context, visitorID string) (*Session, error)
	SessionCount(ctx context.Context, visitorID string) (int, error)
}

// RedisStore keeps sessions in Redis so replies can resume context from any
// engine replica.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *goredis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}, nil
}

func sessionKey(visitorID string) string {
	return "chat:session:" + visitorID
}

func sessionCountKey(visitorID string) string {
	return "chat:sessions:" + visitorID
}

func (s *RedisStore) OpenSession(ctx context.Context, visitorID, returnToken string) (*Session, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, fmt.Errorf("%w: visitor id is required", domain.ErrValidation)
	}

	session := &Session{
		VisitorID:   visitorID,
		ReturnToken: returnToken,
		Channel:     domain.ChannelSMS.String(),
		OpenedAt:    s.now().UTC(),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(visitorID), payload, s.ttl)
	pipe.Incr(ctx, sessionCountKey(visitorID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to open chat session: %w", err)
	}

	return session, nil
}

func (s *RedisStore) GetSession(ctx context.Context, visitorID string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(visitorID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat session: %w", err)
	}
	return &session, nil
}

// SessionCount returns the number of sessions ever opened for the visitor,
// which feeds the engagement summary on a packaged lead.
func (s *RedisStore) SessionCount(ctx context.Context, visitorID string) (int, error) {
	count, err := s.client.Get(ctx, sessionCountKey(visitorID)).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load chat session count: %w", err)
	}
	return count, nil
}
