package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/models"
)

const cacheKeyPrefix = "sessioncheck:session:"

func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// CachedProvider keeps fetched sessions in redis. Sessions do not change
// once recorded, so only the TTL bounds staleness. Redis failures are logged
// and the wrapped provider answers instead.
type CachedProvider struct {
	next   input.Provider
	client *redis.Client
	ttl    time.Duration
}

var _ input.Provider = (*CachedProvider)(nil)

func NewCachedProvider(next input.Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl}
}

func CacheKey(id string) string {
	return cacheKeyPrefix + id
}

func (p *CachedProvider) GetSession(ctx context.Context, id string) (models.Session, error) {
	payload, err := p.client.Get(ctx, CacheKey(id)).Bytes()
	switch {
	case err == nil:
		var session models.Session
		if err := json.Unmarshal(payload, &session); err == nil && session != nil {
			return session, nil
		}

		slog.Warn("discarding corrupt cached session", "session_id", id)
	case !errors.Is(err, redis.Nil):
		slog.Warn("session cache read failed", "session_id", id, "error", err)
	}

	session, err := p.next.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	p.store(ctx, id, session)

	return session, nil
}

// ListSessions always asks the wrapped provider and warms the cache with
// what it returns.
func (p *CachedProvider) ListSessions(ctx context.Context, filter input.Filter) ([]models.Session, error) {
	sessions, err := p.next.ListSessions(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		if id := session.ID(); id != "" {
			p.store(ctx, id, session)
		}
	}

	return sessions, nil
}

func (p *CachedProvider) store(ctx context.Context, id string, session models.Session) {
	if session == nil {
		return
	}

	payload, err := json.Marshal(session)
	if err != nil {
		slog.Warn("failed to encode session for cache", "session_id", id, "error", err)
		return
	}

	if err := p.client.Set(ctx, CacheKey(id), payload, p.ttl).Err(); err != nil {
		slog.Warn("session cache write failed", "session_id", id, "error", err)
	}
}
