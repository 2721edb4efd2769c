package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks ongoing matches with a TTL'd key so operators (and future
// cross-instance routing) can see which sessions are live. Best-effort: all
// failures are swallowed.
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) MarkActive(ctx context.Context, sessionID string, ttl time.Duration) {
	_ = p.client.Set(ctx, presenceKey(sessionID), "1", ttl).Err()
}

func (p *Presence) Clear(ctx context.Context, sessionID string) {
	_ = p.client.Del(ctx, presenceKey(sessionID)).Err()
}

func presenceKey(sessionID string) string {
	return "match:active:" + sessionID
}
