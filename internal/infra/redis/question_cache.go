// Package redis caches question content and marks live matches in Redis.
package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/question"
)

// QuestionCache is a read-through cache in front of a question.Store.
// Full question documents are cached per id (key question:{id}) and topic
// pools as one JSON array (key questions:topic:{topic}).
type QuestionCache struct {
	client *redis.Client
	inner  question.Store
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, inner question.Store, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) FindByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}

	byID := make(map[string]domain.Question, len(ids))
	var missing []string

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		// Cache down: serve straight from the backing store.
		log.Printf("redis: question mget failed: %v", err)
		missing = ids
	} else {
		for i, raw := range cached {
			s, ok := raw.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var q domain.Question
			if err := json.Unmarshal([]byte(s), &q); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			byID[q.ID] = q
		}
	}

	if len(missing) > 0 {
		loaded, err := c.inner.FindByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		pipe := c.client.Pipeline()
		for _, q := range loaded {
			byID[q.ID] = q
			if raw, err := json.Marshal(q); err == nil {
				pipe.Set(ctx, questionKey(q.ID), raw, c.ttlWithJitter())
			}
		}
		_, _ = pipe.Exec(ctx)
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *QuestionCache) FindByTopic(ctx context.Context, topic string) ([]domain.Question, error) {
	key := topicKey(topic)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var pool []domain.Question
		if err := json.Unmarshal(raw, &pool); err == nil {
			return pool, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the pool.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var pool []domain.Question
			if err := json.Unmarshal(raw, &pool); err == nil {
				return pool, nil
			}
		}

		pool, err := c.inner.FindByTopic(ctx, topic)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(pool); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func questionKey(id string) string {
	return "question:" + id
}

func topicKey(topic string) string {
	return "questions:topic:" + topic
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
