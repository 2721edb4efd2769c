// Package question selects and validates quiz questions for match sessions.
package question

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// Store loads question content from a backing store (DB, cache, static map).
type Store interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
	FindByTopic(ctx context.Context, topic string) ([]domain.Question, error)
}

// Provider validates fetched questions and picks random sets for fresh
// sessions. Missing or malformed questions are dropped, never surfaced as
// errors; callers treat an empty result as "no usable questions".
type Provider struct {
	store Store

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewProvider(store Store) *Provider {
	return &Provider{
		store: store,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchQuestions resolves ids and returns the usable subset in input order.
// On a store error it logs and returns nil rather than propagating.
func (p *Provider) FetchQuestions(ctx context.Context, ids []string) []domain.Question {
	if len(ids) == 0 {
		return nil
	}
	fetched, err := p.store.FindByIDs(ctx, ids)
	if err != nil {
		log.Printf("question: fetch %d ids failed: %v", len(ids), err)
		return nil
	}

	byID := make(map[string]domain.Question, len(fetched))
	for _, q := range fetched {
		byID[q.ID] = q
	}

	usable := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok || !q.Usable() {
			continue
		}
		usable = append(usable, q)
	}
	return usable
}

// Random picks up to count unique usable questions from a topic pool via an
// unweighted shuffle. A pool smaller than count returns the whole pool.
func (p *Provider) Random(ctx context.Context, topic string, count int) []domain.Question {
	if count <= 0 {
		return nil
	}
	pool, err := p.store.FindByTopic(ctx, topic)
	if err != nil {
		log.Printf("question: load topic %q failed: %v", topic, err)
		return nil
	}

	usable := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if q.Usable() {
			usable = append(usable, q)
		}
	}

	p.mu.Lock()
	p.rnd.Shuffle(len(usable), func(i, j int) {
		usable[i], usable[j] = usable[j], usable[i]
	})
	p.mu.Unlock()

	if len(usable) > count {
		usable = usable[:count]
	}
	return usable
}
