package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/domain"
)

// QuestionStore is a static in-memory question.Store, useful for tests and
// for running the service without Postgres.
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewQuestionStore(questions []domain.Question) *QuestionStore {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &QuestionStore{questions: byID}
}

func (s *QuestionStore) FindByIDs(_ context.Context, ids []string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *QuestionStore) FindByTopic(_ context.Context, topic string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if topic == "" || q.Topic == topic {
			out = append(out, q)
		}
	}
	return out, nil
}
