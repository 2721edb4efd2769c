package app

import (
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// Registry is the process-scoped cache of live match state: the countdown
// timer handle, the materialized question list, and the per-session mutex
// serializing coordinator operations. It is injected into the Coordinator
// and never authoritative for scores or counters — the persisted session is.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	entries map[string]*entry
}

type entry struct {
	timer     *time.Timer
	questions []domain.Question
	startedAt time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]*entry),
	}
}

// Lock serializes all coordinator operations touching one session. The
// returned function releases the lock.
func (r *Registry) Lock(sessionID string) func() {
	r.mu.Lock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[sessionID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Start records a session's live state when it transitions to ongoing.
func (r *Registry) Start(sessionID string, questions []domain.Question, startedAt time.Time, timer *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[sessionID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.entries[sessionID] = &entry{timer: timer, questions: questions, startedAt: startedAt}
}

// Questions returns the cached question list for a session.
func (r *Registry) Questions(sessionID string) ([]domain.Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok || len(e.questions) == 0 {
		return nil, false
	}
	return e.questions, true
}

// CacheQuestions refreshes the cached list, creating an entry if the cache
// was lost (e.g. the session outlived a restart).
func (r *Registry) CacheQuestions(sessionID string, questions []domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		e = &entry{}
		r.entries[sessionID] = e
	}
	e.questions = questions
}

// Active reports whether the session has a live entry.
func (r *Registry) Active(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sessionID]
	return ok
}

// Evict cancels any pending countdown timer and drops the session's live
// state. Safe to call on sessions that never started. The lock entry is
// kept so operations already waiting on it stay serialized behind the
// evicting one.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.entries, sessionID)
	}
}
