package app

import (
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	qs := []domain.Question{{ID: "q1", Prompt: "p"}}

	fired := make(chan struct{}, 1)
	timer := time.AfterFunc(50*time.Millisecond, func() { fired <- struct{}{} })
	r.Start("s1", qs, time.Now(), timer)

	if !r.Active("s1") {
		t.Fatalf("expected active entry after Start")
	}
	got, ok := r.Questions("s1")
	if !ok || len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("expected cached questions, got %v/%v", got, ok)
	}

	r.Evict("s1")
	if r.Active("s1") {
		t.Fatalf("expected entry gone after Evict")
	}
	select {
	case <-fired:
		t.Fatalf("evicted timer must not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegistryCacheQuestionsWithoutStart(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Questions("s1"); ok {
		t.Fatalf("expected miss before caching")
	}
	r.CacheQuestions("s1", []domain.Question{{ID: "q1"}})
	got, ok := r.Questions("s1")
	if !ok || len(got) != 1 {
		t.Fatalf("expected rebuilt cache, got %v/%v", got, ok)
	}
}

func TestRegistryEvictKeepsHeldLock(t *testing.T) {
	r := NewRegistry()

	unlock := r.Lock("s1")
	r.Evict("s1")

	acquired := make(chan struct{})
	go func() {
		u := r.Lock("s1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("lock must stay held across Evict")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("lock never released after unlock")
	}
}

func TestRegistryLockSerializes(t *testing.T) {
	r := NewRegistry()

	unlock := r.Lock("s1")
	acquired := make(chan struct{})
	go func() {
		u := r.Lock("s1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock must block while the first is held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired after release")
	}
}
