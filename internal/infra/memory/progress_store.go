package memory

import (
	"context"
	"sync"
)

// ProgressStore is an in-memory implementation of engine.ProgressStore:
// per-course missed-question sets and completion percentages with
// last-writer-wins semantics.
type ProgressStore struct {
	mu         sync.RWMutex
	missed     map[string]map[string]struct{}
	completion map[string]int
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		missed:     make(map[string]map[string]struct{}),
		completion: make(map[string]int),
	}
}

func (s *ProgressStore) AddMissed(_ context.Context, courseCode string, texts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.missed[courseCode]
	if !ok {
		set = make(map[string]struct{})
		s.missed[courseCode] = set
	}
	for _, text := range texts {
		set[text] = struct{}{}
	}
	return nil
}

func (s *ProgressStore) RemoveMissed(_ context.Context, courseCode string, texts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.missed[courseCode]
	if !ok {
		return nil
	}
	for _, text := range texts {
		delete(set, text)
	}
	if len(set) == 0 {
		delete(s.missed, courseCode)
	}
	return nil
}

func (s *ProgressStore) Missed(_ context.Context, courseCode string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.missed[courseCode]
	texts := make([]string, 0, len(set))
	for text := range set {
		texts = append(texts, text)
	}
	return texts, nil
}

func (s *ProgressStore) ClearMissed(_ context.Context, courseCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.missed, courseCode)
	return nil
}

func (s *ProgressStore) SetCompletion(_ context.Context, courseCode string, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completion[courseCode] = percent
	return nil
}

func (s *ProgressStore) Completion(_ context.Context, courseCode string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completion[courseCode], nil
}
