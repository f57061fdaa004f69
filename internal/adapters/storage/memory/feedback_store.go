package memory

import (
	"context"
	"sync"

	"github.com/calicogames/lorechat/internal/domain"
)

// FeedbackStore collects feedback entries in process memory.
type FeedbackStore struct {
	mu      sync.Mutex
	entries []*domain.Feedback
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{}
}

func (s *FeedbackStore) AddFeedback(ctx context.Context, fb *domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, fb)
	return nil
}

// Entries returns everything submitted so far. Test helper.
func (s *FeedbackStore) Entries() []*domain.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Feedback, len(s.entries))
	copy(out, s.entries)
	return out
}
