package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/calicogames/lorechat/internal/domain"
)

// MessageStore keeps transcripts in process memory. It backs guest
// sessions (nothing leaves the process) and tests. Subscriptions are
// fanned out synchronously from AppendMessage.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.IdentityID][]*domain.Message
	nextSub  int
	subs     map[domain.IdentityID]map[int]func([]*domain.Message)
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.IdentityID][]*domain.Message),
		subs:     make(map[domain.IdentityID]map[int]func([]*domain.Message)),
	}
}

func (s *MessageStore) AppendMessage(ctx context.Context, id domain.IdentityID, msg *domain.Message) (*domain.Message, error) {
	s.mu.Lock()

	msgs := append(s.messages[id], msg)
	// Keep the ascending-timestamp invariant even if a caller hands us an
	// out-of-order message.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages[id] = msgs

	snapshot := copyMessages(msgs)
	var fns []func([]*domain.Message)
	for _, fn := range s.subs[id] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
	return msg, nil
}

func (s *MessageStore) Messages(ctx context.Context, id domain.IdentityID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[id]), nil
}

// Subscribe delivers the current transcript immediately, then again after
// every append. The returned cancel removes the registration before it
// returns: no delivery happens afterwards.
func (s *MessageStore) Subscribe(ctx context.Context, id domain.IdentityID, fn func([]*domain.Message)) (func(), error) {
	s.mu.Lock()
	subID := s.nextSub
	s.nextSub++
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]func([]*domain.Message))
	}
	s.subs[id][subID] = fn
	snapshot := copyMessages(s.messages[id])
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs[id], subID)
		s.mu.Unlock()
	}, nil
}

func copyMessages(msgs []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out
}
