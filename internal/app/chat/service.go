package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/observability"
	"github.com/calicogames/lorechat/internal/quota"
)

// errorSentinel marks an answering-endpoint failure disguised as ordinary
// response text. Replies containing it (any case) are shown to the caller
// but never persisted and never consume quota.
const errorSentinel = "sorry, i encountered an error"

var (
	ErrEmptyMessage = errors.New("message text is empty")
	ErrNoIdentity   = errors.New("no identity present")
	ErrRateLimited  = errors.New("daily message limit reached")
	ErrBusy         = errors.New("a send is already in flight")
)

// Service orchestrates the send-message flow: quota gate, user-message
// persistence, answering call, sentinel filtering and agent-message
// persistence. A single send may be in flight at a time.
type Service struct {
	answerer domain.AnsweringClient
	store    domain.MessageStore
	quota    *quota.Tracker
	now      func() time.Time

	mu      sync.Mutex
	sending bool
}

func NewService(answerer domain.AnsweringClient, store domain.MessageStore, tracker *quota.Tracker) *Service {
	return &Service{
		answerer: answerer,
		store:    store,
		quota:    tracker,
		now:      time.Now,
	}
}

type SendInput struct {
	Identity *domain.Identity
	Text     string
}

type SendOutput struct {
	UserMessage *domain.Message

	// AgentMessage is nil when the reply was sentinel-filtered.
	AgentMessage *domain.Message

	// Reply is always the answering client's raw text, so the caller can
	// render a filtered reply transiently without it entering the
	// persisted transcript.
	Reply    string
	Filtered bool

	Quota quota.Status
}

// Send runs the full exchange. Quota is consumed only when an agent
// message is persisted: a sentinel-filtered reply costs nothing.
func (s *Service) Send(ctx context.Context, in SendInput) (*SendOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if in.Identity == nil {
		return nil, ErrNoIdentity
	}

	log := observability.LoggerFromContext(ctx).With(
		"identity_id", in.Identity.ID,
		"is_guest", in.Identity.IsGuest,
	)

	st, err := s.quota.Check(ctx, in.Identity)
	if err != nil {
		log.Error("quota check failed", "error", err)
		return nil, err
	}
	if in.Identity.Registered() && st.Limited {
		log.Info("send blocked by daily limit", "count", st.Count)
		return nil, ErrRateLimited
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	userMsg := &domain.Message{
		ID:           domain.MessageID(uuid.NewString()),
		Sender:       domain.SenderUser,
		Text:         in.Text,
		CreatedAt:    s.now(),
		AuthorName:   in.Identity.DisplayName,
		AuthorAvatar: in.Identity.AvatarURL,
	}

	persisted, err := s.store.AppendMessage(ctx, in.Identity.ID, userMsg)
	if err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	reply := s.answerer.Ask(ctx, in.Text)

	if IsFailureReply(reply) {
		// Transient backend failure: show the fallback text, persist
		// nothing, charge nothing.
		log.Info("agent reply filtered", "reply", reply)
		return &SendOutput{
			UserMessage: persisted,
			Reply:       reply,
			Filtered:    true,
			Quota:       st,
		}, nil
	}

	agentMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Sender:    domain.SenderAgent,
		Text:      reply,
		CreatedAt: s.now(),
	}

	persistedAgent, err := s.store.AppendMessage(ctx, in.Identity.ID, agentMsg)
	if err != nil {
		log.Error("failed to append agent message", "error", err)
		return nil, err
	}

	st, err = s.quota.Consume(ctx, in.Identity)
	if err != nil {
		log.Error("failed to consume quota", "error", err)
		return nil, err
	}

	log.Info("exchange completed", "remaining", st.Remaining)

	return &SendOutput{
		UserMessage:  persisted,
		AgentMessage: persistedAgent,
		Reply:        reply,
		Quota:        st,
	}, nil
}

// Transcript returns the identity's full message history in ascending
// timestamp order.
func (s *Service) Transcript(ctx context.Context, identity *domain.Identity) ([]*domain.Message, error) {
	if identity == nil {
		return nil, ErrNoIdentity
	}
	return s.store.Messages(ctx, identity.ID)
}

// IsFailureReply reports whether reply carries the answering client's
// failure sentinel.
func IsFailureReply(reply string) bool {
	return strings.Contains(strings.ToLower(reply), errorSentinel)
}

func (s *Service) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending {
		return ErrBusy
	}
	s.sending = true
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.sending = false
	s.mu.Unlock()
}
