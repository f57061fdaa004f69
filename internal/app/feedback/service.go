package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/observability"
)

// Service records user feedback into a write-only collection. Storage
// failures are logged and swallowed: from the user's perspective a
// feedback submission never fails.
type Service struct {
	store domain.FeedbackStore
	now   func() time.Time
}

func NewService(store domain.FeedbackStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// Submit stores the feedback text attributed to the given identity.
// A nil identity or nil store is a silent no-op.
func (s *Service) Submit(ctx context.Context, identity *domain.Identity, text, userAgent string) {
	if identity == nil || s.store == nil {
		return
	}

	fb := &domain.Feedback{
		ID:        domain.FeedbackID(uuid.NewString()),
		UserID:    identity.ID,
		UserName:  identity.DisplayName,
		IsGuest:   identity.IsGuest,
		Text:      text,
		CreatedAt: s.now(),
		UserAgent: userAgent,
	}

	if err := s.store.AddFeedback(ctx, fb); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to submit feedback",
			"identity_id", identity.ID,
			"error", err)
	}
}
