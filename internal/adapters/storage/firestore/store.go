package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/observability"
)

// Store persists transcripts, quota records and feedback for registered
// identities. One store implements the MessageStore, QuotaStore and
// FeedbackStore ports.
type Store struct {
	client *firestore.Client
}

func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) messagesCol(id domain.IdentityID) *firestore.CollectionRef {
	return s.client.Collection("chats").Doc(string(id)).Collection("messages")
}

func (s *Store) rateLimitDoc(id domain.IdentityID) *firestore.DocumentRef {
	return s.client.Collection("rateLimits").Doc(string(id))
}

func (s *Store) feedbackCol() *firestore.CollectionRef {
	return s.client.Collection("feedback")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type messageDoc struct {
	Sender      string    `firestore:"sender"`
	Text        string    `firestore:"text"`
	Timestamp   time.Time `firestore:"timestamp"`
	UserAvatar  string    `firestore:"userAvatar,omitempty"`
	DisplayName string    `firestore:"displayName,omitempty"`
}

type rateLimitDoc struct {
	Count           int       `firestore:"count"`
	LastMessageDate time.Time `firestore:"lastMessageDate"`
}

type feedbackDoc struct {
	UserID    string    `firestore:"userId"`
	UserName  string    `firestore:"userName"`
	IsGuest   bool      `firestore:"isGuest"`
	Feedback  string    `firestore:"feedback"`
	Timestamp time.Time `firestore:"timestamp"`
	UserAgent string    `firestore:"userAgent"`
}

func toMessage(ref *firestore.DocumentSnapshot, doc *messageDoc) *domain.Message {
	return &domain.Message{
		ID:           domain.MessageID(ref.Ref.ID),
		Sender:       domain.Sender(doc.Sender),
		Text:         doc.Text,
		CreatedAt:    doc.Timestamp,
		AuthorAvatar: doc.UserAvatar,
		AuthorName:   doc.DisplayName,
	}
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, id domain.IdentityID, msg *domain.Message) (*domain.Message, error) {
	doc := messageDoc{
		Sender:      string(msg.Sender),
		Text:        msg.Text,
		Timestamp:   msg.CreatedAt,
		UserAvatar:  msg.AuthorAvatar,
		DisplayName: msg.AuthorName,
	}

	_, err := s.messagesCol(id).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return msg, nil
}

func (s *Store) Messages(ctx context.Context, id domain.IdentityID) ([]*domain.Message, error) {
	q := s.messagesCol(id).OrderBy("timestamp", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore Messages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, toMessage(snap, &doc))
	}
	return out, nil
}

// Subscribe establishes a live feed over the identity's message
// collection, ordered by timestamp ascending. fn receives the full
// current transcript on the first snapshot and again on every change.
// The returned cancel tears the feed down and does not return until the
// delivery goroutine has exited, so no update can land against a stale
// identity afterwards.
func (s *Store) Subscribe(ctx context.Context, id domain.IdentityID, fn func([]*domain.Message)) (func(), error) {
	feedCtx, cancel := context.WithCancel(ctx)

	q := s.messagesCol(id).OrderBy("timestamp", firestore.Asc)
	snaps := q.Snapshots(feedCtx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log := observability.LoggerFromContext(ctx).With("identity_id", id)

		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Error("message feed terminated", "error", err)
				}
				return
			}

			msgs, err := decodeSnapshot(snap)
			if err != nil {
				log.Error("failed to decode message feed snapshot", "error", err)
				continue
			}
			fn(msgs)
		}
	}()

	return func() {
		cancel()
		snaps.Stop()
		<-done
	}, nil
}

func decodeSnapshot(snap *firestore.QuerySnapshot) ([]*domain.Message, error) {
	defer snap.Documents.Stop()

	var out []*domain.Message
	for {
		docSnap, err := snap.Documents.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, err
		}

		var doc messageDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, toMessage(docSnap, &doc))
	}
	return out, nil
}

// ─────────────────────────────────────────
// QuotaStore implementation
// ─────────────────────────────────────────

func (s *Store) GetQuota(ctx context.Context, id domain.IdentityID) (*domain.QuotaRecord, error) {
	snap, err := s.rateLimitDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore GetQuota: %w", err)
	}

	var doc rateLimitDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetQuota decode: %w", err)
	}

	return &domain.QuotaRecord{
		Count:           doc.Count,
		LastMessageDate: doc.LastMessageDate,
	}, nil
}

func (s *Store) SetQuota(ctx context.Context, id domain.IdentityID, rec *domain.QuotaRecord) error {
	doc := rateLimitDoc{
		Count:           rec.Count,
		LastMessageDate: rec.LastMessageDate,
	}

	_, err := s.rateLimitDoc(id).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore SetQuota: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// FeedbackStore implementation
// ─────────────────────────────────────────

func (s *Store) AddFeedback(ctx context.Context, fb *domain.Feedback) error {
	doc := feedbackDoc{
		UserID:    string(fb.UserID),
		UserName:  fb.UserName,
		IsGuest:   fb.IsGuest,
		Feedback:  fb.Text,
		Timestamp: fb.CreatedAt,
		UserAgent: fb.UserAgent,
	}

	_, err := s.feedbackCol().Doc(string(fb.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AddFeedback: %w", err)
	}
	return nil
}
