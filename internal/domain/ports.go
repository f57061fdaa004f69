package domain

import "context"

// AnsweringClient wraps the external question-answering endpoint.
// Ask never returns an error: any transport or application failure is
// converted into a fallback reply string so the caller can treat every
// response as ordinary text.
type AnsweringClient interface {
	Ask(ctx context.Context, query string) string
}

// MessageStore defines persistence for a single identity's transcript.
// Implementations are chosen by identity kind at construction time:
// ephemeral in-memory for guests, document-store backed for registered
// identities. Messages returns the transcript in ascending CreatedAt
// order; Subscribe delivers the full current transcript on connect and
// again after every change, until the returned cancel func is called.
// Cancel is synchronous: no delivery happens after it returns.
type MessageStore interface {
	AppendMessage(ctx context.Context, id IdentityID, msg *Message) (*Message, error)
	Messages(ctx context.Context, id IdentityID) ([]*Message, error)
	Subscribe(ctx context.Context, id IdentityID, fn func([]*Message)) (func(), error)
}

// QuotaStore defines persistence for the per-identity daily counter.
// GetQuota returns (nil, nil) when no record exists yet.
type QuotaStore interface {
	GetQuota(ctx context.Context, id IdentityID) (*QuotaRecord, error)
	SetQuota(ctx context.Context, id IdentityID, rec *QuotaRecord) error
}

// FeedbackStore defines the write-only feedback collection.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, fb *Feedback) error
}

// Principal is what the identity provider reports for a signed-in user.
type Principal struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
	Anonymous   bool
}

// IdentityProvider exposes the external auth system's current state.
// Watch invokes fn with the current principal (nil when signed out)
// once on registration and again on every auth-state change; the
// returned cancel func stops delivery synchronously.
type IdentityProvider interface {
	Watch(ctx context.Context, fn func(*Principal, error)) (func(), error)
	SignOut(ctx context.Context) error
}

// GuestStore is the session-local vault holding a serialized guest
// identity across restarts of the front-end (the browser original kept
// this in tab-scoped storage). Load returns (nil, nil) when empty.
type GuestStore interface {
	Load() (*Identity, error)
	Save(identity *Identity) error
	Clear() error
}
