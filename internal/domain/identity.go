package domain

import (
	"fmt"
	"time"
)

// Identity is the resolved current user: a registered principal from the
// identity provider, or a session-local guest.
type Identity struct {
	ID          IdentityID `json:"id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsGuest     bool       `json:"is_guest"`
}

// NewGuestIdentity builds a guest identity with a synthesized id.
// Guests carry only a display name; email and avatar stay empty.
func NewGuestIdentity(username string, now time.Time) *Identity {
	return &Identity{
		ID:          IdentityID(fmt.Sprintf("guest_%d", now.UnixMilli())),
		DisplayName: username,
		IsGuest:     true,
	}
}

// Registered reports whether the identity is backed by the provider's
// persistent account system (and therefore persisted and quota-tracked).
func (i *Identity) Registered() bool {
	return i != nil && !i.IsGuest
}
