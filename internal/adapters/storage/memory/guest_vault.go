package memory

import (
	"sync"

	"github.com/calicogames/lorechat/internal/domain"
)

// GuestVault is the session-local slot holding the current guest
// identity, the role tab-scoped storage played in the browser original.
// It holds at most one identity and is cleared on logout or on a real
// provider sign-in.
type GuestVault struct {
	mu    sync.Mutex
	guest *domain.Identity
}

func NewGuestVault() *GuestVault {
	return &GuestVault{}
}

func (v *GuestVault) Load() (*domain.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.guest == nil {
		return nil, nil
	}
	cp := *v.guest
	return &cp, nil
}

func (v *GuestVault) Save(identity *domain.Identity) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	cp := *identity
	v.guest = &cp
	return nil
}

func (v *GuestVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.guest = nil
	return nil
}
