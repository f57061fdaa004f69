package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/observability"
)

var (
	// ErrBadAccessCode is returned when a guest login carries a code that
	// does not match the configured one. No identity is created.
	ErrBadAccessCode = errors.New("invalid guest access code")
)

// Snapshot is the resolver's observable state. Loading stays true until
// the identity provider has reported at least once.
type Snapshot struct {
	Identity *domain.Identity
	Loading  bool
}

// Resolver owns the current identity for one session and pushes change
// notifications to registered listeners. Resolution order on startup and
// on every provider change: provider principal, then guest vault, then
// none. There is no global singleton: callers hold the handle explicitly.
type Resolver struct {
	provider   domain.IdentityProvider
	guests     domain.GuestStore
	accessCode string
	now        func() time.Time

	mu        sync.Mutex
	identity  *domain.Identity
	loading   bool
	nextID    int
	listeners map[int]func(Snapshot)
	stopWatch func()
}

func NewResolver(provider domain.IdentityProvider, guests domain.GuestStore, accessCode string) *Resolver {
	return &Resolver{
		provider:   provider,
		guests:     guests,
		accessCode: accessCode,
		now:        time.Now,
		loading:    true,
		listeners:  make(map[int]func(Snapshot)),
	}
}

// Start registers with the identity provider. The provider invokes the
// callback once with its current state, which clears the loading flag.
func (r *Resolver) Start(ctx context.Context) error {
	stop, err := r.provider.Watch(ctx, func(p *domain.Principal, err error) {
		r.onAuthState(ctx, p, err)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.stopWatch = stop
	r.mu.Unlock()
	return nil
}

// Close stops watching the provider. Listener registrations survive but
// receive no further notifications.
func (r *Resolver) Close() {
	r.mu.Lock()
	stop := r.stopWatch
	r.stopWatch = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (r *Resolver) onAuthState(ctx context.Context, p *domain.Principal, err error) {
	log := observability.LoggerFromContext(ctx)

	var identity *domain.Identity
	switch {
	case err != nil:
		// A failed lookup must resolve to no identity, never hang loading.
		log.Error("identity provider lookup failed", "error", err)
		identity = nil

	case p != nil:
		identity = &domain.Identity{
			ID:          domain.IdentityID(p.UID),
			DisplayName: p.DisplayName,
			Email:       p.Email,
			AvatarURL:   p.PhotoURL,
			IsGuest:     p.Anonymous,
		}
		if !p.Anonymous {
			// A real sign-in supersedes any stored guest identity.
			if clearErr := r.guests.Clear(); clearErr != nil {
				log.Error("failed to clear guest vault", "error", clearErr)
			}
		}

	default:
		guest, loadErr := r.guests.Load()
		if loadErr != nil {
			log.Error("failed to load guest identity", "error", loadErr)
		}
		identity = guest
	}

	r.setIdentity(identity)
}

// Snapshot returns the current identity and loading state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Identity: r.identity, Loading: r.loading}
}

// Subscribe registers fn to run on every identity change. The returned
// func removes the registration; after it returns fn is never called.
func (r *Resolver) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// LoginAsGuest validates the access code (case-insensitive) and, on
// success, stores a fresh guest identity and notifies listeners directly.
// The caller is responsible for rejecting an empty username first.
func (r *Resolver) LoginAsGuest(ctx context.Context, username, accessCode string) (*domain.Identity, error) {
	if !strings.EqualFold(accessCode, r.accessCode) {
		return nil, ErrBadAccessCode
	}

	guest := domain.NewGuestIdentity(username, r.now())
	if err := r.guests.Save(guest); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("guest logged in", "identity_id", guest.ID)
	r.setIdentity(guest)
	return guest, nil
}

// Logout signs out of the provider, clears the guest vault and resolves
// to no identity.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.provider.SignOut(ctx); err != nil {
		observability.LoggerFromContext(ctx).Error("provider sign-out failed", "error", err)
		return err
	}
	if err := r.guests.Clear(); err != nil {
		return err
	}
	r.setIdentity(nil)
	return nil
}

func (r *Resolver) setIdentity(identity *domain.Identity) {
	r.mu.Lock()
	r.identity = identity
	r.loading = false
	snap := Snapshot{Identity: identity, Loading: false}
	fns := make([]func(Snapshot), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
