package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/observability"
)

// Status is the result of a quota check. Remaining may go negative for
// display purposes; gating always uses Limited.
type Status struct {
	Count     int
	Remaining int
	Limited   bool
}

// Tracker computes whether an identity may send another message today.
// Guests are exempt: they are not persisted, so they are not tracked.
// Results are cached per identity until the next Consume or Forget, so
// the store is read once per identity change.
type Tracker struct {
	store domain.QuotaStore
	max   int
	now   func() time.Time

	mu    sync.Mutex
	cache map[domain.IdentityID]Status
}

func NewTracker(store domain.QuotaStore, maxPerDay int) *Tracker {
	return &Tracker{
		store: store,
		max:   maxPerDay,
		now:   time.Now,
		cache: make(map[domain.IdentityID]Status),
	}
}

func (t *Tracker) Max() int {
	return t.max
}

// Check loads the identity's quota record and reports whether it may
// still send today. A record dated before today is reset to zero and
// the reset is persisted; a missing record means not limited.
func (t *Tracker) Check(ctx context.Context, identity *domain.Identity) (Status, error) {
	if identity == nil || identity.IsGuest {
		return Status{Remaining: t.max}, nil
	}

	t.mu.Lock()
	if st, ok := t.cache[identity.ID]; ok {
		t.mu.Unlock()
		return st, nil
	}
	t.mu.Unlock()

	rec, err := t.store.GetQuota(ctx, identity.ID)
	if err != nil {
		return Status{}, fmt.Errorf("loading quota record: %w", err)
	}

	now := t.now()
	var st Status
	switch {
	case rec == nil:
		st = Status{Count: 0, Remaining: t.max}

	case sameDay(rec.LastMessageDate, now):
		st = Status{
			Count:     rec.Count,
			Remaining: t.max - rec.Count,
			Limited:   rec.Count >= t.max,
		}

	default:
		// New calendar day: reset the counter and persist the reset.
		reset := &domain.QuotaRecord{Count: 0, LastMessageDate: now}
		if err := t.store.SetQuota(ctx, identity.ID, reset); err != nil {
			return Status{}, fmt.Errorf("resetting quota record: %w", err)
		}
		observability.LoggerFromContext(ctx).Info("quota reset for new day",
			"identity_id", identity.ID)
		st = Status{Count: 0, Remaining: t.max}
	}

	t.mu.Lock()
	t.cache[identity.ID] = st
	t.mu.Unlock()
	return st, nil
}

// Consume increments the identity's daily count and persists it. This is
// the sole quota-consuming event and is invoked only after an agent
// message has been successfully persisted. Guests are a no-op.
func (t *Tracker) Consume(ctx context.Context, identity *domain.Identity) (Status, error) {
	if identity == nil || identity.IsGuest {
		return Status{Remaining: t.max}, nil
	}

	current, err := t.Check(ctx, identity)
	if err != nil {
		return Status{}, err
	}

	newCount := current.Count + 1
	rec := &domain.QuotaRecord{Count: newCount, LastMessageDate: t.now()}
	if err := t.store.SetQuota(ctx, identity.ID, rec); err != nil {
		return Status{}, fmt.Errorf("persisting quota record: %w", err)
	}

	st := Status{
		Count:     newCount,
		Remaining: t.max - newCount,
		Limited:   newCount >= t.max,
	}
	t.mu.Lock()
	t.cache[identity.ID] = st
	t.mu.Unlock()
	return st, nil
}

// Forget drops the cached status for an identity, forcing the next Check
// to hit the store. Called on identity change.
func (t *Tracker) Forget(id domain.IdentityID) {
	t.mu.Lock()
	delete(t.cache, id)
	t.mu.Unlock()
}

// sameDay compares calendar dates in the process-local time zone.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
