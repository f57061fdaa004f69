package session

import (
	"context"

	"github.com/calicogames/lorechat/internal/domain"
)

// NoProvider is an IdentityProvider with no external auth system behind
// it: it reports no principal immediately, so sessions resolve to the
// guest vault or to none. Used in local mode and in tests.
type NoProvider struct{}

func NewNoProvider() *NoProvider {
	return &NoProvider{}
}

func (*NoProvider) Watch(ctx context.Context, fn func(*domain.Principal, error)) (func(), error) {
	fn(nil, nil)
	return func() {}, nil
}

func (*NoProvider) SignOut(ctx context.Context) error {
	return nil
}
