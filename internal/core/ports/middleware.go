package ports

import (
	"context"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// Next is the continuation a Middleware calls to run the remainder of the
// chain; a middleware that does not call it short-circuits (spec.md §4.8).
type Next func(ctx context.Context, req *domain.Request) (*domain.Response, error)

// Middleware is one link in the C8 ordered pre/post chain — logging,
// rate limiting, request-id assignment, header rewriting, and so on.
type Middleware interface {
	Handle(ctx context.Context, req *domain.Request, next Next) (*domain.Response, error)
	Name() string
}

// Chain composes an ordered list of Middleware into a single Next,
// preserving registration order for the pre-phase and reversing it for
// whatever each middleware does on the way back out.
type Chain interface {
	Use(mw Middleware)
	Then(final Next) Next
}
