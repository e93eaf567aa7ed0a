// Package middleware implements the C8 ordered middleware chain plus the
// concrete middlewares the runtime wires in front of the reverse proxy:
// request-id assignment, structured access logging, and rate limiting
// (spec.md §4.8, §4.16).
package middleware

import (
	"context"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Chain composes registered middlewares into a single ports.Next. Use
// appends in registration order; Then builds the pre/post nesting so the
// first-registered middleware's pre-phase runs first and its post-phase
// (code after it calls next) runs last — spec.md §4.8's "response
// middleware runs in reverse registration order".
type Chain struct {
	middlewares []ports.Middleware
}

var _ ports.Chain = (*Chain)(nil)

func NewChain() *Chain { return &Chain{} }

func (c *Chain) Use(mw ports.Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Then wraps final in every registered middleware, innermost-first, so
// that calling the returned Next runs middleware[0], which may call
// middleware[1], ..., which may call final. A middleware that returns
// without invoking next short-circuits every later middleware and final
// itself (spec.md §4.8).
func (c *Chain) Then(final ports.Next) ports.Next {
	next := final
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		mw := c.middlewares[i]
		wrapped := next
		next = func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
			return mw.Handle(ctx, req, wrapped)
		}
	}
	return next
}
