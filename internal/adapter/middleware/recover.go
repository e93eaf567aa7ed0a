package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Recover turns a panic anywhere later in the chain into a
// KindMiddlewareError, so the chain unwinds to the 500 response that kind
// maps to instead of taking the whole connection goroutine down.
// Registered first, it wraps everything after it.
type Recover struct {
	log *slog.Logger
}

var _ ports.Middleware = (*Recover)(nil)

func NewRecover(log *slog.Logger) *Recover {
	if log == nil {
		log = slog.Default()
	}
	return &Recover{log: log}
}

func (*Recover) Name() string { return "recover" }

func (r *Recover) Handle(ctx context.Context, req *domain.Request, next ports.Next) (resp *domain.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("middleware panic recovered",
				"request_id", req.RequestID,
				"path", req.URL.Path,
				"panic", p)
			gwErr := domain.NewGatewayError(domain.KindMiddlewareError, req.RequestID, string(req.Method), req.URL.Path, "", fmt.Errorf("%v", p))
			resp = nil
			err = gwErr
		}
	}()
	return next(ctx, req)
}
