package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Logging emits one structured log line per request at the start and one
// at completion, mirroring the teacher's EnhancedLoggingMiddleware: method,
// path, remote address, size and duration. The start line and a
// successful completion are logged at Debug, a failed request at Error
// (spec.md §4.8, §4.9).
type Logging struct {
	log *slog.Logger
}

var _ ports.Middleware = (*Logging)(nil)

func NewLogging(log *slog.Logger) *Logging {
	if log == nil {
		log = slog.Default()
	}
	return &Logging{log: log}
}

func (*Logging) Name() string { return "logging" }

func (l *Logging) Handle(ctx context.Context, req *domain.Request, next ports.Next) (*domain.Response, error) {
	start := time.Now()

	l.log.Debug("request started",
		"request_id", req.RequestID,
		"method", string(req.Method),
		"path", req.URL.Path,
		"remote_addr", req.RemoteAddr,
		"request_bytes", req.BodyLength)

	resp, err := next(ctx, req)

	duration := time.Since(start)
	fields := []any{
		"request_id", req.RequestID,
		"method", string(req.Method),
		"path", req.URL.Path,
		"duration_ms", duration.Milliseconds(),
	}
	if resp != nil {
		fields = append(fields, "status", resp.StatusCode, "response_bytes", resp.BodyLength)
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
		l.log.Error("request failed", fields...)
	} else {
		l.log.Debug("request completed", fields...)
	}

	return resp, err
}
