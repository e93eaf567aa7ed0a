package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns domain.Request.RequestID from an inbound header if the
// client supplied one, or generates a fresh one otherwise, and echoes it
// back on the response so a client can correlate retries and logs.
type RequestID struct{}

var _ ports.Middleware = (*RequestID)(nil)

func NewRequestID() *RequestID { return &RequestID{} }

func (RequestID) Name() string { return "request-id" }

func (RequestID) Handle(ctx context.Context, req *domain.Request, next ports.Next) (*domain.Response, error) {
	id := req.Headers.Get(requestIDHeader)
	if id == "" {
		id = generateRequestID()
	}
	req.RequestID = id
	req.Meta.Set("request_id", id)

	resp, err := next(ctx, req)
	if resp != nil {
		resp.Headers.Set(requestIDHeader, id)
	}
	return resp, err
}

func generateRequestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unavailable"
	}
	return hex.EncodeToString(buf[:])
}
