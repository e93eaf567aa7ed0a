package transport

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/adapter/codec"
	"github.com/brightloom/gatewire/internal/core/domain"
)

func newReq(t *testing.T, proto string) *domain.Request {
	t.Helper()
	u, err := url.ParseRequestURI("/widgets")
	require.NoError(t, err)
	req := domain.NewRequest(domain.MethodGET, u)
	req.Proto = proto
	req.Headers.Set("Host", "example.test")
	req.BodyKind = domain.BodyNone
	req.Body = io.NopCloser(strings.NewReader(""))
	return req
}

func TestTransport_ExchangeRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := codec.New()
	serverStream := c.NewStream(server)

	done := make(chan error, 1)
	go func() {
		req, err := serverStream.ReadRequest()
		if err != nil {
			done <- err
			return
		}
		io.Copy(io.Discard, req.Body)
		resp := domain.NewResponse(200, "OK")
		resp.Headers.Set("Content-Length", "2")
		resp.BodyKind = domain.BodyContentLength
		resp.Body = io.NopCloser(strings.NewReader("ok"))
		done <- serverStream.WriteResponse(resp)
	}()

	tr := New(c)
	resp, reusable, err := tr.Exchange(context.Background(), client, newReq(t, "HTTP/1.1"))
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.True(t, reusable)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestTransport_ConnectionCloseMarksNotReusable(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := codec.New()
	serverStream := c.NewStream(server)

	done := make(chan error, 1)
	go func() {
		req, err := serverStream.ReadRequest()
		if err != nil {
			done <- err
			return
		}
		io.Copy(io.Discard, req.Body)
		resp := domain.NewResponse(200, "OK")
		resp.Headers.Set("Content-Length", "0")
		resp.Headers.Set("Connection", "close")
		resp.BodyKind = domain.BodyContentLength
		resp.Body = io.NopCloser(strings.NewReader(""))
		done <- serverStream.WriteResponse(resp)
	}()

	tr := New(c)
	_, reusable, err := tr.Exchange(context.Background(), client, newReq(t, "HTTP/1.1"))
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.False(t, reusable)
}

func TestTransport_ResetBeforeResponseIsRetriable(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	c := codec.New()
	server.Close() // peer gone before any response

	tr := New(c)
	req := newReq(t, "HTTP/1.1")
	_, reusable, err := tr.Exchange(context.Background(), client, req)

	require.Error(t, err)
	assert.False(t, reusable)
	assert.True(t, RetriableBeforeAnyBytes(err))
	assert.True(t, req.Method.Idempotent())
}

func TestTransport_RespectsContextDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := codec.New()
	tr := New(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := tr.Exchange(ctx, client, newReq(t, "HTTP/1.1"))
	require.Error(t, err)
}
