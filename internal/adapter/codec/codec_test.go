package codec

import (
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/core/domain"
)

func makeRequest(t *testing.T, method domain.Method, path string) *domain.Request {
	t.Helper()
	u, err := url.ParseRequestURI(path)
	require.NoError(t, err)
	req := domain.NewRequest(method, u)
	req.Headers.Set("Host", "example.test")
	return req
}

func makeResponse(status int, reason string) *domain.Response {
	return domain.NewResponse(status, reason)
}

func TestCodec_RequestRoundTrip_ContentLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := New()
	clientStream := c.NewStream(client)
	serverStream := c.NewStream(server)

	done := make(chan error, 1)
	go func() {
		req, err := serverStream.ReadRequest()
		if err != nil {
			done <- err
			return
		}
		body, _ := io.ReadAll(req.Body)
		if string(body) != "hello" {
			done <- errors.New("unexpected body: " + string(body))
			return
		}
		done <- nil
	}()

	req := makeRequest(t, domain.MethodGET, "/widgets")
	req.Headers.Set("Content-Length", "5")
	req.BodyKind = domain.BodyContentLength
	req.Body = io.NopCloser(strings.NewReader("hello"))

	require.NoError(t, clientStream.WriteRequest(req))
	require.NoError(t, <-done)
}

func TestCodec_ChunkedRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := New()
	clientStream := c.NewStream(client)
	serverStream := c.NewStream(server)

	done := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		req, err := serverStream.ReadRequest()
		if err != nil {
			errs <- err
			return
		}
		body, err := io.ReadAll(req.Body)
		errs <- err
		done <- string(body)
	}()

	req := makeRequest(t, domain.MethodPOST, "/stream")
	req.Headers.Set("Transfer-Encoding", "chunked")
	req.BodyKind = domain.BodyChunked
	req.Body = io.NopCloser(strings.NewReader("chunked-payload"))

	require.NoError(t, clientStream.WriteRequest(req))
	require.NoError(t, <-errs)
	assert.Equal(t, "chunked-payload", <-done)
}

func TestCodec_ResponseRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := New()
	clientStream := c.NewStream(client)
	serverStream := c.NewStream(server)

	errs := make(chan error, 1)
	go func() {
		resp := makeResponse(200, "OK")
		resp.Headers.Set("Content-Length", "2")
		resp.BodyKind = domain.BodyContentLength
		resp.Body = io.NopCloser(strings.NewReader("hi"))
		errs <- serverStream.WriteResponse(resp)
	}()

	req := makeRequest(t, domain.MethodGET, "/")
	resp, err := clientStream.ReadResponse(req)
	require.NoError(t, err)
	require.NoError(t, <-errs)

	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hi", string(body))
}

func TestCodec_RejectsBothFramingHeaders(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := New()
	serverStream := c.NewStream(server)

	go func() {
		client.Write([]byte("GET / HTTP/1.1\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"))
	}()

	_, err := serverStream.ReadRequest()
	require.Error(t, err)
}
