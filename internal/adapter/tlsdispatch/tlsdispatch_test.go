package tlsdispatch

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/config"
)

func TestNew_NilConfigDisablesTLS(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, config.TLSMode(""), d.Mode())
}

func TestNew_UnknownModeErrors(t *testing.T) {
	_, err := New(&config.TLSConfig{Mode: "bogus"})
	assert.Error(t, err)
}

func TestWrapListener_PassthroughLeavesListenerUnwrapped(t *testing.T) {
	d, err := New(&config.TLSConfig{Mode: config.TLSModePassthrough})
	require.NoError(t, err)

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer inner.Close()

	wrapped := d.WrapListener(inner)
	assert.Same(t, inner, wrapped, "passthrough must not wrap the listener in TLS")
}

func TestPeekServerName_CapturesSNIAndRewindsBytes(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		tlsClient := tls.Client(clientConn, &tls.Config{ServerName: "api.internal.example", InsecureSkipVerify: true})
		_ = tlsClient.HandshakeContext(ctx) // expected to fail once the server aborts
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sni, rewound, err := PeekServerName(ctx, serverConn)

	assert.Equal(t, "api.internal.example", sni)
	assert.NotNil(t, rewound)
	_ = err // the deliberate handshake abort surfaces as nil per errSNICaptured handling
}

func TestTunnel_CopiesBytesBothDirections(t *testing.T) {
	clientA, clientB := net.Pipe()
	upstreamA, upstreamB := net.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = Tunnel(ctx, clientB, upstreamA)
		close(done)
	}()

	go func() {
		_, _ = clientA.Write([]byte("ping"))
		_ = clientA.Close()
	}()

	buf := make([]byte, 4)
	n, err := io.ReadFull(upstreamB, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	_ = upstreamB.Close()
	<-done
}
