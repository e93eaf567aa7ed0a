// Package tlsdispatch implements the C11 TLS dispatcher (spec.md §4.11):
// termination, passthrough and re-encryption for one gateway listener.
package tlsdispatch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/brightloom/gatewire/internal/config"
)

// minTLSVersion is spec.md §4.11's floor: "minimum TLS version is 1.2".
const minTLSVersion = tls.VersionTLS12

// Dispatcher wraps one gateway's configured TLS mode and exposes the two
// things a listener (C12) and the upstream transport (C4) need: a way to
// wrap the accepted client connection, and a way to dial the upstream.
type Dispatcher struct {
	mode         config.TLSMode
	serverConfig *tls.Config
	upstreamCAs  *x509.CertPool
	peekSNI      bool
}

// New builds a Dispatcher from a gateway's TLS config. A nil cfg means TLS
// is disabled for this gateway; WrapListener and DialUpstream then become
// no-ops over plain TCP.
func New(cfg *config.TLSConfig) (*Dispatcher, error) {
	if cfg == nil {
		return &Dispatcher{mode: ""}, nil
	}

	d := &Dispatcher{mode: cfg.Mode, peekSNI: cfg.PeekSNI}

	switch cfg.Mode {
	case config.TLSModeTerminate, config.TLSModeReencrypt:
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsdispatch: load cert/key: %w", err)
		}
		d.serverConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   minTLSVersion,
		}
	case config.TLSModePassthrough:
		// No server-side cert: the gateway never terminates the
		// handshake in this mode.
	default:
		return nil, fmt.Errorf("tlsdispatch: unknown mode %q", cfg.Mode)
	}

	if cfg.Mode == config.TLSModeReencrypt && cfg.UpstreamCert != "" {
		pool, err := loadCAFile(cfg.UpstreamCert)
		if err != nil {
			return nil, fmt.Errorf("tlsdispatch: load upstream CA: %w", err)
		}
		d.upstreamCAs = pool
	}

	return d, nil
}

func loadCAFile(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates parsed from %s", path)
	}
	return pool, nil
}

// Mode reports the dispatcher's configured mode ("" for plain TCP).
func (d *Dispatcher) Mode() config.TLSMode { return d.mode }

// WrapListener applies termination to inner: every Accept returns a
// handshake-pending *tls.Conn. Passthrough and re-encryption leave the
// client-facing listener as plain TCP — re-encryption only changes how the
// gateway talks to the *upstream*, and passthrough never decrypts at all.
func (d *Dispatcher) WrapListener(inner net.Listener) net.Listener {
	if d.mode != config.TLSModeTerminate {
		return inner
	}
	return tls.NewListener(inner, d.serverConfig)
}

// DialUpstream opens a connection to addr per the dispatcher's mode:
// plain TCP for termination and passthrough's underlying dial, TLS for
// re-encryption. serverName is used for the upstream handshake's SNI and
// certificate verification.
func (d *Dispatcher) DialUpstream(ctx context.Context, network, addr, serverName string) (net.Conn, error) {
	dialer := &net.Dialer{}
	if d.mode != config.TLSModeReencrypt {
		return dialer.DialContext(ctx, network, addr)
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName: serverName,
		RootCAs:    d.upstreamCAs,
		MinVersion: minTLSVersion,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tlsdispatch: upstream handshake: %w", err)
	}
	return tlsConn, nil
}

// UpstreamDialFunc adapts DialUpstream to the shape ports.ConnectionPool's
// Dialer expects, for a single fixed (network, addr, serverName) triple —
// one is built per upstream server.
func (d *Dispatcher) UpstreamDialFunc(network, addr, serverName string) func(ctx context.Context, key string) (net.Conn, error) {
	return func(ctx context.Context, key string) (net.Conn, error) {
		return d.DialUpstream(ctx, network, addr, serverName)
	}
}
