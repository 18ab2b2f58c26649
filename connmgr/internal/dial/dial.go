// Package dial resolves proxy policy and opens the transport (plain TCP or
// TLS with ALPN) a Connection is built over. It performs no retries itself;
// callers (package connmgr) decide what to do with a failed dial.
package dial

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/klevein/httpconnmgr/internal/helper"
)

func alpnList(allowH2 bool) []string {
	if allowH2 {
		return []string{"h2", "http/1.1"}
	}
	return []string{"http/1.1"}
}

// Plain opens a plaintext TCP connection to (host, port), routed through an
// upstream proxy if the host environment names one. It reports whether the
// returned connection is to a proxy (proxied=true) rather than directly to
// the origin — this flag alone changes how the HTTP/1.1 connection built
// over it serializes the request line (see internal/conn.NewHTTP1).
func Plain(ctx context.Context, host string, port uint16) (c net.Conn, proxied bool, err error) {
	proxyURL, err := ProxyURL(host, port, false)
	if err != nil {
		return nil, false, fmt.Errorf("dial: resolve proxy: %w", err)
	}

	address := helper.CanonicalAddr("http", host, portString(port))
	if proxyURL == nil {
		c, err = (&net.Dialer{}).DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, false, fmt.Errorf("dial: tcp connect: %w", err)
		}
		return c, false, nil
	}

	c, err = DialProxyTCP(ctx, proxyURL, address)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// TLS opens a TLS connection to (host, port) offering ALPN {h2, http/1.1}
// when allowH2 is set, else {http/1.1} alone, routed through an upstream
// HTTPS proxy (via CONNECT) if the host environment names one. It returns
// the negotiated ALPN protocol string, which the caller uses to select the
// HTTP version (see Version).
func TLS(ctx context.Context, creds *tls.Config, host string, port uint16, allowH2 bool, sslInsecure bool) (net.Conn, string, error) {
	proxyURL, err := ProxyURL(host, port, true)
	if err != nil {
		return nil, "", fmt.Errorf("dial: resolve proxy: %w", err)
	}

	if proxyURL != nil {
		return HTTPSThroughProxy(ctx, creds, host, port, allowH2, proxyURL, sslInsecure)
	}

	address := helper.CanonicalAddr("https", host, portString(port))
	rawConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, "", fmt.Errorf("dial: tcp connect: %w", err)
	}

	cfg := creds.Clone()
	cfg.ServerName = host
	cfg.NextProtos = alpnList(allowH2)
	cfg.KeyLogWriter = helper.GetTLSKeyLogWriter()

	tlsConn := tls.Client(rawConn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, "", fmt.Errorf("dial: tls handshake: %w", err)
	}
	return tlsConn, tlsConn.ConnectionState().NegotiatedProtocol, nil
}

// Version maps a negotiated ALPN string to an HTTP version, per RFC 7301:
// an explicit "http/1.1" selection must not fall back to HTTP/1.0, and an
// absent negotiation (empty alpn) is treated as HTTP/1.1 here too, since
// neither Connection variant this module builds speaks HTTP/1.0 upstream.
func Version(alpn string) (http2 bool) {
	return alpn == "h2"
}
