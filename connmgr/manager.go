// Package connmgr reuses a single upstream HTTP connection across requests,
// dialing plaintext TCP or TLS with ALPN as needed, negotiating HTTP/1.1 vs
// HTTP/2, and redialing once when a cached connection turns out to be dead.
package connmgr

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.uber.org/atomic"

	"github.com/klevein/httpconnmgr/connmgr/internal/cache"
	"github.com/klevein/httpconnmgr/connmgr/internal/conn"
	"github.com/klevein/httpconnmgr/connmgr/internal/dial"
)

// Manager hands out response handles for requests against arbitrary
// origins, reusing one cached connection where possible.
//
// Manager provides no internal synchronization across concurrent Request
// calls: callers needing concurrent dispatch must serialize externally or
// use one Manager per goroutine.
type Manager struct {
	logger             *slog.Logger
	jar                http.CookieJar
	useH2C             bool
	insecureSkipVerify bool

	credsOnce sync.Once
	creds     *tls.Config

	cache *cache.Cache

	closeOnce sync.Once
	closed    atomic.Bool

	dialAttempts   atomic.Uint32
	streamAttempts atomic.Uint32
}

// New builds a Manager from cfg. It never fails: any invalid combination of
// settings is caught the first time it would matter (e.g. TLS dial errors
// surface through Request, not New).
func New(cfg Config) *Manager {
	return &Manager{
		logger:             cfg.logger(),
		jar:                cfg.Jar,
		useH2C:             cfg.UseH2C,
		insecureSkipVerify: cfg.InsecureSkipVerify,
		cache:              cache.New(),
	}
}

// Jar returns the cookie jar supplied at construction, or nil. The manager
// never mutates it.
func (m *Manager) Jar() http.CookieJar {
	return m.jar
}

// Close releases the cached connection, if any. A second Close is a no-op.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if cn := m.cache.Find("", 0); cn != nil {
			err = m.cache.Release(cn)
		}
	})
	return err
}

// Request dispatches req against (host, port), reusing the cached
// connection when one is live and matches the request's scheme, dialing a
// fresh connection otherwise. It returns a nil response and a non-nil error
// on any failure; callers inspect the error taxonomy in errors.go with
// errors.Is against sentinel values, rather than a hand-rolled structured
// error type.
func (m *Manager) Request(ctx context.Context, https bool, host string, port uint16, req *http.Request) (*http.Response, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if https {
		return m.requestHTTPS(ctx, host, port, req)
	}
	return m.requestHTTP(ctx, host, port, req)
}

func (m *Manager) requestHTTPS(ctx context.Context, host string, port uint16, req *http.Request) (*http.Response, error) {
	if m.creds == nil && m.cache.Find(host, port) != nil {
		m.logger.Debug("connmgr: refusing https request, cache holds a plaintext connection", "host", host, "port", port)
		return nil, fmt.Errorf("connmgr: https request against cached plaintext connection: %w", ErrSchemeMix)
	}
	m.ensureCreds()

	resp, stale, err := m.tryReuse(ctx, host, port, req)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	if stale && !IsIdempotent(req.Method) {
		return nil, fmt.Errorf("connmgr: cached connection stale, %s not retried: %w", req.Method, ErrNotIdempotent)
	}

	m.dialAttempts.Inc()
	nc, alpn, err := dial.TLS(ctx, m.creds, host, port, true, m.insecureSkipVerify)
	if err != nil {
		m.logger.Error("connmgr: https dial failed", "host", host, "port", port, "error", err)
		return nil, fmt.Errorf("connmgr: %w: %v", ErrDial, err)
	}

	var cn conn.Connection
	if dial.Version(alpn) {
		cn, err = conn.NewHTTP2(nc)
	} else {
		cn = conn.NewHTTP1(nc, false)
	}
	if err != nil {
		nc.Close()
		m.logger.Error("connmgr: https connection construction failed", "host", host, "port", port, "error", err)
		return nil, fmt.Errorf("connmgr: %w: %v", ErrConstruct, err)
	}

	if err := m.cache.Install(cn); err != nil {
		cn.Release()
		return nil, fmt.Errorf("connmgr: install cached connection: %w", err)
	}

	resp, _, err = m.tryReuse(ctx, host, port, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("connmgr: freshly dialed connection failed its first stream: %w", ErrStale)
	}
	return resp, nil
}

func (m *Manager) requestHTTP(ctx context.Context, host string, port uint16, req *http.Request) (*http.Response, error) {
	if m.creds != nil && m.cache.Find(host, port) != nil {
		m.logger.Debug("connmgr: refusing http request, cache holds a tls connection", "host", host, "port", port)
		return nil, fmt.Errorf("connmgr: http request against cached tls connection: %w", ErrSchemeMix)
	}

	resp, stale, err := m.tryReuse(ctx, host, port, req)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	if stale && !IsIdempotent(req.Method) {
		return nil, fmt.Errorf("connmgr: cached connection stale, %s not retried: %w", req.Method, ErrNotIdempotent)
	}

	m.dialAttempts.Inc()
	nc, proxied, err := dial.Plain(ctx, host, port)
	if err != nil {
		m.logger.Error("connmgr: plaintext dial failed", "host", host, "port", port, "error", err)
		return nil, fmt.Errorf("connmgr: %w: %v", ErrDial, err)
	}

	var cn conn.Connection
	if m.useH2C {
		cn, err = conn.NewHTTP2(nc)
	} else {
		cn = conn.NewHTTP1(nc, proxied)
	}
	if err != nil {
		nc.Close()
		m.logger.Error("connmgr: http connection construction failed", "host", host, "port", port, "error", err)
		return nil, fmt.Errorf("connmgr: %w: %v", ErrConstruct, err)
	}

	if err := m.cache.Install(cn); err != nil {
		cn.Release()
		return nil, fmt.Errorf("connmgr: install cached connection: %w", err)
	}

	resp, _, err = m.tryReuse(ctx, host, port, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("connmgr: freshly dialed connection failed its first stream: %w", ErrStale)
	}
	return resp, nil
}

// tryReuse attempts the request against whatever connection is cached for
// (host, port). It returns (nil, false, nil) on a cache miss,
// (response, false, nil) on success, or (nil, true, nil) when a cached
// connection was found but turned out stale and has already been released.
// A non-nil error comes either from req.GetBody failing to reset the
// request body, or from the cache rejecting the release itself, which
// signals a bug in this package rather than a network failure.
func (m *Manager) tryReuse(ctx context.Context, host string, port uint16, req *http.Request) (*http.Response, bool, error) {
	cn := m.cache.Find(host, port)
	if cn == nil {
		return nil, false, nil
	}

	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false, fmt.Errorf("connmgr: reset request body for retry: %w", err)
		}
		req.Body = body
	}

	m.streamAttempts.Inc()
	st, err := cn.OpenStream(ctx, req)
	if err != nil {
		m.logger.Debug("connmgr: cached connection dead on stream open", "host", host, "port", port, "error", err)
		if relErr := m.cache.Release(cn); relErr != nil {
			return nil, false, fmt.Errorf("connmgr: release dead connection: %w", relErr)
		}
		return nil, true, nil
	}

	resp, err := st.InitialMessage()
	if err != nil {
		m.logger.Debug("connmgr: cached connection dead fetching initial message", "host", host, "port", port, "error", err)
		if relErr := m.cache.Release(cn); relErr != nil {
			return nil, false, fmt.Errorf("connmgr: release dead connection: %w", relErr)
		}
		return nil, true, nil
	}
	return resp, false, nil
}

func (m *Manager) ensureCreds() *tls.Config {
	m.credsOnce.Do(func() {
		m.creds = &tls.Config{InsecureSkipVerify: m.insecureSkipVerify}
	})
	return m.creds
}
