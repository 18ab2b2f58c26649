package conn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
)

// http1Conn is an HTTP/1.1 connection: at most one stream may be in flight
// at a time, modelled here by holding an exclusive lock for the duration of
// the request/response exchange rather than by a stream-count field.
//
// Unlike the HTTP/2 variant, this does not go through net/http's Transport:
// http.Request.Write always serializes the request in origin-form, and the
// "proxied" distinction (absolute-form request-URI when talking to a
// plain-HTTP proxy) is only reachable via the exported
// http.Request.WriteProxy, which Transport never calls for a caller-supplied
// net.Conn. So this type drives the wire protocol directly with
// Request.Write/WriteProxy + http.ReadResponse, the same pair of primitives
// the dialer's CONNECT tunnel (internal/dial) uses for the proxy handshake
// itself.
type http1Conn struct {
	id      string
	proxied bool

	mu   sync.Mutex
	nc   net.Conn
	br   *bufio.Reader
	dead bool
}

// NewHTTP1 adopts an already-open net.Conn as an HTTP/1.1 connection.
// proxied selects absolute-form request-URI serialization, required when nc
// is a connection to a plain-HTTP proxy rather than the origin server.
func NewHTTP1(nc net.Conn, proxied bool) Connection {
	return &http1Conn{
		id:      NewID(),
		proxied: proxied,
		nc:      nc,
		br:      bufio.NewReader(nc),
	}
}

func (c *http1Conn) ID() string         { return c.id }
func (c *http1Conn) Protocol() Protocol { return ProtocolHTTP1 }

func (c *http1Conn) OpenStream(ctx context.Context, req *http.Request) (Stream, error) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return nil, fmt.Errorf("http1: connection already dead")
	}
	return &http1Stream{conn: c, req: req.WithContext(ctx)}, nil
}

func (c *http1Conn) Release() error {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
	return c.nc.Close()
}

type http1Stream struct {
	conn *http1Conn
	req  *http.Request
}

func (s *http1Stream) InitialMessage() (*http.Response, error) {
	defer s.conn.mu.Unlock()

	var writeErr error
	if s.conn.proxied {
		writeErr = s.req.WriteProxy(s.conn.nc)
	} else {
		writeErr = s.req.Write(s.conn.nc)
	}
	if writeErr != nil {
		s.conn.dead = true
		return nil, fmt.Errorf("http1: write request: %w", writeErr)
	}

	resp, err := http.ReadResponse(s.conn.br, s.req)
	if err != nil {
		s.conn.dead = true
		return nil, fmt.Errorf("http1: read response: %w", err)
	}
	return resp, nil
}
