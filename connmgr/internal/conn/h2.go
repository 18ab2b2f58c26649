package conn

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/http2"
)

// http2Conn is a multiplexed HTTP/2 connection: many streams may be open
// concurrently, each backed by one call to (*http2.ClientConn).RoundTrip.
type http2Conn struct {
	id string
	cc *http2.ClientConn
}

// NewHTTP2 adopts an already-open, already-TLS-or-prior-knowledge net.Conn
// (tls.Conn for "h2", plain net.Conn for h2c) as a multiplexed HTTP/2
// connection.
func NewHTTP2(nc net.Conn) (Connection, error) {
	t := &http2.Transport{AllowHTTP: true}
	cc, err := t.NewClientConn(nc)
	if err != nil {
		return nil, fmt.Errorf("http2: adopt connection: %w", err)
	}
	return &http2Conn{id: NewID(), cc: cc}, nil
}

func (c *http2Conn) ID() string         { return c.id }
func (c *http2Conn) Protocol() Protocol { return ProtocolHTTP2 }

func (c *http2Conn) OpenStream(ctx context.Context, req *http.Request) (Stream, error) {
	if !c.cc.CanTakeNewRequest() {
		return nil, fmt.Errorf("http2: connection cannot take new requests (GOAWAY or closing)")
	}
	return &http2Stream{cc: c.cc, req: req.WithContext(ctx)}, nil
}

func (c *http2Conn) Release() error {
	return c.cc.Close()
}

type http2Stream struct {
	cc  *http2.ClientConn
	req *http.Request
}

func (s *http2Stream) InitialMessage() (*http.Response, error) {
	resp, err := s.cc.RoundTrip(s.req)
	if err != nil {
		return nil, fmt.Errorf("http2: round trip: %w", err)
	}
	return resp, nil
}
