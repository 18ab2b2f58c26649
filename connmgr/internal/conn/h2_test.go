package conn_test

import (
	"context"
	"net"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/klevein/httpconnmgr/connmgr/internal/conn"
)

func newH2CListener(t *testing.T, handler http.Handler) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	h2s := &http2.Server{}
	srv := &http.Server{Handler: h2c.NewHandler(handler, h2s)}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln
}

func TestHTTP2OpenStreamReturnsResponse(t *testing.T) {
	c := qt.New(t)

	ln := newH2CListener(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "h2")
		w.WriteHeader(http.StatusOK)
	}))

	nc, err := net.Dial("tcp", ln.Addr().String())
	c.Assert(err, qt.IsNil)
	defer nc.Close()

	h2, err := conn.NewHTTP2(nc)
	c.Assert(err, qt.IsNil)
	c.Assert(h2.Protocol(), qt.Equals, conn.ProtocolHTTP2)

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/", nil)
	c.Assert(err, qt.IsNil)

	stream, err := h2.OpenStream(context.Background(), req)
	c.Assert(err, qt.IsNil)

	resp, err := stream.InitialMessage()
	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(resp.Header.Get("X-Test"), qt.Equals, "h2")
}

func TestHTTP2MultiplexesConcurrentStreams(t *testing.T) {
	c := qt.New(t)

	ln := newH2CListener(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	nc, err := net.Dial("tcp", ln.Addr().String())
	c.Assert(err, qt.IsNil)
	defer nc.Close()

	h2, err := conn.NewHTTP2(nc)
	c.Assert(err, qt.IsNil)

	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/", nil)
		c.Assert(err, qt.IsNil)

		stream, err := h2.OpenStream(context.Background(), req)
		c.Assert(err, qt.IsNil)

		resp, err := stream.InitialMessage()
		c.Assert(err, qt.IsNil)
		c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	}
}
