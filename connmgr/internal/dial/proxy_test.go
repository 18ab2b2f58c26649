package dial_test

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/klevein/httpconnmgr/connmgr/internal/dial"
)

func TestProxyURLReturnsNilWithoutEnv(t *testing.T) {
	c := qt.New(t)

	os.Unsetenv("HTTP_PROXY")
	os.Unsetenv("http_proxy")
	os.Unsetenv("HTTPS_PROXY")
	os.Unsetenv("https_proxy")
	os.Unsetenv("NO_PROXY")

	u, err := dial.ProxyURL("example.test", 80, false)
	c.Assert(err, qt.IsNil)
	c.Assert(u, qt.IsNil)
}

func TestProxyURLHonorsEnv(t *testing.T) {
	c := qt.New(t)

	t.Setenv("HTTP_PROXY", "http://proxy.test:3128")
	t.Setenv("NO_PROXY", "")

	u, err := dial.ProxyURL("example.test", 80, false)
	c.Assert(err, qt.IsNil)
	c.Assert(u, qt.IsNotNil)
	c.Assert(u.Host, qt.Equals, "proxy.test:3128")
}

// fakeProxy accepts one CONNECT and then relays bytes to an upstream TLS
// listener, simulating an HTTPS-through-proxy tunnel.
func fakeProxy(t *testing.T, upstream net.Listener) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		client, err := ln.Accept()
		if err != nil {
			return
		}
		br := bufio.NewReader(client)
		req, err := http.ReadRequest(br)
		if err != nil || req.Method != http.MethodConnect {
			client.Close()
			return
		}
		client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))

		up, err := net.Dial("tcp", upstream.Addr().String())
		if err != nil {
			client.Close()
			return
		}
		go func() {
			buf := make([]byte, 32*1024)
			for {
				n, err := client.Read(buf)
				if n > 0 {
					up.Write(buf[:n])
				}
				if err != nil {
					return
				}
			}
		}()
		buf := make([]byte, 32*1024)
		for {
			n, err := up.Read(buf)
			if n > 0 {
				client.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	return ln
}

func TestHTTPSThroughProxyNegotiatesALPN(t *testing.T) {
	c := qt.New(t)

	tlsLn, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, qt.IsNil)
	defer tlsLn.Close()

	cert := selfSignedTestCert(c)
	serverTLSCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	tlsListener := tls.NewListener(tlsLn, serverTLSCfg)
	go func() {
		conn, err := tlsListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tc, ok := conn.(*tls.Conn)
		if ok {
			tc.Handshake()
		}
	}()

	proxyLn := fakeProxy(t, tlsLn)
	defer proxyLn.Close()

	proxyURL, err := url.Parse("http://" + proxyLn.Addr().String())
	c.Assert(err, qt.IsNil)

	host, port := splitHostPort(c, tlsLn.Addr().String())
	creds := &tls.Config{InsecureSkipVerify: true}

	conn, alpn, err := dial.HTTPSThroughProxy(context.Background(), creds, host, port, true, proxyURL, true)
	c.Assert(err, qt.IsNil)
	defer conn.Close()
	c.Assert(alpn, qt.Equals, "h2")
}
