// Package helper holds small utilities shared across the connection manager
// packages.
package helper

import "net"

var defaultPort = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// CanonicalAddr joins host and port into a "host:port" pair, bracketing IPv6
// literals via net.JoinHostPort and falling back to scheme's default port
// when port is empty. A port of "0" is used as given.
func CanonicalAddr(scheme, host, port string) string {
	if port == "" {
		port = defaultPort[scheme]
	}
	return net.JoinHostPort(host, port)
}
