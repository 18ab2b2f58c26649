package connmgr

import (
	"log/slog"
	"net/http"
)

// Config holds the manager configuration settings.
type Config struct {
	// InsecureSkipVerify disables TLS certificate verification against
	// both the origin and, when tunneling, the proxy itself. Only ever
	// set this for local testing.
	InsecureSkipVerify bool

	// UseH2C selects prior-knowledge HTTP/2 over plaintext TCP for
	// http:// origins instead of HTTP/1.1. Most servers don't speak h2c,
	// so this defaults to false.
	UseH2C bool

	// Jar is held for the caller's convenience and returned by Jar(); the
	// manager never attaches it to requests or reads from it itself.
	// Callers that want cookies sent and recorded are responsible for
	// populating req's headers and updating Jar themselves.
	Jar http.CookieJar

	// Logger receives debug/error lines for dial, reuse, and release
	// decisions. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
