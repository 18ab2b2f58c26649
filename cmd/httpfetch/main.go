// Command httpfetch issues a single request through connmgr.Manager and
// prints the response, exercising the connection manager the way a browser
// or media client would: one origin, ALPN-negotiated HTTP version, at most
// one cached connection.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/klevein/httpconnmgr/connmgr"
	"github.com/klevein/httpconnmgr/version"
)

type config struct {
	target   string
	method   string
	insecure bool
	h2c      bool
	debug    bool
	version  bool
}

func loadConfig() *config {
	cfg := new(config)
	flag.StringVar(&cfg.target, "url", "", "target URL, e.g. https://example.test/path")
	flag.StringVar(&cfg.method, "method", http.MethodGet, "HTTP method")
	flag.BoolVar(&cfg.insecure, "insecure", false, "skip TLS certificate verification")
	flag.BoolVar(&cfg.h2c, "h2c", false, "use prior-knowledge HTTP/2 for http:// URLs")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&cfg.version, "version", false, "print version and exit")
	flag.Parse() //revive:disable-line:deep-exit -- ok for cmd/*
	return cfg
}

func main() {
	cfg := loadConfig()

	if cfg.version {
		fmt.Println("httpfetch: " + version.String())
		os.Exit(0)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.target == "" {
		slog.Error("url required")
		os.Exit(1)
	}

	u, err := url.Parse(cfg.target)
	if err != nil {
		slog.Error("parse url", "error", err)
		os.Exit(1)
	}

	https := u.Scheme == "https"
	if !https && u.Scheme != "http" {
		slog.Error("unsupported scheme", "scheme", u.Scheme)
		os.Exit(1)
	}

	host, portStr := u.Hostname(), u.Port()
	port := uint16(443)
	if !https {
		port = 80
	}
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			slog.Error("parse port", "error", err)
			os.Exit(1)
		}
		port = uint16(p)
	}

	jar, err := connmgr.NewCookieJar()
	if err != nil {
		slog.Error("build cookie jar", "error", err)
		os.Exit(1)
	}

	mgr := connmgr.New(connmgr.Config{
		InsecureSkipVerify: cfg.insecure,
		UseH2C:             cfg.h2c,
		Jar:                jar,
		Logger:             logger,
	})
	defer mgr.Close()

	req, err := http.NewRequest(cfg.method, cfg.target, nil)
	if err != nil {
		slog.Error("build request", "error", err)
		os.Exit(1)
	}

	resp, err := mgr.Request(req.Context(), https, host, port, req)
	if err != nil {
		slog.Error("request failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Fprintf(os.Stdout, "%s %s\n", resp.Proto, resp.Status)
	for name, values := range resp.Header {
		for _, v := range values {
			fmt.Fprintf(os.Stdout, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(os.Stdout)
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		slog.Error("read body", "error", err)
		os.Exit(1)
	}
}
