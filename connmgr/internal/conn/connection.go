// Package conn implements the two Connection variants a dialed transport is
// adopted into: HTTP/1.1 (with an optional proxied request-line flag) and
// HTTP/2. Both satisfy the same Connection interface so the dispatcher in
// package connmgr never needs to know which one it is holding.
package conn

import (
	"context"
	"net/http"
)

// Protocol identifies the negotiated application protocol of a Connection.
type Protocol int

const (
	ProtocolHTTP1 Protocol = iota
	ProtocolHTTP2
)

func (p Protocol) String() string {
	if p == ProtocolHTTP2 {
		return "http/2"
	}
	return "http/1.1"
}

// Stream represents a single request/response exchange opened on a
// Connection. HTTP/1.1 connections allow at most one live Stream at a time;
// HTTP/2 connections allow many concurrently.
type Stream interface {
	// InitialMessage returns the response status line and headers once the
	// server has begun processing the request, or an error if the
	// connection died before headers arrived.
	InitialMessage() (*http.Response, error)
}

// Connection is an open upstream connection exclusively owned by a Manager.
// It is released when a stream fails, indicating the connection is stale,
// or when the owning Manager is closed.
type Connection interface {
	// ID identifies the connection for log correlation.
	ID() string

	// Protocol reports which application protocol this connection speaks.
	Protocol() Protocol

	// OpenStream starts req on this connection. It returns an error
	// immediately if the connection is already known dead (e.g. an HTTP/1.1
	// connection that was released or whose last exchange failed, or an
	// HTTP/2 connection that received GOAWAY); otherwise it returns a Stream
	// whose InitialMessage may still fail if the connection turns out to be
	// stale. On an HTTP/1.1 connection mid-exchange it blocks until that
	// exchange's InitialMessage returns.
	OpenStream(ctx context.Context, req *http.Request) (Stream, error)

	// Release tears down the connection. Safe to call exactly once.
	Release() error
}
