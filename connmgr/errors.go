package connmgr

import "errors"

// Sentinel errors returned by Manager, comparable with errors.Is.
var (
	// ErrConfig names the invalid-configuration error kind. New never
	// fails, so no code path in this package returns it.
	ErrConfig = errors.New("connmgr: invalid config")

	// ErrDial reports that opening the underlying transport failed.
	ErrDial = errors.New("connmgr: dial failed")

	// ErrConstruct reports that a Connection could not be built over an
	// otherwise successfully dialed transport.
	ErrConstruct = errors.New("connmgr: connection construction failed")

	// ErrStale reports that a freshly dialed Connection failed its first
	// stream, whether the dial followed a cache miss or a stale cached
	// connection. A stale cached connection that redials successfully
	// never surfaces this; no further dial is attempted after it.
	ErrStale = errors.New("connmgr: cached connection is stale")

	// ErrSchemeMix reports that a request targeting the opposite scheme
	// (http vs https) of the one currently cached was rejected rather
	// than evicting the live connection.
	ErrSchemeMix = errors.New("connmgr: cached connection uses a different scheme")

	// ErrNotIdempotent reports that the cached connection turned out to be
	// stale (on stream open or while fetching the initial message), and
	// the request's method is not safe to retry automatically.
	ErrNotIdempotent = errors.New("connmgr: request not idempotent, refusing to retry")

	// ErrClosed reports a Request call made after Manager.Close.
	ErrClosed = errors.New("connmgr: manager closed")
)
