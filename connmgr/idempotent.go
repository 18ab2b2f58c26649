package connmgr

import "net/http"

// IsIdempotent reports whether method is safe to silently retry on a fresh
// connection after the request was already partially written to a stale
// cached one. GET/HEAD/PUT/DELETE/OPTIONS/TRACE are idempotent per RFC 7231
// §4.2.2; CONNECT establishes a tunnel rather than carrying a body and is
// treated the same way. POST and PATCH are not.
func IsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace, http.MethodConnect:
		return true
	default:
		return false
	}
}
