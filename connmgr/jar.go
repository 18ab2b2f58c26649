package connmgr

import (
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

// NewCookieJar builds a cookie jar that applies the public suffix list when
// deciding which domains a cookie may be scoped to, the way any browser-grade
// HTTP client does. Manager never creates one implicitly; callers opt in via
// Config.Jar.
func NewCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
}
