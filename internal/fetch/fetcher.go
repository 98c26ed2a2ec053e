// Package fetch downloads site pages one at a time with a fixed delay.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// Request names one page to download. Referer is set for endpoints that
// refuse direct hits.
type Request struct {
	URL     string
	Referer string
}

// Page is one downloaded document. FinalURL reflects redirects.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves pages. Implementations rate-limit themselves; the
// crawl engine issues requests strictly sequentially on top of that.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Page, error)
}

// Options configure a site fetcher. Cookies are seeded against
// CookieURL's host when both are set.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
	Cookies   []*http.Cookie
	CookieURL string
}
