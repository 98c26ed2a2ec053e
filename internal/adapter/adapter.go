// Package adapter defines the per-site extraction contract: how a source's
// list pages, detail pages and magnet candidates are parsed.
package adapter

import (
	"context"
	"net/url"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"javsync/internal/fetch"
	"javsync/internal/magnet"
)

// ListEntry is one item row on a catalog page.
type ListEntry struct {
	// Title is the display name shown in the listing.
	Title string
	// URL is the absolute detail-page address.
	URL string
	// Code is the site-native identifier, the dedup key.
	Code string
}

// ListPage is the parse result of one catalog page. An empty NextURL
// means the listing is exhausted.
type ListPage struct {
	Entries []ListEntry
	NextURL string
}

// Fields holds the metadata pulled from a detail page. A field the page
// does not carry keeps its zero value.
type Fields struct {
	ReleaseDate string
	Duration    int
	Director    string
	Maker       string
	Series      string
	Rating      float64
	Tags        []string
	Actors      []string
}

// Source is one site's extraction rules. Implementations are stateless;
// the crawl engine owns all traversal state.
type Source interface {
	// Name is the source tag tasks select the adapter by.
	Name() string
	// DuplicateThreshold is the consecutive-duplicate count that stops a
	// catch-up run early.
	DuplicateThreshold() int
	// TieBreak is the site's rule for equal-weight magnet candidates.
	TieBreak() magnet.TieBreak
	// UsesCookies reports whether the site needs a session cookie file.
	UsesCookies() bool
	// ParseList extracts entries and the next-page link from a catalog
	// page. Relative links resolve against base.
	ParseList(doc *goquery.Document, base *url.URL) ListPage
	// ParseDetail extracts the metadata fields from a detail page.
	ParseDetail(doc *goquery.Document) Fields
	// Candidates collects the magnet candidates for one detail page.
	// Implementations may issue follow-up requests through the fetcher.
	Candidates(ctx context.Context, page fetch.Page, doc *goquery.Document, fetcher fetch.Fetcher) ([]magnet.Candidate, error)
}

// Registry maps source names to adapters.
type Registry map[string]Source

// Lookup returns the adapter registered under name.
func (r Registry) Lookup(name string) (Source, bool) {
	s, ok := r[name]
	return s, ok
}

// Names lists the registered source names in stable order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
