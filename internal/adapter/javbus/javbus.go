// Package javbus implements the source adapter for the javbus catalog.
// Magnet candidates live behind a separate ajax endpoint whose
// parameters are scraped from script text on the detail page.
package javbus

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"javsync/internal/adapter"
	"javsync/internal/fetch"
	"javsync/internal/magnet"
)

// SourceName tags tasks that crawl javbus.
const SourceName = "javbus"

// ErrScriptVars marks a detail page missing one of the script
// variables the magnet endpoint needs.
var ErrScriptVars = errors.New("script vars")

// subtitleMarkers flag a magnet tag as carrying Chinese subtitles.
var subtitleMarkers = []string{"中字", "字幕"}

var (
	gidRe = regexp.MustCompile(`var gid = (\d+)`)
	ucRe  = regexp.MustCompile(`var uc = (\d+)`)
	imgRe = regexp.MustCompile(`var img = '([^']*)'`)
)

// Adapter parses javbus list pages, detail info blocks and the ajax
// magnet rows.
type Adapter struct{}

// New returns the javbus adapter.
func New() *Adapter { return &Adapter{} }

// Name returns the source tag.
func (a *Adapter) Name() string { return SourceName }

// DuplicateThreshold stops a catch-up run after three consecutive
// already-stored entries.
func (a *Adapter) DuplicateThreshold() int { return 3 }

// TieBreak keeps the first equal-weight candidate.
func (a *Adapter) TieBreak() magnet.TieBreak { return magnet.TieKeepFirst }

// UsesCookies is false: listings are public.
func (a *Adapter) UsesCookies() bool { return false }

// ParseList reads the movie grid. The code sits in the first date
// element of each box; the title is the caption text around it.
func (a *Adapter) ParseList(doc *goquery.Document, base *url.URL) adapter.ListPage {
	var page adapter.ListPage
	doc.Find("a.movie-box").Each(func(_ int, s *goquery.Selection) {
		u := adapter.ResolveRef(base, s.AttrOr("href", ""))
		if u == "" {
			return
		}
		entry := adapter.ListEntry{
			URL:  u,
			Code: adapter.CleanText(s.Find("date").First().Text()),
		}
		if span := s.Find("div.photo-info span").First(); span.Length() > 0 {
			clone := span.Clone()
			clone.Find("date").Remove()
			entry.Title = adapter.CleanText(clone.Text())
		}
		page.Entries = append(page.Entries, entry)
	})
	page.NextURL = adapter.ResolveRef(base, doc.Find("a#next").First().AttrOr("href", ""))
	return page
}

// ParseDetail walks the info column paragraph by paragraph, keyed on
// the header span. Genre and performer markup moved between site
// generations, so those use their own selectors.
func (a *Adapter) ParseDetail(doc *goquery.Document) adapter.Fields {
	var f adapter.Fields
	doc.Find("div.info p").Each(func(_ int, p *goquery.Selection) {
		label := adapter.CleanText(p.Find("span.header").First().Text())
		switch {
		case strings.Contains(label, "發行日期"):
			f.ReleaseDate = adapter.ParseDate(valueText(p))
		case strings.Contains(label, "長度"):
			f.Duration = adapter.FirstInt(valueText(p))
		case strings.Contains(label, "導演"):
			f.Director = adapter.CleanText(p.Find("a").First().Text())
		case strings.Contains(label, "製作商"):
			f.Maker = adapter.CleanText(p.Find("a").First().Text())
		case strings.Contains(label, "系列"):
			f.Series = adapter.CleanText(p.Find("a").First().Text())
		}
	})
	doc.Find("div.info span.genre a[href*='genre']").Each(func(_ int, g *goquery.Selection) {
		f.Tags = adapter.AppendUnique(f.Tags, adapter.CleanText(g.Text()))
	})
	f.Actors = extractActors(doc)
	return f
}

// Candidates scrapes the gid, uc and img variables from the detail
// page's script text, then fetches the ajax magnet endpoint they
// parameterize. The endpoint rejects requests without a Referer.
func (a *Adapter) Candidates(ctx context.Context, page fetch.Page, _ *goquery.Document, fetcher fetch.Fetcher) ([]magnet.Candidate, error) {
	gid, uc, img, err := scriptVars(page.Body)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("detail page url: %w", err)
	}
	endpoint := fmt.Sprintf("/ajax/uncledatoolsbyajax.php?gid=%s&lang=zh&img=%s&uc=%s&floor=%d",
		gid, img, uc, randomFloor())
	res, err := fetcher.Fetch(ctx, fetch.Request{
		URL:     adapter.ResolveRef(base, endpoint),
		Referer: page.FinalURL,
	})
	if err != nil {
		return nil, fmt.Errorf("magnet list: %w", err)
	}
	return parseRows(res.Body), nil
}

// valueText is the paragraph's text with the label span removed.
func valueText(p *goquery.Selection) string {
	c := p.Clone()
	c.Find("span.header").Remove()
	return adapter.CleanText(c.Text())
}

// extractActors layers the three selector generations the site has
// used, merging whatever each one finds.
func extractActors(doc *goquery.Document) []string {
	var actors []string
	doc.Find(".star-box a[title]").Each(func(_ int, s *goquery.Selection) {
		actors = adapter.AppendUnique(actors, adapter.CleanText(s.AttrOr("title", "")))
	})
	doc.Find("p a[href*='/star/']").Each(func(_ int, s *goquery.Selection) {
		actors = adapter.AppendUnique(actors, adapter.CleanText(s.Text()))
	})
	doc.Find(".star-name a").Each(func(_ int, s *goquery.Selection) {
		actors = adapter.AppendUnique(actors, adapter.CleanText(s.Text()))
	})
	return actors
}

// scriptVars requires all three variables; the endpoint returns
// nothing useful with any of them absent.
func scriptVars(body []byte) (string, string, string, error) {
	gid := gidRe.FindSubmatch(body)
	if gid == nil {
		return "", "", "", fmt.Errorf("%w: gid", ErrScriptVars)
	}
	uc := ucRe.FindSubmatch(body)
	if uc == nil {
		return "", "", "", fmt.Errorf("%w: uc", ErrScriptVars)
	}
	img := imgRe.FindSubmatch(body)
	if img == nil {
		return "", "", "", fmt.Errorf("%w: img", ErrScriptVars)
	}
	return string(gid[1]), string(uc[1]), string(img[1]), nil
}

// parseRows reads the returned magnet rows. The response is a bare run
// of tr elements, which the html parser drops without a table around
// them.
func parseRows(body []byte) []magnet.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table>" + string(body) + "</table>"))
	if err != nil {
		return nil
	}
	var cands []magnet.Candidate
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		link := strings.TrimSpace(row.Find("a[href^='magnet']").First().AttrOr("href", ""))
		if link == "" {
			return
		}
		var tags []string
		row.Find("td").First().Find("a.btn").Each(func(_ int, b *goquery.Selection) {
			if t := adapter.CleanText(b.Text()); t != "" {
				tags = append(tags, t)
			}
		})
		cands = append(cands, magnet.Candidate{
			URL:         link,
			SizeMB:      magnet.ParseSize(row.Find("td").Eq(1).Text()),
			Tags:        tags,
			HasSubtitle: magnet.HasMarker(tags, subtitleMarkers),
		})
	})
	return cands
}

// randomFloor is the endpoint's cache-busting parameter, 1 to 1000.
func randomFloor() int {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return 500
	}
	return int(n.Int64()) + 1
}
