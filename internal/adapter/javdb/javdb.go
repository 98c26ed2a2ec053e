// Package javdb implements the source adapter for the javdb catalog.
package javdb

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"javsync/internal/adapter"
	"javsync/internal/fetch"
	"javsync/internal/magnet"
)

// SourceName tags tasks that crawl javdb.
const SourceName = "javdb"

// subtitleMarkers flag a magnet tag as carrying Chinese subtitles.
var subtitleMarkers = []string{"字幕"}

var ratingRe = regexp.MustCompile(`([\d.]+)\s*分`)

// Adapter parses javdb list pages, detail panels and the magnet table
// embedded in detail pages.
type Adapter struct{}

// New returns the javdb adapter.
func New() *Adapter { return &Adapter{} }

// Name returns the source tag.
func (a *Adapter) Name() string { return SourceName }

// DuplicateThreshold stops a catch-up run after five consecutive
// already-stored entries.
func (a *Adapter) DuplicateThreshold() int { return 5 }

// TieBreak lets the last equal-weight candidate win.
func (a *Adapter) TieBreak() magnet.TieBreak { return magnet.TieKeepLast }

// UsesCookies is true: full listings sit behind a login session.
func (a *Adapter) UsesCookies() bool { return true }

// ParseList reads the movie grid. Each cell is an anchor carrying the
// title attribute, with the code in its caption.
func (a *Adapter) ParseList(doc *goquery.Document, base *url.URL) adapter.ListPage {
	var page adapter.ListPage
	doc.Find("div.item a.box").Each(func(_ int, s *goquery.Selection) {
		u := adapter.ResolveRef(base, s.AttrOr("href", ""))
		if u == "" {
			return
		}
		page.Entries = append(page.Entries, adapter.ListEntry{
			Title: adapter.CleanText(s.AttrOr("title", "")),
			URL:   u,
			Code:  adapter.CleanText(s.Find(".video-title strong").First().Text()),
		})
	})
	page.NextURL = adapter.ResolveRef(base, doc.Find("nav.pagination a[rel='next']").First().AttrOr("href", ""))
	return page
}

// ParseDetail walks the info panel block by block. Unrecognized labels
// are ignored and one bad block never spoils the rest.
func (a *Adapter) ParseDetail(doc *goquery.Document) adapter.Fields {
	var f adapter.Fields
	doc.Find("nav.movie-panel-info > div.panel-block").Each(func(_ int, block *goquery.Selection) {
		label := strings.TrimRight(adapter.CleanText(block.Find("strong").First().Text()), ":：")
		value := block.Find("span.value").First()
		if value.Length() == 0 {
			return
		}
		switch label {
		case "日期":
			f.ReleaseDate = adapter.ParseDate(value.Text())
		case "時長":
			f.Duration = adapter.FirstInt(value.Text())
		case "導演":
			f.Director = adapter.CleanText(value.Find("a").First().Text())
		case "片商":
			f.Maker = adapter.CleanText(value.Find("a").First().Text())
		case "系列":
			f.Series = adapter.CleanText(value.Find("a").First().Text())
		case "評分":
			f.Rating = parseRating(value.Text())
		case "類別":
			value.Find("a").Each(func(_ int, tag *goquery.Selection) {
				f.Tags = adapter.AppendUnique(f.Tags, adapter.CleanText(tag.Text()))
			})
		case "演員":
			// Co-listed male performers share the list; only anchors
			// immediately followed by the female marker count.
			value.Find("a").Each(func(_ int, actor *goquery.Selection) {
				if actor.Next().Is("strong.female") {
					f.Actors = adapter.AppendUnique(f.Actors, adapter.CleanText(actor.Text()))
				}
			})
		}
	})
	return f
}

// Candidates reads the magnet table on the detail page itself. The link
// lives on the copy button, with the name anchor href as fallback.
func (a *Adapter) Candidates(_ context.Context, _ fetch.Page, doc *goquery.Document, _ fetch.Fetcher) ([]magnet.Candidate, error) {
	var cands []magnet.Candidate
	doc.Find("#magnets-content .item").Each(func(_ int, item *goquery.Selection) {
		link := strings.TrimSpace(item.Find("button.copy-to-clipboard").First().AttrOr("data-clipboard-text", ""))
		if link == "" {
			link = strings.TrimSpace(item.Find(".magnet-name a").First().AttrOr("href", ""))
		}
		if !strings.HasPrefix(link, "magnet:?") {
			return
		}
		var tags []string
		item.Find(".magnet-name .tags .tag").Each(func(_ int, tag *goquery.Selection) {
			if t := adapter.CleanText(tag.Text()); t != "" {
				tags = append(tags, t)
			}
		})
		cands = append(cands, magnet.Candidate{
			URL:         link,
			SizeMB:      magnet.ParseSize(item.Find(".magnet-name .meta").First().Text()),
			Tags:        tags,
			HasSubtitle: magnet.HasMarker(tags, subtitleMarkers),
		})
	})
	return cands, nil
}

func parseRating(s string) float64 {
	m := ratingRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return n
}
