// Package magnet scores magnet-link candidates and picks the best one
// per record.
package magnet

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// subtitleBoost outranks any realistic file size, making the subtitle
// preference a hard priority and size the tie-breaker within a class.
const subtitleBoost = 10000.0

// TieBreak chooses which equal-weight candidate wins a scan. The two
// sites resolve ties differently and the difference is kept on purpose.
type TieBreak int

const (
	// TieKeepLast replaces the incumbent on equal weight, so the last
	// equal-weight candidate in document order wins.
	TieKeepLast TieBreak = iota
	// TieKeepFirst keeps the incumbent on equal weight.
	TieKeepFirst
)

// Candidate is one raw link option pulled from a detail page.
type Candidate struct {
	URL         string
	SizeMB      float64
	Tags        []string
	HasSubtitle bool
}

// Selection is the scorer's verdict for one candidate set. An empty URL
// means no usable candidate.
type Selection struct {
	URL         string
	Weight      float64
	HasSubtitle bool
}

var sizeRe = regexp.MustCompile(`(?i)([\d.]+)\s*(GB|MB)`)

// ParseSize extracts a size in megabytes from a human string like
// "4.42GB" or "870 MB". Unrecognized strings yield 0.
func ParseSize(s string) float64 {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(m[2], "GB") {
		return n * 1024
	}
	return n
}

// HasMarker reports whether any tag contains one of the markers.
func HasMarker(tags, markers []string) bool {
	for _, tag := range tags {
		for _, m := range markers {
			if strings.Contains(tag, m) {
				return true
			}
		}
	}
	return false
}

// Weight ranks a candidate: subtitled links always beat bare ones, size
// decides within each class.
func (c Candidate) Weight() float64 {
	if c.HasSubtitle {
		return c.SizeMB + subtitleBoost
	}
	return c.SizeMB
}

// SelectBest scans candidates in document order and keeps the heaviest
// valid one. With onlyPreferred set the scan prefilters to subtitled
// candidates but falls back to the full set when none qualify; the
// preference is advisory, not exclusionary. Candidates without a
// magnet URL or without a positive weight are skipped.
func SelectBest(cands []Candidate, onlyPreferred bool, tie TieBreak) Selection {
	pool := cands
	if onlyPreferred {
		var preferred []Candidate
		for _, c := range cands {
			if c.HasSubtitle {
				preferred = append(preferred, c)
			}
		}
		if len(preferred) > 0 {
			pool = preferred
		}
	}

	var (
		best  Selection
		top   float64
		found bool
	)
	for _, c := range pool {
		if !strings.HasPrefix(c.URL, "magnet:?") {
			continue
		}
		w := c.Weight()
		if w <= 0 {
			continue
		}
		if !found || w > top || (tie == TieKeepLast && w == top) {
			found = true
			top = w
			best = Selection{URL: c.URL, Weight: w, HasSubtitle: c.HasSubtitle}
		}
	}
	if !found {
		return Selection{}
	}
	best.Weight = math.Round(best.Weight*100) / 100
	return best
}
