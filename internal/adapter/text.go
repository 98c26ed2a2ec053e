package adapter

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	dateRe  = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	digitRe = regexp.MustCompile(`\d+`)
)

// CleanText collapses runs of whitespace into single spaces and trims
// the result. Scraped nodes carry indentation and stray newlines.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseDate pulls the first date out of s and normalizes it to
// YYYY-MM-DD. Both dash and slash separators are accepted. Returns ""
// when s carries no date.
func ParseDate(s string) string {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
}

// FirstInt returns the first run of digits in s as an int, or 0.
func FirstInt(s string) int {
	m := digitRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// AppendUnique appends the values not already present in dst, skipping
// empties. Order is preserved.
func AppendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		seen := false
		for _, have := range dst {
			if have == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}

// ResolveRef makes href absolute against base. Returns "" for empty or
// unparsable hrefs.
func ResolveRef(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
