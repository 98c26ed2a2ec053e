package task

import (
	"net/url"
	"slices"
	"strings"
)

// param is one query key with its values, kept in document order.
// net/url's Values.Encode sorts keys alphabetically, which would
// reshuffle site URLs, so merging works on this ordered form instead.
type param struct {
	key    string
	values []string
}

// Normalize trims whitespace and defaults the scheme to https.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s
}

// Resolve computes the crawl entry URL for a task. javdb pages carry
// their sort and filter selection in the query string; javbus filters
// client-side, so its URLs pass through untouched. Any parse failure
// falls back to the normalized base URL so task construction never
// aborts here.
func Resolve(rawURL, source, kind string, filter Filter) string {
	base := Normalize(rawURL)
	if source != SourceJavDB {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	params, err := parseQuery(u.RawQuery)
	if err != nil {
		return base
	}
	switch kind {
	case KindActor:
		// Actor listings accumulate the multi-valued t parameter:
		// d = descending, s = solo performer only, c = Chinese subtitles.
		tags := []string{"d"}
		if filter.GetBool("exclude_multi_person") {
			tags = append(tags, "s")
		}
		if filter.OnlyChinese {
			tags = append(tags, "c")
		}
		params = merge(params, "sort_type", []string{"0"})
		params = merge(params, "t", tags)
	case KindCode:
		params = setSingle(params, "sort_type", "5")
		params = setSingle(params, "f", languageFlag(filter))
	default:
		params = setSingle(params, "f", languageFlag(filter))
	}
	u.RawQuery = encodeParams(params)
	return u.String()
}

func languageFlag(filter Filter) string {
	if filter.OnlyChinese {
		return "cnsub"
	}
	return "download"
}

func parseQuery(raw string) ([]param, error) {
	var params []param
	for _, chunk := range strings.Split(raw, "&") {
		if chunk == "" {
			continue
		}
		key, value, _ := strings.Cut(chunk, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, err
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		params = appendValue(params, k, v)
	}
	return params, nil
}

func appendValue(params []param, key, value string) []param {
	for i := range params {
		if params[i].key == key {
			params[i].values = append(params[i].values, value)
			return params
		}
	}
	return append(params, param{key: key, values: []string{value}})
}

// merge appends the values not already present under key, preserving
// whatever was there. Existing values are never overwritten.
func merge(params []param, key string, values []string) []param {
	for i := range params {
		if params[i].key != key {
			continue
		}
		for _, v := range values {
			if !slices.Contains(params[i].values, v) {
				params[i].values = append(params[i].values, v)
			}
		}
		return params
	}
	return append(params, param{key: key, values: slices.Clone(values)})
}

// setSingle overwrites the key in place, or appends it.
func setSingle(params []param, key, value string) []param {
	for i := range params {
		if params[i].key == key {
			params[i].values = []string{value}
			return params
		}
	}
	return append(params, param{key: key, values: []string{value}})
}

func encodeParams(params []param) string {
	var b strings.Builder
	for _, p := range params {
		for _, v := range p.values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(p.key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
