// Package task models crawl tasks and resolves their entry URLs.
package task

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// Page kinds a task URL can point at.
const (
	KindActor = "actor"
	KindCode  = "code"
	KindOther = "other"
)

// Source tags of the two built-in site adapters.
const (
	SourceJavDB  = "javdb"
	SourceJavBus = "javbus"
)

// Filter holds per-task extraction preferences. OnlyChinese is the one
// key the crawler itself consults; open-ended extra keys ride along for
// the URL resolver's per-source rules.
type Filter struct {
	OnlyChinese bool
	Extra       map[string]any
}

// UnmarshalYAML splits the known only_chinese key out of the mapping
// and keeps everything else verbatim in Extra.
func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]any{}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}
	for k, v := range raw {
		if k == "only_chinese" {
			f.OnlyChinese = truthy(v)
			continue
		}
		if f.Extra == nil {
			f.Extra = map[string]any{}
		}
		f.Extra[k] = v
	}
	return nil
}

// GetBool reports whether the named filter key is set and truthy.
func (f Filter) GetBool(key string) bool {
	if key == "only_chinese" {
		return f.OnlyChinese
	}
	return truthy(f.Extra[key])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0" && s != "no"
	default:
		return false
	}
}

// Parameters holds one raw task entry as written in the task file.
type Parameters struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	URLType string `yaml:"url_type"`
	IsSkip  bool   `yaml:"is_skip"`
	Source  string `yaml:"source"`
	Filter  Filter `yaml:"filter"`
}

// Task is one crawl job, immutable after construction.
type Task struct {
	Name     string
	Source   string
	URL      string
	Kind     string
	IsSkip   bool
	Filter   Filter
	FinalURL string
}

// New validates raw parameters and builds the Task. The final crawl URL
// is resolved exactly once here; resolution can fall back to the
// normalized base URL but never fails construction.
func New(p Parameters) (Task, error) {
	if p.Name == "" {
		return Task{}, fmt.Errorf("task entry missing name")
	}
	if p.URL == "" {
		return Task{}, fmt.Errorf("task %q: missing url", p.Name)
	}
	if p.URLType == "" {
		return Task{}, fmt.Errorf("task %q: missing url_type", p.Name)
	}
	source := p.Source
	if source == "" {
		source = DetectSource(p.URL)
	}
	if source == "" {
		return Task{}, fmt.Errorf("task %q: cannot determine source from %q", p.Name, p.URL)
	}
	t := Task{
		Name:   p.Name,
		Source: source,
		URL:    p.URL,
		Kind:   p.URLType,
		IsSkip: p.IsSkip,
		Filter: p.Filter,
	}
	t.FinalURL = Resolve(t.URL, t.Source, t.Kind, t.Filter)
	return t, nil
}

// DetectSource infers the source tag from the URL host. Mirror hosts
// keep the site name in their label (javdb005.com and friends), so a
// substring check is enough; anything else falls back to the first
// host label.
func DetectSource(rawURL string) string {
	u, err := url.Parse(Normalize(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "javdb"):
		return SourceJavDB
	case strings.Contains(host, "javbus"):
		return SourceJavBus
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}
