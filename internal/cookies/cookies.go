// Package cookies loads exported browser cookies for sites that gate
// content behind a signed-in session.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// exported mirrors the JSON written by browser cookie-export extensions.
type exported struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	Expires  float64 `json:"expirationDate"`
}

// Jar loads per-source cookie files from one directory.
type Jar struct {
	dir    string
	logger *zap.Logger
}

// NewJar returns a Jar rooted at dir.
func NewJar(dir string, logger *zap.Logger) *Jar {
	return &Jar{dir: dir, logger: logger}
}

// Load reads <dir>/<source>_cookies.json. A missing or malformed file
// yields an empty result and a warning; the crawl then runs without a
// session rather than failing.
func (j *Jar) Load(source string) []*http.Cookie {
	path := filepath.Join(j.dir, fmt.Sprintf("%s_cookies.json", source))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			j.logger.Warn("cookie file not found, crawling without a session",
				zap.String("source", source),
				zap.String("path", path))
		} else {
			j.logger.Warn("cookie file unreadable",
				zap.String("path", path),
				zap.Error(err))
		}
		return nil
	}

	var raw []exported
	if err := json.Unmarshal(data, &raw); err != nil {
		j.logger.Warn("cookie file malformed, ignoring it",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}

	out := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" {
			continue
		}
		ck := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			ck.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, ck)
	}
	j.logger.Info("loaded cookies",
		zap.String("source", source),
		zap.Int("count", len(out)))
	return out
}
