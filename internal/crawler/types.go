// Package crawler runs one task's crawl as an explicit state machine:
// list page, duplicate probe, detail fetch, link selection, persist.
package crawler

import (
	"time"

	"github.com/google/uuid"
)

// Record is one finished movie entry. Document() is its stored field
// layout; the struct stays tag-free because nothing decodes it back.
type Record struct {
	Name        string
	Title       string
	Code        string
	Magnet      string
	Size        float64
	ReleaseDate string
	Duration    int
	Director    string
	Maker       string
	Series      string
	Rating      float64
	Tags        []string
	Actors      []string
}

// Document renders the record in the wire layout the store gateway
// takes. Size carries the selection weight of the chosen link.
func (r Record) Document() map[string]any {
	return map[string]any{
		"name":         r.Name,
		"title":        r.Title,
		"code":         r.Code,
		"magnet":       r.Magnet,
		"size":         r.Size,
		"release_date": r.ReleaseDate,
		"duration":     r.Duration,
		"director":     r.Director,
		"maker":        r.Maker,
		"series":       r.Series,
		"rating":       r.Rating,
		"tags":         r.Tags,
		"actors":       r.Actors,
	}
}

// FailedItem records one entry that produced no stored record.
type FailedItem struct {
	Code   string
	URL    string
	Reason string
}

// Report is the tally of one crawl run, reported once at completion.
type Report struct {
	RunID             uuid.UUID
	Task              string
	Source            string
	StartedAt         time.Time
	FinishedAt        time.Time
	Total             int
	Succeeded         int
	Failed            int
	Duplicates        int
	PreferredLanguage int
	Stopped           bool
	StopReason        string
	FailedItems       []FailedItem
}

// Duration is the wall-clock time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Document renders the report for the crawl_reports collection.
func (r Report) Document() map[string]any {
	failed := make([]map[string]any, 0, len(r.FailedItems))
	for _, it := range r.FailedItems {
		failed = append(failed, map[string]any{
			"code":   it.Code,
			"url":    it.URL,
			"reason": it.Reason,
		})
	}
	return map[string]any{
		"run_id":             r.RunID.String(),
		"task":               r.Task,
		"source":             r.Source,
		"started_at":         r.StartedAt,
		"finished_at":        r.FinishedAt,
		"duration_seconds":   r.Duration().Seconds(),
		"total":              r.Total,
		"succeeded":          r.Succeeded,
		"failed":             r.Failed,
		"duplicates":         r.Duplicates,
		"preferred_language": r.PreferredLanguage,
		"stopped":            r.Stopped,
		"stop_reason":        r.StopReason,
		"failed_items":       failed,
	}
}

// Observer receives lifecycle callbacks while a crawl runs. A nil
// Observer disables them.
type Observer interface {
	// OnRecord fires after a record is persisted.
	OnRecord(rec Record)
	// OnEntryFailed fires for every counted entry failure.
	OnEntryFailed(code, url, reason string)
	// OnStopped fires once when the duplicate threshold ends the run.
	OnStopped(task string, streak int)
}
