package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/fetch"
	"javsync/internal/magnet"
	"javsync/internal/metrics"
	"javsync/internal/store"
	"javsync/internal/task"
)

// Engine crawls one task from its start URL until the listing is
// exhausted or the duplicate threshold stops it. Each engine owns its
// traversal state; nothing here is shared between tasks.
type Engine struct {
	task     task.Task
	source   adapter.Source
	fetcher  fetch.Fetcher
	gateway  store.Provider
	logger   *zap.Logger
	observer Observer

	collection string
	dupes      *dupeCounter
}

// New builds an engine for one task. The fetcher must already be
// configured for the task's source: user agent, delay, cookies.
func New(t task.Task, src adapter.Source, fetcher fetch.Fetcher, gateway store.Provider, logger *zap.Logger, observer Observer) *Engine {
	return &Engine{
		task:       t,
		source:     src,
		fetcher:    fetcher,
		gateway:    gateway,
		logger:     logger.With(zap.String("task", t.Name), zap.String("source", src.Name())),
		observer:   observer,
		collection: store.CollectionName(t.Name),
		dupes:      newDupeCounter(src.DuplicateThreshold()),
	}
}

// Run walks the listing page by page. Entry-level problems are counted
// on the report and never abort the run; the returned error is non-nil
// only when the context is canceled.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.New(),
		Task:      e.task.Name,
		Source:    e.source.Name(),
		StartedAt: time.Now().UTC(),
	}
	e.logger.Info("crawl started",
		zap.String("run_id", report.RunID.String()),
		zap.String("url", e.task.FinalURL))

	pageURL := e.task.FinalURL
crawl:
	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return e.finish(&report), err
		}
		page, err := e.fetcher.Fetch(ctx, fetch.Request{URL: pageURL})
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return e.finish(&report), cerr
			}
			e.logger.Warn("list fetch failed", zap.String("url", pageURL), zap.Error(err))
			break
		}
		metrics.ObservePage(e.source.Name())
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			e.logger.Warn("list parse failed", zap.String("url", pageURL), zap.Error(err))
			break
		}
		base, _ := url.Parse(page.FinalURL)
		list := e.source.ParseList(doc, base)
		e.logger.Debug("list page parsed",
			zap.String("url", pageURL),
			zap.Int("entries", len(list.Entries)))

		for _, entry := range list.Entries {
			if err := ctx.Err(); err != nil {
				return e.finish(&report), err
			}
			if e.isDuplicate(ctx, entry.Code) {
				report.Duplicates++
				metrics.ObserveDuplicate(e.source.Name())
				reached := e.dupes.Duplicate()
				e.logger.Info("already stored",
					zap.String("code", entry.Code),
					zap.Int("streak", e.dupes.Count()))
				if reached && e.task.IsSkip {
					report.Stopped = true
					report.StopReason = fmt.Sprintf("%d consecutive duplicates", e.dupes.Count())
					metrics.ObserveEarlyStop(e.source.Name())
					e.logger.Warn("caught up, stopping early", zap.String("reason", report.StopReason))
					if e.observer != nil {
						e.observer.OnStopped(e.task.Name, e.dupes.Count())
					}
					break crawl
				}
				continue
			}
			e.dupes.Reset()
			e.processEntry(ctx, &report, entry)
		}
		pageURL = list.NextURL
	}
	return e.finish(&report), nil
}

// isDuplicate reports whether code is already stored with a usable
// magnet link, touching its timestamp on a hit. Probe errors count as
// a miss so a flaky store never skips fresh entries.
func (e *Engine) isDuplicate(ctx context.Context, code string) bool {
	existing, err := e.gateway.FindOne(ctx, e.collection, map[string]any{
		"code":   code,
		"magnet": map[string]any{"$ne": nil},
	})
	if err != nil {
		e.logger.Warn("duplicate probe failed", zap.String("code", code), zap.Error(err))
		return false
	}
	if existing == nil {
		return false
	}
	if id, ok := existing["_id"]; ok {
		if _, err := e.gateway.UpdateOne(ctx, e.collection, map[string]any{"_id": id}, nil); err != nil {
			e.logger.Warn("touch failed", zap.String("code", code), zap.Error(err))
		}
	}
	return true
}

// processEntry runs the detail for one fresh list entry: fetch,
// extract, pick a magnet, persist. Every exit besides success counts
// one failure with its reason.
func (e *Engine) processEntry(ctx context.Context, report *Report, entry adapter.ListEntry) {
	report.Total++
	page, err := e.fetcher.Fetch(ctx, fetch.Request{URL: entry.URL})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(report, entry, "detail fetch: "+err.Error())
		return
	}
	metrics.ObservePage(e.source.Name())
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.fail(report, entry, "detail parse: "+err.Error())
		return
	}

	fields := e.source.ParseDetail(doc)
	cands, err := e.source.Candidates(ctx, page, doc, e.fetcher)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(report, entry, err.Error())
		return
	}

	sel := magnet.SelectBest(cands, e.task.Filter.OnlyChinese, e.source.TieBreak())
	if sel.URL == "" {
		e.fail(report, entry, "no usable link")
		return
	}

	rec := e.buildRecord(entry, fields, sel)
	if _, err := e.gateway.UpsertIfAbsent(ctx, e.collection, rec.Document(), "code"); err != nil {
		e.fail(report, entry, "persist: "+err.Error())
		return
	}

	report.Succeeded++
	metrics.ObserveRecord(e.source.Name())
	if sel.HasSubtitle {
		report.PreferredLanguage++
	}
	e.logger.Info("record stored",
		zap.String("code", entry.Code),
		zap.String("title", entry.Title),
		zap.Float64("size", sel.Weight),
		zap.Bool("subtitled", sel.HasSubtitle))
	if e.observer != nil {
		e.observer.OnRecord(rec)
	}
}

func (e *Engine) fail(report *Report, entry adapter.ListEntry, reason string) {
	report.Failed++
	metrics.ObserveEntryFailure(e.source.Name())
	report.FailedItems = append(report.FailedItems, FailedItem{
		Code:   entry.Code,
		URL:    entry.URL,
		Reason: reason,
	})
	e.logger.Warn("entry failed",
		zap.String("code", entry.Code),
		zap.String("url", entry.URL),
		zap.String("reason", reason))
	if e.observer != nil {
		e.observer.OnEntryFailed(entry.Code, entry.URL, reason)
	}
}

// buildRecord assembles the stored document. A synthetic subtitle tag
// is appended when the chosen link is subtitled but the page's own
// tags do not say so.
func (e *Engine) buildRecord(entry adapter.ListEntry, fields adapter.Fields, sel magnet.Selection) Record {
	tags := slices.Clone(fields.Tags)
	if sel.HasSubtitle && !magnet.HasMarker(tags, []string{"字幕"}) {
		tags = append(tags, "中文字幕")
	}
	return Record{
		Name:        e.task.Name,
		Title:       entry.Title,
		Code:        entry.Code,
		Magnet:      sel.URL,
		Size:        sel.Weight,
		ReleaseDate: fields.ReleaseDate,
		Duration:    fields.Duration,
		Director:    fields.Director,
		Maker:       fields.Maker,
		Series:      fields.Series,
		Rating:      fields.Rating,
		Tags:        tags,
		Actors:      fields.Actors,
	}
}

func (e *Engine) finish(report *Report) Report {
	report.FinishedAt = time.Now().UTC()
	e.logger.Info("crawl finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("subtitled", report.PreferredLanguage),
		zap.Bool("stopped", report.Stopped),
		zap.Duration("elapsed", report.Duration()))
	return *report
}
