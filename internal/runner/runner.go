// Package runner schedules crawl tasks strictly one after another.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/crawler"
	"javsync/internal/store"
	"javsync/internal/task"
)

// EngineFactory builds the engine for one validated task. The runner
// owns sequencing and delays; the factory owns per-task wiring such as
// cookies and fetcher construction.
type EngineFactory func(t task.Task, src adapter.Source) (*crawler.Engine, error)

// Runner executes tasks in list order with a fixed pause in between.
// Ordering and spacing are a politeness guarantee, so tasks are never
// run in parallel.
type Runner struct {
	registry adapter.Registry
	build    EngineFactory
	reports  *store.ReportWriter
	delay    time.Duration
	logger   *zap.Logger
}

// New constructs a Runner. delay is the pause inserted between tasks;
// a nil reports writer disables run-report persistence.
func New(registry adapter.Registry, build EngineFactory, reports *store.ReportWriter, delay time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		registry: registry,
		build:    build,
		reports:  reports,
		delay:    delay,
		logger:   logger,
	}
}

// Summary totals one invocation across all tasks.
type Summary struct {
	Planned   int
	Skipped   int
	Succeeded int
	Failed    int
	Stopped   int
	Records   int
	Elapsed   time.Duration
	Reports   []crawler.Report
}

// Run walks the task list. Invalid tasks are skipped with a warning,
// per-task errors advance to the next task, and cancellation stops the
// sequence cleanly; the summary always reflects what actually ran.
func (r *Runner) Run(ctx context.Context, tasks []task.Task) Summary {
	started := time.Now()
	summary := Summary{Planned: len(tasks)}

	r.logger.Info("crawl plan", zap.Int("tasks", len(tasks)))
	for i, t := range tasks {
		r.logger.Info("planned task",
			zap.String("position", fmt.Sprintf("%d/%d", i+1, len(tasks))),
			zap.String("task", t.Name),
			zap.String("source", t.Source),
			zap.String("url", t.FinalURL))
	}

	for i, t := range tasks {
		if ctx.Err() != nil {
			r.logger.Info("shutdown requested, stopping task sequence")
			break
		}

		src, err := r.validate(t)
		if err != nil {
			summary.Skipped++
			r.logger.Warn("skipping invalid task", zap.String("task", t.Name), zap.Error(err))
			continue
		}

		eng, err := r.build(t, src)
		if err != nil {
			summary.Failed++
			r.logger.Error("task setup failed", zap.String("task", t.Name), zap.Error(err))
			continue
		}

		report, err := eng.Run(ctx)
		summary.Reports = append(summary.Reports, report)
		if r.reports != nil {
			r.reports.Save(ctx, report.Document())
		}
		summary.Records += report.Succeeded
		if report.Stopped {
			summary.Stopped++
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.logger.Info("shutdown requested, abandoning task", zap.String("task", t.Name))
				break
			}
			summary.Failed++
			r.logger.Error("task failed", zap.String("task", t.Name), zap.Error(err))
			continue
		}
		summary.Succeeded++

		if i < len(tasks)-1 {
			r.pause(ctx)
		}
	}

	summary.Elapsed = time.Since(started)
	r.logger.Info("all tasks finished",
		zap.Int("planned", summary.Planned),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("stopped_early", summary.Stopped),
		zap.Int("records", summary.Records),
		zap.Duration("elapsed", summary.Elapsed))
	return summary
}

func (r *Runner) validate(t task.Task) (adapter.Source, error) {
	if t.Name == "" {
		return nil, errors.New("missing task name")
	}
	src, ok := r.registry.Lookup(t.Source)
	if !ok {
		return nil, fmt.Errorf("unsupported source %q (registered: %s)",
			t.Source, strings.Join(r.registry.Names(), ", "))
	}
	if !strings.HasPrefix(t.FinalURL, "http://") && !strings.HasPrefix(t.FinalURL, "https://") {
		return nil, fmt.Errorf("start url %q is not absolute http(s)", t.FinalURL)
	}
	return src, nil
}

func (r *Runner) pause(ctx context.Context) {
	if r.delay <= 0 {
		return
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
