package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// reportCollection holds one document per crawl run, shared by all tasks.
const reportCollection = "crawl_reports"

const reportSaveTimeout = 10 * time.Second

// ReportWriter persists finished crawl reports through the store gateway.
type ReportWriter struct {
	provider Provider
	logger   *zap.Logger
}

// NewReportWriter returns a writer bound to the given backend.
func NewReportWriter(p Provider, logger *zap.Logger) *ReportWriter {
	return &ReportWriter{provider: p, logger: logger}
}

// Save stores one run's report document under its run_id. Saving is
// best-effort: failures are logged, never returned, and cancellation of
// the run context does not abandon the write.
func (w *ReportWriter) Save(ctx context.Context, doc map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportSaveTimeout)
	defer cancel()

	if _, err := w.provider.UpsertIfAbsent(ctx, reportCollection, doc, "run_id"); err != nil {
		w.logger.Warn("persist crawl report",
			zap.Any("run_id", doc["run_id"]),
			zap.Error(err))
	}
}
