// Package cmd defines and implements the CLI commands for the javsync executable.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"javsync/internal/crawler"
	"javsync/internal/task"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
// It retrieves the application instance from the context and uses it to
// run the configured tasks strictly one after another.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [task ...]",
		Short: "Runs the configured crawl tasks",
		Long: `Runs the crawl tasks from the task list file, one at a time in
file order. Naming tasks as arguments restricts the run to just those
tasks. With --dry-run nothing touches MongoDB: records go to an
in-memory store and are printed instead.`,

		RunE: runCrawlCommand,
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"crawl into an in-memory store and print records instead of persisting them")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	cfg := appInstance.GetConfig()

	tasks, bad, err := task.Load(cfg.Tasks.File)
	if err != nil {
		return fmt.Errorf("load task list: %w", err)
	}
	for _, berr := range bad {
		logger.Warn("skipping invalid task entry", zap.Error(berr))
	}
	if len(args) > 0 {
		tasks = selectTasks(tasks, args, logger)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no runnable tasks selected from %s", cfg.Tasks.File)
	}

	var obs crawler.Observer
	if dryRun {
		obs = &printObserver{out: cmd.OutOrStdout()}
	}

	summary := appInstance.NewRunner(obs).Run(cmd.Context(), tasks)

	logger.Info("crawl finished",
		zap.Int("planned", summary.Planned),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("stopped_early", summary.Stopped),
		zap.Int("records", summary.Records),
		zap.Duration("elapsed", summary.Elapsed))
	return nil
}

// selectTasks keeps the tasks named on the command line, preserving
// task-file order.
func selectTasks(tasks []task.Task, names []string, logger *zap.Logger) []task.Task {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]task.Task, 0, len(names))
	for _, t := range tasks {
		if wanted[t.Name] {
			out = append(out, t)
			delete(wanted, t.Name)
		}
	}
	for n := range wanted {
		logger.Warn("no such task in the task list", zap.String("name", n))
	}
	return out
}

// printObserver writes crawl progress to the command's stdout so a dry
// run shows what a real run would have stored.
type printObserver struct {
	out io.Writer
}

func (o *printObserver) OnRecord(rec crawler.Record) {
	fmt.Fprintf(o.out, "%s\t%s\t%s\n", rec.Code, rec.Title, rec.Magnet)
}

func (o *printObserver) OnEntryFailed(code, url, reason string) {
	if code == "" {
		code = url
	}
	fmt.Fprintf(o.out, "%s\tFAILED\t%s\n", code, reason)
}

func (o *printObserver) OnStopped(taskName string, streak int) {
	fmt.Fprintf(o.out, "%s\tstopped after %d consecutive duplicates\n", taskName, streak)
}
