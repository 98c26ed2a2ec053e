package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"javsync/internal/config"
	"javsync/internal/task"
)

// newTasksCmd creates the 'tasks' subcommand, which validates the task
// list without starting a crawl.
func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Lists and validates the configured crawl tasks",
		Long: `Reads the task list file, validates every entry and prints the
resolved crawl URL for each runnable task.`,

		// Listing tasks needs no live services; this shadows the root
		// hook that would otherwise dial the store.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },

		RunE: runTasksCommand,
	}
	return cmd
}

func runTasksCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	tasks, bad, err := task.Load(cfg.Tasks.File)
	if err != nil {
		return fmt.Errorf("load task list: %w", err)
	}

	for _, berr := range bad {
		cmd.PrintErrf("invalid: %v\n", berr)
	}
	if len(tasks) == 0 && len(bad) == 0 {
		cmd.Println("task list is empty")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tKIND\tEARLY_STOP\tURL")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", t.Name, t.Source, t.Kind, t.IsSkip, t.FinalURL)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush task table: %w", err)
	}

	if len(bad) > 0 {
		return fmt.Errorf("task list has %d invalid entries", len(bad))
	}
	return nil
}
