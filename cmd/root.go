package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/app"
	"javsync/internal/config"
	"javsync/internal/crawler"
	"javsync/internal/runner"
	"javsync/internal/store"
)

const defaultConfigFile = "config.yaml"

var (
	cfgFile string
	dryRun  bool
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetStore() store.Provider
	GetRegistry() adapter.Registry
	GetConfig() config.Config
	NewRunner(obs crawler.Observer) *runner.Runner
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewApp(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "javsync",
		Short: "A sequential metadata crawler for javdb and javbus.",
		Long: `javsync walks the configured listing pages of javdb and javbus,
extracts the metadata and best download link for every title it finds,
and stores one document per title in MongoDB. Runs are idempotent:
titles already stored are recognized and skipped.`,

		// This hook runs AFTER flags are parsed but BEFORE the
		// subcommand's RunE, which makes it the place to build and
		// inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if dryRun {
				cfg.Store.Provider = config.StoreMemory
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default %s when present)", defaultConfigFile))

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newTasksCmd())

	return cmd
}

// configPath resolves the configuration file to load: the --config flag
// wins, otherwise config.yaml from the working directory when it
// exists, otherwise built-in defaults only.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// resolveApp retrieves the injected App from the command context.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the
// command context so a running crawl finishes its report and exits
// cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "javsync: %v\n", err)
		os.Exit(1)
	}
}
