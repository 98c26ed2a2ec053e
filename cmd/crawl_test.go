package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/adapter/javdb"
	"javsync/internal/config"
	"javsync/internal/crawler"
	"javsync/internal/fetch"
	"javsync/internal/metrics"
	"javsync/internal/runner"
	"javsync/internal/store"
	"javsync/internal/task"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

const emptyListHTML = `<html><body><div class="movie-list"></div></body></html>`

// fakeApp satisfies the App interface without dialing any backend. Its
// runner crawls canned empty listings so commands finish instantly.
type fakeApp struct {
	cfg    config.Config
	logger *zap.Logger
	stored store.Provider
	closed bool
	ran    []string
}

func newFakeApp() *fakeApp {
	return &fakeApp{
		logger: zap.NewNop(),
		stored: store.NewMemoryProvider(),
	}
}

func (f *fakeApp) Close() { f.closed = true }

func (f *fakeApp) GetLogger() *zap.Logger { return f.logger }

func (f *fakeApp) GetStore() store.Provider { return f.stored }

func (f *fakeApp) GetConfig() config.Config { return f.cfg }

func (f *fakeApp) GetRegistry() adapter.Registry {
	return adapter.Registry{javdb.SourceName: javdb.New()}
}

func (f *fakeApp) NewRunner(obs crawler.Observer) *runner.Runner {
	factory := func(t task.Task, src adapter.Source) (*crawler.Engine, error) {
		f.ran = append(f.ran, t.Name)
		fetcher := new(fetch.MockFetcher)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(fetch.Page{
			FinalURL:   t.FinalURL,
			StatusCode: 200,
			Body:       []byte(emptyListHTML),
		}, nil)
		return crawler.New(t, src, fetcher, f.stored, f.logger, obs), nil
	}
	reports := store.NewReportWriter(f.stored, f.logger)
	return runner.New(f.GetRegistry(), factory, reports, 0, f.logger)
}

// stubApp swaps the application factory for one returning fake and
// restores the package state afterwards.
func stubApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() {
		newApp = orig
		cfgFile = ""
		dryRun = false
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tasksPath := writeFile(t, dir, "tasks.yaml", `
tasks:
  - name: actor run
    url: https://javdb.com/actors/AbCd
    url_type: actor
  - name: code run
    url: https://javdb.com/video_codes/XYZ
    url_type: code
`)
	return writeFile(t, dir, "config.yaml", fmt.Sprintf(`
store:
  provider: memory
tasks:
  file: %s
`, tasksPath))
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestCrawlCommandRunsAllTasks(t *testing.T) {
	cfgPath := writeFixtures(t)
	fake := newFakeApp()
	stubApp(t, fake)

	_, _, err := execute(t, "crawl", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, []string{"actor run", "code run"}, fake.ran)
	require.True(t, fake.closed)
}

func TestCrawlCommandSelectsNamedTasks(t *testing.T) {
	cfgPath := writeFixtures(t)
	fake := newFakeApp()
	stubApp(t, fake)

	_, _, err := execute(t, "crawl", "--config", cfgPath, "code run")
	require.NoError(t, err)
	require.Equal(t, []string{"code run"}, fake.ran)
}

func TestCrawlCommandNoMatchingTask(t *testing.T) {
	cfgPath := writeFixtures(t)
	fake := newFakeApp()
	stubApp(t, fake)

	_, _, err := execute(t, "crawl", "--config", cfgPath, "no such task")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no runnable tasks")
}

func TestCrawlCommandDryRunForcesMemoryStore(t *testing.T) {
	cfgPath := writeFixtures(t)
	fake := newFakeApp()
	stubApp(t, fake)

	_, _, err := execute(t, "crawl", "--config", cfgPath, "--dry-run")
	require.NoError(t, err)
	require.Equal(t, config.StoreMemory, fake.cfg.Store.Provider)
}

func TestCrawlCommandMissingConfigFile(t *testing.T) {
	fake := newFakeApp()
	stubApp(t, fake)

	_, _, err := execute(t, "crawl", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "load configuration")
	require.False(t, fake.closed)
}

func TestPrintObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := &printObserver{out: &buf}

	obs.OnRecord(crawler.Record{Code: "ABC-123", Title: "Some Title", Magnet: "magnet:?xt=urn:btih:aa"})
	obs.OnEntryFailed("DEF-456", "https://example.com/v/x", "no usable link")
	obs.OnEntryFailed("", "https://example.com/v/y", "detail fetch: 503")
	obs.OnStopped("actor run", 5)

	want := "ABC-123\tSome Title\tmagnet:?xt=urn:btih:aa\n" +
		"DEF-456\tFAILED\tno usable link\n" +
		"https://example.com/v/y\tFAILED\tdetail fetch: 503\n" +
		"actor run\tstopped after 5 consecutive duplicates\n"
	require.Equal(t, want, buf.String())
}
