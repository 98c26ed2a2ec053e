package runner_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"javsync/internal/adapter"
	"javsync/internal/adapter/javdb"
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

func testRegistry() adapter.Registry {
	return adapter.Registry{javdb.SourceName: javdb.New()}
}

func testTask(name, url string) task.Task {
	return task.Task{
		Name:     name,
		Source:   "javdb",
		URL:      url,
		Kind:     task.KindOther,
		FinalURL: url,
	}
}

// emptyListFactory builds engines whose single list page has no
// entries, so each task completes immediately.
func emptyListFactory(order *[]string) runner.EngineFactory {
	return func(t task.Task, src adapter.Source) (*crawler.Engine, error) {
		*order = append(*order, t.Name)
		f := new(fetch.MockFetcher)
		f.On("Fetch", mock.Anything, mock.Anything).
			Return(fetch.Page{URL: t.FinalURL, FinalURL: t.FinalURL, StatusCode: 200, Body: []byte("<html></html>")}, nil)
		return crawler.New(t, src, f, store.NewMemoryProvider(), zap.NewNop(), nil), nil
	}
}

func TestRunSequentialOrder(t *testing.T) {
	t.Parallel()

	var order []string
	r := runner.New(testRegistry(), emptyListFactory(&order), nil, 0, zap.NewNop())

	tasks := []task.Task{
		testTask("first", "https://javdb.com/actors/a"),
		testTask("second", "https://javdb.com/actors/b"),
		testTask("third", "https://javdb.com/actors/c"),
	}
	summary := r.Run(context.Background(), tasks)

	require.Equal(t, []string{"first", "second", "third"}, order, "tasks run strictly in list order")
	require.Equal(t, 3, summary.Planned)
	require.Equal(t, 3, summary.Succeeded)
	require.Zero(t, summary.Failed)
	require.Zero(t, summary.Skipped)
	require.Len(t, summary.Reports, 3)
}

func TestRunSkipsInvalidTasks(t *testing.T) {
	t.Parallel()

	var order []string
	r := runner.New(testRegistry(), emptyListFactory(&order), nil, 0, zap.NewNop())

	noName := testTask("", "https://javdb.com/x")
	badSource := testTask("bad-source", "https://javdb.com/x")
	badSource.Source = "javlib"
	badURL := testTask("bad-url", "ftp://javdb.com/x")

	summary := r.Run(context.Background(), []task.Task{
		noName,
		badSource,
		badURL,
		testTask("good", "https://javdb.com/actors/a"),
	})

	require.Equal(t, []string{"good"}, order)
	require.Equal(t, 4, summary.Planned)
	require.Equal(t, 3, summary.Skipped)
	require.Equal(t, 1, summary.Succeeded)
}

func TestRunFactoryErrorAdvances(t *testing.T) {
	t.Parallel()

	var order []string
	inner := emptyListFactory(&order)
	factory := func(tk task.Task, src adapter.Source) (*crawler.Engine, error) {
		if tk.Name == "broken" {
			return nil, errors.New("no fetcher for task")
		}
		return inner(tk, src)
	}

	r := runner.New(testRegistry(), factory, nil, 0, zap.NewNop())
	summary := r.Run(context.Background(), []task.Task{
		testTask("broken", "https://javdb.com/actors/a"),
		testTask("fine", "https://javdb.com/actors/b"),
	})

	require.Equal(t, []string{"fine"}, order, "a setup failure advances to the next task")
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.Succeeded)
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var built int
	inner := emptyListFactory(&[]string{})
	factory := func(tk task.Task, src adapter.Source) (*crawler.Engine, error) {
		built++
		// Simulates a signal arriving while the first task runs.
		cancel()
		return inner(tk, src)
	}

	r := runner.New(testRegistry(), factory, nil, 0, zap.NewNop())
	summary := r.Run(ctx, []task.Task{
		testTask("first", "https://javdb.com/actors/a"),
		testTask("second", "https://javdb.com/actors/b"),
	})

	require.Equal(t, 1, built, "no new task starts after cancellation")
	require.Zero(t, summary.Succeeded)
	require.Len(t, summary.Reports, 1, "the interrupted task still reports")
}

func TestRunPausesBetweenTasks(t *testing.T) {
	t.Parallel()

	var order []string
	r := runner.New(testRegistry(), emptyListFactory(&order), nil, 30*time.Millisecond, zap.NewNop())

	summary := r.Run(context.Background(), []task.Task{
		testTask("first", "https://javdb.com/actors/a"),
		testTask("second", "https://javdb.com/actors/b"),
	})

	require.Equal(t, 2, summary.Succeeded)
	require.GreaterOrEqual(t, summary.Elapsed, 30*time.Millisecond, "one pause sits between two tasks")
}

func TestRunPersistsReports(t *testing.T) {
	t.Parallel()

	m := store.NewMemoryProvider()
	var order []string
	r := runner.New(testRegistry(), emptyListFactory(&order), store.NewReportWriter(m, zap.NewNop()), 0, zap.NewNop())

	summary := r.Run(context.Background(), []task.Task{
		testTask("first", "https://javdb.com/actors/a"),
		testTask("second", "https://javdb.com/actors/b"),
	})

	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 2, m.Count("crawl_reports"), "one report document per finished task")

	doc, err := m.FindOne(context.Background(), "crawl_reports", map[string]any{"task": "first"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "javdb", doc["source"])
	require.NotEmpty(t, doc["run_id"])
}
