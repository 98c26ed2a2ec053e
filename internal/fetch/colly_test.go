package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"javsync/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func newTestFetcher(t *testing.T, opts Options) *Colly {
	t.Helper()
	if opts.UserAgent == "" {
		opts.UserAgent = "javsync-test"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	f, err := NewColly(opts, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><div class="item">ok</div></body></html>`))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{})
	page, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), `class="item"`)
	require.Equal(t, server.URL, page.URL)
}

func TestFetchSetsReferer(t *testing.T) {
	t.Parallel()

	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), Request{
		URL:     server.URL + "/ajax",
		Referer: "https://www.example.com/detail/1",
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.example.com/detail/1", gotReferer)
}

func TestFetchSeedsCookies(t *testing.T) {
	t.Parallel()

	var gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			gotSession = c.Value
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{
		Cookies:   []*http.Cookie{{Name: "sid", Value: "abc123", Path: "/"}},
		CookieURL: server.URL,
	})
	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, "abc123", gotSession)
}

func TestFetchReportsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{})
	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	require.ErrorContains(t, err, "503")
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, Options{})
	_, err := f.Fetch(ctx, Request{URL: server.URL})
	require.ErrorIs(t, err, context.Canceled)
}
