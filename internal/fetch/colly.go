package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"javsync/internal/metrics"
)

// Colly implements Fetcher on a shared base collector. Each request
// runs on a clone so per-request callbacks never accumulate on the
// base; the clone shares the base's cookie jar and visit history.
type Colly struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewColly constructs a configured Colly-based Fetcher.
func NewColly(opts Options, logger *zap.Logger) (*Colly, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(opts.UserAgent),
	)
	base.AllowURLRevisit = false
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ForceAttemptHTTP2:     true,
	})
	if opts.Timeout > 0 {
		base.SetRequestTimeout(opts.Timeout)
	}

	// One in-flight request per site, fixed spacing in between.
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("colly limit rule: %w", err)
	}

	if len(opts.Cookies) > 0 && opts.CookieURL != "" {
		if err := base.SetCookies(opts.CookieURL, opts.Cookies); err != nil {
			return nil, fmt.Errorf("seed cookies: %w", err)
		}
	}

	return &Colly{base: base, logger: logger}, nil
}

// Fetch retrieves a page via a clone of the base collector.
func (f *Colly) Fetch(ctx context.Context, req Request) (Page, error) {
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		metrics.ObserveRequest(r.URL.Host)
		if req.Referer != "" {
			r.Headers.Set("Referer", req.Referer)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: Page{
			URL:        req.URL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		metrics.ObserveRequestError(req.URL)
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(req.URL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.err != nil {
			return Page{}, res.err
		}
		return res.page, nil
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	page Page
	err  error
}
