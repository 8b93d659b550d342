// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
	"github.com/JakeFAU/guide-quotes/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	// Timeout bounds a single request. Zero leaves requests unbounded.
	Timeout time.Duration
	Headers http.Header
}

// Fetcher implements harvest.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// canceledLabel marks fetches abandoned because the caller's context ended.
const canceledLabel = "canceled"

var errCanceled = errors.New("colly fetch canceled")

// visitResult carries a finished visit back to Fetch.
type visitResult struct {
	state fetchState
	err   error
}

// fetchState collects what the hooks observed during one visit.
type fetchState struct {
	page     harvest.Page
	status   int
	fetchErr error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	// Every harvest revisits the same pages, so the visited set must not block them.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.Page, error) {
	collector := f.baseCollector.Clone()
	state, err := f.runCollector(ctx, collector, url)
	if errors.Is(err, errCanceled) {
		metrics.ObserveFetch(url, canceledLabel, 0)
		return harvest.Page{}, &harvest.FetchError{URL: url, Err: err}
	}
	if err != nil {
		metrics.ObserveFetch(url, statusLabel(state.status), 0)
		return harvest.Page{}, &harvest.FetchError{URL: url, StatusCode: state.status, Err: err}
	}
	metrics.ObserveFetch(url, statusLabel(state.page.StatusCode), len(state.page.Body))
	return state.page, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.status = r.StatusCode
		state.page = harvest.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			state.status = r.StatusCode
		}
		state.fetchErr = err
	})
}

// runCollector visits url on its own goroutine. The hooks only touch the
// goroutine's state; a copy is handed back once Visit returns, so an
// abandoned visit never races with the caller.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) (fetchState, error) {
	done := make(chan visitResult, 1)
	go func() {
		state := &fetchState{}
		f.configureCollectorHooks(collector, state)
		err := collector.Visit(url)
		done <- visitResult{state: *state, err: err}
	}()

	select {
	case <-ctx.Done():
		return fetchState{}, fmt.Errorf("%w: %w", errCanceled, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return res.state, fmt.Errorf("colly visit failed: %w", res.err)
		}
		if res.state.fetchErr != nil {
			return res.state, fmt.Errorf("colly response failed: %w", res.state.fetchErr)
		}
		if res.state.page.StatusCode == 0 {
			return res.state, errors.New("colly returned no response")
		}
		return res.state, nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	if f.cfg.Headers == nil {
		return
	}
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
