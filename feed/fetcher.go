// Package feed provides RSS fetching and parsing for newsdeck: a streaming
// parser state machine, pubDate normalization, and a concurrent fetch
// orchestrator that fans out across configured sources.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"newsdeck/model"
)

const defaultFetchTimeout = 30 * time.Second

// Fetcher downloads and parses configured sources.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewFetcher creates a Fetcher with the default per-source timeout.
func NewFetcher(log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		timeout: defaultFetchTimeout,
		log:     log,
	}
}

// FetchOne retrieves and parses a single source. Non-2xx statuses and
// transport failures are errors here; FetchAll treats them as per-source
// failures, never batch failures.
func (f *Fetcher) FetchOne(ctx context.Context, src model.FeedSource) ([]model.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidURL, src.URL)
	}
	// Always hit the network; never accept a stale intermediary copy.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.ErrTimeout
		}
		return nil, &model.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.BadResponseError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.NetworkError{Err: err}
	}

	return NewParser().Parse(data, src), nil
}

// FetchAll issues one fetch per source in parallel and returns the union
// sorted by publication time, newest first. A failing source contributes
// nothing and is logged, not escalated; the sort is stable, so items with
// equal timestamps keep catalog order. Callers get the fully merged batch
// only after every source has settled.
func (f *Fetcher) FetchAll(ctx context.Context, sources []model.FeedSource) []model.NewsItem {
	if len(sources) == 0 {
		return nil
	}

	results := make([][]model.NewsItem, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src model.FeedSource) {
			defer wg.Done()
			items, err := f.FetchOne(ctx, src)
			if err != nil {
				f.log.Warnw("fetch failed", "source", src.Identifier, "error", err)
				return
			}
			results[i] = items
		}(i, src)
	}
	wg.Wait()

	var all []model.NewsItem
	for _, items := range results {
		all = append(all, items...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	return all
}
