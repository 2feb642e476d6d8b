package feed

import (
	"context"

	"github.com/mmcdole/gofeed"

	"newsdeck/model"
)

// CheckSource verifies that a source serves a well-formed feed and returns
// its advertised title. Unlike the ingestion path, which degrades silently,
// a health check reports parse failures so the operator can see them.
func (f *Fetcher) CheckSource(ctx context.Context, src model.FeedSource) (string, error) {
	if err := src.Validate(); err != nil {
		return "", model.ErrInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = f.client
	parsed, err := fp.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return "", &model.NetworkError{Err: err}
	}

	title := parsed.Title
	if title == "" {
		title = src.URL
	}
	return title, nil
}
