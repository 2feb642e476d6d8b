package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		source  FeedSource
		wantErr bool
	}{
		{
			name: "valid source",
			source: FeedSource{
				Identifier: "example",
				Name:       "Example",
				URL:        "https://example.com/rss",
			},
			wantErr: false,
		},
		{
			name: "missing identifier",
			source: FeedSource{
				Name: "Example",
				URL:  "https://example.com/rss",
			},
			wantErr: true,
		},
		{
			name: "missing URL",
			source: FeedSource{
				Identifier: "example",
				Name:       "Example",
			},
			wantErr: true,
		},
		{
			name: "relative URL",
			source: FeedSource{
				Identifier: "example",
				Name:       "Example",
				URL:        "/rss/news",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSourceByID(t *testing.T) {
	src, ok := SourceByID("rbc")
	assert.True(t, ok)
	assert.Equal(t, "RBC", src.Name)

	_, ok = SourceByID("nope")
	assert.False(t, ok)
}

func TestCatalog_Valid(t *testing.T) {
	seen := make(map[string]bool)
	for _, src := range Catalog {
		assert.NoError(t, src.Validate())
		assert.False(t, seen[src.Identifier], "duplicate identifier %s", src.Identifier)
		seen[src.Identifier] = true
	}
}

func TestNewsItem_IsUnread(t *testing.T) {
	assert.True(t, NewsItem{IsRead: false}.IsUnread())
	assert.False(t, NewsItem{IsRead: true}.IsUnread())
}

func TestNewsItem_HasImage(t *testing.T) {
	assert.False(t, NewsItem{}.HasImage())
	assert.True(t, NewsItem{ImageURL: "https://example.com/a.jpg"}.HasImage())
}

func TestNewsItem_Age(t *testing.T) {
	item := NewsItem{PublishedAt: time.Now().Add(-time.Hour)}
	got := item.Age()
	delta := got - time.Hour
	if delta < 0 {
		delta = -delta
	}
	assert.Less(t, delta, time.Second)
}
