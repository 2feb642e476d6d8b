// Package model defines the core data structures for newsdeck.
package model

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// FeedSource represents a configured RSS endpoint with a stable identifier.
type FeedSource struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Name       string `json:"name" yaml:"name"`
	URL        string `json:"url" yaml:"url"`
}

// Validate checks if the source has required fields and a parsable URL.
func (s FeedSource) Validate() error {
	if s.Identifier == "" {
		return errors.New("source identifier is required")
	}
	if s.URL == "" {
		return errors.New("source URL is required")
	}
	if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, s.URL)
	}
	return nil
}

// Catalog is the built-in list of sources. Additional sources can be declared
// in the config file or imported from OPML.
var Catalog = []FeedSource{
	{Identifier: "vedomosti", Name: "Vedomosti", URL: "https://www.vedomosti.ru/rss/news"},
	{Identifier: "rbc", Name: "RBC", URL: "https://rssexport.rbc.ru/rbcnews/news/30/full.rss"},
}

// SourceByID looks a source up in the built-in catalog.
func SourceByID(id string) (FeedSource, bool) {
	for _, s := range Catalog {
		if s.Identifier == id {
			return s, true
		}
	}
	return FeedSource{}, false
}

// NewsItem is a single parsed news entry. The ID is the item's trimmed link
// when one is present, otherwise a generated token, so items from repeated
// fetches of the same feed collapse to one row on upsert.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	ImageURL    string    `json:"image_url,omitempty"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	IsRead      bool      `json:"is_read"`
}

// IsUnread returns true if the item hasn't been read.
func (n NewsItem) IsUnread() bool {
	return !n.IsRead
}

// HasImage returns true if the parser found an image URL for the item.
func (n NewsItem) HasImage() bool {
	return n.ImageURL != ""
}

// Age returns how long ago the item was published.
func (n NewsItem) Age() time.Duration {
	return time.Since(n.PublishedAt)
}

// ItemStore is the persistence contract the fetch pipeline writes into and
// the presentation layer reads from.
type ItemStore interface {
	// UpsertAll matches items by ID, overwriting everything except the read
	// flag on existing rows and inserting new rows unread.
	UpsertAll(items []NewsItem) error
	// FetchAll returns items sorted by publication time descending. A
	// non-empty sourceIDs restricts the result to those sources.
	FetchAll(sourceIDs []string) ([]NewsItem, error)
	MarkRead(id string) error
	DeleteAll() error
	Count() (int, error)
}
