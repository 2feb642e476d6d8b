// Package opml imports and exports news sources as OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"newsdeck/model"
)

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements (feeds).
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a feed or grouping in OPML.
type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLUrl   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a stable source identifier from a feed title.
func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// Parse reads an OPML document and extracts feed sources. Grouping outlines
// are flattened; only entries with an xmlUrl become sources.
func Parse(r io.Reader) ([]model.FeedSource, error) {
	var doc OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	sources := extractSources(doc.Body.Outlines)
	for i := range sources {
		if err := sources[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", sources[i].Name, err)
		}
	}
	return sources, nil
}

// extractSources recursively collects feed outlines, depth first.
func extractSources(outlines []Outline) []model.FeedSource {
	var sources []model.FeedSource

	for _, outline := range outlines {
		if outline.XMLUrl != "" {
			name := outline.Title
			if name == "" {
				name = outline.Text
			}
			id := slugify(name)
			if id == "" {
				id = slugify(outline.XMLUrl)
			}
			sources = append(sources, model.FeedSource{
				Identifier: id,
				Name:       name,
				URL:        outline.XMLUrl,
			})
		}

		if len(outline.Outlines) > 0 {
			sources = append(sources, extractSources(outline.Outlines)...)
		}
	}

	return sources
}

// Generate writes the given sources as an OPML 2.0 document.
func Generate(w io.Writer, sources []model.FeedSource) error {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "newsdeck Subscriptions",
			DateCreated: time.Now().Format(time.RFC1123),
		},
		Body: Body{
			Outlines: []Outline{},
		},
	}

	for _, src := range sources {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Type:   "rss",
			Text:   src.Name,
			Title:  src.Name,
			XMLUrl: src.URL,
		})
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}
