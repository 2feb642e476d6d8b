package feed

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsdeck/model"
)

// parserState tracks where the state machine is in the document. Everything
// outside an <item> element is ignored.
type parserState int

const (
	stateIdle parserState = iota
	stateInItem
)

// Parser converts raw RSS bytes into news items with a single-pass,
// event-driven state machine. The event handlers are separate from the token
// loop so tests can drive the machine with synthetic events.
//
// A Parser holds per-document accumulator state and must not be shared
// between goroutines; the orchestrator creates one per fetch.
type Parser struct {
	now func() time.Time

	state   parserState
	element string
	source  model.FeedSource
	items   []model.NewsItem

	// Per-item accumulators, reset on every <item> open tag.
	title       strings.Builder
	description strings.Builder
	link        strings.Builder
	pubDate     strings.Builder
	imageURL    string
}

// NewParser creates a Parser using the wall clock for date fallback.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse runs the state machine over one feed document. It never fails:
// malformed XML stops emission at the point of failure and items finalized
// before the error remain in the output.
func (p *Parser) Parse(data []byte, src model.FeedSource) []model.NewsItem {
	p.reset(src)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.startElement(t)
		case xml.CharData:
			p.charData(string(t))
		case xml.EndElement:
			p.endElement(t.Name.Local)
		}
	}
	return p.items
}

func (p *Parser) reset(src model.FeedSource) {
	p.source = src
	p.state = stateIdle
	p.element = ""
	p.items = nil
	p.resetItem()
}

func (p *Parser) resetItem() {
	p.title.Reset()
	p.description.Reset()
	p.link.Reset()
	p.pubDate.Reset()
	p.imageURL = ""
}

func (p *Parser) startElement(el xml.StartElement) {
	name := el.Name.Local
	p.element = name

	if name == "item" {
		p.state = stateInItem
		p.resetItem()
		return
	}
	if p.state != stateInItem {
		return
	}

	switch {
	case name == "enclosure":
		// Attribute-sourced, taken immediately: enclosures carry the URL in
		// attributes, never in text content.
		if strings.HasPrefix(attr(el, "type"), "image") {
			if u := attr(el, "url"); u != "" {
				p.imageURL = u
			}
		}
	case isMediaContent(el.Name):
		// media:content only fills the slot if an enclosure hasn't already.
		if p.imageURL == "" {
			if u := attr(el, "url"); u != "" {
				p.imageURL = u
			}
		}
	}
}

// charData appends text and CDATA content to the accumulator matching the
// current open leaf tag. Content under any other tag, or outside an item,
// is discarded.
func (p *Parser) charData(text string) {
	if p.state != stateInItem {
		return
	}
	switch p.element {
	case "title":
		p.title.WriteString(text)
	case "description":
		p.description.WriteString(text)
	case "link":
		p.link.WriteString(text)
	case "pubDate":
		p.pubDate.WriteString(text)
	}
}

func (p *Parser) endElement(name string) {
	if name != "item" || p.state != stateInItem {
		return
	}
	p.state = stateIdle

	title := strings.TrimSpace(p.title.String())
	if title == "" {
		// Title-less items are useless for display; drop silently.
		return
	}

	rawDescription := p.description.String()
	summary := stripHTML(strings.TrimSpace(rawDescription))
	link := strings.TrimSpace(p.link.String())
	published := parseRSSDateAt(strings.TrimSpace(p.pubDate.String()), p.now)

	imageURL := strings.TrimSpace(p.imageURL)
	if imageURL == "" {
		// No enclosure or media:content; fall back to the first <img> in the
		// unstripped description markup.
		imageURL = extractImageURL(rawDescription)
	}

	id := link
	if id == "" {
		id = uuid.NewString()
	}

	p.items = append(p.items, model.NewsItem{
		ID:          id,
		Title:       title,
		Summary:     summary,
		ImageURL:    imageURL,
		Link:        link,
		PublishedAt: published,
		SourceID:    p.source.Identifier,
		SourceName:  p.source.Name,
	})
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// isMediaContent matches the Media RSS content extension element whether or
// not the document declares the namespace (undeclared prefixes surface as the
// literal prefix in Name.Space).
func isMediaContent(n xml.Name) bool {
	if n.Local != "content" {
		return false
	}
	return n.Space == "media" || strings.Contains(n.Space, "search.yahoo.com/mrss")
}

var (
	tagPattern = regexp.MustCompile(`<[^>]+>`)
	imgPattern = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// stripHTML removes markup from a description and decodes the handful of
// entities feeds actually use. Unrecognized entities are left as-is; this is
// best-effort tag stripping, not sanitization.
func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(s)
}

// extractImageURL returns the src of the first <img> tag in html, or "".
func extractImageURL(html string) string {
	m := imgPattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}
