package feed

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdeck/model"
)

var testSource = model.FeedSource{
	Identifier: "test",
	Name:       "Test Source",
	URL:        "https://example.com/rss",
}

// newTestParser pins the date fallback so parses are fully deterministic.
func newTestParser() *Parser {
	p := NewParser()
	p.now = func() time.Time {
		return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return p
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>Example</title>
<item>
  <title>First story</title>
  <link>https://example.com/first</link>
  <description><![CDATA[<p>Body &amp; more</p>]]></description>
  <pubDate>Tue, 05 Mar 2024 14:30:15 +0000</pubDate>
  <enclosure url="https://example.com/first.jpg" type="image/jpeg" length="1000"/>
</item>
<item>
  <title>Second story</title>
  <link>https://example.com/second</link>
  <description>Plain text</description>
  <pubDate>Tue, 05 Mar 2024 10:00:00 +0000</pubDate>
  <media:content url="https://example.com/second.png" type="image/png"/>
</item>
</channel>
</rss>`

func TestParser_Parse(t *testing.T) {
	items := newTestParser().Parse([]byte(sampleFeed), testSource)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "https://example.com/first", first.ID)
	assert.Equal(t, "First story", first.Title)
	assert.Equal(t, "Body & more", first.Summary)
	assert.Equal(t, "https://example.com/first.jpg", first.ImageURL)
	assert.Equal(t, "https://example.com/first", first.Link)
	assert.Equal(t, time.Date(2024, time.March, 5, 14, 30, 15, 0, time.UTC), first.PublishedAt.UTC())
	assert.Equal(t, "test", first.SourceID)
	assert.Equal(t, "Test Source", first.SourceName)
	assert.False(t, first.IsRead)

	second := items[1]
	assert.Equal(t, "Second story", second.Title)
	assert.Equal(t, "https://example.com/second.png", second.ImageURL)
}

func TestParser_Deterministic(t *testing.T) {
	a := newTestParser().Parse([]byte(sampleFeed), testSource)
	b := newTestParser().Parse([]byte(sampleFeed), testSource)
	assert.Equal(t, a, b)
}

func TestParser_DropsEmptyTitle(t *testing.T) {
	doc := `<rss><channel>
	<item><title>  </title><link>https://example.com/a</link><description>text</description></item>
	<item><title>Kept</title><link>https://example.com/b</link></item>
	</channel></rss>`

	items := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

func TestParser_GeneratesIDWithoutLink(t *testing.T) {
	doc := `<rss><channel><item><title>No link</title></item></channel></rss>`

	a := newTestParser().Parse([]byte(doc), testSource)
	b := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, a, 1)
	require.Len(t, b, 1)

	assert.NotEmpty(t, a[0].ID)
	// Link-less items never share identity across parses.
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestParser_EnclosureWinsOverMediaContent(t *testing.T) {
	doc := `<rss xmlns:media="http://search.yahoo.com/mrss/"><channel><item>
	<title>Both</title>
	<enclosure url="https://example.com/enc.jpg" type="image/jpeg"/>
	<media:content url="https://example.com/media.jpg"/>
	</item></channel></rss>`

	items := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/enc.jpg", items[0].ImageURL)
}

func TestParser_IgnoresNonImageEnclosure(t *testing.T) {
	doc := `<rss><channel><item>
	<title>Audio</title>
	<enclosure url="https://example.com/a.mp3" type="audio/mpeg"/>
	</item></channel></rss>`

	items := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ImageURL)
}

func TestParser_ImageFromDescriptionMarkup(t *testing.T) {
	doc := `<rss><channel><item>
	<title>Inline image</title>
	<description><![CDATA[<p>text</p><img src="https://example.com/inline.gif" alt="x">]]></description>
	</item></channel></rss>`

	items := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/inline.gif", items[0].ImageURL)
	assert.Equal(t, "text", items[0].Summary)
}

func TestParser_MalformedDocumentKeepsEarlierItems(t *testing.T) {
	doc := `<rss><channel>
	<item><title>Complete</title><link>https://example.com/ok</link></item>
	<item><title>Truncated`

	items := newTestParser().Parse([]byte(doc), testSource)
	require.Len(t, items, 1)
	assert.Equal(t, "Complete", items[0].Title)
}

func TestParser_EmptyInput(t *testing.T) {
	assert.Empty(t, newTestParser().Parse(nil, testSource))
	assert.Empty(t, newTestParser().Parse([]byte("not xml at all"), testSource))
}

// TestParser_SyntheticEvents drives the state machine directly, without the
// XML decoder, the way the event handlers see a document.
func TestParser_SyntheticEvents(t *testing.T) {
	p := newTestParser()
	p.reset(testSource)

	start := func(name string, attrs ...xml.Attr) {
		p.startElement(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
	}

	// Text outside any item is discarded.
	start("title")
	p.charData("Channel title")

	start("item")
	start("title")
	p.charData("Split ")
	p.charData("title")
	start("link")
	p.charData("https://example.com/x")
	start("enclosure",
		xml.Attr{Name: xml.Name{Local: "type"}, Value: "image/png"},
		xml.Attr{Name: xml.Name{Local: "url"}, Value: "https://example.com/x.png"},
	)
	p.endElement("item")

	require.Len(t, p.items, 1)
	got := p.items[0]
	assert.Equal(t, "Split title", got.Title)
	assert.Equal(t, "https://example.com/x", got.ID)
	assert.Equal(t, "https://example.com/x.png", got.ImageURL)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tags removed",
			input: "<p>Hello <b>world</b></p>",
			want:  "Hello world",
		},
		{
			name:  "entities decoded",
			input: "a &amp; b &lt;c&gt; &quot;d&quot; &#39;e&#39;&nbsp;f",
			want:  `a & b <c> "d" 'e' f`,
		},
		{
			name:  "unknown entity untouched",
			input: "x &mdash; y",
			want:  "x &mdash; y",
		},
		{
			name:  "whitespace trimmed",
			input: "  <div>text</div>  ",
			want:  "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.input))
		})
	}
}

func TestExtractImageURL(t *testing.T) {
	assert.Equal(t, "https://a.example/i.jpg",
		extractImageURL(`<p>x</p><IMG SRC='https://a.example/i.jpg'>`))
	assert.Equal(t, "", extractImageURL("<p>no image</p>"))
}
