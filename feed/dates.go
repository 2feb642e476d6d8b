package feed

import "time"

// rssDateLayouts are tried in order against pubDate text. Feed providers are
// wildly inconsistent; this list covers RFC 822 with numeric offset or zone
// name, ISO 8601 (time.Parse takes fractional seconds under the plain
// layout), and the dayless RFC 822 variant some Russian feeds emit.
var rssDateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
	"02 Jan 2006 15:04:05 -0700",
}

// ParseRSSDate parses a textual feed timestamp into an instant. It is total:
// input matching none of the known layouts maps to the current time, keeping
// the pipeline free of per-item failure handling for a cosmetic field.
func ParseRSSDate(s string) time.Time {
	return parseRSSDateAt(s, time.Now)
}

func parseRSSDateAt(s string, now func() time.Time) time.Time {
	for _, layout := range rssDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return now()
}
