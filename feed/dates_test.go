package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRSSDate_KnownFormats(t *testing.T) {
	want := time.Date(2024, time.March, 5, 14, 30, 15, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc822 numeric offset",
			input: "Tue, 05 Mar 2024 14:30:15 +0000",
			want:  want,
		},
		{
			name:  "rfc822 positive offset",
			input: "Tue, 05 Mar 2024 17:30:15 +0300",
			want:  want,
		},
		{
			name:  "rfc822 zone name",
			input: "Tue, 05 Mar 2024 14:30:15 GMT",
			want:  want,
		},
		{
			name:  "iso8601",
			input: "2024-03-05T14:30:15Z",
			want:  want,
		},
		{
			name:  "iso8601 fractional",
			input: "2024-03-05T14:30:15.250Z",
			want:  want.Add(250 * time.Millisecond),
		},
		{
			name:  "day month year with offset",
			input: "05 Mar 2024 14:30:15 +0000",
			want:  want,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRSSDate(tt.input)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseRSSDate_FallsBackToNow(t *testing.T) {
	fixed := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	for _, input := range []string{"", "yesterday", "2024/03/05", "Tue 05 Mar"} {
		got := parseRSSDateAt(input, clock)
		assert.True(t, got.Equal(fixed), "input %q: got %v", input, got)
	}
}

func TestParseRSSDate_UnrecognizedIsRoughlyNow(t *testing.T) {
	before := time.Now()
	got := ParseRSSDate("not a date")
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
