package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{
			name:     "7 days",
			input:    "7d",
			expected: 7 * 24 * time.Hour,
		},
		{
			name:     "2 weeks",
			input:    "2w",
			expected: 14 * 24 * time.Hour,
		},
		{
			name:     "3 months (approximated as 90 days)",
			input:    "3m",
			expected: 90 * 24 * time.Hour,
		},
		{
			name:     "1 year (approximated as 365 days)",
			input:    "1y",
			expected: 365 * 24 * time.Hour,
		},
		{
			name:    "invalid format - no number",
			input:   "d",
			wantErr: true,
		},
		{
			name:    "invalid format - no unit",
			input:   "7",
			wantErr: true,
		},
		{
			name:    "invalid unit",
			input:   "7x",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "negative number",
			input:   "-7d",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestSinceToUnixTime(t *testing.T) {
	now := time.Now()

	result, err := SinceToUnixTime("7d")
	require.NoError(t, err)
	// Allow 2 second tolerance for test execution time
	assert.InDelta(t, now.Add(-7*24*time.Hour).Unix(), result, 2)

	_, err = SinceToUnixTime("invalid")
	assert.Error(t, err)
}

func TestBuildQueryOptions(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		offset      int
		unread      bool
		since       string
		sources     []string
		expectError bool
		checkOpts   func(t *testing.T, opts QueryOptions)
	}{
		{
			name:   "basic pagination",
			limit:  20,
			offset: 40,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 20, opts.Limit)
				assert.Equal(t, 40, opts.Offset)
				assert.False(t, opts.UnreadOnly)
				assert.Nil(t, opts.SinceTime)
			},
		},
		{
			name:   "unread filter",
			unread: true,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.True(t, opts.UnreadOnly)
			},
		},
		{
			name:  "since filter",
			since: "7d",
			checkOpts: func(t *testing.T, opts QueryOptions) {
				require.NotNil(t, opts.SinceTime)
				expected := time.Now().Add(-7 * 24 * time.Hour).Unix()
				assert.InDelta(t, expected, *opts.SinceTime, 2)
			},
		},
		{
			name:    "source filter",
			sources: []string{"rbc"},
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, []string{"rbc"}, opts.Sources)
			},
		},
		{
			name:    "combined filters",
			limit:   10,
			unread:  true,
			since:   "2w",
			sources: []string{"rbc", "vedomosti"},
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 10, opts.Limit)
				assert.True(t, opts.UnreadOnly)
				assert.Len(t, opts.Sources, 2)
				require.NotNil(t, opts.SinceTime)
			},
		},
		{
			name:        "invalid since format",
			since:       "invalid",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := BuildQueryOptions(tt.limit, tt.offset, tt.unread, tt.since, tt.sources)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				if tt.checkOpts != nil {
					tt.checkOpts(t, opts)
				}
			}
		})
	}
}
