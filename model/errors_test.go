package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NetworkError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("upsert: %w", &StorageError{Err: cause})

	var st *StorageError
	assert.ErrorAs(t, wrapped, &st)
	assert.ErrorIs(t, st, cause)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "timeout",
			err:  ErrTimeout,
			want: "internet connection",
		},
		{
			name: "wrapped timeout",
			err:  fmt.Errorf("fetch rbc: %w", ErrTimeout),
			want: "internet connection",
		},
		{
			name: "bad response",
			err:  &BadResponseError{StatusCode: 503},
			want: "503",
		},
		{
			name: "network",
			err:  &NetworkError{Err: errors.New("no route to host")},
			want: "Network error",
		},
		{
			name: "storage",
			err:  &StorageError{Err: errors.New("locked")},
			want: "Database",
		},
		{
			name: "not found",
			err:  ErrNotFound,
			want: "refresh",
		},
		{
			name: "unknown",
			err:  errors.New("whatever"),
			want: "try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, UserMessage(tt.err), tt.want)
		})
	}
}
