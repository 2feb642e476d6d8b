package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra payload.
var (
	ErrInvalidURL  = errors.New("invalid URL")
	ErrTimeout     = errors.New("request timed out")
	ErrNotFound    = errors.New("item not found")
	ErrInvalidated = errors.New("item no longer valid")
)

// NetworkError wraps a transport-level failure from a feed or image fetch.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// BadResponseError reports a non-2xx HTTP status from a source.
type BadResponseError struct {
	StatusCode int
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// StorageError wraps a failure on the item store path. Unlike fetch errors,
// storage errors are surfaced to the caller rather than absorbed.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UserMessage pairs an error with a short remediation hint suitable for
// display. Core code never calls this; it exists for the presentation layer.
func UserMessage(err error) string {
	var bad *BadResponseError
	var net *NetworkError
	var st *StorageError

	switch {
	case errors.Is(err, ErrTimeout):
		return "Request timed out. Please check your internet connection and try again."
	case errors.Is(err, ErrInvalidURL):
		return "The URL could not be parsed. Please try again later."
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidated):
		return "The requested item is unavailable. Please refresh the content."
	case errors.As(err, &bad):
		return fmt.Sprintf("The server returned an error (%d). Please try again later.", bad.StatusCode)
	case errors.As(err, &net):
		return "Network error. Please check your internet connection and try again."
	case errors.As(err, &st):
		return "Database operation failed. Try clearing the local data."
	default:
		return "An error occurred. Please try again."
	}
}
