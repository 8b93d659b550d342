package harvest

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks a network or HTTP failure while fetching a page.
	ErrFetch = errors.New("fetch failed")
	// ErrContention marks a transient "store busy" condition on write.
	ErrContention = errors.New("store busy")
	// ErrRunNotFound is returned by run stores for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)

// FetchError describes a failed page fetch. StatusCode is zero when the
// request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes both ErrFetch and the underlying cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// IsContention reports whether err is a retryable store contention error.
func IsContention(err error) bool {
	return errors.Is(err, ErrContention)
}
