package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrDownload indicates a remote document could not be fetched.
	ErrDownload = errors.New("download failed")

	// ErrBodyTooLarge indicates a remote document exceeded the download size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrStoreRequired is returned when an orchestrator is built without a vector store.
	ErrStoreRequired = errors.New("vector store required")

	// ErrProviderRequired is returned when an orchestrator is built without an AI provider.
	ErrProviderRequired = errors.New("ai provider required")

	// ErrTrackerRequired is returned when an orchestrator is built without a tracker.
	ErrTrackerRequired = errors.New("tracker required")

	// ErrNoRecords indicates LLM extraction produced no accepted record for a document.
	ErrNoRecords = errors.New("no records extracted")

	// ErrInvalidAttempts is returned for a retry budget below one attempt.
	ErrInvalidAttempts = errors.New("max attempts must be greater than 0")

	// ErrInvalidIndex indicates a provider index that could not be read.
	ErrInvalidIndex = errors.New("invalid provider index")
)

// DownloadError describes a failed fetch after all attempts were used.
type DownloadError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d after %d attempt(s)", ErrDownload, e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrDownload, e.URL, e.Attempts, e.Err)
}

// Unwrap lets errors.Is match both ErrDownload and the underlying cause.
func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownload}
	}
	return []error{ErrDownload, e.Err}
}
