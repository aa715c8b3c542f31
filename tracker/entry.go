package tracker

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome recorded for one attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError, StatusPending:
		return true
	}
	return false
}

// ParseStatus validates a status read from the log.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Entry is one row of the ingestion log. Key is a chunk id or a document
// source (URL or file path).
type Entry struct {
	Key         string
	Status      Status
	Timestamp   time.Time
	Error       string
	Strategies  []string
	DocType     string
	ContentHash string
	RunID       string
}

// LogStore is the append-only persistence behind a Tracker.
// Implementations must be safe for concurrent use.
type LogStore interface {
	// Append durably adds e to the end of the log.
	Append(ctx context.Context, e Entry) error

	// Scan calls fn for every entry in append order. Scanning stops at the
	// first error returned by fn.
	Scan(ctx context.Context, fn func(Entry) error) error
}
