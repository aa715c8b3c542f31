package tracker

import "errors"

var (
	// ErrStoreRequired is returned when a tracker is built without a log store.
	ErrStoreRequired = errors.New("log store required")

	// ErrInvalidStatus is returned for a status outside success, failure, error and pending.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrEmptyKey is returned when an outcome is marked without a key.
	ErrEmptyKey = errors.New("entry key cannot be empty")

	// ErrMalformedLog is returned when the log cannot be read back.
	ErrMalformedLog = errors.New("malformed ingestion log")
)
