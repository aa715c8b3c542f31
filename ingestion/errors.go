package ingestion

import "errors"

var (
	// ErrPipelineRequired is returned when an extraction pipeline is not provided.
	ErrPipelineRequired = errors.New("extraction pipeline required")

	// ErrTrackerRequired is returned when a tracker is not provided.
	ErrTrackerRequired = errors.New("ingestion tracker required")

	// ErrPersisterRequired is returned when a persister is not provided.
	ErrPersisterRequired = errors.New("persister required")

	// ErrRuleRequired is returned when rule or both mode has no rule function.
	ErrRuleRequired = errors.New("rule function required")

	// ErrUnknownMode is returned for a mode other than llm, rule or both.
	ErrUnknownMode = errors.New("unknown ingestion mode")

	// ErrPersist wraps a persister failure for one chunk.
	ErrPersist = errors.New("persist failed")
)
