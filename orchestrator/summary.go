package orchestrator

import (
	"time"
)

// State is a step in a document's lifecycle.
type State string

const (
	StateDiscovered   State = "discovered"
	StateDownloaded   State = "downloaded"
	StateDeduplicated State = "deduplicated"
	StateExtracted    State = "extracted"
	StateChunked      State = "chunked"
	StateEmbedded     State = "embedded"
	StatePersisted    State = "persisted"
	StateLogged       State = "logged"
	StateSkipped      State = "skipped"
	StateFailed       State = "failed"
)

// Terminal reports whether s ends a document's lifecycle.
func (s State) Terminal() bool {
	return s == StateLogged || s == StateSkipped || s == StateFailed
}

// DocumentResult is what happened to one document.
type DocumentResult struct {
	Doc        Document
	State      State
	Strategies []string

	// Chunks is the number of chunks derived from the document; Skipped of
	// those were already in the log.
	Chunks  int
	Skipped int
	Written int
	Failed  int

	// Records is the number of extracted records, for LLM-backed types.
	Records int

	Err      error
	Duration time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Documents []DocumentResult
}

func (s *Summary) add(res DocumentResult) {
	s.Documents = append(s.Documents, res)
}

func (s *Summary) count(state State) int {
	n := 0
	for _, d := range s.Documents {
		if d.State == state {
			n++
		}
	}
	return n
}

// Succeeded returns the number of documents fully ingested.
func (s *Summary) Succeeded() int { return s.count(StateLogged) }

// Failed returns the number of documents that ended in the failed state.
func (s *Summary) Failed() int { return s.count(StateFailed) }

// Skipped returns the number of documents already ingested by an earlier run.
func (s *Summary) Skipped() int { return s.count(StateSkipped) }

// ChunksWritten returns the number of chunks written across the run.
func (s *Summary) ChunksWritten() int {
	n := 0
	for _, d := range s.Documents {
		n += d.Written
	}
	return n
}

// ChunksFailed returns the number of chunks that could not be written.
func (s *Summary) ChunksFailed() int {
	n := 0
	for _, d := range s.Documents {
		n += d.Failed
	}
	return n
}

// Failures returns the failed documents.
func (s *Summary) Failures() []DocumentResult {
	var out []DocumentResult
	for _, d := range s.Documents {
		if d.State == StateFailed {
			out = append(out, d)
		}
	}
	return out
}

// Elapsed returns the run duration.
func (s *Summary) Elapsed() time.Duration {
	return s.Finished.Sub(s.Started)
}
