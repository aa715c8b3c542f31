package extraction

import (
	"fmt"

	"github.com/talkops-ai/tfknowledge/core"
)

// Outcome classifies a single extraction attempt.
type Outcome int

const (
	// Accepted: the record passed validation and cleared the confidence threshold.
	Accepted Outcome = iota
	// Rejected: the record is valid but its confidence is below the threshold.
	Rejected
	// Failed: the extractor call, parsing or schema validation failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the tagged outcome of extracting one chunk.
//
// Record is set for Accepted (stamped with provenance) and for Rejected (the
// unaccepted payload, kept for inspection). Err is set for Failed and wraps one
// of ErrExtractorCall, ErrParse or ErrSchemaValidation; for Rejected it is
// ErrLowConfidence.
type Result struct {
	Chunk   core.Chunk
	Outcome Outcome
	Record  core.Record
	Err     error
}

// OK reports whether the result carries an accepted record.
func (r Result) OK() bool {
	return r.Outcome == Accepted
}

// Reason returns a short human-readable description of a non-accepted result.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func accepted(chunk core.Chunk, rec core.Record) Result {
	return Result{Chunk: chunk, Outcome: Accepted, Record: rec}
}

func rejected(chunk core.Chunk, rec core.Record, threshold float64) Result {
	return Result{
		Chunk:   chunk,
		Outcome: Rejected,
		Record:  rec,
		Err:     fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, rec.Score(), threshold),
	}
}

func failed(chunk core.Chunk, err error) Result {
	return Result{Chunk: chunk, Outcome: Failed, Err: err}
}
