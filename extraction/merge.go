package extraction

import (
	"context"
	"fmt"

	"github.com/talkops-ai/tfknowledge/core"
)

// RuleFunc extracts a record from a chunk without a model call.
type RuleFunc func(chunk core.Chunk) (core.Record, error)

// Unified holds both extraction strategies' output for one chunk. It makes no
// accept/reject decision; call Merge for that.
type Unified struct {
	Chunk core.Chunk

	// LLM is the pipeline result. Its Record is set for Accepted and Rejected.
	LLM Result

	// Rule is the rule function's record, nil when no rule ran or it failed.
	Rule    core.Record
	RuleErr error

	Provenance core.Provenance
}

// Unified runs the LLM pipeline and, when rule is non-nil, the rule function
// for chunk. The rule record is stamped with the same provenance.
func (p *Pipeline) Unified(ctx context.Context, chunk core.Chunk, schema core.SchemaKind, rule RuleFunc) Unified {
	u := Unified{
		Chunk:      chunk,
		LLM:        p.Extract(ctx, chunk, schema),
		Provenance: p.Provenance(chunk),
	}

	if rule != nil {
		rec, err := rule(chunk)
		switch {
		case err != nil:
			u.RuleErr = err
			p.logger.Warn("rule extraction failed", "chunk_id", chunk.ID, "err", err)
		case rec != nil:
			rec.Stamp(u.Provenance)
			u.Rule = rec
		}
	}
	return u
}

// UnifiedAll runs Unified for every chunk under strategy and returns the
// results in input order.
func (p *Pipeline) UnifiedAll(ctx context.Context, chunks []core.Chunk, schema core.SchemaKind, rule RuleFunc, strategy Strategy) []Unified {
	out := make([]Unified, len(chunks))
	strategy.run(ctx, len(chunks),
		func(i int) { out[i] = p.Unified(ctx, chunks[i], schema, rule) },
		func(i int, err error) {
			out[i] = Unified{
				Chunk:      chunks[i],
				LLM:        failed(chunks[i], fmt.Errorf("%w: %w", ErrExtractorCall, err)),
				Provenance: p.Provenance(chunks[i]),
			}
		},
	)
	return out
}

// Merge applies the precedence rule to the unified result at threshold.
func (u Unified) Merge(threshold float64) (core.Record, error) {
	var llm core.Record
	if u.LLM.Outcome != Failed {
		llm = u.LLM.Record
	}
	return Merge(llm, u.Rule, threshold)
}

// Merge reconciles an LLM record with a rule record for the same chunk.
//
// The LLM record wins iff its confidence is at least threshold. Its empty
// fields are then backfilled from the rule record and it is tagged "llm".
// Otherwise the rule record is returned unchanged apart from the "rule" tag.
// With neither available, Merge returns ErrNoExtraction. The inputs are not
// modified.
func Merge(llm, rule core.Record, threshold float64) (core.Record, error) {
	if llm != nil && llm.Score() >= threshold {
		merged := llm.Clone()
		if rule != nil {
			merged.Backfill(rule)
		}
		return core.Tag(merged, core.MethodLLM), nil
	}
	if rule != nil {
		return core.Tag(rule, core.MethodRule), nil
	}
	if llm != nil {
		return nil, fmt.Errorf("%w: llm confidence %.2f below %.2f and no rule result", ErrNoExtraction, llm.Score(), threshold)
	}
	return nil, ErrNoExtraction
}
