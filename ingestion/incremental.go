package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/extraction"
	"github.com/talkops-ai/tfknowledge/tracker"
)

// Persister stores the record extracted from one chunk.
type Persister interface {
	Persist(ctx context.Context, chunk core.Chunk, rec core.Record) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, chunk core.Chunk, rec core.Record) error

// Persist calls f.
func (f PersisterFunc) Persist(ctx context.Context, chunk core.Chunk, rec core.Record) error {
	return f(ctx, chunk, rec)
}

// ChunkOutcome is what happened to one pending chunk.
type ChunkOutcome struct {
	Chunk  core.Chunk
	Status tracker.Status
	Record core.Record
	Err    error
}

// Report summarizes one Process call.
type Report struct {
	Candidates int
	Skipped    int
	Outcomes   []ChunkOutcome

	// LogErrors counts outcomes that could not be appended to the log.
	LogErrors int
}

// Succeeded returns the number of chunks persisted.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == tracker.StatusSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of chunks that produced no persisted record.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Incremental runs mode-driven extraction over the chunks the tracker has
// not yet seen succeed.
type Incremental struct {
	pipeline  *extraction.Pipeline
	tracker   *tracker.Tracker
	persister Persister
	mode      Mode
	rule      extraction.RuleFunc
	strategy  extraction.Strategy
	docType   core.DocType
	logger    *slog.Logger
}

// Option configures an Incremental.
type Option func(*Incremental) error

// WithMode sets the processing mode. Default is llm.
func WithMode(mode Mode) Option {
	return func(in *Incremental) error {
		m, err := ParseMode(string(mode))
		if err != nil {
			return err
		}
		in.mode = m
		return nil
	}
}

// WithRule sets the rule extractor used by rule and both modes.
func WithRule(rule extraction.RuleFunc) Option {
	return func(in *Incremental) error {
		in.rule = rule
		return nil
	}
}

// WithStrategy sets the concurrency strategy for llm and both modes.
// Default is extraction.Parallel(4).
func WithStrategy(strategy extraction.Strategy) Option {
	return func(in *Incremental) error {
		if strategy != nil {
			in.strategy = strategy
		}
		return nil
	}
}

// WithDocType sets the document type recorded in log entries.
func WithDocType(docType core.DocType) Option {
	return func(in *Incremental) error {
		in.docType = docType
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Incremental) error {
		if logger != nil {
			in.logger = logger
		}
		return nil
	}
}

// NewIncremental creates an Incremental.
func NewIncremental(pipeline *extraction.Pipeline, tr *tracker.Tracker, persister Persister, opts ...Option) (*Incremental, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if tr == nil {
		return nil, ErrTrackerRequired
	}
	if persister == nil {
		return nil, ErrPersisterRequired
	}

	in := &Incremental{
		pipeline:  pipeline,
		tracker:   tr,
		persister: persister,
		mode:      ModeLLM,
		strategy:  extraction.Parallel(4),
		logger:    slog.Default().With("component", "incremental-ingestion"),
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	if in.mode != ModeLLM && in.rule == nil {
		return nil, fmt.Errorf("%w: mode %s", ErrRuleRequired, in.mode)
	}
	return in, nil
}

// Mode returns the configured mode.
func (in *Incremental) Mode() Mode {
	return in.mode
}

// Process extracts, persists and logs every chunk of candidates that is not
// already ingested. Each processed chunk gets exactly one log entry, written
// after its record was persisted. The error return is reserved for failures
// reading the log; per-chunk failures are reported in the Report.
func (in *Incremental) Process(ctx context.Context, candidates []core.Chunk, schema core.SchemaKind) (*Report, error) {
	pending, err := in.tracker.Delta(ctx, candidates)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Candidates: len(candidates),
		Skipped:    len(candidates) - len(pending),
		Outcomes:   make([]ChunkOutcome, 0, len(pending)),
	}
	if len(pending) == 0 {
		in.logger.Info("nothing to ingest", "candidates", len(candidates))
		return report, nil
	}

	for i, rec := range in.extract(ctx, pending, schema) {
		out := in.persist(ctx, pending[i], rec.record, rec.err)
		if err := in.mark(ctx, out); err != nil {
			in.logger.Error("failed to log outcome", "chunk_id", out.Chunk.ID, "status", out.Status, "err", err)
			report.LogErrors++
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	in.logger.Info("incremental ingestion complete",
		"mode", in.mode,
		"schema", schema,
		"candidates", report.Candidates,
		"skipped", report.Skipped,
		"succeeded", report.Succeeded(),
		"failed", report.Failed())
	return report, nil
}

type extracted struct {
	record core.Record
	err    error
}

// extract returns one entry per chunk in input order.
func (in *Incremental) extract(ctx context.Context, chunks []core.Chunk, schema core.SchemaKind) []extracted {
	out := make([]extracted, len(chunks))
	switch in.mode {
	case ModeRule:
		for i, c := range chunks {
			rec, err := in.rule(c)
			if err != nil {
				out[i].err = err
				continue
			}
			if rec == nil {
				out[i].err = extraction.ErrNoExtraction
				continue
			}
			rec = core.Tag(rec, core.MethodRule)
			rec.Stamp(in.pipeline.Provenance(c))
			out[i].record = rec
		}
	case ModeBoth:
		for i, u := range in.pipeline.UnifiedAll(ctx, chunks, schema, in.rule, in.strategy) {
			out[i].record, out[i].err = u.Merge(in.pipeline.Threshold())
		}
	default:
		for i, r := range in.pipeline.ExtractAll(ctx, chunks, schema, in.strategy) {
			if !r.OK() {
				out[i].err = r.Err
				continue
			}
			out[i].record = core.Tag(r.Record, core.MethodLLM)
		}
	}
	return out
}

func (in *Incremental) persist(ctx context.Context, chunk core.Chunk, rec core.Record, extractErr error) ChunkOutcome {
	out := ChunkOutcome{Chunk: chunk, Record: rec, Status: tracker.StatusError}
	if extractErr != nil {
		in.logger.Warn("no record extracted", "chunk_id", chunk.ID, "err", extractErr)
		out.Err = extractErr
		return out
	}
	if err := in.persister.Persist(ctx, chunk, rec); err != nil {
		in.logger.Error("failed to persist record", "chunk_id", chunk.ID, "err", err)
		out.Err = fmt.Errorf("%w: %w", ErrPersist, err)
		return out
	}
	out.Status = tracker.StatusSuccess
	return out
}

func (in *Incremental) mark(ctx context.Context, out ChunkOutcome) error {
	opts := []tracker.EntryOption{
		tracker.WithStrategies(in.mode.Strategies()...),
		tracker.WithContentHash(out.Chunk.ContentHash()),
		tracker.WithError(out.Err),
	}
	if in.docType != "" {
		opts = append(opts, tracker.WithDocType(in.docType))
	}
	return in.tracker.MarkOutcome(ctx, out.Chunk.ID, out.Status, opts...)
}
