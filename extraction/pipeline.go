package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talkops-ai/tfknowledge/ai"
	"github.com/talkops-ai/tfknowledge/core"
)

const (
	// DefaultConfidenceThreshold is the minimum confidence for acceptance.
	DefaultConfidenceThreshold = 0.7

	// DefaultPipelineVersion is recorded in provenance when no version is configured.
	DefaultPipelineVersion = "v1.0.0"
)

// Pipeline runs chunks through prompt construction, the extractor, response
// parsing, validation and confidence gating. It is safe for concurrent use.
type Pipeline struct {
	extractor ai.Extractor
	threshold float64
	version   string
	identity  string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfidenceThreshold sets the acceptance threshold.
// Default is DefaultConfidenceThreshold.
func WithConfidenceThreshold(threshold float64) Option {
	return func(p *Pipeline) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
		}
		p.threshold = threshold
		return nil
	}
}

// WithPipelineVersion sets the version stamped into provenance.
func WithPipelineVersion(version string) Option {
	return func(p *Pipeline) error {
		p.version = version
		return nil
	}
}

// WithExtractorIdentity overrides the extractor identity stamped into provenance.
func WithExtractorIdentity(identity string) Option {
	return func(p *Pipeline) error {
		p.identity = identity
		return nil
	}
}

// WithClock sets the time source used for provenance timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an extraction pipeline around extractor.
func NewPipeline(extractor ai.Extractor, opts ...Option) (*Pipeline, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	p := &Pipeline{
		extractor: extractor,
		threshold: DefaultConfidenceThreshold,
		version:   DefaultPipelineVersion,
		identity:  extractor.Identity(),
		now:       time.Now,
		logger:    slog.Default().With("component", "extraction"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Threshold returns the configured confidence threshold.
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Provenance builds the provenance stamp for chunk at the current time.
func (p *Pipeline) Provenance(chunk core.Chunk) core.Provenance {
	return core.Provenance{
		Source:            chunk.Metadata.Source,
		ChunkID:           chunk.ID,
		ExtractionTime:    p.now().UTC(),
		ExtractorIdentity: p.identity,
		PipelineVersion:   p.version,
	}
}

// Extract runs one chunk through the pipeline.
func (p *Pipeline) Extract(ctx context.Context, chunk core.Chunk, schema core.SchemaKind) Result {
	prompt, err := BuildPrompt(chunk.Text, schema)
	if err != nil {
		return failed(chunk, err)
	}

	raw, err := p.extractor.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("extractor call failed", "chunk_id", chunk.ID, "err", err)
		return failed(chunk, fmt.Errorf("%w: %w", ErrExtractorCall, err))
	}

	rec, err := ParseResponse(raw, schema)
	if err != nil {
		p.logger.Warn("extractor response rejected", "chunk_id", chunk.ID, "err", err)
		return failed(chunk, err)
	}

	if rec.Score() < p.threshold {
		p.logger.Debug("low confidence extraction", "chunk_id", chunk.ID, "confidence", rec.Score())
		return rejected(chunk, rec, p.threshold)
	}

	rec.Stamp(p.Provenance(chunk))
	return accepted(chunk, rec)
}

// ExtractAll runs chunks under strategy and returns one Result per chunk in
// input order. A failing chunk never prevents its siblings from being processed.
func (p *Pipeline) ExtractAll(ctx context.Context, chunks []core.Chunk, schema core.SchemaKind, strategy Strategy) []Result {
	results := make([]Result, len(chunks))
	strategy.run(ctx, len(chunks),
		func(i int) { results[i] = p.Extract(ctx, chunks[i], schema) },
		func(i int, err error) { results[i] = failed(chunks[i], fmt.Errorf("%w: %w", ErrExtractorCall, err)) },
	)
	p.logBatch(strategy, results)
	return results
}

// ExtractAsync runs chunks under strategy in the background and delivers each
// Result as it completes. The channel is closed after the last result.
func (p *Pipeline) ExtractAsync(ctx context.Context, chunks []core.Chunk, schema core.SchemaKind, strategy Strategy) <-chan Result {
	out := make(chan Result, len(chunks))
	go func() {
		defer close(out)
		strategy.run(ctx, len(chunks),
			func(i int) { out <- p.Extract(ctx, chunks[i], schema) },
			func(i int, err error) { out <- failed(chunks[i], fmt.Errorf("%w: %w", ErrExtractorCall, err)) },
		)
	}()
	return out
}

func (p *Pipeline) logBatch(strategy Strategy, results []Result) {
	var ok, low, bad int
	for _, r := range results {
		switch r.Outcome {
		case Accepted:
			ok++
		case Rejected:
			low++
		case Failed:
			bad++
		}
	}
	p.logger.Info("batch extraction complete",
		"strategy", strategy.String(),
		"chunks", len(results),
		"accepted", ok,
		"rejected", low,
		"failed", bad)
}
