package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talkops-ai/tfknowledge/core"
)

// DefaultBatchSize is the number of nodes per bulk upsert.
const DefaultBatchSize = 100

// ItemFailure records a node that could not be written even on its own.
type ItemFailure struct {
	ID  string
	Err error
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	Written   []string
	Failed    []ItemFailure
	Batches   int
	Fallbacks int
}

// BatchIngestor writes chunks into a VectorStore in bulk, falling back to
// per-item writes for any batch whose bulk write fails.
type BatchIngestor struct {
	store      VectorStore
	batchSize  int
	dimensions int
	logger     *slog.Logger
}

// IngestorOption configures a BatchIngestor.
type IngestorOption func(*BatchIngestor)

// WithBatchSize sets the number of nodes per bulk write. Values below 1 are ignored.
func WithBatchSize(n int) IngestorOption {
	return func(b *BatchIngestor) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithDimensions sets the vector width every embedding must have. When unset,
// all embeddings of one call must share the width of the first.
func WithDimensions(n int) IngestorOption {
	return func(b *BatchIngestor) {
		b.dimensions = n
	}
}

// WithIngestorLogger sets a custom logger.
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(b *BatchIngestor) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatchIngestor creates a BatchIngestor over store.
func NewBatchIngestor(store VectorStore, opts ...IngestorOption) (*BatchIngestor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	b := &BatchIngestor{
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "batch-ingestor"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Ingest writes chunks as nodes labelled label. embeddings may be nil; if not,
// it must hold one vector per chunk of the configured width. Violations are
// returned before any write. Individual write failures are recorded in the
// report, not returned as an error; the error return is reserved for invalid
// input and cancellation.
func (b *BatchIngestor) Ingest(ctx context.Context, chunks []core.Chunk, embeddings [][]float32, label core.NodeLabel) (*IngestReport, error) {
	if err := b.validate(chunks, embeddings); err != nil {
		return nil, err
	}

	report := &IngestReport{Written: make([]string, 0, len(chunks))}
	for start := 0; start < len(chunks); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+b.batchSize, len(chunks))

		nodes := make([]*Node, 0, end-start)
		for i := start; i < end; i++ {
			var vec []float32
			if embeddings != nil {
				vec = embeddings[i]
			}
			nodes = append(nodes, NewNode(chunks[i], vec, label))
		}

		report.Batches++
		err := b.store.UpsertNodes(ctx, nodes)
		if err == nil {
			for _, n := range nodes {
				report.Written = append(report.Written, n.ID)
			}
			continue
		}
		b.logger.Warn("bulk write failed, retrying items individually",
			"label", label, "batch_start", start, "batch_size", len(nodes), "err", err)

		report.Fallbacks++
		for _, n := range nodes {
			if err := b.store.UpsertNode(ctx, n); err != nil {
				b.logger.Error("item write failed, skipping", "chunk_id", n.ID, "label", label, "err", err)
				report.Failed = append(report.Failed, ItemFailure{ID: n.ID, Err: fmt.Errorf("%w: %w", ErrStoreWrite, err)})
				continue
			}
			report.Written = append(report.Written, n.ID)
		}
	}

	b.logger.Info("ingested chunks",
		"label", label,
		"written", len(report.Written),
		"failed", len(report.Failed),
		"batches", report.Batches,
		"fallbacks", report.Fallbacks)
	return report, nil
}

func (b *BatchIngestor) validate(chunks []core.Chunk, embeddings [][]float32) error {
	if embeddings == nil {
		return nil
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: %d embeddings for %d chunks", ErrEmbeddingCount, len(embeddings), len(chunks))
	}
	want := b.dimensions
	if want == 0 && len(embeddings) > 0 {
		want = len(embeddings[0])
	}
	for i, vec := range embeddings {
		if len(vec) != want {
			return &DimensionMismatchError{ID: chunks[i].ID, Expected: want, Got: len(vec)}
		}
	}
	return nil
}

// NewNode builds the node for chunk.
func NewNode(chunk core.Chunk, embedding []float32, label core.NodeLabel) *Node {
	props := chunk.Metadata.Properties()
	props["content_hash"] = chunk.ContentHash()
	return &Node{
		ID:         chunk.ID,
		Label:      label,
		Content:    chunk.Text,
		Embedding:  embedding,
		Properties: props,
	}
}
