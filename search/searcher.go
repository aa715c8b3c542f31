package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/talkops-ai/tfknowledge/ai"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/storage"
)

const (
	// DefaultTopK is the number of hits returned when the caller passes 0.
	DefaultTopK = 5
	// MaxTopK bounds the number of hits a single search may return.
	MaxTopK = 50
	// DefaultThreshold is the minimum similarity a hit must reach.
	DefaultThreshold float32 = 0.7
)

// DefaultLabels are searched when no node types are configured.
var DefaultLabels = []core.NodeLabel{
	core.NodeLabelResource,
	core.NodeLabelDataSource,
	core.NodeLabelBestPractice,
}

var nodeTypes = map[string]core.NodeLabel{
	"resource":      core.NodeLabelResource,
	"data_source":   core.NodeLabelDataSource,
	"datasource":    core.NodeLabelDataSource,
	"best_practice": core.NodeLabelBestPractice,
	"generic":       core.NodeLabelGeneric,
}

// ParseNodeTypes maps node type names (resource, data_source, best_practice,
// generic) onto store labels. Duplicates are dropped.
func ParseNodeTypes(names []string) ([]core.NodeLabel, error) {
	labels := make([]core.NodeLabel, 0, len(names))
	seen := make(map[core.NodeLabel]bool, len(names))
	for _, name := range names {
		label, ok := nodeTypes[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, name)
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// NodeType returns the user facing name of label.
func NodeType(label core.NodeLabel) string {
	switch label {
	case core.NodeLabelResource:
		return "resource"
	case core.NodeLabelDataSource:
		return "data_source"
	case core.NodeLabelBestPractice:
		return "best_practice"
	default:
		return "generic"
	}
}

// Result is one search hit.
type Result struct {
	ID         string
	NodeType   string
	Label      core.NodeLabel
	Content    string
	Score      float32
	Verbatim   bool
	Properties map[string]any
}

// Searcher runs semantic similarity search over the ingested chunks.
type Searcher struct {
	store     storage.VectorStore
	embedder  ai.Embedder
	threshold float32
	labels    []core.NodeLabel
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithThreshold sets the minimum similarity score. Must be within [0, 1].
func WithThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// WithLabels restricts the search to the given node labels.
// An empty list keeps DefaultLabels.
func WithLabels(labels ...core.NodeLabel) Option {
	return func(s *Searcher) error {
		if len(labels) > 0 {
			s.labels = labels
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:     store,
		embedder:  embedder,
		threshold: DefaultThreshold,
		labels:    DefaultLabels,
		logger:    slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Threshold returns the minimum similarity a hit must reach.
func (s *Searcher) Threshold() float32 {
	return s.threshold
}

// Search returns up to topK chunks similar to query, best first.
// A topK of 0 means DefaultTopK.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidTopK, topK, MaxTopK)
	}

	monitor.Start(query, topK)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(embedding)

	queryWords := tokenizeAndFilter(query)
	results := make([]*Result, 0, topK)
	var failures []error

	// Each label is asked for the full topK so the merge sees the global best.
	for _, label := range s.labels {
		matches, err := s.store.QuerySimilar(ctx, label, embedding, topK)
		monitor.AfterLabelSearch(label, matches, err)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, storage.ErrDimensionMismatch) || errors.Is(err, storage.ErrStorageClosed) {
				return nil, err
			}
			s.logger.Warn("search failed for label", "label", label, "err", err)
			failures = append(failures, fmt.Errorf("%s: %w", label, err))
			continue
		}

		kept := 0
		for _, match := range matches {
			if match.Node == nil {
				continue
			}
			if match.Score < s.threshold {
				monitor.BelowThreshold(match)
				continue
			}
			kept++
			results = append(results, &Result{
				ID:         match.Node.ID,
				NodeType:   NodeType(label),
				Label:      label,
				Content:    match.Node.Content,
				Score:      match.Score,
				Verbatim:   containsAllWords(match.Node.Content, queryWords),
				Properties: match.Node.Properties,
			})
		}
		s.logger.Debug("label searched", "label", label, "candidates", len(matches), "kept", kept)
	}

	if len(failures) == len(s.labels) && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Verbatim != results[j].Verbatim {
			return results[i].Verbatim
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	s.logger.Info("search completed", "query", query, "results", len(results), "threshold", s.threshold)
	return results, nil
}
