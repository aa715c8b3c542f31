package storage

import (
	"context"

	"github.com/talkops-ai/tfknowledge/core"
)

// Similarity names the distance function of a vector index.
type Similarity string

const (
	SimilarityCosine    Similarity = "cosine"
	SimilarityEuclidean Similarity = "euclidean"
)

// IndexSpec describes a vector index over one property of one label.
type IndexSpec struct {
	Name       string
	Label      core.NodeLabel
	Property   string
	Dimensions int
	Similarity Similarity
}

// DefaultIndexSpec returns the cosine index on the embedding property of label.
func DefaultIndexSpec(label core.NodeLabel, dimensions int) IndexSpec {
	return IndexSpec{
		Name:       string(label) + "_embedding_index",
		Label:      label,
		Property:   "embedding",
		Dimensions: dimensions,
		Similarity: SimilarityCosine,
	}
}

// Node is the persisted form of one chunk.
type Node struct {
	ID         string
	Label      core.NodeLabel
	Content    string
	Embedding  []float32
	Properties map[string]any
}

// Match is one query hit. Higher scores are more similar.
type Match struct {
	Node  *Node
	Score float32
}

// VectorStore is the graph/vector datastore contract.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// EnsureVectorIndex creates the index if it does not exist. Calling it
	// again with the same spec is a no-op.
	EnsureVectorIndex(ctx context.Context, spec IndexSpec) error

	// UpsertNodes writes every node in a single round trip. Either all nodes
	// are written or none are.
	UpsertNodes(ctx context.Context, nodes []*Node) error

	// UpsertNode creates or overwrites one node keyed by (Label, ID).
	UpsertNode(ctx context.Context, node *Node) error

	// QuerySimilar returns up to k nodes of label nearest to vector, best first.
	QuerySimilar(ctx context.Context, label core.NodeLabel, vector []float32, k int) ([]Match, error)

	// Close releases the store's resources.
	Close() error
}
