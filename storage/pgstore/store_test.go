package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/storage"
)

func TestIndexDDL(t *testing.T) {
	tests := []struct {
		name string
		spec storage.IndexSpec
		want string
	}{
		{
			name: "cosine",
			spec: storage.DefaultIndexSpec(core.NodeLabelResource, 1536),
			want: `CREATE INDEX IF NOT EXISTS "DocChunk_Resource_embedding_index" ON "doc_chunks" USING hnsw ((embedding::vector(1536)) vector_cosine_ops) WHERE label = 'DocChunk_Resource'`,
		},
		{
			name: "euclidean",
			spec: storage.IndexSpec{Name: "idx", Label: "it's", Dimensions: 3, Similarity: storage.SimilarityEuclidean},
			want: `CREATE INDEX IF NOT EXISTS "idx" ON "doc_chunks" USING hnsw ((embedding::vector(3)) vector_l2_ops) WHERE label = 'it''s'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indexDDL(DefaultTable, tt.spec))
		})
	}
}

func TestQuerySQL(t *testing.T) {
	spec := storage.DefaultIndexSpec(core.NodeLabelResource, 8)
	q := querySQL(DefaultTable, &spec)
	assert.Contains(t, q, "(embedding::vector(8)) <=> $1 AS distance")
	assert.Contains(t, q, "ORDER BY (embedding::vector(8)) <=> $1")
	assert.Contains(t, q, "LIMIT $3")

	q = querySQL(DefaultTable, nil)
	assert.Contains(t, q, "embedding <=> $1")

	spec.Similarity = storage.SimilarityEuclidean
	assert.Contains(t, querySQL(DefaultTable, &spec), "<-> $1")
}

func TestScoreFromDistance(t *testing.T) {
	assert.InDelta(t, 1.0, scoreFromDistance(storage.SimilarityCosine, 0), 1e-6)
	assert.InDelta(t, 0.25, scoreFromDistance(storage.SimilarityCosine, 0.75), 1e-6)
	assert.InDelta(t, 0.5, scoreFromDistance(storage.SimilarityEuclidean, 1), 1e-6)
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, validateSpec(storage.DefaultIndexSpec(core.NodeLabelGeneric, 4)))
	assert.ErrorIs(t, validateSpec(storage.IndexSpec{Label: "x", Dimensions: 4, Similarity: storage.SimilarityCosine}), storage.ErrInvalidIndex)
	assert.ErrorIs(t, validateSpec(storage.DefaultIndexSpec(core.NodeLabelGeneric, -1)), storage.ErrInvalidIndex)
}

func TestNew_RequiresPool(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, storage.ErrStoreRequired)
}

// openTestStore connects to TFK_TEST_DATABASE_URL using a per-test table.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TFK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TFK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	table := fmt.Sprintf("doc_chunks_test_%d", os.Getpid())
	s, err := Open(ctx, url, WithTable(table))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s, %s", table, table+"_indexes"))
		s.Close()
	})
	return s
}

func TestStore_Integration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	spec := storage.DefaultIndexSpec(core.NodeLabelResource, 2)
	spec.Name = s.table + "_resource_idx"

	require.NoError(t, s.EnsureVectorIndex(ctx, spec))
	require.NoError(t, s.EnsureVectorIndex(ctx, spec))

	require.NoError(t, s.UpsertNodes(ctx, []*storage.Node{
		{ID: "east", Label: core.NodeLabelResource, Content: "e", Embedding: []float32{1, 0}, Properties: map[string]any{"chunk_index": 0}},
		{ID: "north", Label: core.NodeLabelResource, Content: "n", Embedding: []float32{0, 1}},
	}))
	require.NoError(t, s.UpsertNode(ctx, &storage.Node{ID: "east", Label: core.NodeLabelResource, Content: "east again", Embedding: []float32{1, 0}}))

	err := s.UpsertNode(ctx, &storage.Node{ID: "bad", Label: core.NodeLabelResource, Embedding: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	matches, err := s.QuerySimilar(ctx, core.NodeLabelResource, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "east", matches[0].Node.ID)
	assert.Equal(t, "east again", matches[0].Node.Content)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
}
