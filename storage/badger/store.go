package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB. Similarity queries
// scan every node of the requested label.
type VectorStore struct {
	backend *Backend
	owned   bool
	logger  *slog.Logger

	mu      sync.RWMutex
	indexes map[core.NodeLabel]storage.IndexSpec
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore on an open backend. The caller keeps
// ownership of the backend.
func NewVectorStore(backend *Backend) (*VectorStore, error) {
	if backend == nil {
		return nil, storage.ErrStoreRequired
	}
	return &VectorStore{
		backend: backend,
		logger:  backend.logger.With("component", "badger-vector-store"),
		indexes: make(map[core.NodeLabel]storage.IndexSpec),
	}, nil
}

// OpenVectorStore opens a backend at path and wraps it. Closing the store
// closes the backend.
func OpenVectorStore(path string, inMemory bool) (*VectorStore, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	s, err := NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Backend returns the underlying backend.
func (s *VectorStore) Backend() *Backend {
	return s.backend
}

// Close closes the backend if the store opened it.
func (s *VectorStore) Close() error {
	if s.owned && !s.backend.IsClosed() {
		return s.backend.Close()
	}
	return nil
}

// EnsureVectorIndex persists spec for its label. An existing index with the
// same dimensions and similarity is left untouched.
func (s *VectorStore) EnsureVectorIndex(ctx context.Context, spec storage.IndexSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readIndex(tx, spec.Label)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Dimensions != spec.Dimensions || existing.Similarity != spec.Similarity {
				return fmt.Errorf("%w: %s already exists with %d dimensions (%s)",
					storage.ErrInvalidIndex, existing.Name, existing.Dimensions, existing.Similarity)
			}
			s.indexes[spec.Label] = *existing
			return nil
		}

		data, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		if err := tx.Set(makeIndexKey(spec.Label), data); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.indexes[spec.Label] = spec
		s.logger.Info("created vector index", "index", spec.Name, "label", spec.Label, "dimensions", spec.Dimensions)
		return nil
	}, true)
	return err
}

// UpsertNodes writes nodes in a single transaction.
func (s *VectorStore) UpsertNodes(ctx context.Context, nodes []*storage.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, n := range nodes {
			if err := s.putNode(tx, n); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// UpsertNode writes one node.
func (s *VectorStore) UpsertNode(ctx context.Context, node *storage.Node) error {
	return s.UpsertNodes(ctx, []*storage.Node{node})
}

func (s *VectorStore) putNode(tx *badger.Txn, n *storage.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: node without id", storage.ErrStoreWrite)
	}
	spec, err := s.indexFor(tx, n.Label)
	if err != nil {
		return err
	}
	if spec != nil && len(n.Embedding) > 0 && len(n.Embedding) != spec.Dimensions {
		return &storage.DimensionMismatchError{ID: n.ID, Expected: spec.Dimensions, Got: len(n.Embedding)}
	}
	value, err := storage.MarshalNode(n)
	if err != nil {
		return err
	}
	return tx.Set(makeNodeKey(n.Label, n.ID), value)
}

// GetNode retrieves a node by label and id.
func (s *VectorStore) GetNode(ctx context.Context, label core.NodeLabel, id string) (*storage.Node, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var node *storage.Node
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeNodeKey(label, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			node, err = storage.UnmarshalNode(val)
			return err
		})
	}, false)
	return node, err
}

// CountNodes returns the number of nodes stored under label.
func (s *VectorStore) CountNodes(ctx context.Context, label core.NodeLabel) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeLabelPrefix(label)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// QuerySimilar scores every embedded node of label against vector using the
// label's index similarity, cosine when no index exists.
func (s *VectorStore) QuerySimilar(ctx context.Context, label core.NodeLabel, vector []float32, k int) ([]storage.Match, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, fmt.Errorf("%w: k=%d, vector length %d", storage.ErrInvalidQuery, k, len(vector))
	}
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var results []storage.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		spec, err := s.indexFor(tx, label)
		if err != nil {
			return err
		}
		similarity := storage.SimilarityCosine
		if spec != nil {
			if len(vector) != spec.Dimensions {
				return &storage.DimensionMismatchError{Expected: spec.Dimensions, Got: len(vector)}
			}
			similarity = spec.Similarity
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeLabelPrefix(label)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var node *storage.Node
			err := iter.Item().Value(func(val []byte) error {
				var err error
				node, err = storage.UnmarshalNode(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(node.Embedding) == 0 {
				continue
			}
			results = append(results, storage.Match{
				Node:  node,
				Score: similarity.Score(vector, node.Embedding),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b storage.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// indexFor returns the index of label, loading it from tx on a cache miss.
func (s *VectorStore) indexFor(tx *badger.Txn, label core.NodeLabel) (*storage.IndexSpec, error) {
	s.mu.RLock()
	spec, ok := s.indexes[label]
	s.mu.RUnlock()
	if ok {
		return &spec, nil
	}
	return readIndex(tx, label)
}

func readIndex(tx *badger.Txn, label core.NodeLabel) (*storage.IndexSpec, error) {
	item, err := tx.Get(makeIndexKey(label))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var spec storage.IndexSpec
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &spec)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return &spec, nil
}

func validateSpec(spec storage.IndexSpec) error {
	switch {
	case spec.Label == "":
		return fmt.Errorf("%w: label is required", storage.ErrInvalidIndex)
	case spec.Dimensions <= 0:
		return fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidIndex)
	case !spec.Similarity.Valid():
		return fmt.Errorf("%w: unsupported similarity %q", storage.ErrInvalidIndex, spec.Similarity)
	}
	return nil
}
