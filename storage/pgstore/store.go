package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/storage"
)

// DefaultTable is the table nodes are written to.
const DefaultTable = "doc_chunks"

const undefinedTable = "42P01"

// Store implements storage.VectorStore on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	owned  bool
	table  string
	logger *slog.Logger

	mu      sync.RWMutex
	indexes map[core.NodeLabel]storage.IndexSpec
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable sets the node table name.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an existing pool. The pool must have the pgvector types
// registered; see Open.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, storage.ErrStoreRequired
	}
	s := &Store{
		pool:    pool,
		table:   DefaultTable,
		logger:  slog.Default().With("component", "pgvector-store"),
		indexes: make(map[core.NodeLabel]storage.IndexSpec),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects to databaseURL and returns a Store that owns the pool.
// The vector extension and node table are created if missing.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	// The extension must exist before AfterConnect can register its types.
	if err := createExtension(ctx, poolCfg.ConnConfig); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s, err := New(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.Info("connected to database", "table", s.table)
	return s, nil
}

func createExtension(ctx context.Context, cfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	return nil
}

// Migrate creates the node and index tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaDDL(s.table) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the pool if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// EnsureVectorIndex records spec and creates its HNSW index. An existing index
// with the same dimensions and similarity is left untouched.
func (s *Store) EnsureVectorIndex(ctx context.Context, spec storage.IndexSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadIndex(ctx, spec.Label)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (label, name, property, dimensions, similarity) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (label) DO NOTHING`, indexTable(s.table)),
		string(spec.Label), spec.Name, spec.Property, spec.Dimensions, string(spec.Similarity)); err != nil {
		return fmt.Errorf("record index: %w", err)
	}
	if _, err := tx.Exec(ctx, indexDDL(s.table, spec)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.indexes[spec.Label] = spec
	s.logger.Info("created vector index", "index", spec.Name, "label", spec.Label, "dimensions", spec.Dimensions)
	return nil
}

// UpsertNodes writes nodes in one transaction using a single batch.
func (s *Store) UpsertNodes(ctx context.Context, nodes []*storage.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	for _, n := range nodes {
		if err := s.checkNode(ctx, n); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := upsertSQL(s.table)
	batch := &pgx.Batch{}
	for _, n := range nodes {
		props, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		var vec *pgvector.Vector
		if len(n.Embedding) > 0 {
			v := pgvector.NewVector(n.Embedding)
			vec = &v
		}
		batch.Queue(query, string(n.Label), n.ID, n.Content, vec, string(props))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec %d (%s): %w", i, nodes[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertNode writes one node.
func (s *Store) UpsertNode(ctx context.Context, node *storage.Node) error {
	return s.UpsertNodes(ctx, []*storage.Node{node})
}

func (s *Store) checkNode(ctx context.Context, n *storage.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: node without id", storage.ErrStoreWrite)
	}
	spec, err := s.indexFor(ctx, n.Label)
	if err != nil {
		return err
	}
	if spec != nil && len(n.Embedding) > 0 && len(n.Embedding) != spec.Dimensions {
		return &storage.DimensionMismatchError{ID: n.ID, Expected: spec.Dimensions, Got: len(n.Embedding)}
	}
	return nil
}

// QuerySimilar returns the k nearest embedded nodes of label using the
// label's index operator, cosine distance when no index exists.
func (s *Store) QuerySimilar(ctx context.Context, label core.NodeLabel, vector []float32, k int) ([]storage.Match, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, fmt.Errorf("%w: k=%d, vector length %d", storage.ErrInvalidQuery, k, len(vector))
	}
	spec, err := s.indexFor(ctx, label)
	if err != nil {
		return nil, err
	}
	if spec != nil && len(vector) != spec.Dimensions {
		return nil, &storage.DimensionMismatchError{Expected: spec.Dimensions, Got: len(vector)}
	}

	rows, err := s.pool.Query(ctx, querySQL(s.table, spec), pgvector.NewVector(vector), string(label), k)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	defer rows.Close()

	similarity := storage.SimilarityCosine
	if spec != nil {
		similarity = spec.Similarity
	}

	var matches []storage.Match
	for rows.Next() {
		var (
			id, content string
			vec         pgvector.Vector
			props       []byte
			distance    float64
		)
		if err := rows.Scan(&id, &content, &vec, &props, &distance); err != nil {
			return nil, err
		}
		properties, err := storage.DecodeProperties(props)
		if err != nil {
			return nil, err
		}
		matches = append(matches, storage.Match{
			Node: &storage.Node{
				ID:         id,
				Label:      label,
				Content:    content,
				Embedding:  vec.Slice(),
				Properties: properties,
			},
			Score: scoreFromDistance(similarity, distance),
		})
	}
	return matches, rows.Err()
}

// indexFor returns the recorded index of label, or nil when none exists.
func (s *Store) indexFor(ctx context.Context, label core.NodeLabel) (*storage.IndexSpec, error) {
	s.mu.RLock()
	spec, ok := s.indexes[label]
	s.mu.RUnlock()
	if ok {
		return &spec, nil
	}
	loaded, err := s.loadIndex(ctx, label)
	if err != nil || loaded == nil {
		return nil, err
	}
	s.mu.Lock()
	s.indexes[label] = *loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Store) loadIndex(ctx context.Context, label core.NodeLabel) (*storage.IndexSpec, error) {
	spec := storage.IndexSpec{Label: label}
	var similarity string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT name, property, dimensions, similarity FROM %s WHERE label = $1`, indexTable(s.table)),
		string(label)).Scan(&spec.Name, &spec.Property, &spec.Dimensions, &similarity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	spec.Similarity = storage.Similarity(similarity)
	return &spec, nil
}

func validateSpec(spec storage.IndexSpec) error {
	switch {
	case spec.Label == "":
		return fmt.Errorf("%w: label is required", storage.ErrInvalidIndex)
	case spec.Name == "":
		return fmt.Errorf("%w: name is required", storage.ErrInvalidIndex)
	case spec.Dimensions <= 0:
		return fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidIndex)
	case !spec.Similarity.Valid():
		return fmt.Errorf("%w: unsupported similarity %q", storage.ErrInvalidIndex, spec.Similarity)
	}
	return nil
}

func indexTable(table string) string {
	return pgx.Identifier{table + "_indexes"}.Sanitize()
}

func schemaDDL(table string) []string {
	t := pgx.Identifier{table}.Sanitize()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			label      TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  vector,
			properties JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (label, id)
		)`, t),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			label      TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			property   TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			similarity TEXT NOT NULL
		)`, indexTable(table)),
	}
}

func opClass(s storage.Similarity) string {
	if s == storage.SimilarityEuclidean {
		return "vector_l2_ops"
	}
	return "vector_cosine_ops"
}

func operator(s storage.Similarity) string {
	if s == storage.SimilarityEuclidean {
		return "<->"
	}
	return "<=>"
}

// indexDDL builds a partial HNSW index over the label's embeddings.
func indexDDL(table string, spec storage.IndexSpec) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw ((embedding::vector(%d)) %s) WHERE label = %s",
		pgx.Identifier{spec.Name}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
		spec.Dimensions,
		opClass(spec.Similarity),
		quoteLiteral(string(spec.Label)))
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (label, id, content, embedding, properties)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (label, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			properties = EXCLUDED.properties,
			updated_at = NOW()`, pgx.Identifier{table}.Sanitize())
}

// querySQL orders by the same expression the partial index is built on so
// the planner can use it.
func querySQL(table string, spec *storage.IndexSpec) string {
	column := "embedding"
	op := operator(storage.SimilarityCosine)
	if spec != nil {
		column = fmt.Sprintf("(embedding::vector(%d))", spec.Dimensions)
		op = operator(spec.Similarity)
	}
	return fmt.Sprintf(`
		SELECT id, content, embedding, properties, %[1]s %[2]s $1 AS distance
		FROM %[3]s
		WHERE label = $2 AND embedding IS NOT NULL
		ORDER BY %[1]s %[2]s $1
		LIMIT $3`, column, op, pgx.Identifier{table}.Sanitize())
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// scoreFromDistance converts a pgvector distance into a similarity where
// higher is better, matching storage.Similarity.Score.
func scoreFromDistance(s storage.Similarity, distance float64) float32 {
	if s == storage.SimilarityEuclidean {
		return float32(1 / (1 + distance))
	}
	return float32(1 - distance)
}
