package tfknowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkops-ai/tfknowledge/ai/mock"
	"github.com/talkops-ai/tfknowledge/config"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/orchestrator"
	"github.com/talkops-ai/tfknowledge/storage/badger"
	"github.com/talkops-ai/tfknowledge/tracker"
)

const dims = 8

const s3Doc = "---\n" +
	"subcategory: \"S3 (Simple Storage)\"\n" +
	"---\n" +
	"\n" +
	"# Resource: aws_s3_bucket\n" +
	"\n" +
	"Provides a S3 bucket resource.\n" +
	"\n" +
	"## Argument Reference\n" +
	"\n" +
	"* `bucket` - (Optional) Name of the bucket.\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "db")
	cfg.Store.Dimensions = dims
	cfg.LogFile = filepath.Join(dir, "ingestion_log.csv")
	cfg.Search.Threshold = 0
	return cfg
}

func writeDoc(t *testing.T) orchestrator.Sources {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s3_bucket.html.markdown")
	require.NoError(t, os.WriteFile(path, []byte(s3Doc), 0o644))
	return orchestrator.Sources{Extra: []orchestrator.Document{{Source: path, Type: core.DocTypeResource}}}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("opens badger store and csv log", func(t *testing.T) {
		cfg := testConfig(t)
		k, err := Open(ctx, cfg, WithProvider(mock.NewMockProvider(dims)), WithRunID("run-1"))
		require.NoError(t, err)

		assert.NotNil(t, k.Store())
		assert.NotNil(t, k.backend)
		assert.Equal(t, "run-1", k.RunID())
		assert.Same(t, cfg, k.Config())
		assert.DirExists(t, cfg.Store.Path)
		assert.NoError(t, k.Close())
	})

	t.Run("generates a run id", func(t *testing.T) {
		k, err := Open(ctx, testConfig(t), WithProvider(mock.NewMockProvider(dims)))
		require.NoError(t, err)
		defer k.Close()
		assert.Len(t, k.RunID(), 36)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Mode = "magic"
		_, err := Open(ctx, cfg, WithProvider(mock.NewMockProvider(dims)))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("store path is a file", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("x"), 0o644))
		_, err := Open(ctx, cfg, WithProvider(mock.NewMockProvider(dims)))
		assert.Error(t, err)
	})

	t.Run("injected store is not closed", func(t *testing.T) {
		store, _, backend, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer backend.Close()

		k, err := Open(ctx, testConfig(t),
			WithStore(store),
			WithProvider(mock.NewMockProvider(dims)),
			WithLogStore(tracker.NewMemoryStore()))
		require.NoError(t, err)
		require.NoError(t, k.Close())
		assert.False(t, backend.IsClosed())
	})

	t.Run("badger log backend needs an opened badger store", func(t *testing.T) {
		store, _, backend, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer backend.Close()

		cfg := testConfig(t)
		cfg.LogBackend = config.LogBackendBadger
		_, err = Open(ctx, cfg, WithStore(store), WithProvider(mock.NewMockProvider(dims)))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestIngestSearchStatus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	logStore := tracker.NewMemoryStore()
	provider := mock.NewMockProvider(dims)

	k, err := Open(ctx, cfg, WithProvider(provider), WithLogStore(logStore), WithRunID("run-1"))
	require.NoError(t, err)
	defer k.Close()

	summary, err := k.Ingest(ctx, writeDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, 2, summary.ChunksWritten())

	for _, e := range logStore.Entries() {
		assert.Equal(t, "run-1", e.RunID)
	}

	snapshot, err := k.Status(ctx)
	require.NoError(t, err)
	// overview and arguments chunk rows plus the document row
	assert.Equal(t, 3, snapshot.Counts()[tracker.StatusSuccess])
	assert.Empty(t, snapshot.Anomalies())

	searcher, err := k.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.Search(ctx, "s3 bucket", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "resource", r.NodeType)
	}

	// a second run skips the document
	summary, err = k.Ingest(ctx, writeDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ChunksWritten())
}

func TestBadgerLogBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.LogBackend = config.LogBackendBadger
	sources := writeDoc(t)

	k, err := Open(ctx, cfg, WithProvider(mock.NewMockProvider(dims)))
	require.NoError(t, err)
	summary, err := k.Ingest(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded())
	require.NoError(t, k.Close())
	assert.NoFileExists(t, cfg.LogFile)

	// the log survives a reopen
	k, err = Open(ctx, cfg, WithProvider(mock.NewMockProvider(dims)))
	require.NoError(t, err)
	defer k.Close()
	snapshot, err := k.Status(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.Ingested(sources.Extra[0].Source))
}

func TestNewSearcher_UnknownNodeType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.NodeTypes = []string{"module"}
	k, err := Open(context.Background(), cfg,
		WithProvider(mock.NewMockProvider(dims)),
		WithLogStore(tracker.NewMemoryStore()))
	require.NoError(t, err)
	defer k.Close()

	_, err = k.NewSearcher()
	assert.Error(t, err)
}
