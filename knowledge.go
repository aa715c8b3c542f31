// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package tfknowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/talkops-ai/tfknowledge/ai"
	"github.com/talkops-ai/tfknowledge/ai/openai"
	"github.com/talkops-ai/tfknowledge/config"
	"github.com/talkops-ai/tfknowledge/extraction"
	"github.com/talkops-ai/tfknowledge/ingestion"
	"github.com/talkops-ai/tfknowledge/loader"
	"github.com/talkops-ai/tfknowledge/orchestrator"
	"github.com/talkops-ai/tfknowledge/search"
	"github.com/talkops-ai/tfknowledge/storage"
	"github.com/talkops-ai/tfknowledge/storage/badger"
	"github.com/talkops-ai/tfknowledge/storage/pgstore"
	"github.com/talkops-ai/tfknowledge/tracker"
)

// Knowledge wires the vector store, AI provider and ingestion log described
// by a Config, and builds orchestrators and searchers on top of them.
type Knowledge struct {
	cfg      *config.Config
	store    storage.VectorStore
	backend  *badger.Backend
	provider ai.AIProvider
	logStore tracker.LogStore
	runID    string
	metrics  *orchestrator.Metrics
	progress io.Writer
	logger   *slog.Logger

	ownsStore    bool
	ownsProvider bool
}

// Option configures a Knowledge.
type Option func(*Knowledge)

// WithStore uses store instead of opening the configured backend.
// The caller keeps ownership of it.
func WithStore(store storage.VectorStore) Option {
	return func(k *Knowledge) {
		k.store = store
	}
}

// WithProvider uses provider instead of the OpenAI-compatible one.
// The caller keeps ownership of it.
func WithProvider(provider ai.AIProvider) Option {
	return func(k *Knowledge) {
		k.provider = provider
	}
}

// WithLogStore records ingestion outcomes in store instead of the configured log.
func WithLogStore(store tracker.LogStore) Option {
	return func(k *Knowledge) {
		k.logStore = store
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(k *Knowledge) {
		k.runID = id
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *orchestrator.Metrics) Option {
	return func(k *Knowledge) {
		k.metrics = m
	}
}

// WithProgress prints batch progress to w.
func WithProgress(w io.Writer) Option {
	return func(k *Knowledge) {
		k.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Knowledge) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// Open validates cfg and opens everything it describes.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Knowledge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Knowledge{
		cfg:    cfg,
		runID:  uuid.NewString(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}

	if err := k.openStore(ctx); err != nil {
		return nil, err
	}

	if k.provider == nil {
		provider, err := openai.NewProvider(&cfg.AI)
		if err != nil {
			k.Close()
			return nil, fmt.Errorf("create AI provider: %w", err)
		}
		k.provider = provider
		k.ownsProvider = true
	}

	if k.logStore == nil {
		if err := k.openLog(); err != nil {
			k.Close()
			return nil, err
		}
	}

	k.logger.Debug("knowledge base opened",
		"backend", cfg.Store.Backend,
		"log_backend", cfg.LogBackend,
		"run_id", k.runID)
	return k, nil
}

func (k *Knowledge) openStore(ctx context.Context) error {
	if k.store != nil {
		return nil
	}
	switch k.cfg.Store.Backend {
	case config.BackendPgvector:
		store, err := pgstore.Open(ctx, k.cfg.Store.DatabaseURL,
			pgstore.WithTable(k.cfg.Store.Table),
			pgstore.WithLogger(k.logger))
		if err != nil {
			return fmt.Errorf("open pgvector store: %w", err)
		}
		k.store = store
	default:
		backend, err := badger.OpenBackend(k.cfg.Store.Path, false)
		if err != nil {
			return fmt.Errorf("open badger store: %w", err)
		}
		store, err := badger.NewVectorStore(backend)
		if err != nil {
			backend.Close()
			return err
		}
		k.backend = backend
		k.store = store
	}
	k.ownsStore = true
	return nil
}

func (k *Knowledge) openLog() error {
	if k.cfg.LogBackend == config.LogBackendBadger {
		if k.backend == nil {
			return fmt.Errorf("%w: badger log backend needs a badger store opened from the configuration", config.ErrInvalidConfig)
		}
		store, err := badger.NewLogStore(k.backend)
		if err != nil {
			return err
		}
		k.logStore = store
		return nil
	}
	store, err := tracker.OpenCSVStore(k.cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open ingestion log: %w", err)
	}
	k.logStore = store
	return nil
}

// Close releases the resources Open acquired.
func (k *Knowledge) Close() error {
	if k.ownsProvider && k.provider != nil {
		if err := k.provider.Close(); err != nil {
			k.logger.Error("error closing AI provider", "err", err)
		}
	}

	if !k.ownsStore || k.store == nil {
		return nil
	}
	if err := k.store.Close(); err != nil {
		k.logger.Error("error closing vector store", "err", err)
		return err
	}
	if k.backend != nil {
		if err := k.backend.Close(); err != nil {
			k.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

// Config returns the validated configuration.
func (k *Knowledge) Config() *config.Config {
	return k.cfg
}

// Store returns the vector store.
func (k *Knowledge) Store() storage.VectorStore {
	return k.store
}

// RunID returns the id stamped into every log entry of this run.
func (k *Knowledge) RunID() string {
	return k.runID
}

// NewTracker returns a tracker over the ingestion log. Passing true for
// forceHashInvalidation turns content-hash invalidation on regardless of the
// configuration.
func (k *Knowledge) NewTracker(forceHashInvalidation bool) (*tracker.Tracker, error) {
	return tracker.New(k.logStore,
		tracker.WithContentHashInvalidation(forceHashInvalidation || k.cfg.Pipeline.ContentHashInvalidation),
		tracker.WithRunID(k.runID),
		tracker.WithLogger(k.logger))
}

// NewPipeline returns an extraction pipeline for the configured extractor.
func (k *Knowledge) NewPipeline(opts ...extraction.Option) (*extraction.Pipeline, error) {
	extractor := k.provider.Extractor()
	base := []extraction.Option{
		extraction.WithConfidenceThreshold(k.cfg.ConfidenceThreshold),
		extraction.WithPipelineVersion(k.cfg.Pipeline.Version),
		extraction.WithExtractorIdentity(extractor.Identity()),
		extraction.WithLogger(k.logger),
	}
	return extraction.NewPipeline(extractor, append(base, opts...)...)
}

// NewOrchestrator returns an orchestrator configured from the Config.
// Additional options are applied last.
func (k *Knowledge) NewOrchestrator(tr *tracker.Tracker, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	mode, err := ingestion.ParseMode(k.cfg.Mode)
	if err != nil {
		return nil, err
	}
	types, err := k.cfg.DocTypes()
	if err != nil {
		return nil, err
	}
	pipeline, err := k.NewPipeline()
	if err != nil {
		return nil, err
	}

	downloader := orchestrator.NewDownloader(
		orchestrator.WithMaxAttempts(k.cfg.Download.MaxAttempts),
		orchestrator.WithBaseDelay(k.cfg.Download.BaseDelay),
		orchestrator.WithTimeout(k.cfg.Download.Timeout),
		orchestrator.WithDownloadLogger(k.logger))
	splitter := loader.NewSplitter(
		loader.WithChunkSize(k.cfg.Pipeline.ChunkSize),
		loader.WithChunkOverlap(k.cfg.Pipeline.ChunkOverlap))

	base := []orchestrator.Option{
		orchestrator.WithPipeline(pipeline),
		orchestrator.WithMode(mode),
		orchestrator.WithBestPracticeDelay(k.cfg.Pipeline.BestPracticeDelay),
		orchestrator.WithMaxConcurrency(k.cfg.Pipeline.MaxConcurrency),
		orchestrator.WithBatchSize(k.cfg.BatchSize),
		orchestrator.WithDimensions(k.cfg.Store.Dimensions),
		orchestrator.WithSimilarity(storage.Similarity(k.cfg.Store.Similarity)),
		orchestrator.WithFilter(orchestrator.Filter{Types: types, Services: k.cfg.FilterServices}),
		orchestrator.WithDownloader(downloader),
		orchestrator.WithSplitter(splitter),
		orchestrator.WithLogger(k.logger),
	}
	if k.cfg.Download.RawBaseURL != "" {
		base = append(base, orchestrator.WithRawBaseURL(k.cfg.Download.RawBaseURL))
	}
	if k.metrics != nil {
		base = append(base, orchestrator.WithMetrics(k.metrics))
	}
	if k.progress != nil {
		base = append(base, orchestrator.WithProgress(k.progress))
	}
	return orchestrator.New(k.store, k.provider, tr, append(base, opts...)...)
}

// Sources returns the configured index and scan directories.
func (k *Knowledge) Sources() orchestrator.Sources {
	return orchestrator.Sources{
		IndexPath: k.cfg.IndexPath,
		ScanDirs:  k.cfg.ScanDirs,
	}
}

// Ingest ensures the vector indexes exist and runs one ingestion over sources.
func (k *Knowledge) Ingest(ctx context.Context, sources orchestrator.Sources) (*orchestrator.Summary, error) {
	tr, err := k.NewTracker(false)
	if err != nil {
		return nil, err
	}
	orch, err := k.NewOrchestrator(tr)
	if err != nil {
		return nil, err
	}
	if err := orch.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return orch.Run(ctx, sources)
}

// Watch ingests best-practice and README files under roots as they change,
// until ctx is cancelled. Content-hash invalidation is always on so edited
// files are picked up.
func (k *Knowledge) Watch(ctx context.Context, roots []string, opts ...orchestrator.WatcherOption) error {
	tr, err := k.NewTracker(true)
	if err != nil {
		return err
	}
	orch, err := k.NewOrchestrator(tr)
	if err != nil {
		return err
	}
	if err := orch.EnsureIndexes(ctx); err != nil {
		return err
	}
	return orchestrator.NewWatcher(orch, roots, append([]orchestrator.WatcherOption{orchestrator.WithWatcherLogger(k.logger)}, opts...)...).Run(ctx)
}

// NewSearcher returns a searcher using the configured threshold and node types.
func (k *Knowledge) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	labels, err := search.ParseNodeTypes(k.cfg.Search.NodeTypes)
	if err != nil {
		return nil, err
	}
	base := []search.Option{
		search.WithThreshold(k.cfg.Search.Threshold),
		search.WithLabels(labels...),
		search.WithLogger(k.logger),
	}
	return search.NewSearcher(k.store, k.provider.Embedder(), append(base, opts...)...)
}

// Status replays the ingestion log.
func (k *Knowledge) Status(ctx context.Context) (*tracker.Snapshot, error) {
	tr, err := k.NewTracker(false)
	if err != nil {
		return nil, err
	}
	return tr.Replay(ctx)
}
