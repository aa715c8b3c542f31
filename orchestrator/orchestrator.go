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


package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/talkops-ai/tfknowledge/ai"
	"github.com/talkops-ai/tfknowledge/chunker"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/extraction"
	"github.com/talkops-ai/tfknowledge/ingestion"
	"github.com/talkops-ai/tfknowledge/loader"
	"github.com/talkops-ai/tfknowledge/storage"
	"github.com/talkops-ai/tfknowledge/tracker"
)

// Strategy names recorded in the log's strategies column.
const (
	StrategyEmbedding = "embedding"
	StrategyLLM       = "llm"
)

const (
	// DefaultDimensions is the embedding width indexes are created with.
	DefaultDimensions = 1536

	// DefaultBestPracticeDelay is the minimum gap between LLM calls for one
	// best-practice document.
	DefaultBestPracticeDelay = time.Second

	// DefaultMaxConcurrency bounds parallel extraction of README chunks.
	DefaultMaxConcurrency = 4
)

// DefaultStrategies returns the strategies applied per document type.
func DefaultStrategies() map[core.DocType][]string {
	return map[core.DocType][]string{
		core.DocTypeResource:     {StrategyEmbedding},
		core.DocTypeDataSource:   {StrategyEmbedding},
		core.DocTypeBestPractice: {StrategyEmbedding, StrategyLLM},
		core.DocTypeReadme:       {StrategyEmbedding, StrategyLLM},
	}
}

// Orchestrator discovers documents and drives each one through extraction,
// chunking, embedding and persistence, logging every outcome.
// Documents are processed one at a time.
type Orchestrator struct {
	store      storage.VectorStore
	embedder   ai.Embedder
	pipeline   *extraction.Pipeline
	tracker    *tracker.Tracker
	ingestor   *storage.BatchIngestor
	chunker    *chunker.Chunker
	splitter   *loader.Splitter
	downloader *Downloader

	strategies     map[core.DocType][]string
	mode           ingestion.Mode
	bpDelay        time.Duration
	maxConcurrency int
	batchSize      int
	dimensions     int
	similarity     storage.Similarity
	rawBase        string
	filter         Filter

	metrics  *Metrics
	progress io.Writer
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPipeline sets the extraction pipeline. Default is a pipeline over the
// provider's extractor with default threshold and version.
func WithPipeline(p *extraction.Pipeline) Option {
	return func(o *Orchestrator) error {
		if p == nil {
			return extraction.ErrExtractorRequired
		}
		o.pipeline = p
		return nil
	}
}

// WithMode sets the extraction mode for best-practice and README documents.
// Default is llm.
func WithMode(mode ingestion.Mode) Option {
	return func(o *Orchestrator) error {
		m, err := ingestion.ParseMode(string(mode))
		if err != nil {
			return err
		}
		o.mode = m
		return nil
	}
}

// WithBestPracticeDelay sets the gap between LLM calls within one
// best-practice document.
func WithBestPracticeDelay(delay time.Duration) Option {
	return func(o *Orchestrator) error {
		if delay < 0 {
			return fmt.Errorf("negative best practice delay: %s", delay)
		}
		o.bpDelay = delay
		return nil
	}
}

// WithMaxConcurrency sets the worker count for README extraction.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			n = 1
		}
		o.maxConcurrency = n
		return nil
	}
}

// WithBatchSize sets the number of nodes per bulk write.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", n)
		}
		o.batchSize = n
		return nil
	}
}

// WithDimensions sets the embedding width of the store's indexes.
func WithDimensions(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("%w: dimensions %d", storage.ErrInvalidIndex, n)
		}
		o.dimensions = n
		return nil
	}
}

// WithSimilarity sets the similarity function of created indexes.
func WithSimilarity(s storage.Similarity) Option {
	return func(o *Orchestrator) error {
		if !s.Valid() {
			return fmt.Errorf("%w: similarity %q", storage.ErrInvalidIndex, s)
		}
		o.similarity = s
		return nil
	}
}

// WithRawBaseURL sets the base URL provider index assets are fetched from.
func WithRawBaseURL(base string) Option {
	return func(o *Orchestrator) error {
		if base != "" {
			o.rawBase = base
		}
		return nil
	}
}

// WithFilter restricts which discovered documents are ingested.
func WithFilter(f Filter) Option {
	return func(o *Orchestrator) error {
		o.filter = f
		return nil
	}
}

// WithStrategies overrides the strategies applied to one document type.
func WithStrategies(docType core.DocType, strategies ...string) Option {
	return func(o *Orchestrator) error {
		for _, s := range strategies {
			if s != StrategyEmbedding && s != StrategyLLM {
				return fmt.Errorf("unknown strategy %q for %s", s, docType)
			}
		}
		o.strategies[docType] = slices.Clone(strategies)
		return nil
	}
}

// WithDownloader replaces the default downloader.
func WithDownloader(d *Downloader) Option {
	return func(o *Orchestrator) error {
		if d != nil {
			o.downloader = d
		}
		return nil
	}
}

// WithSplitter replaces the default text splitter.
func WithSplitter(s *loader.Splitter) Option {
	return func(o *Orchestrator) error {
		if s != nil {
			o.splitter = s
		}
		return nil
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// WithProgress prints run progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) error {
		o.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an Orchestrator writing into store, embedding and extracting
// with provider, and logging outcomes through tr.
func New(store storage.VectorStore, provider ai.AIProvider, tr *tracker.Tracker, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if tr == nil {
		return nil, ErrTrackerRequired
	}

	o := &Orchestrator{
		store:          store,
		embedder:       provider.Embedder(),
		tracker:        tr,
		chunker:        chunker.New(),
		splitter:       loader.NewSplitter(),
		strategies:     DefaultStrategies(),
		mode:           ingestion.ModeLLM,
		bpDelay:        DefaultBestPracticeDelay,
		maxConcurrency: DefaultMaxConcurrency,
		batchSize:      storage.DefaultBatchSize,
		dimensions:     DefaultDimensions,
		similarity:     storage.SimilarityCosine,
		rawBase:        DefaultRawBaseURL,
		logger:         slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.pipeline == nil {
		p, err := extraction.NewPipeline(provider.Extractor(), extraction.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.pipeline = p
	}
	if o.downloader == nil {
		o.downloader = NewDownloader(WithDownloadLogger(o.logger))
	}

	ingestor, err := storage.NewBatchIngestor(store,
		storage.WithBatchSize(o.batchSize),
		storage.WithDimensions(o.dimensions),
		storage.WithIngestorLogger(o.logger))
	if err != nil {
		return nil, err
	}
	o.ingestor = ingestor
	return o, nil
}

// EnsureIndexes creates one vector index per node label. It is idempotent.
func (o *Orchestrator) EnsureIndexes(ctx context.Context) error {
	for _, label := range core.NodeLabels {
		spec := storage.DefaultIndexSpec(label, o.dimensions)
		spec.Similarity = o.similarity
		if err := o.store.EnsureVectorIndex(ctx, spec); err != nil {
			return fmt.Errorf("ensure index for %s: %w", label, err)
		}
	}
	o.logger.Debug("vector indexes ready", "labels", len(core.NodeLabels), "dimensions", o.dimensions)
	return nil
}

// Sources lists where a run discovers documents.
type Sources struct {
	// IndexPath is a Markdown provider index.
	IndexPath string
	// ScanDirs are scanned for best-practice and README files.
	ScanDirs []string
	// Extra documents are ingested as given.
	Extra []Document
}

// Discover collects documents from every configured source and applies the
// orchestrator's filter.
func (o *Orchestrator) Discover(sources Sources) ([]Document, error) {
	var docs []Document
	if sources.IndexPath != "" {
		found, err := LoadIndex(sources.IndexPath, o.rawBase, o.logger)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	if len(sources.ScanDirs) > 0 {
		found, err := ScanDirs(sources.ScanDirs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	docs = append(docs, sources.Extra...)

	filtered := o.filter.Apply(docs)
	o.logger.Info("discovered documents", "found", len(docs), "after_filter", len(filtered))
	return filtered, nil
}

// Run discovers documents from sources and ingests them.
func (o *Orchestrator) Run(ctx context.Context, sources Sources) (*Summary, error) {
	docs, err := o.Discover(sources)
	if err != nil {
		return nil, err
	}
	return o.BatchIngest(ctx, docs)
}

// IngestIndex ingests every asset listed in the provider index at path that
// passes the filter.
func (o *Orchestrator) IngestIndex(ctx context.Context, path string) (*Summary, error) {
	return o.Run(ctx, Sources{IndexPath: path})
}

// BatchIngest ingests docs in order. A failed document never stops the run;
// the error return is reserved for configuration errors and cancellation, in
// which case the summary covers the documents handled so far.
func (o *Orchestrator) BatchIngest(ctx context.Context, docs []Document) (*Summary, error) {
	summary := &Summary{RunID: o.tracker.RunID(), Started: time.Now()}

	var progress *ProgressTracker
	if o.progress != nil {
		progress = NewProgressTracker(o.progress, len(docs), 1)
		progress.Start()
	}

	for _, doc := range docs {
		res, err := o.IngestDocument(ctx, doc)
		summary.add(res)
		if progress != nil {
			progress.Increment(1)
		}
		if err != nil {
			summary.Finished = time.Now()
			o.logger.Error("ingestion run aborted", "source", doc.Source, "err", err)
			return summary, err
		}
	}
	if progress != nil {
		progress.Finish()
	}

	summary.Finished = time.Now()
	o.logger.Info("ingestion run complete",
		"run_id", summary.RunID,
		"documents", len(summary.Documents),
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed(),
		"skipped", summary.Skipped(),
		"chunks_written", summary.ChunksWritten(),
		"elapsed", summary.Elapsed())
	return summary, nil
}

// IngestDocument moves one document through its lifecycle. Per-document
// failures are reported in the result with state failed; the error return is
// reserved for errors that make the rest of the run pointless.
func (o *Orchestrator) IngestDocument(ctx context.Context, doc Document) (res DocumentResult, err error) {
	start := time.Now()
	res = DocumentResult{Doc: doc, State: StateDiscovered, Strategies: o.strategiesFor(doc.Type)}
	defer func() {
		res.Duration = time.Since(start)
		o.metrics.document(&res, res.Duration)
	}()
	logger := o.logger.With("source", doc.Source, "doc_type", doc.Type)

	local := doc.Source
	if IsRemote(doc.Source) {
		path, cleanup, fetchErr := o.downloader.Fetch(ctx, doc.Source)
		defer cleanup()
		o.metrics.download(fetchErr == nil)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return o.fail(ctx, logger, &res, "", ctx.Err()), ctx.Err()
			}
			logger.Warn("skipping document, download failed", "err", fetchErr)
			return o.fail(ctx, logger, &res, "", fetchErr), nil
		}
		local = path
		res.State = StateDownloaded
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return o.fail(ctx, logger, &res, "", err), nil
	}
	hash := core.ContentHash(string(data))

	done, err := o.tracker.IsIngested(ctx, doc.Source, hash)
	if err != nil {
		return res, err
	}
	if done {
		logger.Info("skipping already ingested document")
		res.State = StateSkipped
		return res, nil
	}
	res.State = StateDeduplicated
	logger.Info("ingesting document", "strategies", res.Strategies)

	switch doc.Type {
	case core.DocTypeResource, core.DocTypeDataSource:
		err = o.ingestResource(ctx, &res, data)
	case core.DocTypeBestPractice:
		err = o.ingestBestPractice(ctx, &res, local)
	case core.DocTypeReadme:
		err = o.ingestReadme(ctx, &res, local)
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownDocType, doc.Type)
	}
	if err == nil && res.Failed > 0 {
		err = fmt.Errorf("%d of %d chunks failed", res.Failed, res.Chunks)
	}
	if err != nil {
		out := o.fail(ctx, logger, &res, hash, err)
		if fatal(ctx, err) {
			return out, err
		}
		return out, nil
	}

	if markErr := o.tracker.MarkOutcome(ctx, doc.Source, tracker.StatusSuccess,
		tracker.WithStrategies(res.Strategies...),
		tracker.WithDocType(doc.Type),
		tracker.WithContentHash(hash)); markErr != nil {
		logger.Error("failed to log document outcome", "err", markErr)
		res.State = StateFailed
		res.Err = markErr
		return res, nil
	}
	res.State = StateLogged
	logger.Info("document ingested",
		"chunks", res.Chunks, "written", res.Written, "skipped_chunks", res.Skipped, "records", res.Records)
	return res, nil
}

func (o *Orchestrator) strategiesFor(docType core.DocType) []string {
	return slices.Clone(o.strategies[docType])
}

func (o *Orchestrator) uses(res *DocumentResult, strategy string) bool {
	return slices.Contains(res.Strategies, strategy)
}

// fail records a failure row for the document and returns the result.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, res *DocumentResult, hash string, err error) DocumentResult {
	logger.Error("document ingestion failed", "state", res.State, "err", err)
	res.State = StateFailed
	res.Err = err

	// A cancelled run still gets its failure rows.
	logCtx := context.WithoutCancel(ctx)
	if markErr := o.tracker.MarkOutcome(logCtx, res.Doc.Source, tracker.StatusFailure,
		tracker.WithStrategies(res.Strategies...),
		tracker.WithDocType(res.Doc.Type),
		tracker.WithContentHash(hash),
		tracker.WithError(err)); markErr != nil {
		logger.Error("failed to log document outcome", "err", markErr)
	}
	return *res
}

// ingestResource parses a provider page syntactically, with no model call.
func (o *Orchestrator) ingestResource(ctx context.Context, res *DocumentResult, data []byte) error {
	if !o.uses(res, StrategyEmbedding) {
		return nil
	}
	rec, err := loader.ParseResource(res.Doc.Source, data)
	if err != nil {
		return err
	}
	res.State = StateExtracted
	res.Records = 1

	chunks := chunker.ToChunks(res.Doc.Type, res.Doc.Source, o.chunker.ChunkResource(rec))
	res.State = StateChunked
	return o.embedAndPersist(ctx, res, chunks, core.LabelFor(res.Doc.Type))
}

// ingestBestPractice extracts every record from the document's chunks, one
// model call at a time, and ingests the chunks of all of them.
func (o *Orchestrator) ingestBestPractice(ctx context.Context, res *DocumentResult, local string) error {
	if !o.uses(res, StrategyEmbedding) {
		return nil
	}
	text, err := loader.LoadText(local)
	if err != nil {
		return err
	}
	split, err := o.splitter.Split(res.Doc.Source, res.Doc.Type, text)
	if err != nil {
		return err
	}

	records := o.extractRecords(ctx, split)
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w from %d chunks", ErrNoRecords, len(split))
	}
	res.State = StateExtracted
	res.Records = len(records)

	var chunks []core.Chunk
	for _, rec := range records {
		chunks = append(chunks, chunker.ToChunks(res.Doc.Type, res.Doc.Source, o.chunker.Chunk(rec))...)
	}
	// Titles repeat across documents, so ids are scoped by source.
	chunks = scopeIDs(core.SourceKey(res.Doc.Source), uniqueIDs(chunks))
	res.State = StateChunked
	return o.embedAndPersist(ctx, res, chunks, core.LabelFor(res.Doc.Type))
}

// extractRecords runs the configured mode over chunks sequentially so the
// delay between model calls is honored.
func (o *Orchestrator) extractRecords(ctx context.Context, chunks []core.Chunk) []core.Record {
	strategy := extraction.Sequential(o.bpDelay)
	var records []core.Record
	keep := func(chunk core.Chunk, rec core.Record, outcome string, err error) {
		o.metrics.extraction(outcome)
		if err != nil {
			o.logger.Warn("no best practice extracted", "chunk_id", chunk.ID, "err", err)
			return
		}
		records = append(records, rec)
	}

	switch o.mode {
	case ingestion.ModeRule:
		for _, c := range chunks {
			rec, err := loader.BestPracticeRule(c)
			if err == nil && rec == nil {
				err = extraction.ErrNoExtraction
			}
			if err == nil {
				rec = core.Tag(rec, core.MethodRule)
				rec.Stamp(o.pipeline.Provenance(c))
			}
			keep(c, rec, "rule", err)
		}
	case ingestion.ModeBoth:
		for _, u := range o.pipeline.UnifiedAll(ctx, chunks, core.SchemaBestPractice, loader.BestPracticeRule, strategy) {
			rec, err := u.Merge(o.pipeline.Threshold())
			outcome := "none"
			if err == nil {
				outcome = string(rec.Method())
			}
			keep(u.Chunk, rec, outcome, err)
		}
	default:
		for _, r := range o.pipeline.ExtractAll(ctx, chunks, core.SchemaBestPractice, strategy) {
			var rec core.Record
			if r.OK() {
				rec = core.Tag(r.Record, core.MethodLLM)
			}
			keep(r.Chunk, rec, r.Outcome.String(), r.Err)
		}
	}
	return records
}

// ingestReadme embeds the raw split text under the generic label and, with
// the llm strategy, extracts best practices from it incrementally.
func (o *Orchestrator) ingestReadme(ctx context.Context, res *DocumentResult, local string) error {
	text, err := loader.LoadText(local)
	if err != nil {
		return err
	}
	chunks, err := o.splitter.Split(res.Doc.Source, res.Doc.Type, text)
	if err != nil {
		return err
	}
	res.State = StateChunked

	if o.uses(res, StrategyEmbedding) {
		if err := o.embedAndPersist(ctx, res, chunks, core.NodeLabelGeneric); err != nil {
			return err
		}
	}
	if o.uses(res, StrategyLLM) {
		return o.extractReadme(ctx, res, chunks)
	}
	return nil
}

func (o *Orchestrator) extractReadme(ctx context.Context, res *DocumentResult, chunks []core.Chunk) error {
	persist := func(ctx context.Context, chunk core.Chunk, rec core.Record) error {
		derived := scopeIDs(chunk.ID, chunker.ToChunks(core.DocTypeBestPractice, chunk.Metadata.Source, o.chunker.Chunk(rec)))
		vecs, err := o.embedder.EmbedTexts(ctx, texts(derived))
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		report, err := o.ingestor.Ingest(ctx, derived, vecs, core.NodeLabelBestPractice)
		if err != nil {
			return err
		}
		res.Written += len(report.Written)
		if len(report.Failed) > 0 {
			return fmt.Errorf("%w: %d of %d chunks", storage.ErrStoreWrite, len(report.Failed), len(derived))
		}
		return nil
	}

	inc, err := ingestion.NewIncremental(o.pipeline, o.tracker, ingestion.PersisterFunc(persist),
		ingestion.WithMode(o.mode),
		ingestion.WithRule(loader.BestPracticeRule),
		ingestion.WithStrategy(extraction.Parallel(o.maxConcurrency)),
		ingestion.WithDocType(res.Doc.Type),
		ingestion.WithLogger(o.logger))
	if err != nil {
		return err
	}

	report, err := inc.Process(ctx, extractionView(chunks), core.SchemaBestPractice)
	if err != nil {
		return abort(err)
	}
	res.Records += report.Succeeded()
	res.Failed += report.Failed()
	for _, out := range report.Outcomes {
		if out.Err != nil && fatal(ctx, out.Err) {
			return out.Err
		}
	}
	return nil
}

// embedAndPersist embeds and writes the chunks the log does not already
// hold, then logs one row per chunk.
func (o *Orchestrator) embedAndPersist(ctx context.Context, res *DocumentResult, chunks []core.Chunk, label core.NodeLabel) error {
	res.Chunks += len(chunks)
	pending, err := o.tracker.Delta(ctx, chunks)
	if err != nil {
		return abort(err)
	}
	res.Skipped += len(chunks) - len(pending)
	if len(pending) == 0 {
		res.State = StatePersisted
		return nil
	}

	vecs, err := o.embedder.EmbedTexts(ctx, texts(pending))
	if err != nil {
		err = fmt.Errorf("embed: %w", err)
		if ctx.Err() == nil {
			failed := &storage.IngestReport{Failed: make([]storage.ItemFailure, len(pending))}
			for i, c := range pending {
				failed.Failed[i] = storage.ItemFailure{ID: c.ID, Err: err}
			}
			res.Failed += len(pending)
			o.markChunks(ctx, res, pending, failed)
		}
		return err
	}
	res.State = StateEmbedded

	report, err := o.ingestor.Ingest(ctx, pending, vecs, label)
	if err != nil {
		return err
	}
	res.State = StatePersisted
	res.Written += len(report.Written)
	res.Failed += len(report.Failed)

	o.markChunks(ctx, res, pending, report)
	return nil
}

func (o *Orchestrator) markChunks(ctx context.Context, res *DocumentResult, chunks []core.Chunk, report *storage.IngestReport) {
	byID := make(map[string]core.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	mark := func(id string, status tracker.Status, err error) {
		opts := []tracker.EntryOption{
			tracker.WithStrategies(res.Strategies...),
			tracker.WithDocType(res.Doc.Type),
			tracker.WithContentHash(byID[id].ContentHash()),
			tracker.WithError(err),
		}
		if markErr := o.tracker.MarkOutcome(ctx, id, status, opts...); markErr != nil {
			o.logger.Error("failed to log chunk outcome", "chunk_id", id, "status", status, "err", markErr)
		}
	}
	for _, id := range report.Written {
		mark(id, tracker.StatusSuccess, nil)
	}
	for _, f := range report.Failed {
		mark(f.ID, tracker.StatusError, f.Err)
	}
}

// extractionView gives split chunks their own log keys for extraction, so
// the embedding rows of the same chunks do not hide them from the delta.
func extractionView(chunks []core.Chunk) []core.Chunk {
	out := make([]core.Chunk, len(chunks))
	for i, c := range chunks {
		c.ID += ":" + string(core.SchemaBestPractice)
		out[i] = c
	}
	return out
}

// uniqueIDs suffixes repeated ids, which occur when two records of one
// document share a title.
func uniqueIDs(chunks []core.Chunk) []core.Chunk {
	seen := make(map[string]int, len(chunks))
	for i := range chunks {
		id := chunks[i].ID
		if n := seen[id]; n > 0 {
			chunks[i].ID = id + "~" + strconv.Itoa(n)
		}
		seen[id]++
	}
	return chunks
}

// scopeIDs prefixes every chunk id with prefix.
func scopeIDs(prefix string, chunks []core.Chunk) []core.Chunk {
	for i := range chunks {
		chunks[i].ID = prefix + "/" + chunks[i].ID
	}
	return chunks
}

func texts(chunks []core.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

type abortError struct {
	err error
}

func (a *abortError) Error() string { return a.err.Error() }
func (a *abortError) Unwrap() error { return a.err }

// abort marks err as fatal to the run.
func abort(err error) error {
	return &abortError{err: err}
}

// fatal reports whether err must stop the run: configuration errors, log
// read failures and cancellation.
func fatal(ctx context.Context, err error) bool {
	var a *abortError
	switch {
	case ctx.Err() != nil:
		return true
	case errors.As(err, &a):
		return true
	case errors.Is(err, storage.ErrDimensionMismatch), errors.Is(err, storage.ErrEmbeddingCount):
		return true
	}
	return false
}
