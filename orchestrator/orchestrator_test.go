package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkops-ai/tfknowledge/ai/mock"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/ingestion"
	"github.com/talkops-ai/tfknowledge/loader"
	"github.com/talkops-ai/tfknowledge/storage"
	badgerstore "github.com/talkops-ai/tfknowledge/storage/badger"
	"github.com/talkops-ai/tfknowledge/tracker"
)

const testDims = 8

const vpcDoc = "---\n" +
	"subcategory: \"VPC (Virtual Private Cloud)\"\n" +
	"---\n" +
	"\n" +
	"# Resource: aws_vpc\n" +
	"\n" +
	"Provides a VPC resource.\n" +
	"\n" +
	"~> **NOTE:** Default VPCs are managed separately.\n" +
	"\n" +
	"## Example Usage\n" +
	"\n" +
	"```terraform\n" +
	"resource \"aws_vpc\" \"main\" {\n" +
	"  cidr_block = \"10.0.0.0/16\"\n" +
	"}\n" +
	"```\n" +
	"\n" +
	"## Argument Reference\n" +
	"\n" +
	"* `cidr_block` (Optional) - The IPv4 CIDR block for the VPC.\n" +
	"* `instance_tenancy` (Optional) - A tenancy option for instances.\n" +
	"\n" +
	"## Attribute Reference\n" +
	"\n" +
	"* `arn` - Amazon Resource Name (ARN) of VPC.\n" +
	"* `id` - The ID of the VPC.\n"

// vpcChunks is the number of sections vpcDoc yields: overview, arguments,
// attributes, examples and notes.
const vpcChunks = 5

const bpResponse = `{"title": "S3 encryption", "resource_type": "aws_s3_bucket",
"best_practices": ["Enable default encryption"], "security": ["Block public access"], "confidence": 0.9}`

var bpParagraphs = []string{
	"Always enable default encryption on every bucket so that objects written without explicit settings are still protected at rest by the service.",
	"Block public access at the account level and only grant access to specific principals through narrowly scoped bucket policies and access points.",
	"Turn on versioning and lifecycle rules together so that noncurrent object versions are expired and storage costs stay predictable over time.",
}

type harness struct {
	store     *badgerstore.VectorStore
	log       *tracker.MemoryStore
	tracker   *tracker.Tracker
	embedder  *mock.MockEmbedder
	extractor *mock.MockExtractor
	splitter  *loader.Splitter
	orch      *Orchestrator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, trOpts []tracker.Option, opts ...Option) *harness {
	t.Helper()
	store, logStore, backend, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		logStore.Close()
		backend.Close()
	})

	h := &harness{
		store:     store,
		log:       tracker.NewMemoryStore(),
		embedder:  mock.NewMockEmbedder(testDims),
		extractor: mock.NewMockExtractor().WithResponse(bpResponse),
		splitter:  loader.NewSplitter(loader.WithChunkSize(200), loader.WithChunkOverlap(20)),
	}
	h.tracker, err = tracker.New(h.log, append([]tracker.Option{tracker.WithLogger(discardLogger())}, trOpts...)...)
	require.NoError(t, err)

	base := []Option{
		WithDimensions(testDims),
		WithBestPracticeDelay(0),
		WithSplitter(h.splitter),
		WithDownloader(NewDownloader(WithTempDir(t.TempDir()), WithBaseDelay(time.Millisecond))),
		WithLogger(discardLogger()),
	}
	h.orch, err = New(h.store, mock.NewMockProviderWithServices(h.embedder, h.extractor), h.tracker, append(base, opts...)...)
	require.NoError(t, err)
	return h
}

func (h *harness) rows(key string) []tracker.Entry {
	var out []tracker.Entry
	for _, e := range h.log.Entries() {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) count(t *testing.T, label core.NodeLabel) int {
	t.Helper()
	n, err := h.store.CountNodes(context.Background(), label)
	require.NoError(t, err)
	return n
}

func (h *harness) splitCount(t *testing.T, source string, docType core.DocType, text string) int {
	t.Helper()
	chunks, err := h.splitter.Split(source, docType, text)
	require.NoError(t, err)
	return len(chunks)
}

func TestNew_Validation(t *testing.T) {
	store, logStore, backend, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	defer logStore.Close()

	tr, err := tracker.New(tracker.NewMemoryStore())
	require.NoError(t, err)
	provider := mock.NewMockProvider(testDims)

	_, err = New(nil, provider, tr)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = New(store, nil, tr)
	assert.ErrorIs(t, err, ErrProviderRequired)
	_, err = New(store, provider, nil)
	assert.ErrorIs(t, err, ErrTrackerRequired)

	_, err = New(store, provider, tr, WithMode("sometimes"))
	assert.ErrorIs(t, err, ingestion.ErrUnknownMode)
	_, err = New(store, provider, tr, WithStrategies(core.DocTypeResource, "telepathy"))
	assert.Error(t, err)
	_, err = New(store, provider, tr, WithBatchSize(0))
	assert.Error(t, err)
	_, err = New(store, provider, tr, WithSimilarity("manhattan"))
	assert.ErrorIs(t, err, storage.ErrInvalidIndex)
}

func TestEnsureIndexes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.orch.EnsureIndexes(ctx))
	require.NoError(t, h.orch.EnsureIndexes(ctx), "second call must be a no-op")

	wider, err := New(h.store, mock.NewMockProvider(16), h.tracker, WithDimensions(16), WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.ErrorIs(t, wider.EnsureIndexes(ctx), storage.ErrInvalidIndex)
}

func TestIngestDocument_Resource(t *testing.T) {
	h := newHarness(t, nil)
	path := filepath.Join(t.TempDir(), "r", "vpc.html.markdown")
	writeFile(t, path, vpcDoc)

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeResource})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, StateLogged, res.State)
	assert.Equal(t, []string{StrategyEmbedding}, res.Strategies)
	assert.Equal(t, vpcChunks, res.Chunks)
	assert.Equal(t, vpcChunks, res.Written)
	assert.Zero(t, res.Failed)
	assert.Zero(t, h.extractor.CallCount(), "resource pages need no model call")
	assert.Equal(t, vpcChunks, h.count(t, core.NodeLabelResource))

	args := h.rows("resource:aws_vpc:arguments:1")
	require.Len(t, args, 1)
	assert.Equal(t, tracker.StatusSuccess, args[0].Status)
	assert.Equal(t, "resource", args[0].DocType)
	assert.NotEmpty(t, args[0].ContentHash)

	doc := h.rows(path)
	require.Len(t, doc, 1)
	assert.Equal(t, tracker.StatusSuccess, doc[0].Status)
	assert.Equal(t, []string{StrategyEmbedding}, doc[0].Strategies)
}

const s3ArgumentsDoc = "# Resource: aws_s3_bucket\n" +
	"\n" +
	"Provides a S3 bucket resource.\n" +
	"\n" +
	"## Argument Reference\n" +
	"\n" +
	"* `bucket` (Required) - Name of the bucket\n" +
	"* `acl` (Optional) - Canned ACL\n"

func TestIngestDocument_ResourceArgumentsFullDimension(t *testing.T) {
	const dims = 1536
	h := newHarness(t, nil)
	orch, err := New(h.store, mock.NewMockProvider(dims), h.tracker,
		WithDimensions(dims), WithLogger(discardLogger()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, orch.EnsureIndexes(ctx))

	path := filepath.Join(t.TempDir(), "r", "s3_bucket.html.markdown")
	writeFile(t, path, s3ArgumentsDoc)

	res, err := orch.IngestDocument(ctx, Document{Source: path, Type: core.DocTypeResource})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, StateLogged, res.State)
	assert.Equal(t, 2, res.Written, "overview and arguments")

	const argsID = "resource:aws_s3_bucket:arguments:1"
	rows := h.rows(argsID)
	require.Len(t, rows, 1)
	assert.Equal(t, tracker.StatusSuccess, rows[0].Status)

	node, err := h.store.GetNode(ctx, core.NodeLabelResource, argsID)
	require.NoError(t, err)
	assert.Len(t, node.Embedding, dims)
	bucket := strings.Index(node.Content, "- bucket (required): Name of the bucket")
	acl := strings.Index(node.Content, "- acl: Canned ACL")
	require.GreaterOrEqual(t, bucket, 0, node.Content)
	require.GreaterOrEqual(t, acl, 0, node.Content)
	assert.Less(t, bucket, acl, "arguments keep document order")
}

func TestIngestDocument_EmbedFailureLogsEveryChunk(t *testing.T) {
	h := newHarness(t, nil)
	h.embedder.WithEmbedTextsFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedding service unavailable")
	})
	path := filepath.Join(t.TempDir(), "r", "vpc.html.markdown")
	writeFile(t, path, vpcDoc)

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeResource})
	require.NoError(t, err, "an embedding failure fails the document, not the run")
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, res.Written)
	assert.Equal(t, vpcChunks, res.Failed)
	assert.Zero(t, h.count(t, core.NodeLabelResource))

	for _, id := range []string{
		"resource:aws_vpc:overview:0",
		"resource:aws_vpc:arguments:1",
		"resource:aws_vpc:attributes:2",
		"resource:aws_vpc:examples:3",
		"resource:aws_vpc:notes:4",
	} {
		rows := h.rows(id)
		require.Len(t, rows, 1, id)
		assert.Equal(t, tracker.StatusError, rows[0].Status)
		assert.Contains(t, rows[0].Error, "embedding service unavailable")
		assert.NotEmpty(t, rows[0].ContentHash)
	}
	doc := h.rows(path)
	require.Len(t, doc, 1)
	assert.Equal(t, tracker.StatusFailure, doc[0].Status)
}

func TestBatchIngest_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	path := filepath.Join(t.TempDir(), "r", "vpc.html.markdown")
	writeFile(t, path, vpcDoc)
	docs := []Document{{Source: path, Type: core.DocTypeResource}}
	ctx := context.Background()

	first, err := h.orch.BatchIngest(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded())
	rows := len(h.log.Entries())
	embeds := h.embedder.CallCount()

	second, err := h.orch.BatchIngest(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped())
	assert.Zero(t, second.ChunksWritten())
	assert.Len(t, h.log.Entries(), rows, "a second run must not add log rows")
	assert.Equal(t, embeds, h.embedder.CallCount())
}

func TestBatchIngest_RemoteDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/vpc.html.markdown", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, vpcDoc)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := newHarness(t, nil)
	missing := srv.URL + "/r/missing.html.markdown"
	present := srv.URL + "/r/vpc.html.markdown"

	summary, err := h.orch.BatchIngest(context.Background(), []Document{
		{Source: missing, Type: core.DocTypeResource},
		{Source: present, Type: core.DocTypeResource},
	})
	require.NoError(t, err)
	require.Len(t, summary.Documents, 2)
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, 1, summary.Succeeded())

	failed := summary.Failures()[0]
	assert.Equal(t, missing, failed.Doc.Source)
	assert.ErrorIs(t, failed.Err, ErrDownload)

	rows := h.rows(missing)
	require.Len(t, rows, 1)
	assert.Equal(t, tracker.StatusFailure, rows[0].Status)
	assert.Contains(t, rows[0].Error, "HTTP 404")

	assert.Equal(t, StateLogged, summary.Documents[1].State)
	assert.Equal(t, vpcChunks, h.count(t, core.NodeLabelResource))
}

func TestIngestDocument_BestPracticeAllRecords(t *testing.T) {
	h := newHarness(t, nil)
	text := "# S3 Best Practices\n\n" + strings.Join(bpParagraphs, "\n\n") + "\n"
	path := filepath.Join(t.TempDir(), "s3_best_practices.md")
	writeFile(t, path, text)
	splits := h.splitCount(t, path, core.DocTypeBestPractice, text)
	require.Greater(t, splits, 1)

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeBestPractice})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, StateLogged, res.State)
	assert.Equal(t, splits, h.extractor.CallCount())
	assert.Equal(t, splits, res.Records, "every extracted record is ingested")
	// Each record yields overview, best_practices and security chunks.
	assert.Equal(t, 3*splits, res.Written)
	assert.Equal(t, 3*splits, h.count(t, core.NodeLabelBestPractice))
	assert.Len(t, h.rows(core.SourceKey(path)+"/best_practice:S3 encryption:overview:0~1"), 1)
}

func TestIngestDocument_BestPracticeSharedTitleAcrossDocuments(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.WithCompleteFunc(func(_ context.Context, prompt string) (string, error) {
		practice := "Enable SSE on S3"
		if strings.Contains(prompt, "RDS") {
			practice = "Use KMS keys for RDS"
		}
		return `{"title": "Encryption", "resource_type": "general", "best_practices": ["` + practice + `"], "confidence": 0.9}`, nil
	})

	dir := t.TempDir()
	s3 := filepath.Join(dir, "s3_best_practices.md")
	rds := filepath.Join(dir, "rds_best_practices.md")
	writeFile(t, s3, "Encrypt every S3 bucket with server side encryption.")
	writeFile(t, rds, "Encrypt every RDS instance with a customer managed key.")

	summary, err := h.orch.BatchIngest(context.Background(), []Document{
		{Source: s3, Type: core.DocTypeBestPractice},
		{Source: rds, Type: core.DocTypeBestPractice},
	})
	require.NoError(t, err)
	require.Len(t, summary.Documents, 2)
	for _, res := range summary.Documents {
		assert.Equal(t, StateLogged, res.State, res.Doc.Source)
		assert.Equal(t, 2, res.Written, res.Doc.Source)
		assert.Zero(t, res.Skipped, res.Doc.Source)
	}
	assert.Equal(t, 4, h.count(t, core.NodeLabelBestPractice))

	var contents []string
	for _, source := range []string{s3, rds} {
		id := core.SourceKey(source) + "/best_practice:Encryption:best_practices:1"
		rows := h.rows(id)
		require.Len(t, rows, 1, id)
		assert.Equal(t, tracker.StatusSuccess, rows[0].Status)

		node, err := h.store.GetNode(context.Background(), core.NodeLabelBestPractice, id)
		require.NoError(t, err)
		contents = append(contents, node.Content)
	}
	assert.Contains(t, contents[0], "Enable SSE on S3")
	assert.Contains(t, contents[1], "Use KMS keys for RDS")
}

func TestIngestDocument_BestPracticeSequentialDelay(t *testing.T) {
	delay := 30 * time.Millisecond
	h := newHarness(t, nil, WithBestPracticeDelay(delay))

	var (
		mu    sync.Mutex
		calls []time.Time
	)
	h.extractor.WithCompleteFunc(func(context.Context, string) (string, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		return bpResponse, nil
	})

	text := strings.Join(bpParagraphs, "\n\n")
	path := filepath.Join(t.TempDir(), "s3_best_practices.md")
	writeFile(t, path, text)

	_, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeBestPractice})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(calls), 2)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), delay-5*time.Millisecond)
	}
}

func TestIngestDocument_BestPracticeNoRecords(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.WithCompleteFunc(func(context.Context, string) (string, error) {
		return "", errors.New("rate limited")
	})
	path := filepath.Join(t.TempDir(), "s3_best_practices.md")
	writeFile(t, path, strings.Join(bpParagraphs, "\n\n"))

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeBestPractice})
	require.NoError(t, err, "a document failure does not abort the run")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrNoRecords)

	rows := h.rows(path)
	require.Len(t, rows, 1)
	assert.Equal(t, tracker.StatusFailure, rows[0].Status)
}

func TestIngestDocument_BestPracticeRuleMode(t *testing.T) {
	h := newHarness(t, nil, WithMode(ingestion.ModeRule))
	text := "# S3 hardening for aws_s3_bucket\n\n## Security\n\n- Block public access\n- Enforce TLS\n"
	path := filepath.Join(t.TempDir(), "s3_best_practices.md")
	writeFile(t, path, text)

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeBestPractice})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, StateLogged, res.State)
	assert.Zero(t, h.extractor.CallCount())
	assert.Equal(t, 1, res.Records)
	assert.Positive(t, h.count(t, core.NodeLabelBestPractice))
}

func TestIngestDocument_UnsupportedFormat(t *testing.T) {
	h := newHarness(t, nil)
	path := filepath.Join(t.TempDir(), "iam_best_practice.pdf")
	writeFile(t, path, "%PDF-1.7")

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeBestPractice})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, loader.ErrUnsupportedFormat)
}

func TestIngestDocument_Readme(t *testing.T) {
	h := newHarness(t, nil)
	text := "# VPC module\n\n" + strings.Join(bpParagraphs, "\n\n") + "\n"
	path := filepath.Join(t.TempDir(), "modules", "vpc", "README.md")
	writeFile(t, path, text)
	splits := h.splitCount(t, path, core.DocTypeReadme, text)

	res, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeReadme})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, StateLogged, res.State)
	assert.Equal(t, []string{StrategyEmbedding, StrategyLLM}, res.Strategies)
	assert.Equal(t, splits, h.count(t, core.NodeLabelGeneric))
	assert.Equal(t, 3*splits, h.count(t, core.NodeLabelBestPractice))
	assert.Equal(t, splits, res.Records)

	extracted := 0
	for _, e := range h.log.Entries() {
		if strings.HasSuffix(e.Key, ":best_practice") {
			assert.Equal(t, tracker.StatusSuccess, e.Status)
			assert.Equal(t, []string{"llm"}, e.Strategies)
			extracted++
		}
	}
	assert.Equal(t, splits, extracted)

	// A second pass finds the document already ingested.
	again, err := h.orch.IngestDocument(context.Background(), Document{Source: path, Type: core.DocTypeReadme})
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, again.State)
	assert.Equal(t, splits, h.extractor.CallCount())
}

func TestBatchIngest_DimensionMismatchAborts(t *testing.T) {
	h := newHarness(t, nil)
	h.embedder.WithEmbedTextsFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, s := range texts {
			out[i] = mock.DeterministicVector(s, testDims/2)
		}
		return out, nil
	})

	dir := t.TempDir()
	first := filepath.Join(dir, "r", "vpc.html.markdown")
	second := filepath.Join(dir, "r", "subnet.html.markdown")
	writeFile(t, first, vpcDoc)
	writeFile(t, second, strings.ReplaceAll(vpcDoc, "aws_vpc", "aws_subnet"))

	summary, err := h.orch.BatchIngest(context.Background(), []Document{
		{Source: first, Type: core.DocTypeResource},
		{Source: second, Type: core.DocTypeResource},
	})
	require.ErrorIs(t, err, storage.ErrDimensionMismatch)
	require.Len(t, summary.Documents, 1, "the run stops at the configuration error")
	assert.Equal(t, StateFailed, summary.Documents[0].State)
	assert.Zero(t, h.count(t, core.NodeLabelResource), "nothing is written")
}

// flakyStore rejects every write touching a node whose id contains reject.
type flakyStore struct {
	storage.VectorStore
	mu     sync.Mutex
	reject string
}

func (f *flakyStore) rejects(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reject != "" && strings.Contains(id, f.reject)
}

func (f *flakyStore) heal() {
	f.mu.Lock()
	f.reject = ""
	f.mu.Unlock()
}

func (f *flakyStore) UpsertNodes(ctx context.Context, nodes []*storage.Node) error {
	for _, n := range nodes {
		if f.rejects(n.ID) {
			return errors.New("bulk write rejected")
		}
	}
	return f.VectorStore.UpsertNodes(ctx, nodes)
}

func (f *flakyStore) UpsertNode(ctx context.Context, n *storage.Node) error {
	if f.rejects(n.ID) {
		return errors.New("write rejected")
	}
	return f.VectorStore.UpsertNode(ctx, n)
}

func TestIngestDocument_PartialFailureRetriesOnlyFailedChunks(t *testing.T) {
	h := newHarness(t, nil)
	flaky := &flakyStore{VectorStore: h.store, reject: ":examples:"}
	orch, err := New(flaky, mock.NewMockProviderWithServices(h.embedder, h.extractor), h.tracker,
		WithDimensions(testDims), WithLogger(discardLogger()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "r", "vpc.html.markdown")
	writeFile(t, path, vpcDoc)
	doc := Document{Source: path, Type: core.DocTypeResource}
	ctx := context.Background()

	res, err := orch.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, vpcChunks-1, res.Written)
	assert.Equal(t, 1, res.Failed)

	examples := h.rows("resource:aws_vpc:examples:3")
	require.Len(t, examples, 1)
	assert.Equal(t, tracker.StatusError, examples[0].Status)
	assert.Contains(t, examples[0].Error, "write rejected")
	assert.Equal(t, tracker.StatusFailure, h.rows(path)[0].Status)

	flaky.heal()
	res, err = orch.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, StateLogged, res.State)
	assert.Equal(t, vpcChunks-1, res.Skipped)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, vpcChunks, h.count(t, core.NodeLabelResource))
}

func TestRun_DiscoverAndFilter(t *testing.T) {
	h := newHarness(t, nil, WithFilter(Filter{Types: []core.DocType{core.DocTypeReadme}}))
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Modules\n\n"+bpParagraphs[0])
	writeFile(t, filepath.Join(dir, "s3_best_practices.md"), bpParagraphs[1])
	index := filepath.Join(dir, "index.md")
	writeFile(t, index, providerIndex)

	docs, err := h.orch.Discover(Sources{IndexPath: index, ScanDirs: []string{dir}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, core.DocTypeReadme, docs[0].Type)

	summary, err := h.orch.Run(context.Background(), Sources{ScanDirs: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, h.tracker.RunID(), summary.RunID)
}

func TestBatchIngest_MetricsAndProgress(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var progress bytes.Buffer
	h := newHarness(t, nil, WithMetrics(metrics), WithProgress(&progress))

	path := filepath.Join(t.TempDir(), "r", "vpc.html.markdown")
	writeFile(t, path, vpcDoc)
	docs := []Document{{Source: path, Type: core.DocTypeResource}}

	_, err := h.orch.BatchIngest(context.Background(), docs)
	require.NoError(t, err)
	_, err = h.orch.BatchIngest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues(string(StateLogged), "resource")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues(string(StateSkipped), "resource")))
	assert.Equal(t, float64(vpcChunks), testutil.ToFloat64(metrics.chunksWritten))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.documents))
	assert.Contains(t, progress.String(), "Progress: 1/1 (100.0%)")
}
