package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkops-ai/tfknowledge/ai/mock"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/extraction"
	"github.com/talkops-ai/tfknowledge/tracker"
)

// recordingPersister keeps every persisted record and fails for chosen ids.
type recordingPersister struct {
	mu      sync.Mutex
	records map[string]core.Record
	failIDs map[string]bool
	log     *tracker.MemoryStore
	// logSizeAtPersist captures how many log rows existed when each chunk was persisted.
	logSizeAtPersist map[string]int
}

func newRecordingPersister(log *tracker.MemoryStore) *recordingPersister {
	return &recordingPersister{
		records:          map[string]core.Record{},
		failIDs:          map[string]bool{},
		log:              log,
		logSizeAtPersist: map[string]int{},
	}
}

func (p *recordingPersister) Persist(_ context.Context, chunk core.Chunk, rec core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failIDs[chunk.ID] {
		return errors.New("store unavailable")
	}
	p.records[chunk.ID] = rec
	p.logSizeAtPersist[chunk.ID] = len(p.log.Entries())
	return nil
}

func chunk(id, text string) core.Chunk {
	return core.Chunk{ID: id, Text: text, Metadata: core.ChunkMetadata{Source: "docs/" + id + ".md"}}
}

// scriptedExtractor answers with a confidence chosen by markers in the chunk text.
func scriptedExtractor() *mock.MockExtractor {
	return mock.NewMockExtractor().WithCompleteFunc(func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "EXPLODE"):
			return "", errors.New("provider down")
		case strings.Contains(prompt, "GARBAGE"):
			return "not json", nil
		case strings.Contains(prompt, "LOW"):
			return `{"resource_type":"aws_from_llm","confidence":0.2}`, nil
		}
		return `{"resource_type":"aws_from_llm","description":"","confidence":0.95}`, nil
	})
}

func ruleFunc(c core.Chunk) (core.Record, error) {
	if strings.Contains(c.Text, "NORULE") {
		return nil, errors.New("no heading")
	}
	return &core.ResourceRecord{ResourceType: "aws_from_rule", Description: "rule description"}, nil
}

type fixture struct {
	in        *Incremental
	log       *tracker.MemoryStore
	persister *recordingPersister
	extractor *mock.MockExtractor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ext := scriptedExtractor()
	pipeline, err := extraction.NewPipeline(ext)
	require.NoError(t, err)

	log := tracker.NewMemoryStore()
	tr, err := tracker.New(log)
	require.NoError(t, err)

	persister := newRecordingPersister(log)
	in, err := NewIncremental(pipeline, tr, persister, opts...)
	require.NoError(t, err)
	return &fixture{in: in, log: log, persister: persister, extractor: ext}
}

func TestNewIncremental(t *testing.T) {
	pipeline, err := extraction.NewPipeline(mock.NewMockExtractor())
	require.NoError(t, err)
	tr, err := tracker.New(tracker.NewMemoryStore())
	require.NoError(t, err)
	noop := PersisterFunc(func(context.Context, core.Chunk, core.Record) error { return nil })

	_, err = NewIncremental(nil, tr, noop)
	assert.ErrorIs(t, err, ErrPipelineRequired)
	_, err = NewIncremental(pipeline, nil, noop)
	assert.ErrorIs(t, err, ErrTrackerRequired)
	_, err = NewIncremental(pipeline, tr, nil)
	assert.ErrorIs(t, err, ErrPersisterRequired)
	_, err = NewIncremental(pipeline, tr, noop, WithMode("fast"))
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = NewIncremental(pipeline, tr, noop, WithMode(ModeBoth))
	assert.ErrorIs(t, err, ErrRuleRequired)

	in, err := NewIncremental(pipeline, tr, noop)
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, in.Mode())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Both ")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.Equal(t, []string{"llm", "rule"}, ModeBoth.Strategies())
}

func TestProcess_LLMMode(t *testing.T) {
	f := newFixture(t, WithMode(ModeLLM), WithDocType(core.DocTypeBestPractice))
	chunks := []core.Chunk{
		chunk("ok", "fine text"),
		chunk("low", "LOW confidence"),
		chunk("garbage", "GARBAGE"),
		chunk("down", "EXPLODE"),
	}

	report, err := f.in.Process(context.Background(), chunks, core.SchemaResource)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 3, report.Failed())

	assert.Equal(t, tracker.StatusSuccess, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[1].Err, extraction.ErrLowConfidence)
	assert.ErrorIs(t, report.Outcomes[2].Err, extraction.ErrParse)
	assert.ErrorIs(t, report.Outcomes[3].Err, extraction.ErrExtractorCall)

	rec := f.persister.records["ok"].(*core.ResourceRecord)
	assert.Equal(t, core.MethodLLM, rec.ExtractionMethod)
	require.NotNil(t, rec.Provenance)
	assert.Equal(t, "ok", rec.Provenance.ChunkID)

	entries := f.log.Entries()
	require.Len(t, entries, 4)
	byKey := map[string]tracker.Entry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.Equal(t, tracker.StatusSuccess, byKey["ok"].Status)
	assert.Equal(t, []string{"llm"}, byKey["ok"].Strategies)
	assert.Equal(t, "best_practice", byKey["ok"].DocType)
	assert.Equal(t, core.ContentHash("fine text"), byKey["ok"].ContentHash)
	assert.Equal(t, tracker.StatusError, byKey["down"].Status)
	assert.Contains(t, byKey["down"].Error, "provider down")
}

func TestProcess_RuleMode(t *testing.T) {
	f := newFixture(t, WithMode(ModeRule), WithRule(ruleFunc))
	chunks := []core.Chunk{chunk("a", "LOW but rule ignores confidence"), chunk("b", "NORULE")}

	report, err := f.in.Process(context.Background(), chunks, core.SchemaResource)
	require.NoError(t, err)

	assert.Equal(t, 0, f.extractor.CallCount())
	assert.Equal(t, 1, report.Succeeded())

	rec := f.persister.records["a"].(*core.ResourceRecord)
	assert.Equal(t, "aws_from_rule", rec.ResourceType)
	assert.Equal(t, core.MethodRule, rec.ExtractionMethod)
	require.NotNil(t, rec.Provenance)

	assert.EqualError(t, report.Outcomes[1].Err, "no heading")
	assert.Equal(t, []string{"rule"}, f.log.Entries()[0].Strategies)
}

func TestProcess_BothMode(t *testing.T) {
	f := newFixture(t, WithMode(ModeBoth), WithRule(ruleFunc), WithStrategy(extraction.Sequential(0)))
	chunks := []core.Chunk{
		chunk("merged", "fine"),
		chunk("fallback", "LOW"),
		chunk("nothing", "EXPLODE NORULE"),
	}

	report, err := f.in.Process(context.Background(), chunks, core.SchemaResource)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())

	merged := f.persister.records["merged"].(*core.ResourceRecord)
	assert.Equal(t, core.MethodLLM, merged.ExtractionMethod)
	assert.Equal(t, "aws_from_llm", merged.ResourceType)
	assert.Equal(t, "rule description", merged.Description, "empty llm field backfilled from rule")

	fallback := f.persister.records["fallback"].(*core.ResourceRecord)
	assert.Equal(t, core.MethodRule, fallback.ExtractionMethod)
	assert.Equal(t, "aws_from_rule", fallback.ResourceType)

	assert.ErrorIs(t, report.Outcomes[2].Err, extraction.ErrNoExtraction)
	for _, e := range f.log.Entries() {
		assert.Equal(t, []string{"llm", "rule"}, e.Strategies)
	}
}

func TestProcess_PersistFailureLogsError(t *testing.T) {
	f := newFixture(t)
	f.persister.failIDs["b"] = true

	report, err := f.in.Process(context.Background(), []core.Chunk{chunk("a", "x"), chunk("b", "y")}, core.SchemaResource)
	require.NoError(t, err)

	assert.ErrorIs(t, report.Outcomes[1].Err, ErrPersist)
	entries := f.log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, tracker.StatusError, entries[1].Status)
}

func TestProcess_LogsAfterPersist(t *testing.T) {
	f := newFixture(t, WithStrategy(extraction.Sequential(0)))

	_, err := f.in.Process(context.Background(), []core.Chunk{chunk("a", "x"), chunk("b", "y")}, core.SchemaResource)
	require.NoError(t, err)

	assert.Equal(t, 0, f.persister.logSizeAtPersist["a"])
	assert.Equal(t, 1, f.persister.logSizeAtPersist["b"])
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	chunks := make([]core.Chunk, 5)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("c%d", i), fmt.Sprintf("text %d", i))
	}
	chunks[4].Text = "EXPLODE"

	first, err := f.in.Process(context.Background(), chunks, core.SchemaResource)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Succeeded())
	calls := f.extractor.CallCount()

	second, err := f.in.Process(context.Background(), chunks, core.SchemaResource)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Skipped)
	assert.Equal(t, 0, second.Succeeded())
	require.Len(t, second.Outcomes, 1, "only the failed chunk is retried")
	assert.Equal(t, "c4", second.Outcomes[0].Chunk.ID)
	assert.Equal(t, calls+1, f.extractor.CallCount())

	successes := 0
	for _, e := range f.log.Entries() {
		if e.Status == tracker.StatusSuccess {
			successes++
		}
	}
	assert.Equal(t, 4, successes)
}

func TestProcess_NothingPending(t *testing.T) {
	f := newFixture(t)
	report, err := f.in.Process(context.Background(), nil, core.SchemaResource)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, f.extractor.CallCount())
}
