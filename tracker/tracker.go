package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talkops-ai/tfknowledge/core"
)

// Anomaly is a success later followed by a failure or error for the same key.
// The key stays ingested.
type Anomaly struct {
	Key       string
	SuccessAt time.Time
	Later     Entry
}

// Snapshot is the result of replaying the log once.
type Snapshot struct {
	latest    map[string]Entry
	succeeded map[string]Entry
	anomalies []Anomaly
}

// Ingested reports whether key has a success row.
func (s *Snapshot) Ingested(key string) bool {
	_, ok := s.succeeded[key]
	return ok
}

// IngestedWithHash reports whether key's latest success row was recorded for
// contentHash. Rows written without a hash never match.
func (s *Snapshot) IngestedWithHash(key, contentHash string) bool {
	e, ok := s.succeeded[key]
	return ok && e.ContentHash != "" && e.ContentHash == contentHash
}

// Keys returns the set of ingested keys.
func (s *Snapshot) Keys() map[string]struct{} {
	out := make(map[string]struct{}, len(s.succeeded))
	for k := range s.succeeded {
		out[k] = struct{}{}
	}
	return out
}

// Latest returns the most recent entry for key.
func (s *Snapshot) Latest(key string) (Entry, bool) {
	e, ok := s.latest[key]
	return e, ok
}

// Counts returns the number of keys per effective status. A key with a
// success row counts as success.
func (s *Snapshot) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for k, e := range s.latest {
		if _, ok := s.succeeded[k]; ok {
			counts[StatusSuccess]++
			continue
		}
		counts[e.Status]++
	}
	return counts
}

// Anomalies returns every success-then-failure pair found in the log.
func (s *Snapshot) Anomalies() []Anomaly {
	return s.anomalies
}

// Tracker answers incremental-ingestion questions from a LogStore.
type Tracker struct {
	store            LogStore
	hashInvalidation bool
	runID            string
	now              func() time.Time
	logger           *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithContentHashInvalidation makes Delta return chunks whose content hash
// differs from the one recorded with their last success.
func WithContentHashInvalidation(enabled bool) Option {
	return func(t *Tracker) {
		t.hashInvalidation = enabled
	}
}

// WithRunID stamps every appended entry with id.
func WithRunID(id string) Option {
	return func(t *Tracker) {
		t.runID = id
	}
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tracker over store.
func New(store LogStore, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	t := &Tracker{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RunID returns the id stamped into appended entries.
func (t *Tracker) RunID() string {
	return t.runID
}

// Replay scans the whole log.
func (t *Tracker) Replay(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{
		latest:    make(map[string]Entry),
		succeeded: make(map[string]Entry),
	}
	err := t.store.Scan(ctx, func(e Entry) error {
		s.latest[e.Key] = e
		switch e.Status {
		case StatusSuccess:
			s.succeeded[e.Key] = e
		case StatusFailure, StatusError:
			if prev, ok := s.succeeded[e.Key]; ok {
				s.anomalies = append(s.anomalies, Anomaly{Key: e.Key, SuccessAt: prev.Timestamp, Later: e})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range s.anomalies {
		t.logger.Warn("failure recorded after success", "key", a.Key, "status", a.Later.Status, "error", a.Later.Error)
	}
	return s, nil
}

// AlreadyIngested returns every key with a success row.
func (t *Tracker) AlreadyIngested(ctx context.Context) (map[string]struct{}, error) {
	s, err := t.Replay(ctx)
	if err != nil {
		return nil, err
	}
	return s.Keys(), nil
}

// IsIngested reports whether key counts as ingested. With content-hash
// invalidation enabled, contentHash must match the last success.
func (t *Tracker) IsIngested(ctx context.Context, key, contentHash string) (bool, error) {
	s, err := t.Replay(ctx)
	if err != nil {
		return false, err
	}
	return t.ingested(s, key, contentHash), nil
}

func (t *Tracker) ingested(s *Snapshot, key, contentHash string) bool {
	if t.hashInvalidation {
		return s.IngestedWithHash(key, contentHash)
	}
	return s.Ingested(key)
}

// Delta returns the chunks that still need processing, in input order.
func (t *Tracker) Delta(ctx context.Context, chunks []core.Chunk) ([]core.Chunk, error) {
	s, err := t.Replay(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !t.ingested(s, c.ID, c.ContentHash()) {
			out = append(out, c)
		}
	}
	t.logger.Debug("computed delta", "candidates", len(chunks), "pending", len(out))
	return out, nil
}

// EntryOption adds detail to a marked outcome.
type EntryOption func(*Entry)

// WithError records err's message.
func WithError(err error) EntryOption {
	return func(e *Entry) {
		if err != nil {
			e.Error = err.Error()
		}
	}
}

// WithStrategies records the strategies applied.
func WithStrategies(strategies ...string) EntryOption {
	return func(e *Entry) {
		e.Strategies = strategies
	}
}

// WithDocType records the document type.
func WithDocType(docType core.DocType) EntryOption {
	return func(e *Entry) {
		e.DocType = string(docType)
	}
}

// WithContentHash records the hash of the content that was processed.
func WithContentHash(hash string) EntryOption {
	return func(e *Entry) {
		e.ContentHash = hash
	}
}

// MarkOutcome appends one entry for key. Existing rows are never touched.
func (t *Tracker) MarkOutcome(ctx context.Context, key string, status Status, opts ...EntryOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	e := Entry{
		Key:       key,
		Status:    status,
		Timestamp: t.now().UTC().Truncate(time.Second),
		RunID:     t.runID,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return t.store.Append(ctx, e)
}
