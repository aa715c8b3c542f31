package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/talkops-ai/tfknowledge/storage"
	"github.com/talkops-ai/tfknowledge/tracker"
)

// LogStore implements tracker.LogStore for BadgerDB. Entries are keyed by a
// BadgerDB sequence so iteration returns them in append order.
type LogStore struct {
	backend *Backend
	mu      sync.Mutex
	seq     *badger.Sequence
}

var _ tracker.LogStore = (*LogStore)(nil)

type logRecord struct {
	Key         string    `json:"key"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
	Strategies  []string  `json:"strategies,omitempty"`
	DocType     string    `json:"doc_type,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
}

// NewLogStore creates a new LogStore.
func NewLogStore(backend *Backend) (*LogStore, error) {
	if backend == nil {
		return nil, storage.ErrStoreRequired
	}
	seq, err := backend.GetSequence(logEntrySeq)
	if err != nil {
		return nil, err
	}
	return &LogStore{backend: backend, seq: seq}, nil
}

// Close releases the entry sequence.
func (l *LogStore) Close() error {
	return l.seq.Release()
}

// Append persists e under the next sequence number.
func (l *LogStore) Append(ctx context.Context, e tracker.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	value, err := json.Marshal(logRecord{
		Key:         e.Key,
		Status:      string(e.Status),
		Timestamp:   e.Timestamp.UTC(),
		Error:       e.Error,
		Strategies:  e.Strategies,
		DocType:     e.DocType,
		ContentHash: e.ContentHash,
		RunID:       e.RunID,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	// Sequence allocation and the write happen under one lock so a later
	// sequence number is never committed before an earlier one.
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := l.seq.Next()
	if err != nil {
		return err
	}
	return l.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeLogEntryKey(next), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Scan calls fn for every entry in append order.
func (l *LogStore) Scan(ctx context.Context, fn func(tracker.Entry) error) error {
	if l.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return l.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeLogEntryPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec logRecord
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("%w: %w", tracker.ErrMalformedLog, err)
			}
			status, err := tracker.ParseStatus(rec.Status)
			if err != nil {
				return fmt.Errorf("%w: %w", tracker.ErrMalformedLog, err)
			}
			err = fn(tracker.Entry{
				Key:         rec.Key,
				Status:      status,
				Timestamp:   rec.Timestamp,
				Error:       rec.Error,
				Strategies:  rec.Strategies,
				DocType:     rec.DocType,
				ContentHash: rec.ContentHash,
				RunID:       rec.RunID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
}
