package tracker

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

// Columns is the header row of a CSV ingestion log.
var Columns = []string{"id", "status", "timestamp", "error", "strategies", "doc_type", "content_hash", "run_id"}

const strategySep = ";"

// CSVStore is a LogStore backed by a delimited file.
//
// Every row is written with a single write on a file opened in append mode, so
// separate processes appending to the same log never interleave partial rows.
// Rows with fewer columns than the header are accepted on read.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// OpenCSVStore returns a store for path, creating the file with a header row
// if it does not exist.
func OpenCSVStore(path string) (*CSVStore, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case err == nil:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(Columns)
		w.Flush()
		_, werr := f.Write(buf.Bytes())
		cerr := f.Close()
		if werr != nil {
			return nil, werr
		}
		if cerr != nil {
			return nil, cerr
		}
	case errors.Is(err, fs.ErrExist):
	default:
		return nil, err
	}
	return &CSVStore{path: path}, nil
}

// Path returns the log file location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(encodeEntry(e)); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *CSVStore) Scan(ctx context.Context, fn func(Entry) error) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var index map[string]int
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedLog, err)
		}
		if index == nil {
			index = headerIndex(record)
			continue
		}
		e, err := decodeEntry(record, index)
		if err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrMalformedLog, line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	// The first column is the unit key whatever it was called.
	if _, ok := index["id"]; !ok && len(header) > 0 {
		index["id"] = 0
	}
	return index
}

func encodeEntry(e Entry) []string {
	ts := ""
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{
		e.Key,
		string(e.Status),
		ts,
		e.Error,
		strings.Join(e.Strategies, strategySep),
		e.DocType,
		e.ContentHash,
		e.RunID,
	}
}

func decodeEntry(record []string, index map[string]int) (Entry, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	status, err := ParseStatus(field("status"))
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		Key:         field("id"),
		Status:      status,
		Error:       field("error"),
		DocType:     field("doc_type"),
		ContentHash: field("content_hash"),
		RunID:       field("run_id"),
	}
	if ts := field("timestamp"); ts != "" {
		if e.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return Entry{}, err
		}
	}
	if s := field("strategies"); s != "" {
		e.Strategies = strings.Split(s, strategySep)
	}
	return e, nil
}
