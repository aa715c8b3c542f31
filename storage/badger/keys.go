package badger

import (
	"encoding/binary"

	"github.com/talkops-ai/tfknowledge/core"
)

// Key prefixes for different data types
const (
	nodePrefix     = "node"
	indexPrefix    = "vidx"
	logEntryPrefix = "ilog"
	logEntrySeq    = "ilogseq"
)

// makeNodeKey generates a key for a node.
// Format: prefix:label:id
func makeNodeKey(label core.NodeLabel, id string) []byte {
	return []byte(nodePrefix + ":" + string(label) + ":" + id)
}

// makeLabelPrefix generates the iteration prefix for every node of label.
func makeLabelPrefix(label core.NodeLabel) []byte {
	return []byte(nodePrefix + ":" + string(label) + ":")
}

// makeIndexKey generates a key for the vector index of label.
func makeIndexKey(label core.NodeLabel) []byte {
	return []byte(indexPrefix + ":" + string(label))
}

// makeLogEntryKey generates a key for an ingestion log entry.
// Format: prefix:seq, with seq in BigEndian so iteration follows append order.
func makeLogEntryKey(seq uint64) []byte {
	prefix := []byte(logEntryPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeLogEntryPrefix generates the iteration prefix for log entries.
func makeLogEntryPrefix() []byte {
	return []byte(logEntryPrefix + ":")
}
