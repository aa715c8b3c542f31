// Package tracker records ingestion outcomes in an append-only log and answers
// "has this unit already been ingested".
//
// The log is the source of truth. Entries are never edited or removed; a unit
// retried after a failure simply gains another row. Replaying the log yields the
// set of keys whose most recent relevant status is success. Success is sticky:
// a later failure for the same key does not un-ingest it but is reported as an
// anomaly.
//
// Two LogStore implementations are provided: MemoryStore for tests and CSVStore,
// a human-auditable delimited file safe for concurrent appenders.
package tracker
