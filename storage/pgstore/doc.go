// Package pgstore implements storage.VectorStore on PostgreSQL with the
// pgvector extension.
//
// All labels share one table keyed by (label, id). Each label gets a partial
// HNSW index over its embeddings cast to the index dimension, so labels may
// use different widths without separate tables. Index specs are recorded in
// a side table and enforced on writes.
package pgstore
