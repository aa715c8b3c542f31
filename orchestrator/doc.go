// Package orchestrator drives documents from discovery to the vector store.
//
// A run discovers candidate documents from a Markdown provider index and from
// directory scans, optionally filters them by type and service, downloads
// remote ones, and moves each through a fixed sequence of states:
//
//	discovered -> downloaded -> deduplicated -> extracted -> chunked -> embedded -> persisted -> logged
//
// A document the tracker already reports as ingested ends in the skipped
// state. Any per-document error ends it in the failed state; the run moves on
// to the next document. Only configuration errors, such as an embedding
// dimension that does not match the store, abort a run.
//
// Every run ends with a Summary of succeeded, failed and skipped documents.
// Each chunk and each document also gets a row in the ingestion log.
package orchestrator
