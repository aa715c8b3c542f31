// Package ingestion processes the not-yet-ingested chunks of a run.
//
// Incremental asks the tracker for the delta of a candidate set, extracts a
// record for each pending chunk in one of three modes, hands every record to
// a Persister and only then appends the chunk's outcome to the ingestion log:
//   - llm: the extraction pipeline alone, gated by confidence
//   - rule: the caller's rule function alone, with no confidence gating
//   - both: both strategies per chunk, reconciled by extraction.Merge
//
// A crash between persisting and logging leaves the chunk pending, so the
// next run re-ingests it instead of losing it.
package ingestion
