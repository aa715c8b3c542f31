// Package extraction turns document chunks into validated, provenance-stamped
// records.
//
// A Pipeline builds a schema-specific prompt, calls an ai.Extractor, parses the
// first balanced JSON object out of the response and validates it. Every call
// yields a Result tagged Accepted, Rejected (valid but below the confidence
// threshold, payload attached) or Failed (extractor, parse or schema error).
//
// Batches run under an explicit Strategy:
//
//   - Sequential(delay) throttles extractor calls for rate-limited providers.
//   - Parallel(n) fans independent chunks out over a bounded worker pool.
//
// Unified runs the LLM path and a caller-supplied rule function side by side and
// leaves the decision to Merge, which prefers the LLM record when its confidence
// clears the threshold and falls back to the rule record otherwise.
package extraction
