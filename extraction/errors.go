package extraction

import "errors"

var (
	// ErrParse indicates the extractor response held no well-formed JSON object.
	ErrParse = errors.New("malformed extractor response")

	// ErrSchemaValidation indicates well-formed JSON that does not satisfy the target schema.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrExtractorCall indicates the extractor itself failed (network or provider error).
	ErrExtractorCall = errors.New("extractor call failed")

	// ErrLowConfidence is the reason attached to a Rejected result.
	ErrLowConfidence = errors.New("confidence below threshold")

	// ErrNoExtraction is returned by Merge when neither source produced a record.
	ErrNoExtraction = errors.New("no extraction")

	// ErrUnknownSchema is returned for a schema kind without a prompt or decoder.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrExtractorRequired is returned when a pipeline is built without an extractor.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrInvalidThreshold is returned for a confidence threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("confidence threshold must be between 0.0 and 1.0")
)
