package loader

import "errors"

var (
	// ErrUnsupportedFormat is returned for files whose extension has no loader.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNotTerraformDoc is returned when no resource name can be found.
	ErrNotTerraformDoc = errors.New("not a terraform resource document")

	// ErrEmptyDocument is returned when a document has no text to process.
	ErrEmptyDocument = errors.New("empty document")
)
