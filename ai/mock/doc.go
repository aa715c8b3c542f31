// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Extractor,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider(1536)
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockExtractor := mock.NewMockExtractor().
//	    WithCompleteFunc(func(ctx context.Context, prompt string) (string, error) {
//	        return `{"resource_type":"aws_s3_bucket","confidence":0.9}`, nil
//	    })
//
//	count := mockExtractor.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: returns deterministic unit vectors based on a text hash
//   - MockExtractor: returns the configured Response, "{}" when unset
//   - MockProvider: aggregates mock embedder and extractor
//
// All mocks are safe for concurrent use.
package mock
