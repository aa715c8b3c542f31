// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the model services the ingestion pipeline calls.
//
// Two capabilities are needed: turning text into vectors (Embedder) and turning a
// prompt into raw model output (Extractor). Prompt construction and response parsing
// live in the extraction package, so an Extractor stays a thin transport.
//
// # Implementation Packages
//
//   - ai/openai: implementation for OpenAI-compatible APIs via langchaingo
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, openai.NewExtractor)
// return INTERFACE types. Test utility constructors (mock.NewMockEmbedder,
// mock.NewMockExtractor) return CONCRETE types so tests can inject behavior and
// count calls.
//
//	mockEmbed := mock.NewMockEmbedder(1536)
//	mockEmbed.WithEmbedTextFunc(...)
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	cfg := ai.DefaultConfig()
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "aws_s3_bucket arguments")
//	raw, err := provider.Extractor().Complete(ctx, prompt)
package ai
