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


// Package storage provides the vector store abstraction for ingested chunks.
//
// A VectorStore persists Nodes (chunk content, embedding and flattened
// metadata under a label) and answers nearest-neighbour queries. The
// orchestrator alone decides which label a node gets; stores have no opinion
// on schema.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the VectorStore interface:
//
//	store, err := badger.NewVectorStore(backend)  // returns storage.VectorStore
//	store, err := pgvector.NewVectorStore(ctx, url) // returns storage.VectorStore
//
// # Batched Writes
//
// BatchIngestor turns chunks and embeddings into nodes and writes them in fixed
// size batches. Each batch is attempted as a single bulk upsert; if that fails,
// every node of the batch is retried on its own so one bad item cannot sink its
// neighbours. Counts and dimensions are validated before the first write.
//
// # Thread Safety
//
// All VectorStore implementations must be safe for concurrent use.
//
// # Context Support
//
// All store methods accept context.Context for cancellation and timeout
// support.
package storage
