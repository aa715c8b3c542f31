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


package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested node or index was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrDimensionMismatch indicates a vector whose width differs from the configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingCount indicates a different number of embeddings than chunks.
	ErrEmbeddingCount = errors.New("embedding count does not match chunk count")

	// ErrStoreWrite indicates a failed write against the store.
	ErrStoreWrite = errors.New("store write failed")

	// ErrStoreRequired is returned when a component is built without a store.
	ErrStoreRequired = errors.New("vector store required")

	// ErrInvalidIndex indicates an index specification that cannot be created.
	ErrInvalidIndex = errors.New("invalid index specification")
)

// DimensionMismatchError reports which vector broke the dimension invariant.
type DimensionMismatchError struct {
	// ID of the chunk or node carrying the vector, if known.
	ID       string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
	}
	return fmt.Sprintf("vector dimension mismatch for %s: expected %d, got %d", e.ID, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrDimensionMismatch.
func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
