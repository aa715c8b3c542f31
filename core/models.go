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


package core

import (
	"encoding/hex"
	"fmt"
	"maps"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// MaxExtras bounds the number of provider-specific keys a ChunkMetadata may carry.
const MaxExtras = 16

// Well-known extras keys.
const (
	ExtraContentHash = "content_hash"
	ExtraSourceFile  = "source_file"
)

// DocType identifies the kind of source document a chunk was derived from.
type DocType string

const (
	DocTypeResource     DocType = "resource"
	DocTypeDataSource   DocType = "data_source"
	DocTypeBestPractice DocType = "best_practice"
	DocTypeReadme       DocType = "readme"
)

// ParseDocType maps a user supplied type name onto a DocType.
// "datasource" is accepted as an alias of "data_source".
func ParseDocType(s string) (DocType, error) {
	switch s {
	case "resource":
		return DocTypeResource, nil
	case "data_source", "datasource":
		return DocTypeDataSource, nil
	case "best_practice":
		return DocTypeBestPractice, nil
	case "readme":
		return DocTypeReadme, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocType, s)
}

// NodeLabel is the vector store label applied to a persisted chunk.
type NodeLabel string

const (
	NodeLabelGeneric      NodeLabel = "DocChunk"
	NodeLabelResource     NodeLabel = "DocChunk_Resource"
	NodeLabelDataSource   NodeLabel = "DocChunk_DataSource"
	NodeLabelBestPractice NodeLabel = "DocChunk_BestPractice"
)

// NodeLabels lists every label in index creation order.
var NodeLabels = []NodeLabel{
	NodeLabelGeneric,
	NodeLabelResource,
	NodeLabelDataSource,
	NodeLabelBestPractice,
}

// LabelFor returns the node label for chunks derived from a document of type t.
func LabelFor(t DocType) NodeLabel {
	switch t {
	case DocTypeResource:
		return NodeLabelResource
	case DocTypeDataSource:
		return NodeLabelDataSource
	case DocTypeBestPractice:
		return NodeLabelBestPractice
	default:
		return NodeLabelGeneric
	}
}

// ChunkType names the section a SemanticChunk was rendered from.
type ChunkType string

const (
	ChunkTypeOverview      ChunkType = "overview"
	ChunkTypeArguments     ChunkType = "arguments"
	ChunkTypeAttributes    ChunkType = "attributes"
	ChunkTypeExamples      ChunkType = "examples"
	ChunkTypeNotes         ChunkType = "notes"
	ChunkTypeBestPractices ChunkType = "best_practices"
	ChunkTypeSecurity      ChunkType = "security"
	ChunkTypeCompliance    ChunkType = "compliance"
	ChunkTypePitfalls      ChunkType = "pitfalls"
	ChunkTypeText          ChunkType = "text"
)

// ChunkMetadata carries the identity of a chunk through every pipeline stage.
type ChunkMetadata struct {
	Source     string
	ChunkIndex int
	Provider   string
	Service    string
	Name       string
	Type       string
	ChunkType  ChunkType
	extras     map[string]string
}

// SetExtra records a provider-specific key. It fails once MaxExtras distinct keys are held.
func (m *ChunkMetadata) SetExtra(key, value string) error {
	if m.extras == nil {
		m.extras = make(map[string]string)
	}
	if _, ok := m.extras[key]; !ok && len(m.extras) >= MaxExtras {
		return fmt.Errorf("%w: %d keys", ErrTooManyExtras, MaxExtras)
	}
	m.extras[key] = value
	return nil
}

// Extra returns the value stored under key.
func (m ChunkMetadata) Extra(key string) (string, bool) {
	v, ok := m.extras[key]
	return v, ok
}

// Extras returns a copy of the side map.
func (m ChunkMetadata) Extras() map[string]string {
	return maps.Clone(m.extras)
}

// Properties flattens the metadata into primitive key/value pairs for storage.
// Empty fields are omitted; extras never shadow the known fields.
func (m ChunkMetadata) Properties() map[string]any {
	props := make(map[string]any, 7+len(m.extras))
	for k, v := range m.extras {
		props[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}
	set("source", m.Source)
	set("provider", m.Provider)
	set("service", m.Service)
	set("name", m.Name)
	set("type", m.Type)
	set("chunk_type", string(m.ChunkType))
	props["chunk_index"] = m.ChunkIndex
	return props
}

// Chunk is the unit of extraction and ingestion input.
// The ID must be stable across runs over the same source.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ContentHash returns the chunk's content hash, computing it from Text when not recorded.
func (c Chunk) ContentHash() string {
	if h, ok := c.Metadata.Extra(ExtraContentHash); ok && h != "" {
		return h
	}
	return ContentHash(c.Text)
}

// SemanticChunk is one topic-scoped slice of a structured record.
type SemanticChunk struct {
	Content   string
	Provider  string
	Service   string
	Name      string
	Type      string
	ChunkType ChunkType
}

// ContentHash returns a hex BLAKE2b-128 digest of text.
func ContentHash(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceKey returns a short hex BLAKE2b-64 digest identifying a source location.
func SourceKey(source string) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// StableID derives a deterministic chunk id from a source location and an index.
func StableID(source string, index int) string {
	return SourceKey(source) + ":" + strconv.Itoa(index)
}

// StructuredID builds the id of a structured chunk: type:name:chunk_type:index.
func StructuredID(docType, name string, chunkType ChunkType, index int) string {
	return fmt.Sprintf("%s:%s:%s:%d", docType, name, chunkType, index)
}
