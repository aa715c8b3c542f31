package loader

import (
	"fmt"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts free-form text into overlapping chunks with stable ids.
type Splitter struct {
	size     int
	overlap  int
	provider string
	splitter textsplitter.TextSplitter
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.size = n
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks.
func WithChunkOverlap(n int) SplitterOption {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// WithSplitProvider sets the provider recorded on every chunk.
func WithSplitProvider(provider string) SplitterOption {
	return func(s *Splitter) {
		s.provider = provider
	}
}

// NewSplitter creates a Splitter backed by a recursive character splitter.
func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 5
	}
	s.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.size),
		textsplitter.WithChunkOverlap(s.overlap),
	)
	return s
}

// Split cuts text from source into chunks. Chunk ids derive from source and
// position, so the same document always yields the same ids.
func (s *Splitter) Split(source string, docType core.DocType, text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}

	chunks := make([]core.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		idx := len(chunks)
		meta := core.ChunkMetadata{
			Source:     source,
			ChunkIndex: idx,
			Provider:   s.provider,
			Type:       string(docType),
			ChunkType:  core.ChunkTypeText,
		}
		if err := meta.SetExtra(core.ExtraContentHash, core.ContentHash(part)); err != nil {
			return nil, err
		}
		chunks = append(chunks, core.Chunk{
			ID:       core.StableID(source, idx),
			Text:     part,
			Metadata: meta,
		})
	}
	return chunks, nil
}
