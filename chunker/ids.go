package chunker

import (
	"slices"

	"github.com/talkops-ai/tfknowledge/core"
)

// ToChunks converts semantic chunks of one record into ingestion chunks with
// stable ids of the form type:name:chunk_type:ordinal. The ordinal is the
// section's fixed position, so an id never shifts when a sibling section
// appears or disappears.
func ToChunks(docType core.DocType, source string, semantic []core.SemanticChunk) []core.Chunk {
	out := make([]core.Chunk, 0, len(semantic))
	for _, sc := range semantic {
		ordinal := sectionOrdinal(sc.ChunkType)
		md := core.ChunkMetadata{
			Source:     source,
			ChunkIndex: ordinal,
			Provider:   sc.Provider,
			Service:    sc.Service,
			Name:       sc.Name,
			Type:       sc.Type,
			ChunkType:  sc.ChunkType,
		}
		// A fresh metadata value has room for the hash.
		_ = md.SetExtra(core.ExtraContentHash, core.ContentHash(sc.Content))

		out = append(out, core.Chunk{
			ID:       core.StructuredID(string(docType), sc.Name, sc.ChunkType, ordinal),
			Text:     sc.Content,
			Metadata: md,
		})
	}
	return out
}

func sectionOrdinal(ct core.ChunkType) int {
	if i := slices.Index(resourceSections, ct); i >= 0 {
		return i
	}
	if i := slices.Index(bestPracticeSections, ct); i >= 0 {
		return i
	}
	return 0
}
