package types

import (
	"fmt"
)

// DefaultTextSource is the source name used for raw text ingestion
const DefaultTextSource = "text_input"

// KnowledgeChunk is one indexed passage of a source document.
// Chunks are never mutated after creation; an update is a delete-by-source
// followed by a fresh insert.
type KnowledgeChunk struct {
	Content     string
	Source      string
	ChunkIndex  int
	TotalChunks int
	Metadata    Metadata
}

// Validate checks the positional and content invariants of the chunk
func (c *KnowledgeChunk) Validate() error {
	if c.Content == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	if c.Source == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingSource)
	}
	if c.TotalChunks < 1 || c.ChunkIndex < 0 || c.ChunkIndex >= c.TotalChunks {
		return fmt.Errorf("%w: %w (index %d of %d)", ErrValidation, ErrInvalidPosition, c.ChunkIndex, c.TotalChunks)
	}
	return nil
}

// Title returns the title metadata entry, if any
func (c *KnowledgeChunk) Title() string {
	return c.Metadata.GetString(MetaTitle)
}

// Tags returns the tags metadata entry as a list
func (c *KnowledgeChunk) Tags() []string {
	return c.Metadata.GetList(MetaTags)
}

// FullMetadata returns the user metadata with the reserved positional keys
// (source, chunk_index, total_chunks) applied on top.
func (c *KnowledgeChunk) FullMetadata() Metadata {
	md := c.Metadata.Clone()
	md[MetaSource] = StringValue(c.Source)
	md[MetaChunkIndex] = IntValue(c.ChunkIndex)
	md[MetaTotalChunks] = IntValue(c.TotalChunks)
	return md
}
