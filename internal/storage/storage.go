package storage

import (
	"context"

	"github.com/dshills/gokb/pkg/types"
)

// KeywordIndex is the lexical side of the hybrid engine
type KeywordIndex interface {
	// AddDocuments indexes chunks in a single transaction and returns how
	// many were written
	AddDocuments(ctx context.Context, chunks []types.KnowledgeChunk) (int, error)

	// Search returns up to limit results ordered by BM25 (lower is better).
	// With highlight set, every query keyword in Content is wrapped in **.
	Search(ctx context.Context, query string, limit int, highlight bool) ([]types.SearchResult, error)

	// DeleteBySource removes every chunk of source and returns how many
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Count returns the number of indexed chunks
	Count(ctx context.Context) (int, error)

	// SourceTags returns the tags attached to each indexed source
	SourceTags(ctx context.Context) (map[string][]string, error)

	// Stats reports index statistics
	Stats(ctx context.Context) (*IndexStats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx groups keyword index writes into one transaction
type Tx interface {
	AddDocuments(ctx context.Context, chunks []types.KnowledgeChunk) (int, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	Commit() error
	Rollback() error
}

// IndexStats describes the keyword index
type IndexStats struct {
	Documents     int
	Sources       int
	SchemaVersion string
	Driver        string
	BuildMode     string
	SizeBytes     int64
}
