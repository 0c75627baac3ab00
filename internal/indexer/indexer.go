package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gokb/internal/chunker"
	"github.com/dshills/gokb/internal/embedder"
	"github.com/dshills/gokb/internal/storage"
	"github.com/dshills/gokb/pkg/types"
)

// ErrIngestInProgress is returned when another ingestion holds the lock
var ErrIngestInProgress = errors.New("ingestion already in progress")

// VectorWriter is the write side of the vector index
type VectorWriter interface {
	Add(ctx context.Context, chunks []types.KnowledgeChunk, embeddings [][]float32) (int, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// KeywordWriter is the write side of the keyword index
type KeywordWriter interface {
	BeginTx(ctx context.Context) (storage.Tx, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// BatchEmbedder embeds chunk contents in order
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]embedder.Embedding, error)
}

// Indexer coordinates the ingestion pipeline: read -> chunk -> embed -> dual write
type Indexer struct {
	vector   VectorWriter
	keyword  KeywordWriter
	embedder BatchEmbedder
	config   Config
	logger   zerolog.Logger

	lock IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	MaxFileSizeMB int // Largest accepted file (default: 50)
	MaxChunkChars int // Chunk size in characters (default: 300)
	MaxTextChars  int // Largest accepted raw text (default: 10M characters)
}

const (
	DefaultMaxFileSizeMB = 50
	DefaultMaxTextChars  = 10 * 1024 * 1024
)

func (c *Config) applyDefaults() {
	if c.MaxFileSizeMB <= 0 {
		c.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = chunker.DefaultMaxChars
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = DefaultMaxTextChars
	}
}

// Statistics contains statistics about one ingestion
type Statistics struct {
	Source         string
	ChunkCount     int
	VectorIndexed  int
	KeywordIndexed int
	// Replaced is set when the source already existed and was overwritten
	Replaced bool
	// Degraded counts chunks stored with a zero fallback vector
	Degraded int
	Duration time.Duration
}

// DeleteStatistics reports what Delete removed
type DeleteStatistics struct {
	Source         string
	VectorDeleted  int
	KeywordDeleted int
}

// New creates a new Indexer instance
func New(vector VectorWriter, keyword KeywordWriter, emb BatchEmbedder, config *Config, logger zerolog.Logger) *Indexer {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	return &Indexer{
		vector:   vector,
		keyword:  keyword,
		embedder: emb,
		config:   cfg,
		logger:   logger,
	}
}

// Config returns the effective configuration
func (idx *Indexer) Config() Config {
	return idx.config
}

// IngestFile validates, chunks and indexes a document file. The file path
// is the source unless source is given. A markdown document's first heading
// becomes the title unless metadata already has one.
func (idx *Indexer) IngestFile(ctx context.Context, path, source string, metadata types.Metadata) (*Statistics, error) {
	doc, err := loadDocument(path, int64(idx.config.MaxFileSizeMB)<<20)
	if err != nil {
		return nil, err
	}

	if source == "" {
		source = path
	}
	md := metadata.Clone()
	if _, ok := md[types.MetaTitle]; !ok && doc.Title != "" {
		md[types.MetaTitle] = types.StringValue(doc.Title)
	}

	idx.logger.Info().
		Str("path", path).
		Float64("size_mb", float64(doc.Size)/(1<<20)).
		Msg("ingesting file")

	return idx.ingest(ctx, source, doc.Text, md)
}

// IngestText indexes raw text under source (default "text_input")
func (idx *Indexer) IngestText(ctx context.Context, text, source string, metadata types.Metadata) (*Statistics, error) {
	if n := utf8.RuneCountInString(text); n > idx.config.MaxTextChars {
		return nil, fmt.Errorf("%w: text too long: %d > %d characters", types.ErrValidation, n, idx.config.MaxTextChars)
	}
	if source == "" {
		source = types.DefaultTextSource
	}
	return idx.ingest(ctx, source, text, metadata.Clone())
}

// ingest runs the pipeline for one source. Existing chunks of the source
// are replaced in both indexes.
func (idx *Indexer) ingest(ctx context.Context, source, text string, md types.Metadata) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s has no content", types.ErrValidation, source)
	}
	chunks := chunker.Document(source, text, idx.config.MaxChunkChars, md)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	stats := &Statistics{
		Source:     source,
		ChunkCount: len(chunks),
	}
	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		vectors[i] = emb.Vector
		if emb.Degraded {
			stats.Degraded++
		}
	}

	if err := idx.write(ctx, chunks, vectors, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info().
		Str("source", source).
		Int("chunks", stats.ChunkCount).
		Int("degraded", stats.Degraded).
		Bool("replaced", stats.Replaced).
		Dur("duration", stats.Duration).
		Msg("ingestion complete")

	return stats, nil
}

// write replaces the source in both indexes. The keyword side runs in one
// transaction that is only committed once the vector side succeeded; on
// failure the vector side is cleared for the source.
func (idx *Indexer) write(ctx context.Context, chunks []types.KnowledgeChunk, vectors [][]float32, stats *Statistics) error {
	source := stats.Source

	tx, err := idx.keyword.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin keyword transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var keywordOld, vectorOld int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if keywordOld, err = tx.DeleteBySource(gctx, source); err != nil {
			return fmt.Errorf("keyword index: %w", err)
		}
		if stats.KeywordIndexed, err = tx.AddDocuments(gctx, chunks); err != nil {
			return fmt.Errorf("keyword index: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if vectorOld, err = idx.vector.DeleteBySource(gctx, source); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		if stats.VectorIndexed, err = idx.vector.Add(gctx, chunks, vectors); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		idx.compensate(source)
		return fmt.Errorf("failed to index %s: %w", source, err)
	}

	if err := tx.Commit(); err != nil {
		idx.compensate(source)
		return fmt.Errorf("%w: failed to commit keyword index: %v", types.ErrIndexUnavailable, err)
	}
	committed = true

	stats.Replaced = keywordOld > 0 || vectorOld > 0
	return nil
}

// compensate removes whatever the vector side wrote for source so the two
// indexes do not disagree after a failed ingestion
func (idx *Indexer) compensate(source string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := idx.vector.DeleteBySource(ctx, source); err != nil {
		idx.logger.Error().Err(err).Str("source", source).Msg("failed to roll back vector index")
	}
}

// Delete removes a source from both indexes
func (idx *Indexer) Delete(ctx context.Context, source string) (*DeleteStatistics, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrMissingSource)
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestInProgress
	}
	defer idx.lock.Release()

	stats := &DeleteStatistics{Source: source}
	var err error
	if stats.KeywordDeleted, err = idx.keyword.DeleteBySource(ctx, source); err != nil {
		return nil, fmt.Errorf("keyword index: %w", err)
	}
	if stats.VectorDeleted, err = idx.vector.DeleteBySource(ctx, source); err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	return stats, nil
}

// Busy reports whether an ingestion is running
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}
