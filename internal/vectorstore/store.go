package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/dshills/gokb/pkg/types"
)

// DefaultCollection is the collection name used when none is configured
const DefaultCollection = "knowledge"

// Metadata keys stored on every chromem document
const (
	keySource     = "source"
	keyChunkIndex = "chunk_index"
	keyMetadata   = "metadata"
	keyEmbedded   = "embedded"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLengthMismatch    = errors.New("chunks and embeddings differ in length")

	errNoEmbeddingFunc = errors.New("vector store only accepts precomputed embeddings")
)

// Config configures a Store
type Config struct {
	// Path is the persistence directory; empty keeps the index in memory
	Path       string
	Collection string
	Dimension  int
	Compress   bool
	Logger     zerolog.Logger
}

// Store is a chromem-go backed vector index
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	path       string
	logger     zerolog.Logger

	// serializes writes so DeleteBySource can report an exact count
	mu sync.Mutex
}

// New opens (or creates) the vector index described by cfg
func New(cfg Config) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", types.ErrValidation, cfg.Dimension)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open vector database: %v", types.ErrIndexUnavailable, err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create/get collection: %v", types.ErrIndexUnavailable, err)
	}

	return &Store{
		db:         db,
		collection: collection,
		dimension:  cfg.Dimension,
		path:       cfg.Path,
		logger:     cfg.Logger,
	}, nil
}

// rejectEmbedding stands in for chromem's default OpenAI embedding
// function; every document arrives with its vector already computed.
func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Dimension returns the configured embedding dimension
func (s *Store) Dimension() int {
	return s.dimension
}

// Path returns the persistence directory, empty for in-memory stores
func (s *Store) Path() string {
	return s.path
}

// Count returns the number of stored documents, zero-vector ones included
func (s *Store) Count() int {
	return s.collection.Count()
}

// Add stores one document per chunk. embeddings[i] belongs to chunks[i].
func (s *Store) Add(ctx context.Context, chunks []types.KnowledgeChunk, embeddings [][]float32) (int, error) {
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i := range chunks {
		chunk := &chunks[i]
		if err := chunk.Validate(); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		if len(embeddings[i]) != s.dimension {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, index uses %d",
				ErrDimensionMismatch, i, len(embeddings[i]), s.dimension)
		}

		metadataJSON, err := json.Marshal(chunk.FullMetadata())
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata: %w", err)
		}

		id, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("failed to generate document id: %w", err)
		}

		embedding := make([]float32, len(embeddings[i]))
		copy(embedding, embeddings[i])

		docs[i] = chromem.Document{
			ID:      id.String(),
			Content: chunk.Content,
			Metadata: map[string]string{
				keySource:     chunk.Source,
				keyChunkIndex: strconv.Itoa(chunk.ChunkIndex),
				keyMetadata:   string(metadataJSON),
				keyEmbedded:   strconv.FormatBool(!isZero(embedding)),
			},
			Embedding: embedding,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("%w: failed to add documents: %v", types.ErrIndexUnavailable, err)
	}
	return len(docs), nil
}

// Search returns up to limit results ordered by increasing cosine distance.
// An all-zero query has no direction and returns no results.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]types.SearchResult, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index uses %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > types.MaxResults {
		limit = types.MaxResults
	}
	if isZero(embedding) {
		return []types.SearchResult{}, nil
	}

	// chromem rejects nResults above the collection size
	if count := s.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return []types.SearchResult{}, nil
	}

	found, err := s.collection.QueryEmbedding(ctx, embedding, limit,
		map[string]string{keyEmbedded: "true"}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: vector query failed: %v", types.ErrIndexUnavailable, err)
	}

	results := make([]types.SearchResult, 0, len(found))
	for _, r := range found {
		results = append(results, types.SearchResult{
			Content:  r.Content,
			Source:   r.Metadata[keySource],
			Metadata: s.decodeMetadata(r),
			Score:    distance(r.Similarity),
			Origin:   types.OriginSemantic,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results, nil
}

// DeleteBySource removes every document of source and returns how many
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrMissingSource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.collection.Count()
	if err := s.collection.Delete(ctx, map[string]string{keySource: source}, nil); err != nil {
		return 0, fmt.Errorf("%w: failed to delete documents: %v", types.ErrIndexUnavailable, err)
	}
	return before - s.collection.Count(), nil
}

// decodeMetadata restores the chunk metadata of a stored document
func (s *Store) decodeMetadata(r chromem.Result) types.Metadata {
	md := types.Metadata{}
	if raw := r.Metadata[keyMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			s.logger.Warn().Err(err).Str("id", r.ID).Msg("discarding unreadable vector metadata")
			md = types.Metadata{}
		}
	}
	if _, ok := md[types.MetaSource]; !ok {
		md[types.MetaSource] = types.StringValue(r.Metadata[keySource])
	}
	if _, ok := md[types.MetaChunkIndex]; !ok {
		if idx, err := strconv.Atoi(r.Metadata[keyChunkIndex]); err == nil {
			md[types.MetaChunkIndex] = types.IntValue(idx)
		}
	}
	return md
}

// distance converts chromem's cosine similarity to a lower-is-better score
func distance(similarity float32) float64 {
	if math.IsNaN(float64(similarity)) {
		return 1
	}
	return 1 - float64(similarity)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
