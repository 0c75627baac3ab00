// Package app wires configuration into the embedding client, both indexes,
// the hybrid searcher, the ingestion pipeline and the link graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dshills/gokb/internal/config"
	"github.com/dshills/gokb/internal/embedder"
	"github.com/dshills/gokb/internal/indexer"
	"github.com/dshills/gokb/internal/linker"
	"github.com/dshills/gokb/internal/searcher"
	"github.com/dshills/gokb/internal/storage"
	"github.com/dshills/gokb/internal/vectorstore"
	"github.com/dshills/gokb/pkg/types"
)

// Engine names reported by Stats
const (
	VectorEngine  = "chromem-go"
	KeywordEngine = "sqlite-fts5"
)

// App owns every long-lived component. An index that cannot be opened is
// left nil: search degrades to the other path and ingestion fails with
// types.ErrIndexUnavailable.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	cache    *embedder.Cache
	embedder *embedder.Client
	vectors  *vectorstore.Store
	keyword  *storage.SQLiteStorage
	searcher *searcher.Searcher
	indexer  *indexer.Indexer
	graph    *linker.Graph

	vectorErr  error
	keywordErr error
}

// IngestRequest names exactly one of Path or Text
type IngestRequest struct {
	Path     string
	Text     string
	Source   string
	Metadata types.Metadata
}

// Stats describes the knowledge base
type Stats struct {
	VectorDocumentCount  int    `json:"vector_document_count"`
	KeywordDocumentCount int    `json:"keyword_document_count"`
	KeywordSources       int    `json:"keyword_sources"`
	CacheEntries         int    `json:"cache_entries"`
	FailedEmbeddings     int    `json:"failed_embeddings"`
	CachePath            string `json:"cache_path"`
	VectorPath           string `json:"vector_path"`
	KeywordPath          string `json:"keyword_path"`
	VectorEngine         string `json:"vector_engine"`
	KeywordEngine        string `json:"keyword_engine"`
	SchemaVersion        string `json:"schema_version,omitempty"`
	EmbeddingProvider    string `json:"embedding_provider"`
	EmbeddingModel       string `json:"embedding_model"`
	EmbeddingDimension   int    `json:"embedding_dimension"`
	VectorAvailable      bool   `json:"vector_available"`
	KeywordAvailable     bool   `json:"keyword_available"`
	HybridAvailable      bool   `json:"hybrid_available"`

	Links linker.GraphStats `json:"links"`
}

// New opens the knowledge base described by cfg
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	provider, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	cache, err := embedder.OpenCache(cfg.Embedding.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	client, err := embedder.NewClient(provider, cache,
		embedder.WithDimension(cfg.Embedding.Dimension),
		embedder.WithChunkThreshold(cfg.Embedding.ChunkThreshold),
		embedder.WithRateLimit(cfg.Embedding.RateLimit, cfg.Embedding.Burst),
		embedder.WithLogger(logger.With().Str("component", "embedder").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		embedder: client,
	}

	a.vectors, a.vectorErr = vectorstore.New(vectorstore.Config{
		Path:       cfg.Vector.Path,
		Collection: cfg.Vector.Collection,
		Dimension:  client.Dimension(),
		Compress:   cfg.Vector.Compress,
		Logger:     logger.With().Str("component", "vectorstore").Logger(),
	})
	if a.vectorErr != nil {
		logger.Warn().Err(a.vectorErr).Str("path", cfg.Vector.Path).Msg("vector index unavailable")
	}

	a.keyword, a.keywordErr = storage.NewSQLiteStorage(cfg.Keyword.Path)
	if a.keywordErr != nil {
		logger.Warn().Err(a.keywordErr).Str("path", cfg.Keyword.Path).Msg("keyword index unavailable")
	}

	// typed nils must not reach the interface parameters
	var vs searcher.VectorSearcher
	if a.vectors != nil {
		vs = a.vectors
	}
	var ks searcher.KeywordSearcher
	if a.keyword != nil {
		ks = a.keyword
	}
	opts := []searcher.Option{
		searcher.WithQueryEmbedder(client),
		searcher.WithMaxQueryChars(cfg.Search.MaxQueryChars),
		searcher.WithLogger(logger.With().Str("component", "searcher").Logger()),
	}
	if cfg.Search.AttemptTimeout > 0 {
		opts = append(opts, searcher.WithAttemptTimeout(cfg.Search.AttemptTimeout))
	}
	a.searcher = searcher.NewSearcher(vs, ks, opts...)

	if a.vectors != nil && a.keyword != nil {
		a.indexer = indexer.New(a.vectors, a.keyword, client, &indexer.Config{
			MaxFileSizeMB: cfg.Ingest.MaxFileSizeMB,
			MaxChunkChars: cfg.Ingest.MaxChunkChars,
			MaxTextChars:  cfg.Ingest.MaxTextChars,
		}, logger.With().Str("component", "indexer").Logger())
	}

	if a.keyword != nil {
		a.graph = linker.New(a.keyword)
		if err := a.graph.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to load knowledge links")
		}
	}

	logger.Debug().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Int("dimension", client.Dimension()).
		Bool("hybrid", a.hybridAvailable()).
		Msg("knowledge base opened")

	return a, nil
}

// Config returns the effective configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Ingest indexes a file or raw text, replacing any earlier ingestion of the
// same source
func (a *App) Ingest(ctx context.Context, req IngestRequest) (*indexer.Statistics, error) {
	if (req.Path == "") == (req.Text == "") {
		return nil, fmt.Errorf("%w: exactly one of path or text is required", types.ErrValidation)
	}
	if a.indexer == nil {
		return nil, a.unavailable()
	}

	var stats *indexer.Statistics
	var err error
	if req.Path != "" {
		stats, err = a.indexer.IngestFile(ctx, req.Path, req.Source, req.Metadata)
	} else {
		stats, err = a.indexer.IngestText(ctx, req.Text, req.Source, req.Metadata)
	}
	if err != nil {
		return nil, err
	}

	a.refresh(ctx)
	return stats, nil
}

// Search runs a query. Limit and CacheTTL default to the configured values.
func (a *App) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	if req.Limit == 0 {
		req.Limit = a.cfg.Search.DefaultLimit
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = a.cfg.Search.CacheTTL
	}
	return a.searcher.Search(ctx, req)
}

// Delete removes a source from both indexes together with its manual links
func (a *App) Delete(ctx context.Context, source string) (*indexer.DeleteStatistics, error) {
	if a.indexer == nil {
		return nil, a.unavailable()
	}
	stats, err := a.indexer.Delete(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := a.keyword.DeleteLinks(ctx, source); err != nil {
		a.logger.Warn().Err(err).Str("source", source).Msg("failed to delete knowledge links")
	}

	a.refresh(ctx)
	return stats, nil
}

// Related lists the sources linked to source, strongest first
func (a *App) Related(source string, limit int) ([]linker.Relation, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrMissingSource)
	}
	if a.graph == nil {
		return nil, fmt.Errorf("%w: keyword index not open", types.ErrIndexUnavailable)
	}
	return a.graph.Related(source, limit), nil
}

// Link records a manual link between two sources
func (a *App) Link(ctx context.Context, from, to string, weight float64) error {
	if a.graph == nil {
		return fmt.Errorf("%w: keyword index not open", types.ErrIndexUnavailable)
	}
	return a.graph.AddLink(ctx, from, to, weight)
}

// Embed embeds text through the shared client and cache
func (a *App) Embed(ctx context.Context, text string) (embedder.Embedding, error) {
	return a.embedder.Embed(ctx, text)
}

// Stats reports counts, locations and availability of every component
func (a *App) Stats(ctx context.Context) (*Stats, error) {
	provider := a.embedder.Provider()
	stats := &Stats{
		CacheEntries:       a.cache.Len(),
		FailedEmbeddings:   a.cache.TransientLen(),
		CachePath:          a.cfg.Embedding.CachePath,
		VectorPath:         a.cfg.Vector.Path,
		KeywordPath:        a.cfg.Keyword.Path,
		VectorEngine:       VectorEngine,
		KeywordEngine:      KeywordEngine + " (" + storage.DriverName + ")",
		EmbeddingProvider:  provider.Name(),
		EmbeddingModel:     provider.Model(),
		EmbeddingDimension: a.embedder.Dimension(),
		VectorAvailable:    a.vectors != nil,
		KeywordAvailable:   a.keyword != nil,
		HybridAvailable:    a.hybridAvailable(),
	}

	if a.vectors != nil {
		stats.VectorDocumentCount = a.vectors.Count()
	}
	if a.keyword != nil {
		ks, err := a.keyword.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read keyword index stats: %w", err)
		}
		stats.KeywordDocumentCount = ks.Documents
		stats.KeywordSources = ks.Sources
		stats.SchemaVersion = ks.SchemaVersion
	}
	if a.graph != nil {
		stats.Links = a.graph.Stats()
	}
	return stats, nil
}

// Close releases the keyword index. The vector index and embedding cache
// persist on every write.
func (a *App) Close() error {
	if a.keyword != nil {
		return a.keyword.Close()
	}
	return nil
}

func (a *App) hybridAvailable() bool {
	return a.vectors != nil && a.keyword != nil
}

// refresh drops cached search responses and rebuilds the link graph after
// the indexes changed
func (a *App) refresh(ctx context.Context) {
	a.searcher.InvalidateCache()
	if a.graph != nil {
		if err := a.graph.Load(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("failed to reload knowledge links")
		}
	}
}

func (a *App) unavailable() error {
	err := errors.Join(a.vectorErr, a.keywordErr)
	if err == nil {
		err = types.ErrIndexUnavailable
	}
	return fmt.Errorf("%w: ingestion needs both indexes: %v", types.ErrIndexUnavailable, err)
}
