package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gokb/internal/config"
	"github.com/dshills/gokb/internal/searcher"
	"github.com/dshills/gokb/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 32
	cfg.Embedding.CachePath = filepath.Join(dir, config.CacheFileName)
	cfg.Vector.Path = filepath.Join(dir, config.VectorDirName)
	cfg.Keyword.Path = filepath.Join(dir, config.KeywordFileName)
	// short paragraphs below stay whole but are not packed together
	cfg.Ingest.MaxChunkChars = 40
	return cfg
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestIngestTextAndSearch(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	stats, err := a.Ingest(ctx, IngestRequest{
		Text:   "Foundation building requires breath.\n\nGolden core forms after practice.",
		Source: "cultivation.md",
	})
	require.NoError(t, err)
	assert.Equal(t, "cultivation.md", stats.Source)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 2, stats.VectorIndexed)
	assert.Equal(t, 2, stats.KeywordIndexed)

	resp, err := a.Search(ctx, searcher.SearchRequest{Query: "breath"})
	require.NoError(t, err)
	assert.Equal(t, searcher.SearchModeHybrid, resp.SearchMode)
	assert.False(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "cultivation.md", resp.Results[0].Source)

	keyword, err := a.Search(ctx, searcher.SearchRequest{Query: "breath", Mode: searcher.SearchModeKeyword})
	require.NoError(t, err)
	require.Len(t, keyword.Results, 1)
	assert.Contains(t, keyword.Results[0].Content, "breath")
}

func TestIngestDefaultTextSource(t *testing.T) {
	a := openApp(t, testConfig(t))

	stats, err := a.Ingest(context.Background(), IngestRequest{Text: "loose note"})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTextSource, stats.Source)
}

func TestIngestFile(t *testing.T) {
	a := openApp(t, testConfig(t))
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n\nMeditation basics."), 0o644))

	stats, err := a.Ingest(context.Background(), IngestRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, stats.Source)

	resp, err := a.Search(context.Background(), searcher.SearchRequest{Query: "Meditation", Mode: searcher.SearchModeKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Guide", resp.Results[0].Metadata.GetString(types.MetaTitle))
}

func TestIngestValidation(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	_, err := a.Ingest(ctx, IngestRequest{})
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = a.Ingest(ctx, IngestRequest{Path: "a.md", Text: "b"})
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = a.Ingest(ctx, IngestRequest{Path: filepath.Join(t.TempDir(), "missing.md")})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestSearchValidation(t *testing.T) {
	a := openApp(t, testConfig(t))

	_, err := a.Search(context.Background(), searcher.SearchRequest{Query: ""})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestIngestInvalidatesSearchCache(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	_, err := a.Ingest(ctx, IngestRequest{Text: "alpha river", Source: "one"})
	require.NoError(t, err)

	req := searcher.SearchRequest{Query: "river", Mode: searcher.SearchModeKeyword, UseCache: true}
	first, err := a.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	again, err := a.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)

	_, err = a.Ingest(ctx, IngestRequest{Text: "beta river", Source: "two"})
	require.NoError(t, err)

	after, err := a.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, after.CacheHit)
	assert.Len(t, after.Results, 2)
}

func TestDelete(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	_, err := a.Ingest(ctx, IngestRequest{Text: "first paragraph of notes\n\nsecond paragraph of notes", Source: "notes"})
	require.NoError(t, err)
	require.NoError(t, a.Link(ctx, "notes", "other", 2))

	stats, err := a.Delete(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.KeywordDeleted)
	assert.Equal(t, 2, stats.VectorDeleted)

	s, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.VectorDocumentCount)
	assert.Zero(t, s.KeywordDocumentCount)
	assert.Zero(t, s.Links.Links)

	_, err = a.Delete(ctx, "")
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestRelated(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	tagged := func(tags ...string) types.Metadata {
		return types.Metadata{types.MetaTags: types.ListValue(tags...)}
	}
	_, err := a.Ingest(ctx, IngestRequest{Text: "a", Source: "a", Metadata: tagged("qi", "sword")})
	require.NoError(t, err)
	_, err = a.Ingest(ctx, IngestRequest{Text: "b", Source: "b", Metadata: tagged("qi", "sword")})
	require.NoError(t, err)
	_, err = a.Ingest(ctx, IngestRequest{Text: "c", Source: "c", Metadata: tagged("qi")})
	require.NoError(t, err)

	related, err := a.Related("a", 10)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "b", related[0].Source)
	assert.InDelta(t, 2.0, related[0].Weight, 1e-9)
	assert.Equal(t, "c", related[1].Source)

	_, err = a.Related("", 10)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestStats(t *testing.T) {
	cfg := testConfig(t)
	a := openApp(t, cfg)
	ctx := context.Background()

	_, err := a.Ingest(ctx, IngestRequest{Text: "the first of three parts\n\nthe second of three parts\n\nthe third of three parts", Source: "s"})
	require.NoError(t, err)

	s, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.VectorDocumentCount)
	assert.Equal(t, 3, s.KeywordDocumentCount)
	assert.Equal(t, 1, s.KeywordSources)
	assert.Equal(t, 3, s.CacheEntries)
	assert.Equal(t, cfg.Embedding.CachePath, s.CachePath)
	assert.Equal(t, VectorEngine, s.VectorEngine)
	assert.Contains(t, s.KeywordEngine, KeywordEngine)
	assert.Equal(t, "local", s.EmbeddingProvider)
	assert.Equal(t, 32, s.EmbeddingDimension)
	assert.True(t, s.HybridAvailable)
	assert.NotEmpty(t, s.SchemaVersion)
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Ingest(ctx, IngestRequest{Text: "persistent memory", Source: "p"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := openApp(t, cfg)
	s, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.VectorDocumentCount)
	assert.Equal(t, 1, s.KeywordDocumentCount)
	assert.Equal(t, 1, s.CacheEntries)
}

func TestKeywordIndexUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keyword.Path = filepath.Join(cfg.DataDir, "no", "such", "dir", "fts.db")
	a := openApp(t, cfg)
	ctx := context.Background()

	_, err := a.Ingest(ctx, IngestRequest{Text: "x", Source: "x"})
	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))

	resp, err := a.Search(ctx, searcher.SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)

	s, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, s.KeywordAvailable)
	assert.True(t, s.VectorAvailable)
	assert.False(t, s.HybridAvailable)

	_, err = a.Related("x", 5)
	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestEmbed(t *testing.T) {
	a := openApp(t, testConfig(t))

	emb, err := a.Embed(context.Background(), "probe")
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 32)
	assert.False(t, emb.CacheHit)

	emb, err = a.Embed(context.Background(), "probe")
	require.NoError(t, err)
	assert.True(t, emb.CacheHit)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "nope"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.True(t, errors.Is(err, types.ErrValidation))
}
