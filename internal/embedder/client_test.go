package embedder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gokb/pkg/types"
)

// fakeProvider returns a fixed vector per call and records inputs
type fakeProvider struct {
	mu        sync.Mutex
	dimension int
	calls     []string
	fail      bool
	vectorFn  func(text string) []float32
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.fail {
		return nil, errors.New("service down")
	}
	if f.vectorFn != nil {
		return f.vectorFn(text), nil
	}
	v := make([]float32, f.dimension)
	for i := range v {
		v[i] = 1
	}
	return v, nil
}

func (f *fakeProvider) Dimension() int { return f.dimension }
func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Model() string  { return "fake-model" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestClient_CacheHitSkipsRemote(t *testing.T) {
	provider := &fakeProvider{dimension: 4}
	client, err := NewClient(provider, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := client.Embed(ctx, "筑基")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, provider.callCount())

	second, err := client.Embed(ctx, "筑基")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, 1, provider.callCount(), "cache hit must not call the provider")
}

func TestClient_PersistedCacheSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ctx := context.Background()

	cache, err := OpenCache(path)
	require.NoError(t, err)
	client, err := NewClient(&fakeProvider{dimension: 4}, cache)
	require.NoError(t, err)
	_, err = client.Embed(ctx, "炼气期")
	require.NoError(t, err)

	cache2, err := OpenCache(path)
	require.NoError(t, err)
	provider2 := &fakeProvider{dimension: 4}
	client2, err := NewClient(provider2, cache2)
	require.NoError(t, err)

	emb, err := client2.Embed(ctx, "炼气期")
	require.NoError(t, err)
	assert.True(t, emb.CacheHit)
	assert.Equal(t, 0, provider2.callCount())
}

func TestClient_LongTextPooled(t *testing.T) {
	provider := &fakeProvider{
		dimension: 2,
		vectorFn: func(text string) []float32 {
			if strings.HasPrefix(text, "甲") {
				return []float32{1, 0}
			}
			return []float32{0, 1}
		},
	}
	client, err := NewClient(provider, nil, WithChunkThreshold(10))
	require.NoError(t, err)
	ctx := context.Background()

	text := strings.Repeat("甲", 8) + "。" + strings.Repeat("乙", 8) + "。"
	emb, err := client.Embed(ctx, text)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.callCount())
	assert.InDeltaSlice(t, []float32{0.5, 0.5}, emb.Vector, 1e-6)

	// Only the original text is cached, not the segments
	cache := client.Cache()
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get(text)
	assert.True(t, ok)
	_, ok = cache.Get(strings.Repeat("甲", 8) + "。")
	assert.False(t, ok)
}

func TestClient_FailureFallsBackToZeroVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache, err := OpenCache(path)
	require.NoError(t, err)

	provider := &fakeProvider{dimension: 8, fail: true}
	client, err := NewClient(provider, cache)
	require.NoError(t, err)
	ctx := context.Background()

	emb, err := client.Embed(ctx, "query")
	require.NoError(t, err)
	assert.True(t, emb.Degraded)
	assert.True(t, errors.Is(emb.Cause, types.ErrRemoteService))
	assert.Len(t, emb.Vector, 8)
	assert.True(t, IsZero(emb.Vector))

	// Failure is remembered for this process only
	again, err := client.Embed(ctx, "query")
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.True(t, again.Degraded)
	assert.Equal(t, 1, provider.callCount())

	reopened, err := OpenCache(path)
	require.NoError(t, err)
	_, ok := reopened.Get("query")
	assert.False(t, ok, "fallback vectors must not be persisted")
}

func TestClient_DimensionMismatchIsFailure(t *testing.T) {
	provider := &fakeProvider{
		dimension: 4,
		vectorFn:  func(string) []float32 { return []float32{1, 2} },
	}
	client, err := NewClient(provider, nil)
	require.NoError(t, err)

	emb, err := client.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, emb.Degraded)
	assert.ErrorIs(t, emb.Cause, ErrDimensionMismatch)
	assert.Len(t, emb.Vector, 4)
}

func TestClient_EmptyTextRejected(t *testing.T) {
	provider := &fakeProvider{dimension: 4}
	client, err := NewClient(provider, nil)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 0, provider.callCount())
}

func TestClient_EmbedBatch(t *testing.T) {
	provider := &fakeProvider{
		dimension: 1,
		vectorFn: func(text string) []float32 {
			return []float32{float32(len([]rune(text)))}
		},
	}
	client, err := NewClient(provider, nil)
	require.NoError(t, err)
	ctx := context.Background()

	embs, err := client.EmbedBatch(ctx, []string{"a", "bb", "ccc", "a"})
	require.NoError(t, err)
	require.Len(t, embs, 4)
	for i, want := range []float32{1, 2, 3, 1} {
		assert.Equal(t, want, embs[i].Vector[0])
	}
	assert.True(t, embs[3].CacheHit)
	assert.Equal(t, []string{"a", "bb", "ccc"}, provider.calls)

	_, err = client.EmbedBatch(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 3, provider.callCount(), "validation happens before any call")
}

func TestClient_Options(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = NewClient(&fakeProvider{dimension: 0}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	client, err := NewClient(&fakeProvider{dimension: 0}, nil, WithDimension(16), WithRateLimit(100, 1))
	require.NoError(t, err)
	assert.Equal(t, 16, client.Dimension())
	assert.NotNil(t, client.limiter)
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	provider := &fakeProvider{dimension: 2}
	client, err := NewClient(provider, nil, WithRateLimit(0.001, 1))
	require.NoError(t, err)

	// First call consumes the burst token
	_, err = client.Embed(context.Background(), "one")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emb, err := client.Embed(ctx, "two")
	require.NoError(t, err)
	assert.True(t, emb.Degraded)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 0, client.Cache().TransientLen())
}

func TestClient_CancelledContextNotCached(t *testing.T) {
	provider := &fakeProvider{dimension: 4, fail: true}
	client, err := NewClient(provider, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emb, err := client.Embed(ctx, "query")
	require.NoError(t, err)
	assert.True(t, emb.Degraded)
	assert.Equal(t, 0, client.Cache().TransientLen())

	// The next caller reaches the provider again
	emb, err = client.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.False(t, emb.CacheHit)
	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, 1, client.Cache().TransientLen())
}
