package embedder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "embedding_cache.json")

	cache, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	require.NoError(t, cache.Put("筑基", []float32{0.1, 0.2}))
	require.NoError(t, cache.Put("炼气", []float32{0.3, 0.4}))

	// File is a JSON object keyed by SHA-256
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string][]float32
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)
	assert.Contains(t, raw, ComputeHash("筑基"))

	reopened, err := OpenCache(path)
	require.NoError(t, err)
	vec, ok := reopened.Get("筑基")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, 2, reopened.Len())
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put("x", []float32{1, 2}))

	vec, ok := cache.Get("x")
	require.True(t, ok)
	vec[0] = 99

	again, _ := cache.Get("x")
	assert.Equal(t, float32(1), again[0])
}

func TestCache_TransientNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache, err := OpenCache(path)
	require.NoError(t, err)

	cache.PutTransient("broken", make([]float32, 4))
	vec, ok := cache.Get("broken")
	require.True(t, ok)
	assert.Len(t, vec, 4)
	assert.Equal(t, 1, cache.TransientLen())
	assert.Equal(t, 0, cache.Len())

	// No durable write happened, so no file exists yet
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// A later durable put replaces the transient entry
	require.NoError(t, cache.Put("broken", []float32{1, 1, 1, 1}))
	assert.Equal(t, 0, cache.TransientLen())

	reopened, err := OpenCache(path)
	require.NoError(t, err)
	_, ok = reopened.Get("broken")
	assert.True(t, ok)
}

func TestCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := OpenCache(path)
	assert.Error(t, err)
}

func TestCache_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cache, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache, err := OpenCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put("a", []float32{1}))
	cache.PutTransient("b", []float32{0})

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 0, cache.TransientLen())

	reopened, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}
