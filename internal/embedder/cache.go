package embedder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTransientSize bounds the in-memory table of failed embeddings
const DefaultTransientSize = 4096

// Cache maps the SHA-256 of a text to its embedding.
//
// Durable entries are persisted as a single JSON object and the whole file
// is rewritten on every Put. There is no eviction. Transient entries live
// only in memory and are never written to disk.
//
// Writes are serialized within the process only; two processes sharing a
// cache file race and the last writer wins.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string][]float32

	transient *lru.Cache[string, []float32]
}

// OpenCache loads the cache file at path. A missing file yields an empty
// cache. An empty path keeps the cache in memory only.
func OpenCache(path string) (*Cache, error) {
	transient, err := lru.New[string, []float32](DefaultTransientSize)
	if err != nil {
		return nil, fmt.Errorf("create transient cache: %w", err)
	}

	c := &Cache{
		path:      path,
		entries:   make(map[string][]float32),
		transient: transient,
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("decode embedding cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string][]float32)
	}
	return c, nil
}

// NewMemoryCache returns a cache that is never persisted
func NewMemoryCache() *Cache {
	c, _ := OpenCache("")
	return c
}

// Path returns the backing file, or "" for a memory-only cache
func (c *Cache) Path() string {
	return c.path
}

// Get returns a copy of the vector cached for text
func (c *Cache) Get(text string) ([]float32, bool) {
	vec, _, ok := c.lookup(ComputeHash(text))
	return vec, ok
}

// lookup checks durable entries first, then transient ones
func (c *Cache) lookup(hash string) (vec []float32, transient bool, ok bool) {
	c.mu.RLock()
	v, found := c.entries[hash]
	c.mu.RUnlock()
	if found {
		return copyVector(v), false, true
	}
	if v, found := c.transient.Get(hash); found {
		return copyVector(v), true, true
	}
	return nil, false, false
}

// Put stores vec for text and rewrites the cache file
func (c *Cache) Put(text string, vec []float32) error {
	hash := ComputeHash(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hash] = copyVector(vec)
	c.transient.Remove(hash)
	return c.saveLocked()
}

// PutTransient stores vec in memory only. Used for fallback vectors so that
// a failing text is not retried for the rest of the process lifetime while a
// restart still gets a fresh attempt.
func (c *Cache) PutTransient(text string, vec []float32) {
	c.transient.Add(ComputeHash(text), copyVector(vec))
}

// Len returns the number of durable entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TransientLen returns the number of memory-only entries
func (c *Cache) TransientLen() int {
	return c.transient.Len()
}

// Clear drops every entry and truncates the cache file
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]float32)
	c.transient.Purge()
	return c.saveLocked()
}

// saveLocked writes all durable entries to a temp file and renames it over
// the cache file. Caller holds c.mu.
func (c *Cache) saveLocked() error {
	if c.path == "" {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encode embedding cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write embedding cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close embedding cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace embedding cache: %w", err)
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
