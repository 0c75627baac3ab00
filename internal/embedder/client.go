package embedder

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dshills/gokb/internal/chunker"
	"github.com/dshills/gokb/pkg/types"
)

// DefaultChunkThreshold is the longest text sent to the provider in one call
const DefaultChunkThreshold = 300

// Client turns text into embeddings. It consults the cache first, splits
// long input into segments whose vectors are mean-pooled, and substitutes a
// zero vector when the provider fails. Embed only returns an error for
// invalid input.
type Client struct {
	provider  Provider
	cache     *Cache
	dimension int
	threshold int
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithDimension overrides the vector dimension expected from the provider
func WithDimension(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.dimension = n
		}
	}
}

// WithChunkThreshold sets the segmentation threshold in characters
func WithChunkThreshold(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithRateLimit caps remote calls to rps per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for degraded-mode warnings
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client. A nil cache is replaced with a memory-only one.
func NewClient(provider Provider, cache *Cache, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, ErrNoProviderEnabled
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	c := &Client{
		provider:  provider,
		cache:     cache,
		dimension: provider.Dimension(),
		threshold: DefaultChunkThreshold,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dimension <= 0 {
		return nil, fmt.Errorf("%w: provider %s reports dimension %d", ErrUnsupportedModel, provider.Name(), c.dimension)
	}
	return c, nil
}

// Embed returns the embedding of text.
//
// On provider failure the result is a zero vector of the configured
// dimension with Degraded set; the failure is cached in memory so the same
// text is not retried by this process. Failures caused by the caller's own
// context ending are not cached.
func (c *Client) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := ValidateText(text); err != nil {
		return Embedding{}, err
	}

	hash := ComputeHash(text)
	if vec, transient, ok := c.cache.lookup(hash); ok {
		return Embedding{
			Vector:   vec,
			Hash:     hash,
			CacheHit: true,
			Degraded: transient,
		}, nil
	}

	vec, err := c.generate(ctx, text)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("provider", c.provider.Name()).
			Str("hash", hash[:12]).
			Int("chars", utf8.RuneCountInString(text)).
			Msg("embedding failed, using zero vector")

		zero := make([]float32, c.dimension)
		if ctx.Err() == nil {
			c.cache.PutTransient(text, zero)
		}
		return Embedding{Vector: zero, Hash: hash, Degraded: true, Cause: err}, nil
	}

	if err := c.cache.Put(text, vec); err != nil {
		// The vector is still good; only persistence failed
		c.logger.Error().Err(err).Str("path", c.cache.Path()).Msg("failed to persist embedding cache")
	}
	return Embedding{Vector: vec, Hash: hash}, nil
}

// EmbedBatch embeds texts one after another, preserving order. Every text is
// validated before the first remote call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	for i, text := range texts {
		if err := ValidateText(text); err != nil {
			return nil, fmt.Errorf("text at index %d: %w", i, err)
		}
	}

	out := make([]Embedding, 0, len(texts))
	for _, text := range texts {
		emb, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

// generate produces the vector for uncached text. Long text is split and
// the segment vectors averaged; segments are never cached on their own.
func (c *Client) generate(ctx context.Context, text string) ([]float32, error) {
	if utf8.RuneCountInString(text) <= c.threshold {
		return c.call(ctx, text)
	}

	segments := chunker.Split(text, c.threshold)
	vectors := make([][]float32, 0, len(segments))
	for i, seg := range segments {
		vec, err := c.call(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d of %d: %w", i+1, len(segments), err)
		}
		vectors = append(vectors, vec)
	}

	c.logger.Debug().Int("segments", len(segments)).Msg("pooled long text embedding")
	return meanPool(vectors), nil
}

// call performs one rate-limited provider call and checks the dimension
func (c *Client) call(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", types.ErrRemoteService, err)
		}
	}

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrRemoteService, err)
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: %w: got %d, want %d", types.ErrRemoteService, ErrDimensionMismatch, len(vec), c.dimension)
	}
	return vec, nil
}

// Dimension returns the vector dimension of this client
func (c *Client) Dimension() int { return c.dimension }

// Provider returns the underlying provider
func (c *Client) Provider() Provider { return c.provider }

// Cache returns the embedding cache
func (c *Client) Cache() *Cache { return c.cache }
