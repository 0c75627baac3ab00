package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gokb/internal/embedder"
	"github.com/dshills/gokb/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Semantic + keyword, merged
	SearchModeSemantic SearchMode = "semantic" // Vector similarity only
	SearchModeKeyword  SearchMode = "keyword"  // BM25 text search only
)

const (
	DefaultLimit         = 10
	DefaultMaxQueryChars = 1000
	DefaultCacheSize     = 1000
	DefaultCacheTTL      = time.Hour

	// UnavailableContent is the text of the synthetic result returned when
	// every retrieval path failed
	UnavailableContent = "search service temporarily unavailable"
)

// ErrNoEmbedding means the semantic path had no usable query vector
var ErrNoEmbedding = errors.New("no query embedding available")

// ParseMode converts user input to a SearchMode. "vector" is accepted as an
// alias of semantic; empty input selects hybrid.
func ParseMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SearchModeHybrid):
		return SearchModeHybrid, nil
	case string(SearchModeSemantic), "vector":
		return SearchModeSemantic, nil
	case string(SearchModeKeyword):
		return SearchModeKeyword, nil
	default:
		return "", fmt.Errorf("%w: unsupported search mode %q", types.ErrValidation, s)
	}
}

// VectorSearcher is the semantic index as seen by the orchestrator
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]types.SearchResult, error)
}

// KeywordSearcher is the lexical index as seen by the orchestrator
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int, highlight bool) ([]types.SearchResult, error)
}

// QueryEmbedder turns a query into a vector when the caller did not supply one
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (embedder.Embedding, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query string
	// Embedding is an optional precomputed query vector
	Embedding []float32
	Limit     int
	Mode      SearchMode
	Highlight bool
	UseCache  bool // Whether to use query cache
	CacheTTL  time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results         []types.SearchResult
	TotalResults    int
	SearchMode      SearchMode
	Duration        time.Duration
	CacheHit        bool
	SemanticResults int
	KeywordResults  int

	// Degraded is set when at least one attempted path failed
	Degraded bool
	Failures []string
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher coordinates semantic and keyword retrieval
type Searcher struct {
	vector        VectorSearcher
	keyword       KeywordSearcher
	embedder      QueryEmbedder
	logger        zerolog.Logger
	maxQueryChars int
	timeout       time.Duration

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// Option configures a Searcher
type Option func(*Searcher)

// WithQueryEmbedder sets the embedder used for queries without a vector
func WithQueryEmbedder(e QueryEmbedder) Option {
	return func(s *Searcher) { s.embedder = e }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithMaxQueryChars overrides the query length limit
func WithMaxQueryChars(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.maxQueryChars = n
		}
	}
}

// WithAttemptTimeout bounds each retrieval path; zero means no bound
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Searcher) { s.timeout = d }
}

// NewSearcher creates a new Searcher. Either index may be nil, in which
// case its path reports FailureUnavailable.
func NewSearcher(vector VectorSearcher, keyword KeywordSearcher, opts ...Option) *Searcher {
	// Create LRU cache with 1000 entry limit
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		vector:        vector,
		keyword:       keyword,
		logger:        zerolog.Nop(),
		maxQueryChars: DefaultMaxQueryChars,
		cache:         cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search performs a search based on the request parameters. It only fails
// on invalid requests; backend failures degrade the response instead.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	// Check cache if enabled
	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var (
		response *SearchResponse
		err      error
	)
	switch req.Mode {
	case SearchModeHybrid:
		response = s.hybridSearch(ctx, req)
	case SearchModeSemantic:
		response, err = s.semanticSearch(ctx, req)
	case SearchModeKeyword:
		response = s.keywordSearch(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode
	response.TotalResults = len(response.Results)

	if response.Degraded {
		s.logger.Warn().
			Str("mode", string(req.Mode)).
			Strs("failures", response.Failures).
			Msg("search degraded")
	}

	// Degraded responses are never cached
	if req.UseCache && !response.Degraded {
		s.storeInCache(req, response)
	}

	return response, nil
}

// hybridSearch runs both paths concurrently and merges semantic results
// first, then keyword results, dropping duplicates.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) *SearchResponse {
	perSide := (req.Limit+1)/2 + 1

	var semantic, keyword Outcome
	var g errgroup.Group
	g.Go(func() error {
		semantic = s.attemptSemantic(ctx, req, perSide)
		return nil
	})
	g.Go(func() error {
		keyword = s.attemptKeyword(ctx, req, perSide)
		return nil
	})
	_ = g.Wait()

	response := &SearchResponse{
		SemanticResults: len(semantic.Results),
		KeywordResults:  len(keyword.Results),
	}
	// Without a query embedder a missing vector is expected: the keyword
	// side answers alone.
	keywordOnly := semantic.Failure == FailureNoEmbedding && s.embedder == nil
	if semantic.Failed() && !keywordOnly {
		response.Degraded = true
		response.Failures = append(response.Failures, semantic.Describe("semantic"))
	}
	if keyword.Failed() {
		response.Degraded = true
		response.Failures = append(response.Failures, keyword.Describe("keyword"))
	}

	if semantic.Failed() && keyword.Failed() {
		if keywordOnly {
			response.Failures = append(response.Failures, semantic.Describe("semantic"))
		}
		response.Results = []types.SearchResult{unavailableResult(response.Failures)}
		return response
	}

	response.Results = mergeResults(req.Limit, semantic.Results, keyword.Results)
	return response
}

// semanticSearch performs only vector similarity search. A request without
// a query vector and without an embedder to produce one is a caller error.
func (s *Searcher) semanticSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	outcome := s.attemptSemantic(ctx, req, req.Limit)
	if outcome.Failure == FailureNoEmbedding && s.embedder == nil {
		return nil, fmt.Errorf("%w: semantic search needs a query embedding: %v", types.ErrValidation, outcome.Err)
	}
	return singleResponse(outcome, "semantic", req.Limit), nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) *SearchResponse {
	outcome := s.attemptKeyword(ctx, req, req.Limit)
	return singleResponse(outcome, "keyword", req.Limit)
}

func singleResponse(outcome Outcome, path string, limit int) *SearchResponse {
	if outcome.Failed() {
		failures := []string{outcome.Describe(path)}
		return &SearchResponse{
			Results:  []types.SearchResult{unavailableResult(failures)},
			Degraded: true,
			Failures: failures,
		}
	}
	results := outcome.Results
	if len(results) > limit {
		results = results[:limit]
	}
	response := &SearchResponse{Results: results}
	if path == "semantic" {
		response.SemanticResults = len(results)
	} else {
		response.KeywordResults = len(results)
	}
	return response
}

// attemptSemantic resolves the query vector and queries the vector index
func (s *Searcher) attemptSemantic(ctx context.Context, req SearchRequest, limit int) Outcome {
	if s.vector == nil {
		return failed(FailureUnavailable, types.ErrIndexUnavailable)
	}

	ctx, cancel := s.attemptContext(ctx)
	defer cancel()

	vector := req.Embedding
	if len(vector) == 0 {
		if s.embedder == nil {
			return failed(FailureNoEmbedding, ErrNoEmbedding)
		}
		emb, err := s.embedder.Embed(ctx, req.Query)
		if err != nil {
			return failed(FailureNoEmbedding, fmt.Errorf("%w: %v", ErrNoEmbedding, err))
		}
		if emb.Degraded {
			return failed(FailureNoEmbedding, fmt.Errorf("%w: %v", ErrNoEmbedding, emb.Cause))
		}
		vector = emb.Vector
	}

	results, err := s.vector.Search(ctx, vector, limit)
	if err != nil {
		return failed(classify(err), err)
	}
	return Outcome{Results: results}
}

// attemptKeyword queries the keyword index
func (s *Searcher) attemptKeyword(ctx context.Context, req SearchRequest, limit int) Outcome {
	if s.keyword == nil {
		return failed(FailureUnavailable, types.ErrIndexUnavailable)
	}

	ctx, cancel := s.attemptContext(ctx)
	defer cancel()

	results, err := s.keyword.Search(ctx, req.Query, limit, req.Highlight)
	if err != nil {
		return failed(classify(err), err)
	}
	return Outcome{Results: results}
}

func (s *Searcher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// mergeResults concatenates result lists in order, keeps the first result
// for each dedup key and truncates to limit
func mergeResults(limit int, lists ...[]types.SearchResult) []types.SearchResult {
	seen := make(map[string]bool)
	merged := make([]types.SearchResult, 0, limit)
	for _, list := range lists {
		for _, r := range list {
			if len(merged) >= limit {
				return merged
			}
			key := r.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}
	return merged
}

// unavailableResult is the single placeholder returned when nothing could
// be searched
func unavailableResult(failures []string) types.SearchResult {
	return types.SearchResult{
		Content: UnavailableContent,
		Metadata: types.Metadata{
			types.MetaError: types.StringValue(strings.Join(failures, "; ")),
		},
		Origin: types.OriginUnavailable,
	}
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrValidation)
	}
	if n := utf8.RuneCountInString(req.Query); n > s.maxQueryChars {
		return fmt.Errorf("%w: query is %d characters, limit is %d", types.ErrValidation, n, s.maxQueryChars)
	}

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode

	if req.Limit <= 0 {
		req.Limit = DefaultLimit // Default limit
	}
	if req.Limit > types.MaxResults {
		req.Limit = types.MaxResults // Max limit
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL // Default TTL
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	// Check if entry has expired while holding read lock to avoid race condition
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		// Remove expired entry - need write lock
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	// Entry is valid - return a deep copy while still holding read lock
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)

	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result.Clone()
	}
	dst.Failures = append([]string(nil), src.Failures...)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	h := sha256.New()
	h.Write([]byte(req.Query))
	h.Write([]byte{0})
	h.Write([]byte(req.Mode))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.Limit)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(req.Highlight)))
	h.Write([]byte{0})

	var buf [4]byte
	for _, x := range req.Embedding {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		h.Write(buf[:])
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// InvalidateCache drops every cached response. Called after any write to
// either index.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
