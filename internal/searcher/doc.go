// Package searcher implements the hybrid search orchestrator.
//
// The searcher provides three search modes:
//   - Hybrid: semantic + keyword search, merged (default)
//   - Semantic: vector similarity only ("vector" is accepted as an alias)
//   - Keyword: BM25 full-text search only
//
// # Basic Usage
//
//	s := searcher.NewSearcher(vectorStore, keywordIndex,
//	    searcher.WithQueryEmbedder(client))
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:     "筑基",
//	    Limit:     10,
//	    Highlight: true,
//	})
//
// # Hybrid Merge
//
// Each path is asked for ceil(limit/2)+1 results and both run concurrently.
// Results are concatenated semantic first, then keyword; a result whose
// source and first 50 characters match an earlier one is dropped; the list
// is truncated to limit. Scores are never compared across paths.
//
// # Degradation
//
// Every attempt yields an Outcome tagged with a Failure. A failed path is
// skipped and the response is marked Degraded. When every attempted path
// fails the response holds exactly one result with Origin "unavailable".
// Search itself only returns an error for invalid requests: an empty or
// oversized query, an unknown mode, or semantic mode without any way to
// obtain a query vector.
//
// # Caching
//
// Responses can be cached in an LRU with a TTL (default 1 hour, 1000
// entries). Degraded responses are never cached. Call InvalidateCache after
// writing to either index.
package searcher
