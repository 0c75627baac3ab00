package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gokb/internal/app"
	"github.com/dshills/gokb/internal/indexer"
	"github.com/dshills/gokb/internal/searcher"
	"github.com/dshills/gokb/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeSourceNotFound      = -32001 // Ingestion source file does not exist
	ErrorCodeIngestionInProgress = -32002 // Another ingestion is already running
	ErrorCodeIndexUnavailable    = -32003 // A storage engine cannot be opened
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	text := getStringDefault(args, "text", "")
	if (path == "") == (text == "") {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of path or text is required", map[string]interface{}{
			"param":  "path|text",
			"reason": "missing or both given",
		})
	}

	md := types.Metadata{}
	if title := getStringDefault(args, "title", ""); title != "" {
		md[types.MetaTitle] = types.StringValue(title)
	}
	if tags := request.GetStringSlice("tags", nil); len(tags) > 0 {
		md[types.MetaTags] = types.ListValue(tags...)
	}

	stats, err := s.kb.Ingest(ctx, app.IngestRequest{
		Path:     path,
		Text:     text,
		Source:   getStringDefault(args, "source", ""),
		Metadata: md,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("ingest_document failed")
		return nil, toMCPError("ingestion failed", err)
	}

	response := map[string]interface{}{
		"ingested":        true,
		"source":          stats.Source,
		"chunks":          stats.ChunkCount,
		"vector_indexed":  stats.VectorIndexed,
		"keyword_indexed": stats.KeywordIndexed,
		"replaced":        stats.Replaced,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if stats.Degraded > 0 {
		response["degraded_chunks"] = stats.Degraded
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchKnowledge handles the search_knowledge tool invocation
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be at least 1", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	if limit > types.MaxResults {
		limit = types.MaxResults
	}

	mode, err := searcher.ParseMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   args["search_mode"],
			"allowed": []string{"hybrid", "semantic", "keyword"},
		})
	}

	resp, err := s.kb.Search(ctx, searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Mode:      mode,
		Highlight: getBoolDefault(args, "highlight", false),
		UseCache:  true,
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("query", query).Msg("search_knowledge rejected")
		return nil, toMCPError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"content":  r.Content,
			"source":   r.Source,
			"score":    r.Score,
			"origin":   r.Origin,
			"metadata": r.Metadata,
		})
	}

	response := map[string]interface{}{
		"results":          results,
		"total_results":    resp.TotalResults,
		"search_mode":      resp.SearchMode,
		"duration_ms":      resp.Duration.Milliseconds(),
		"cache_hit":        resp.CacheHit,
		"semantic_results": resp.SemanticResults,
		"keyword_results":  resp.KeywordResults,
	}
	if resp.Degraded {
		response["degraded"] = true
		response["failures"] = resp.Failures
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.kb.Stats(ctx)
	if err != nil {
		return nil, toMCPError("failed to get stats", err)
	}

	response := map[string]interface{}{
		"documents": map[string]interface{}{
			"vector":  stats.VectorDocumentCount,
			"keyword": stats.KeywordDocumentCount,
			"sources": stats.KeywordSources,
		},
		"cache": map[string]interface{}{
			"entries": stats.CacheEntries,
			"failed":  stats.FailedEmbeddings,
			"path":    stats.CachePath,
		},
		"storage": map[string]interface{}{
			"vector_path":    stats.VectorPath,
			"vector_engine":  stats.VectorEngine,
			"keyword_path":   stats.KeywordPath,
			"keyword_engine": stats.KeywordEngine,
			"schema_version": stats.SchemaVersion,
		},
		"embedding": map[string]interface{}{
			"provider":  stats.EmbeddingProvider,
			"model":     stats.EmbeddingModel,
			"dimension": stats.EmbeddingDimension,
		},
		"health": map[string]interface{}{
			"vector_available":  stats.VectorAvailable,
			"keyword_available": stats.KeywordAvailable,
			"hybrid_available":  stats.HybridAvailable,
		},
		"links": stats.Links,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteSource handles the delete_source tool invocation
func (s *Server) handleDeleteSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	source, ok := args["source"].(string)
	if !ok || source == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "source parameter is required", map[string]interface{}{
			"param":  "source",
			"reason": "missing or empty",
		})
	}

	stats, err := s.kb.Delete(ctx, source)
	if err != nil {
		return nil, toMCPError("delete failed", err)
	}

	response := map[string]interface{}{
		"source":          stats.Source,
		"vector_deleted":  stats.VectorDeleted,
		"keyword_deleted": stats.KeywordDeleted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRelatedSources handles the related_sources tool invocation
func (s *Server) handleRelatedSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	source, ok := args["source"].(string)
	if !ok || source == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "source parameter is required", map[string]interface{}{
			"param":  "source",
			"reason": "missing or empty",
		})
	}

	related, err := s.kb.Related(source, getIntDefault(args, "limit", 10))
	if err != nil {
		return nil, toMCPError("failed to get related sources", err)
	}

	response := map[string]interface{}{
		"source":  source,
		"related": related,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError maps the shared error taxonomy onto MCP error codes
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrValidation):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeSourceNotFound
	case errors.Is(err, indexer.ErrIngestInProgress):
		code = ErrorCodeIngestionInProgress
	case errors.Is(err, types.ErrIndexUnavailable):
		code = ErrorCodeIndexUnavailable
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
