package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a document file or raw text to the knowledge base. Re-ingesting a source replaces it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a .md, .markdown or .txt file (max 50MB). Mutually exclusive with text.",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Raw text to ingest. Mutually exclusive with path.",
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source identifier; defaults to the file path, or text_input for raw text",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Document title; defaults to the first markdown heading",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Tags used to link related sources",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
		},
	}
}

// searchKnowledgeTool returns the tool definition for search_knowledge
func searchKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the knowledge base with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (at most 1000 characters)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (larger values are clamped to 100)",
					"default":     10,
					"minimum":     1,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (semantic + keyword), semantic (vector only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "semantic", "keyword"},
					"default":     "hybrid",
				},
				"highlight": map[string]interface{}{
					"type":        "boolean",
					"description": "Wrap matched keywords in ** in keyword results",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report document counts, storage locations and index availability",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// deleteSourceTool returns the tool definition for delete_source
func deleteSourceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_source",
		Description: "Remove every chunk of a source from both indexes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source identifier used at ingestion",
				},
			},
			Required: []string{"source"},
		},
	}
}

// relatedSourcesTool returns the tool definition for related_sources
func relatedSourcesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "related_sources",
		Description: "List sources linked to a source by shared tags or manual links, strongest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source identifier",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of related sources",
					"default":     10,
					"minimum":     1,
				},
			},
			Required: []string{"source"},
		},
	}
}
