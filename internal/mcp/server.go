package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/gokb/internal/app"
	"github.com/dshills/gokb/internal/indexer"
	"github.com/dshills/gokb/internal/linker"
	"github.com/dshills/gokb/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "gokb"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// KnowledgeBase is the set of operations exposed as tools
type KnowledgeBase interface {
	Ingest(ctx context.Context, req app.IngestRequest) (*indexer.Statistics, error)
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
	Stats(ctx context.Context) (*app.Stats, error)
	Delete(ctx context.Context, source string) (*indexer.DeleteStatistics, error)
	Related(source string, limit int) ([]linker.Relation, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	kb     KnowledgeBase
	logger zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(kb KnowledgeBase, logger zerolog.Logger) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		kb:     kb,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO serves the protocol over arbitrary streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	s.mcp.AddTool(deleteSourceTool(), s.handleDeleteSource)
	s.mcp.AddTool(relatedSourcesTool(), s.handleRelatedSources)
}
