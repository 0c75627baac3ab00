// Package mcp implements the Model Context Protocol (MCP) server for gokb.
//
// The MCP server exposes the knowledge base to AI assistants as tools:
//   - ingest_document: add a file or raw text (re-ingesting replaces the source)
//   - search_knowledge: hybrid, semantic or keyword search
//   - get_stats: counts, storage locations and index availability
//   - delete_source: remove a source from both indexes
//   - related_sources: sources linked by shared tags or manual links
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
//	gokb serve
//
// # Tool: search_knowledge
//
//	Request:
//	{
//	  "query": "foundation building",
//	  "limit": 5,
//	  "search_mode": "hybrid"
//	}
//
//	Response:
//	{
//	  "results": [
//	    {"content": "...", "source": "notes.md", "score": 0.21, "origin": "semantic", "metadata": {...}}
//	  ],
//	  "total_results": 1,
//	  "search_mode": "hybrid",
//	  "semantic_results": 1,
//	  "keyword_results": 0
//	}
//
// A response whose search path failed carries "degraded": true and the
// failure descriptions; when every path failed the single result has
// origin "unavailable".
//
// # Error Codes
//
//   - -32602: Invalid parameters (also every validation failure)
//   - -32603: Internal error
//   - -32001: Ingestion source not found
//   - -32002: Ingestion already in progress
//   - -32003: Index unavailable
//   - -32004: Empty query
package mcp
