// Package types provides shared type definitions for the gokb retrieval engine.
//
// # Core Types
//
// KnowledgeChunk is one passage of an ingested document, carrying its
// position within the source and user metadata:
//
//	chunk := types.KnowledgeChunk{
//	    Content:     "筑基期修士可御器飞行。",
//	    Source:      "cultivation.md",
//	    ChunkIndex:  0,
//	    TotalChunks: 3,
//	    Metadata:    types.Metadata{"tags": types.ListValue("修仙", "境界")},
//	}
//
// Metadata values are a closed set of variants (string, number, bool, list
// of strings) and encode to native JSON.
//
// SearchResult is what every search path returns. Its Score is always
// "lower is better"; Origin tells which path produced it.
//
// # Errors
//
// ErrValidation, ErrRemoteService, ErrIndexUnavailable and ErrNotFound form
// the error taxonomy. Components wrap them so callers can use errors.Is.
package types
