// Package indexer implements the ingestion pipeline.
//
// A document is validated, chunked, embedded and written to both indexes:
//
//	file/text -> validate -> chunker.Document -> Client.EmbedBatch
//	          -> vector index  (delete source, add)
//	          -> keyword index (delete source, add; one transaction)
//
// # Validation
//
// Files must exist (types.ErrNotFound), be at most MaxFileSizeMB, have a
// .md, .txt or .markdown extension and decode as UTF-8 or BOM-marked
// UTF-16. Raw text is limited to MaxTextChars characters. Every other
// violation wraps types.ErrValidation.
//
// # Re-ingestion
//
// Ingesting a source that is already indexed replaces it. Both index writes
// run concurrently; the keyword transaction commits only after the vector
// side succeeded. On failure the keyword transaction rolls back and the
// vector side is cleared for the source, so a failed re-ingestion leaves
// the source absent from semantic search until it is ingested again.
//
// # Concurrency
//
// One ingestion or deletion runs at a time. A concurrent call fails
// immediately with ErrIngestInProgress instead of queueing.
//
// # Degraded embeddings
//
// When the embedding service fails, chunks are still indexed with a zero
// vector: they remain findable by keyword search and are excluded from
// semantic search. Statistics.Degraded counts them.
package indexer
