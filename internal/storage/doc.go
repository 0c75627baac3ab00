// Package storage provides the SQLite FTS5 keyword index.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - knowledge_fts: FTS5 table holding content, title, tags and source for
//     display plus a tokenized "terms" column
//   - knowledge_meta: chunk metadata as JSON, tied 1:1 to an FTS row
//   - knowledge_links: manual source-to-source links used by the linker
//
// CJK text has no word boundaries, so every CJK rune is written space
// separated into the terms column and queries are segmented the same way.
// A query for 筑基 becomes the phrase "筑 基" and matches 筑基期.
//
// # Basic Usage
//
//	idx, err := storage.NewSQLiteStorage("data/knowledge_fts.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	n, err := idx.AddDocuments(ctx, chunks)
//	results, err := idx.Search(ctx, "筑基", 10, true)
//
// Scores are SQLite bm25() values: more relevant rows score lower, and
// results come back in ascending score order. With highlight set, Content
// carries **keyword** markers and Plain holds the original text.
//
// # Transactions
//
// Re-ingesting a source replaces it atomically:
//
//	tx, err := idx.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	tx.DeleteBySource(ctx, source)
//	tx.AddDocuments(ctx, chunks)
//
//	return tx.Commit()
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (cgo_sqlite tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires a C compiler and the sqlite_fts5 tag
//
//     CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./...
package storage
