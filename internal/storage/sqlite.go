package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/gokb/pkg/types"
)

// SQLiteStorage implements KeywordIndex on SQLite FTS5
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer; also keeps :memory: on one connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the keyword index at dbPath.
// Use ":memory:" for a throwaway index.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", types.ErrIndexUnavailable, err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %v", types.ErrIndexUnavailable, err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) AddDocuments(ctx context.Context, chunks []types.KnowledgeChunk) (int, error) {
	return addDocumentsWithQuerier(ctx, t.tx, chunks)
}

func (t *sqliteTx) DeleteBySource(ctx context.Context, source string) (int, error) {
	return deleteBySourceWithQuerier(ctx, t.tx, source)
}

// inTx runs fn in a transaction that is committed only if fn succeeds
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Document operations

// AddDocuments indexes chunks; either all rows are written or none
func (s *SQLiteStorage) AddDocuments(ctx context.Context, chunks []types.KnowledgeChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	var count int
	err := s.inTx(ctx, func(q querier) error {
		var err error
		count, err = addDocumentsWithQuerier(ctx, q, chunks)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// addDocumentsWithQuerier is the internal implementation that uses a querier
func addDocumentsWithQuerier(ctx context.Context, q querier, chunks []types.KnowledgeChunk) (int, error) {
	for i := range chunks {
		chunk := &chunks[i]
		if err := chunk.Validate(); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}

		title := chunk.Title()
		tags := strings.Join(chunk.Tags(), ", ")

		res, err := q.ExecContext(ctx, `
			INSERT INTO knowledge_fts (content, title, tags, source, terms)
			VALUES (?, ?, ?, ?, ?)
		`, chunk.Content, title, tags, chunk.Source, indexTerms(chunk.Content, title, tags, chunk.Source))
		if err != nil {
			return 0, fmt.Errorf("failed to insert document: %w", err)
		}

		rowID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}

		metadataJSON, err := json.Marshal(chunk.FullMetadata())
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO knowledge_meta (fts_rowid, source, chunk_index, metadata, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, rowID, chunk.Source, chunk.ChunkIndex, string(metadataJSON), time.Now().UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert metadata: %w", err)
		}
	}
	return len(chunks), nil
}

// DeleteBySource removes every chunk of source from both tables
func (s *SQLiteStorage) DeleteBySource(ctx context.Context, source string) (int, error) {
	var count int
	err := s.inTx(ctx, func(q querier) error {
		var err error
		count, err = deleteBySourceWithQuerier(ctx, q, source)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// deleteBySourceWithQuerier is the internal implementation that uses a querier
func deleteBySourceWithQuerier(ctx context.Context, q querier, source string) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_meta WHERE source = ?", source).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err := q.ExecContext(ctx, `
		DELETE FROM knowledge_fts
		WHERE rowid IN (SELECT fts_rowid FROM knowledge_meta WHERE source = ?)
	`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM knowledge_meta WHERE source = ?", source); err != nil {
		return 0, fmt.Errorf("failed to delete metadata: %w", err)
	}
	return count, nil
}

// Count returns the number of indexed chunks
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_meta").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return count, nil
}

// SourceTags returns the distinct tags of each indexed source
func (s *SQLiteStorage) SourceTags(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, tags FROM knowledge_fts")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]map[string]bool)
	result := make(map[string][]string)
	for rows.Next() {
		var source, tags string
		if err := rows.Scan(&source, &tags); err != nil {
			return nil, err
		}
		if _, ok := result[source]; !ok {
			result[source] = []string{}
			seen[source] = make(map[string]bool)
		}
		for _, tag := range strings.Split(tags, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[source][tag] {
				continue
			}
			seen[source][tag] = true
			result[source] = append(result[source], tag)
		}
	}
	return result, rows.Err()
}

// Stats reports index statistics
func (s *SQLiteStorage) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{
		Driver:    DriverName,
		BuildMode: BuildMode,
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT source) FROM knowledge_meta",
	).Scan(&stats.Documents, &stats.Sources)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version.String()

	if s.path != "" && s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			stats.SizeBytes = info.Size()
		}
	}
	return stats, nil
}

// Link operations

// Link is a directed, weighted relation between two sources
type Link struct {
	Source string
	Target string
	Weight float64
}

// AddLink records a manual link, replacing any existing weight
func (s *SQLiteStorage) AddLink(ctx context.Context, link Link) error {
	if link.Source == "" || link.Target == "" {
		return fmt.Errorf("%w: link endpoints are required", types.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_links (source, target, weight) VALUES (?, ?, ?)
		ON CONFLICT(source, target) DO UPDATE SET weight = excluded.weight
	`, link.Source, link.Target, link.Weight)
	if err != nil {
		return fmt.Errorf("failed to add link: %w", err)
	}
	return nil
}

// Links returns every manual link
func (s *SQLiteStorage) Links(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, target, weight FROM knowledge_links ORDER BY source, target")
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.Source, &l.Target, &l.Weight); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// DeleteLinks removes every link touching source
func (s *SQLiteStorage) DeleteLinks(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_links WHERE source = ? OR target = ?", source, source)
	if err != nil {
		return fmt.Errorf("failed to delete links: %w", err)
	}
	return nil
}

// decodeMetadata parses a stored metadata column, tolerating bad rows
func decodeMetadata(raw string) types.Metadata {
	md := types.Metadata{}
	if raw == "" {
		return md
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return types.Metadata{}
	}
	return md
}

// isMissingTable reports whether err comes from querying a dropped table
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

var errEmptyMatch = errors.New("query has no searchable terms")
