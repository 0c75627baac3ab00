package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/gokb/pkg/types"
)

// DefaultSearchLimit applies when a non-positive limit is requested
const DefaultSearchLimit = 10

// highlightTrim is stripped from both ends of each query keyword
const highlightTrim = ".,!?;:，。！？；："

// minHighlightRunes is the shortest keyword that gets highlighted
const minHighlightRunes = 2

// Search runs a BM25-ranked full-text query. The score is SQLite's bm25(),
// where more relevant rows are more negative, so ascending order is best
// first.
func (s *SQLiteStorage) Search(ctx context.Context, query string, limit int, highlight bool) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > types.MaxResults {
		limit = types.MaxResults
	}

	match, err := buildMatchQuery(query)
	if errors.Is(err, errEmptyMatch) {
		return []types.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.fts_id, r.content, r.title, r.tags, r.source, r.score,
		       COALESCE(m.metadata, '{}')
		FROM (
			SELECT rowid AS fts_id, content, title, tags, source,
			       bm25(knowledge_fts) AS score
			FROM knowledge_fts
			WHERE knowledge_fts MATCH ?
			ORDER BY score
			LIMIT ?
		) AS r
		LEFT JOIN knowledge_meta m ON m.fts_rowid = r.fts_id
		ORDER BY r.score, r.fts_id
	`, match, limit)
	if err != nil {
		if isMissingTable(err) {
			return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, limit)
	for rows.Next() {
		var (
			id                          int64
			content, title, tags, source string
			score                       float64
			metadataJSON                string
		)
		if err := rows.Scan(&id, &content, &title, &tags, &source, &score, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan FTS row: %w", err)
		}

		md := decodeMetadata(metadataJSON)
		if _, ok := md[types.MetaTitle]; !ok && title != "" {
			md[types.MetaTitle] = types.StringValue(title)
		}

		result := types.SearchResult{
			Content:  content,
			Source:   source,
			Metadata: md,
			Score:    score,
			Origin:   types.OriginKeyword,
		}
		if highlight {
			result.Plain = content
			result.Content = Highlight(content, query)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read FTS rows: %w", err)
	}
	return results, nil
}

// Highlight wraps every case-insensitive occurrence of each query keyword
// in **. Keywords are the whitespace-separated words of query with
// punctuation trimmed; words shorter than two characters are skipped.
// Keywords are applied one after another, so overlapping matches are not
// merged.
func Highlight(text, query string) string {
	highlighted := text
	for _, word := range strings.Fields(query) {
		keyword := strings.Trim(word, highlightTrim)
		if utf8.RuneCountInString(keyword) < minHighlightRunes {
			continue
		}
		pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
		highlighted = pattern.ReplaceAllStringFunc(highlighted, func(m string) string {
			return "**" + m + "**"
		})
	}
	return highlighted
}

// isCJK reports whether r belongs to a script written without spaces
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// segment puts spaces around every CJK rune so the unicode61 tokenizer
// indexes them one character per token
func segment(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		if isCJK(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// indexTerms builds the tokenized column from every searchable field
func indexTerms(content, title, tags, source string) string {
	return segment(strings.Join([]string{title, tags, source, content}, "\n"))
}

// buildMatchQuery converts free text into an FTS5 expression: one quoted
// phrase per whitespace-separated word, all of which must match. Only
// letters and digits survive, so FTS5 syntax in the input has no effect.
func buildMatchQuery(query string) (string, error) {
	var phrases []string
	for _, word := range strings.Fields(query) {
		tokens := strings.FieldsFunc(segment(word), func(r rune) bool {
			return unicode.IsSpace(r) || !(unicode.IsLetter(r) || unicode.IsNumber(r))
		})
		if len(tokens) == 0 {
			continue
		}
		phrases = append(phrases, `"`+strings.Join(tokens, " ")+`"`)
	}
	if len(phrases) == 0 {
		return "", errEmptyMatch
	}
	return strings.Join(phrases, " "), nil
}
