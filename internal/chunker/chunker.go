package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/gokb/pkg/types"
)

const (
	// DefaultMaxChars is the default chunk size in characters (runes)
	DefaultMaxChars = 300

	// paragraphSeparator separates paragraphs in document text
	paragraphSeparator = "\n\n"
)

// isSentenceEnd reports whether r terminates a sentence fragment
func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?', '\n':
		return true
	}
	return false
}

// runeLen returns the length of s in characters
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Split breaks text into chunks of at most maxChars characters along
// sentence boundaries. Text that already fits is returned unchanged.
//
// Fragments are packed greedily; a single fragment longer than maxChars
// becomes its own chunk. Chunks are trimmed and blank chunks dropped.
// Split returns nil only for empty input.
func Split(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if runeLen(text) <= maxChars {
		return []string{text}
	}

	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, frag := range sentences(text) {
		n := runeLen(frag)
		if bufLen > 0 && bufLen+n > maxChars {
			flush()
		}
		buf.WriteString(frag)
		bufLen += n
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// sentences splits text after every sentence terminator, keeping the
// terminator attached to the preceding fragment.
func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if isSentenceEnd(r) {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// Paragraphs packs blank-line separated paragraphs into chunks. A paragraph
// is appended to the current chunk while the result stays below maxChars;
// any packed chunk still longer than maxChars is passed through Split.
func Paragraphs(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var packed []string
	current := ""
	for _, p := range strings.Split(text, paragraphSeparator) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current == "" {
			current = p
			continue
		}
		if runeLen(current)+runeLen(paragraphSeparator)+runeLen(p) < maxChars {
			current += paragraphSeparator + p
			continue
		}
		packed = append(packed, current)
		current = p
	}
	if current != "" {
		packed = append(packed, current)
	}

	var chunks []string
	for _, c := range packed {
		if runeLen(c) > maxChars {
			chunks = append(chunks, Split(c, maxChars)...)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// Document chunks a source document and stamps each piece with its
// position and a copy of the document metadata.
func Document(source, text string, maxChars int, metadata types.Metadata) []types.KnowledgeChunk {
	pieces := Paragraphs(text, maxChars)
	chunks := make([]types.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, types.KnowledgeChunk{
			Content:     piece,
			Source:      source,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
			Metadata:    metadata.Clone(),
		})
	}
	return chunks
}
