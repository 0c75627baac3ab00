// Package chunker splits document text into bounded-size segments.
//
// Two strategies are provided:
//
//   - Split cuts text along sentence terminators (。！？!? and newlines) and
//     greedily packs the fragments. The embedding client uses it to keep
//     remote requests under its length threshold.
//   - Paragraphs packs blank-line separated paragraphs and is used when
//     ingesting whole documents. Oversized packs fall back to Split.
//
// Lengths are measured in characters (runes), not bytes, so CJK text is
// sized the same way it is read.
//
// # Basic Usage
//
//	for i, piece := range chunker.Split(text, 300) {
//	    fmt.Printf("%d: %s\n", i, piece)
//	}
//
//	chunks := chunker.Document("notes.md", text, 300, metadata)
//
// Neither function returns an error. Non-empty input always yields at
// least one chunk.
package chunker
