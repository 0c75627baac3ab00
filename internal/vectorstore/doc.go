// Package vectorstore is the semantic side of the hybrid engine: a
// chromem-go collection holding one document per knowledge chunk.
//
// Documents carry their content, the chunk metadata (JSON encoded in the
// "metadata" key) and flat "source" / "chunk_index" keys used for
// filtering. Chunks whose embedding fell back to the zero vector are stored
// with embedded=false and never returned by Search, since cosine similarity
// is undefined for them.
//
// Scores follow the engine-wide "lower is better" convention: a result's
// Score is the cosine distance 1 - similarity.
//
//	store, err := vectorstore.New(vectorstore.Config{
//	    Path:      "data/vectors",
//	    Dimension: 1024,
//	})
//	n, err := store.Add(ctx, chunks, vectors)
//	results, err := store.Search(ctx, queryVector, 10)
package vectorstore
