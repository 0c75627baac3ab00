// Package embedder generates vector embeddings for knowledge chunks and queries.
//
// A Provider makes a single call to an embedding model. Three are built in:
// siliconflow (an OpenAI-compatible HTTP endpoint, the default when
// SILICONFLOW_API_KEY is set), openai (through langchaingo) and local
// (deterministic character n-gram vectors, no network).
//
// Client wraps a Provider with the behavior callers rely on:
//
//   - a content-addressed Cache keyed by the SHA-256 of the exact text,
//     persisted as one JSON file that is rewritten on every insert
//   - texts longer than the chunk threshold are split with chunker.Split,
//     embedded segment by segment and mean-pooled; only the pooled vector
//     is cached
//   - any provider failure yields a zero vector of the configured
//     dimension instead of an error, so callers can keep going with
//     keyword search
//   - an optional rate limiter in front of every remote call
//
// # Basic Usage
//
//	provider, err := embedder.New(embedder.Config{Provider: "siliconflow"})
//	if err != nil {
//	    return err
//	}
//	cache, err := embedder.OpenCache("./data/embedding_cache.json")
//	if err != nil {
//	    return err
//	}
//	client, err := embedder.NewClient(provider, cache, embedder.WithLogger(logger))
//
//	emb, err := client.Embed(ctx, "筑基期是修仙的第二个境界")
//	if emb.Degraded {
//	    // remote service failed; emb.Vector is all zeros
//	}
//
// # Failure Caching
//
// Fallback vectors are cached in memory only. The same failing text is not
// retried within a process, but a restart gets a fresh attempt.
//
// Embed and EmbedBatch only return an error for empty input.
package embedder
