// Package embedder talks to embedding providers and caches their output.
//
// # Providers
//
// A Provider turns a batch of texts into vectors. Three are built in:
//
//   - OpenAIProvider speaks the OpenAI embeddings protocol through go-openai.
//     Jina AI is reached through the same type with a different base URL.
//   - LocalProvider hashes words into a fixed-size vector. It needs no
//     network and is the fallback when no API key is configured.
//   - RateLimitedProvider wraps any provider with a token bucket.
//
// Provider selection follows Config:
//
//  1. If Config.Provider is set, use it
//  2. Else if a Jina key is set, use Jina AI
//  3. Else if an OpenAI key is set, use OpenAI
//  4. Else fall back to the local provider
//
// # Caching
//
// Cache keys vectors by (content hash, model):
//
//	cache := embedder.NewCache(embedder.DefaultCacheConfig(),
//	    embedder.WithDurableStore(store))
//
//	hash := embedder.ComputeHash(text)
//	if v, ok := cache.Get(ctx, hash, model); ok {
//	    return v
//	}
//
// Entries found only in the durable store are promoted into memory on read.
//
// # Retries
//
// RetryWithBackoff retries transient failures with exponential backoff.
// Errors wrapped with Permanent, invalid input and context cancellation stop
// the loop at once.
package embedder
