// Package batch embeds collections and streams of items with bounded
// concurrency.
//
// A Processor groups items into batches of Config.BatchSize, issues one
// provider call per batch and maps the returned vectors back to items by
// position. Calls are retried with exponential backoff and each attempt is
// bounded by Config.CallTimeout. A counting semaphore shared by every method
// keeps at most Config.MaxConcurrent calls in flight.
//
// Every submitted item yields exactly one BatchResult. A call that fails as
// a whole fails each of its items; a missing vector fails only its own item.
//
// ChunkedProcessor splits long text with the chunker package before
// embedding and can average the chunk vectors back into one per item.
package batch
