// Package ranker merges result sets from independent sources into one
// ranked, deduplicated list.
//
// The composite score of a result is
//
//	base × type_weight × (ExactMatchBoost if the query phrase occurs)
//	  + density boost + metadata boost + recency boost
//
// capped at 1.0. Weights come from Config, which can be loaded from a YAML
// profile:
//
//	type_weights:
//	  scene: 1.0
//	  dialogue: 0.95
//	metadata_boost: 0.15
//
// The density boost is density_weight times the fraction of query terms
// found, bounded by max_density_boost. With the default weight of 0.1 the
// bound is never reached; it limits profiles that raise the weight.
//
// RankResults sorts before deduplicating, so when two sources return the
// same (type, id) the higher-scoring copy survives. FuseRRF is available for
// callers that prefer rank-based fusion.
package ranker
