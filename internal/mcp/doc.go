// Package mcp implements the Model Context Protocol (MCP) server for scriptrag.
//
// The MCP server exposes five tools to AI writing assistants:
//   - search_script: Hybrid lexical and semantic search over screenplay content
//   - search_entities: Keyword search within characters, locations or objects
//   - index_embeddings: Embed stored content for semantic search
//   - get_status: Storage, cache and provider statistics
//   - cleanup_cache: Age-based removal of cached embeddings
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	scriptrag serve
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Tool: search_script
//
//	Request:
//	{
//	  "name": "search_script",
//	  "arguments": {
//	    "query": "coffee at the diner",
//	    "search_types": ["dialogue", "action"],
//	    "limit": 10,
//	    "entity_filter": {"character": "SARAH"},
//	    "boost_recent": false,
//	    "search_mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "request_id": "4f7c...",
//	  "mode": "hybrid",
//	  "results": [
//	    {
//	      "rank": 1,
//	      "id": "d1",
//	      "type": "dialogue",
//	      "content": "Another cup of coffee, please.",
//	      "composite_score": 0.82,
//	      "source": "lexical:dialogue",
//	      "highlights": ["Another cup of coffee, please."]
//	    }
//	  ],
//	  "total_results": 3,
//	  "source_counts": {"lexical:dialogue": 1, "semantic": 2},
//	  "failed_sources": null
//	}
//
// A source that fails is listed in failed_sources and the remaining sources
// still answer.
//
// # Tool: index_embeddings
//
//	Request:
//	{
//	  "name": "index_embeddings",
//	  "arguments": {"force": false, "content_types": ["dialogue"]}
//	}
//
// Items whose text is unchanged since their last embedding are skipped
// unless force is set. Only one indexing run may be active at a time.
//
// # Error Codes
//
//   - -32602: Invalid parameters
//   - -32603: Internal error
//   - -32002: Indexing already in progress
//   - -32003: Semantic search unavailable
//   - -32004: Empty query
package mcp
