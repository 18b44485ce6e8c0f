package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/scriptrag/pkg/types"
)

func contentTypeNames() []string {
	names := make([]string, len(types.AllContentTypes))
	for i, t := range types.AllContentTypes {
		names[i] = string(t)
	}
	return names
}

func entityCategoryNames() []string {
	names := make([]string, len(types.EntityCategories))
	for i, t := range types.EntityCategories {
		names[i] = string(t)
	}
	return names
}

// searchScriptTool returns the tool definition for search_script
func searchScriptTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_script",
		Description: "Search screenplay content (scenes, dialogue, action, characters, locations, objects) with keyword and semantic matching",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"search_types": map[string]interface{}{
					"type":        "array",
					"description": "Content types to search; empty searches every type",
					"items": map[string]interface{}{
						"type": "string",
						"enum": contentTypeNames(),
					},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ranked results to skip",
					"default":     0,
					"minimum":     0,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum composite score (0.0-1.0); 0 disables the threshold",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"entity_filter": map[string]interface{}{
					"type":        "object",
					"description": "Metadata equality filter, e.g. {\"character\": \"SARAH\", \"scene_id\": \"s12\"}",
				},
				"boost_recent": map[string]interface{}{
					"type":        "boolean",
					"description": "Favor content later in the script",
					"default":     false,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (lexical + semantic), lexical, or semantic",
					"enum":        []string{"hybrid", "lexical", "semantic"},
					"default":     "hybrid",
				},
			},
			Required: []string{"query"},
		},
	}
}

// searchEntitiesTool returns the tool definition for search_entities
func searchEntitiesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_entities",
		Description: "Search one named entity category (characters, locations or objects) by keyword",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Entity category",
					"enum":        entityCategoryNames(),
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query", "category"},
		},
	}
}

// indexEmbeddingsTool returns the tool definition for index_embeddings
func indexEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_embeddings",
		Description: "Generate and store embeddings for stored screenplay content so it can be searched semantically",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed items whose content is unchanged",
					"default":     false,
				},
				"content_types": map[string]interface{}{
					"type":        "array",
					"description": "Content types to index; empty indexes every type",
					"items": map[string]interface{}{
						"type": "string",
						"enum": contentTypeNames(),
					},
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Embedding model; defaults to the configured model",
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored content, embeddings, cache statistics and provider configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// cleanupCacheTool returns the tool definition for cleanup_cache
func cleanupCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cleanup_cache",
		Description: "Remove cached embeddings older than a given age",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"older_than": map[string]interface{}{
					"type":        "string",
					"description": "Maximum age to keep, as a Go duration (e.g. \"720h\")",
				},
				"prune_embeddings": map[string]interface{}{
					"type":        "boolean",
					"description": "Also delete stored embeddings older than the cutoff",
					"default":     false,
				},
			},
			Required: []string{"older_than"},
		},
	}
}
