package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/scriptrag/internal/indexer"
	"github.com/dshills/scriptrag/internal/searcher"
	"github.com/dshills/scriptrag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress  = -32002 // Another indexing operation is already running
	ErrorCodeSemanticUnavailable = -32003 // Semantic search requested without an embedder
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

const maxReportedErrors = 5

// handleSearchScript handles the search_script tool invocation
func (s *Server) handleSearchScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	contentTypes, err := getContentTypes(args, "search_types")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_types", map[string]interface{}{
			"param":   "search_types",
			"reason":  err.Error(),
			"allowed": contentTypeNames(),
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	offset := getIntDefault(args, "offset", 0)
	if offset < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "offset must not be negative", map[string]interface{}{
			"param": "offset",
			"value": offset,
		})
	}

	mode, err := searcher.ParseSearchMode(getStringDefault(args, "search_mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"allowed": []string{"hybrid", "lexical", "semantic"},
		})
	}

	filter, _ := args["entity_filter"].(map[string]interface{})

	resp, err := s.app.Search(ctx, searcher.Request{
		Query:        query,
		Mode:         mode,
		Types:        contentTypes,
		Limit:        limit,
		Offset:       offset,
		MinScore:     getFloatDefault(args, "min_score", 0),
		EntityFilter: filter,
		BoostRecent:  getBoolDefault(args, "boost_recent", false),
		UseCache:     true,
	})
	if err != nil {
		return nil, searchError(err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"id":              r.ID,
			"type":            r.Type,
			"content":         r.Content,
			"score":           r.Score,
			"composite_score": r.CompositeScore,
			"source":          r.Source,
			"highlights":      r.Highlights,
			"metadata":        r.Metadata,
		})
	}

	response := map[string]interface{}{
		"request_id":     resp.RequestID,
		"query":          query,
		"mode":           resp.Mode,
		"results":        results,
		"total_results":  resp.TotalResults,
		"offset":         offset,
		"source_counts":  resp.SourceCounts,
		"failed_sources": resp.FailedSources,
		"cache_hit":      resp.CacheHit,
		"duration_ms":    resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchEntities handles the search_entities tool invocation
func (s *Server) handleSearchEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	category := getStringDefault(args, "category", "")
	if _, err := types.ValidateEntityCategory(category); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid category", map[string]interface{}{
			"param":   "category",
			"value":   category,
			"allowed": entityCategoryNames(),
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	found, err := s.app.Searcher.SearchEntities(ctx, query, category, limit)
	if err != nil {
		return nil, searchError(err)
	}

	results := make([]map[string]interface{}, 0, len(found))
	for _, r := range found {
		results = append(results, map[string]interface{}{
			"id":         r.ID,
			"type":       r.Type,
			"content":    r.Content,
			"score":      r.Score,
			"highlights": r.Highlights,
			"metadata":   r.Metadata,
		})
	}

	response := map[string]interface{}{
		"query":    query,
		"category": category,
		"results":  results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexEmbeddings handles the index_embeddings tool invocation
func (s *Server) handleIndexEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	contentTypes, err := getContentTypes(args, "content_types")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid content_types", map[string]interface{}{
			"param":   "content_types",
			"reason":  err.Error(),
			"allowed": contentTypeNames(),
		})
	}

	stats, err := s.app.Index(ctx, indexer.Options{
		Model: getStringDefault(args, "model", ""),
		Force: getBoolDefault(args, "force", false),
		Types: contentTypes,
	})
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"run_id":      stats.RunID,
		"model":       stats.Model,
		"items_total": stats.ItemsTotal,
		"embedded":    stats.Embedded,
		"from_cache":  stats.FromCache,
		"skipped":     stats.Skipped,
		"chunked":     stats.Chunked,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	st := status.Storage
	lastEmbedded := ""
	if !st.LastEmbeddedAt.IsZero() {
		lastEmbedded = st.LastEmbeddedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"provider": status.Provider,
		"model":    status.Model,
		"storage": map[string]interface{}{
			"content_counts":   st.ContentCounts,
			"content_total":    st.ContentTotal,
			"embedding_counts": st.EmbeddingCounts,
			"embeddings_total": st.EmbeddingsTotal,
			"dimensions":       st.Dimensions,
			"cached_vectors":   st.CachedVectors,
			"last_embedded_at": lastEmbedded,
			"schema_version":   st.SchemaVersion,
			"build_mode":       st.BuildMode,
			"index_size_mb":    fmt.Sprintf("%.2f", st.IndexSizeMB),
		},
		"cache": map[string]interface{}{
			"strategy":    status.Cache.Strategy,
			"entries":     status.Cache.Entries,
			"bytes":       status.Cache.Bytes,
			"hits":        status.Cache.Hits,
			"misses":      status.Cache.Misses,
			"evictions":   status.Cache.Evictions,
			"hit_rate":    status.Cache.HitRate,
			"oldest_age":  status.Cache.OldestAge.String(),
			"average_age": status.Cache.AverageAge.String(),
		},
		"cached_searches": status.SearchCached,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCleanupCache handles the cleanup_cache tool invocation
func (s *Server) handleCleanupCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw := getStringDefault(args, "older_than", "")
	maxAge, err := time.ParseDuration(raw)
	if err != nil || maxAge < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "older_than must be a non-negative duration", map[string]interface{}{
			"param": "older_than",
			"value": raw,
		})
	}

	res, err := s.app.CleanupCache(ctx, maxAge, getBoolDefault(args, "prune_embeddings", false))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "cache cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"older_than":         maxAge.String(),
		"memory_removed":     res.Memory,
		"durable_removed":    res.Durable,
		"embeddings_removed": res.Embeddings,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps a search failure to an MCP error
func searchError(err error) error {
	switch {
	case errors.Is(err, searcher.ErrSemanticUnavailable):
		return newMCPError(ErrorCodeSemanticUnavailable, "semantic search unavailable", nil)
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrEmptyContent),
		errors.Is(err, types.ErrInvalidLimit):
		return newMCPError(ErrorCodeInvalidParams, "invalid search request", map[string]interface{}{
			"reason": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getContentTypes parses an optional array of content type names
func getContentTypes(args map[string]interface{}, key string) ([]types.ContentType, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var names []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			names = append(names, name)
		}
	case []string:
		names = v
	default:
		return nil, fmt.Errorf("expected array, got %T", raw)
	}

	out := make([]types.ContentType, 0, len(names))
	for _, name := range names {
		t, err := types.ParseContentType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
