package tools

import (
	"context"
	"encoding/json"
	"time"
)

// NewCatalogRefreshTool creates the catalog_refresh tool, forcing a fetch of
// the remote model catalog regardless of cache age.
func NewCatalogRefreshTool(catalog *Catalog) Definition {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	}

	return Definition{
		Name:        "catalog_refresh",
		Description: "Force-refresh the cached catalog of models offered by the remote provider.",
		Schema:      schema,
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			snap, err := catalog.Get(ctx, true, 0)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(map[string]interface{}{
				"ok":         true,
				"models":     len(snap.Models),
				"fetched_at": snap.FetchedAt.Format(time.RFC3339),
			})
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// NewCatalogSearchTool creates the catalog_search tool over the cached
// snapshot.
func NewCatalogSearchTool(catalog *Catalog) Definition {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Free-text search over model ids, names and descriptions",
			},
			"sort": map[string]interface{}{
				"type":        "string",
				"description": "Sort order. Defaults to recent without a query, relevance with one.",
				"enum":        []interface{}{SortRecent, SortRelevance},
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results, between 1 and 25 (default 5)",
			},
		},
		"required": []interface{}{},
	}

	return Definition{
		Name:        "catalog_search",
		Description: "Search the remote model catalog, for example to find newly released models.",
		Schema:      schema,
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			args, err := parseArgs(raw)
			if err != nil {
				return "", err
			}
			query := stringArg(args, "query")
			sortMode := stringArg(args, "sort")
			limit := 0
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}

			snap, err := catalog.Get(ctx, false, 0)
			if err != nil {
				return "", err
			}
			results := SearchCatalog(snap.Models, query, sortMode, limit)

			b, err := json.Marshal(map[string]interface{}{
				"results":    results,
				"total":      len(snap.Models),
				"fetched_at": snap.FetchedAt.Format(time.RFC3339),
			})
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
