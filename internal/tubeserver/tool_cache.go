package tubeserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

type cacheStatsInput struct{}

type cacheClearOutput struct {
	Cleared bool   `json:"cleared"`
	Message string `json:"message,omitempty"`
}

func registerCacheStats(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report response cache occupancy: backend, key counts per namespace, memory usage, hit/miss and eviction counters.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input cacheStatsInput) (*mcp.CallToolResult, engine.CacheStats, error) {
		c := engine.Cfg.Cache
		if c == nil {
			return nil, engine.CacheStats{}, fmt.Errorf("cache is not configured")
		}
		return nil, c.Stats(ctx), nil
	})
}

func registerCacheClear(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_clear",
		Description: "Clear the entire response cache. Requires confirm=true.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.CacheClearInput) (*mcp.CallToolResult, cacheClearOutput, error) {
		if !input.Confirm {
			return nil, cacheClearOutput{Message: "pass confirm=true to clear the cache"}, nil
		}
		c := engine.Cfg.Cache
		if c == nil {
			return nil, cacheClearOutput{}, fmt.Errorf("cache is not configured")
		}
		if !c.Clear(ctx) {
			return nil, cacheClearOutput{Message: "clear failed, see server logs"}, nil
		}
		return nil, cacheClearOutput{Cleared: true}, nil
	})
}
