// go_tube — YouTube summarization & Q&A MCP server.
//
// Exposes five MCP tools: summarize_video, ask_video, video_info,
// cache_stats, cache_clear. Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/history"
	"github.com/anatolykoptev/go_tube/internal/tubeserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	initEngine()

	slog.Info("starting go_tube",
		slog.String("port", mcpPort),
	)

	if c := engine.Cfg.Cache; c != nil {
		defer c.Close()
	}

	store := openHistory()
	if store != nil {
		defer store.Close()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_tube",
		Version: version,
	}, nil)

	tubeserver.RegisterTools(server, store)
	slog.Info("tools registered", slog.Int("count", 5))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_tube",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		MaxTotalTokens:      env.Int("MAX_TOTAL_TOKENS", 1048576),
		MaxTranscriptTokens: env.Int("MAX_TRANSCRIPT_TOKENS", 800000),
		MaxHistoryTokens:    env.Int("MAX_HISTORY_TOKENS", 150000),
		MaxQuestionTokens:   env.Int("MAX_QUESTION_TOKENS", 2000),
		ReserveTokens:       env.Int("RESERVE_TOKENS", 65536),

		ChunkSizeWords:    env.Int("RAG_CHUNK_SIZE", 500),
		ChunkOverlapWords: env.Int("RAG_CHUNK_OVERLAP", 100),
		TopKChunks:        env.Int("RAG_TOP_K", 5),

		EmbedAPIBase:     env.Str("EMBED_API_BASE", ""),
		EmbedAPIKey:      env.Str("EMBED_API_KEY", env.Str("LLM_API_KEY", "")),
		EmbedModel:       env.Str("EMBED_MODEL", "text-embedding-004"),
		EmbedConcurrency: env.Int("EMBED_CONCURRENCY", 4),
		EmbedRatePerSec:  env.Float("EMBED_RATE_PER_SEC", 5),

		FetchTimeout: env.Duration("FETCH_TIMEOUT", 10*time.Second),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	apiBase := env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai")
	apiKey := env.Str("LLM_API_KEY", "")
	fallbackKeys := env.List("LLM_API_KEY_FALLBACKS", "")
	temperature := env.Float("LLM_TEMPERATURE", 0.3)
	maxTokens := env.Int("LLM_MAX_TOKENS", 16384)

	c.Models = append(
		[]string{env.Str("LLM_MODEL", "gemini-2.5-flash")},
		env.List("LLM_MODEL_FALLBACKS", "gemini-2.0-flash")...,
	)
	for _, model := range c.Models {
		client := llm.NewClient(apiBase, apiKey, model,
			llm.WithFallbackKeys(fallbackKeys),
			llm.WithMaxTokens(maxTokens),
			llm.WithTemperature(temperature),
			llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		)
		c.Completers = append(c.Completers, func(ctx context.Context, system, prompt string) (string, error) {
			return client.Complete(ctx, system, prompt)
		})
	}

	c.Cache = engine.NewCache(
		env.Str("REDIS_URL", ""),
		env.Float("CACHE_MAX_MEMORY_PERCENT", 90),
		env.Int("CACHE_MAX_KEYS", 10000),
	)

	engine.Init(c)
}

// openHistory opens the conversation store. DATABASE_URL selects
// postgres; HISTORY_DB_PATH (or the default location) selects SQLite.
// Failure disables history rather than aborting startup.
func openHistory() history.Store {
	dsn := env.Str("DATABASE_URL", env.Str("HISTORY_DB_PATH", ""))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := history.Open(ctx, dsn)
	if err != nil {
		slog.Warn("history store init failed, continuing without history", slog.Any("error", err))
		return nil
	}
	return store
}
