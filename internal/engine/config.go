package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Completer produces one model completion. main wraps each configured
// go-kit llm client into one of these; tests inject fakes.
type Completer func(ctx context.Context, system, prompt string) (string, error)

// Config holds all engine configuration, injected from main.
type Config struct {
	// Token budgets. Defaults sized for a 1M-token context window.
	MaxTotalTokens      int
	MaxTranscriptTokens int
	MaxHistoryTokens    int
	MaxQuestionTokens   int
	ReserveTokens       int

	// RAG chunking.
	ChunkSizeWords    int
	ChunkOverlapWords int
	TopKChunks        int

	// LLM. Models is an ordered fallback list; Completers holds one
	// configured client per model id, same order.
	Models     []string
	Completers []Completer

	// Embeddings (OpenAI-compatible endpoint). Empty base disables RAG.
	EmbedAPIBase     string
	EmbedAPIKey      string
	EmbedModel       string
	EmbedConcurrency int
	EmbedRatePerSec  float64

	// Cache.
	Cache *Cache

	FetchTimeout time.Duration
	HTTPClient   *http.Client
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, history).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration and checks
// that the per-part token budgets fit the total context window. A bad
// configuration is logged loudly but the process continues with the
// values as given, since every budgeting function degrades gracefully.
func Init(c Config) {
	cfg = c
	Cfg = &cfg

	if sum := c.MaxTranscriptTokens + c.MaxHistoryTokens + c.MaxQuestionTokens + c.ReserveTokens; sum > c.MaxTotalTokens {
		slog.Error("config: token budgets exceed total context window",
			slog.Int("budget_sum", sum),
			slog.Int("max_total_tokens", c.MaxTotalTokens),
		)
	}
	if c.ChunkOverlapWords >= c.ChunkSizeWords {
		slog.Error("config: chunk overlap must be smaller than chunk size",
			slog.Int("chunk_size", c.ChunkSizeWords),
			slog.Int("chunk_overlap", c.ChunkOverlapWords),
		)
	}
}

// HTTPClient returns the configured HTTP client, falling back to
// http.DefaultClient when none was set.
func HTTPClient() *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return http.DefaultClient
}
