package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SummarizeRequests  atomic.Int64
	AskRequests        atomic.Int64
	VideoInfoRequests  atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	TranscriptRequests atomic.Int64
	TranscriptErrors   atomic.Int64
	EmbeddingCalls     atomic.Int64
	EmbeddingErrors    atomic.Int64
	RAGRequests        atomic.Int64
	RAGFallbacks       atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache counters.
func GetMetrics() map[string]int64 {
	var hits, misses int64
	if cfg.Cache != nil {
		hits = cfg.Cache.CacheHits()
		misses = cfg.Cache.CacheMisses()
	}
	return map[string]int64{
		"summarize_requests":  metrics.SummarizeRequests.Load(),
		"ask_requests":        metrics.AskRequests.Load(),
		"video_info_requests": metrics.VideoInfoRequests.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_errors":   metrics.TranscriptErrors.Load(),
		"embedding_calls":     metrics.EmbeddingCalls.Load(),
		"embedding_errors":    metrics.EmbeddingErrors.Load(),
		"rag_requests":        metrics.RAGRequests.Load(),
		"rag_fallbacks":       metrics.RAGFallbacks.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"summarize_requests", "ask_requests", "video_info_requests",
		"llm_calls", "llm_errors",
		"transcript_requests", "transcript_errors",
		"embedding_calls", "embedding_errors",
		"rag_requests", "rag_fallbacks",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrSummarizeRequests() { metrics.SummarizeRequests.Add(1) }
func IncrAskRequests()       { metrics.AskRequests.Add(1) }
func IncrVideoInfoRequests() { metrics.VideoInfoRequests.Add(1) }
func IncrLLMCalls()          { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()         { metrics.LLMErrors.Add(1) }
func IncrEmbeddingCalls()    { metrics.EmbeddingCalls.Add(1) }
func IncrEmbeddingErrors()   { metrics.EmbeddingErrors.Add(1) }
func IncrRAGRequests()       { metrics.RAGRequests.Add(1) }
func IncrRAGFallbacks()      { metrics.RAGFallbacks.Add(1) }

// Incrementors for sources/ sub-package.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptErrors()   { metrics.TranscriptErrors.Add(1) }
