package tubeserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/history"
	"github.com/anatolykoptev/go_tube/internal/engine/sources"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
)

func registerSummarize(server *mcp.Server, store history.Store) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_video",
		Description: "Summarize a YouTube video from its transcript. Supports summary types brief, detailed, key_points, chapters and lengths short, medium, long. Results are cached per video/type/length combination.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.SummarizeInput) (*mcp.CallToolResult, engine.SummarizeOutput, error) {
		if input.URL == "" {
			return nil, engine.SummarizeOutput{}, fmt.Errorf("url is required")
		}
		engine.IncrSummarizeRequests()

		summaryType := engine.NormSummaryType(input.SummaryType)
		summaryLength := engine.NormSummaryLength(input.SummaryLength)

		videoID := sources.ExtractVideoID(input.URL)
		if videoID == "" {
			return nil, engine.SummarizeOutput{}, fmt.Errorf("not a YouTube URL or video ID: %q", input.URL)
		}

		cacheKey := engine.SummaryKey(videoID, summaryType, summaryLength)
		if rec, ok := toolutil.CacheLoadJSON[engine.SummaryRecord](ctx, cacheKey); ok && rec.SummaryText != "" {
			return nil, summarizeOutput(videoID, "", rec, true), nil
		}
		if store != nil {
			if rec, found, err := store.Summary(ctx, videoID, summaryType, summaryLength); err == nil && found {
				toolutil.CacheStoreJSON(ctx, cacheKey, rec, engine.TTLSummary)
				return nil, summarizeOutput(videoID, "", rec, true), nil
			}
		}

		info, err := loadTranscript(ctx, input.URL, toolutil.ParseLangs(input.Languages))
		if err != nil {
			return nil, engine.SummarizeOutput{}, fmt.Errorf("extract transcript: %w", err)
		}

		transcript := engine.TruncateTranscript(info.Transcript, engine.Cfg.MaxTranscriptTokens)
		prompt := engine.BuildSummaryPrompt(transcript, summaryType, summaryLength)
		summary, err := engine.CallLLM(ctx, "", prompt)
		if err != nil {
			return nil, engine.SummarizeOutput{}, fmt.Errorf("summarize: %w", err)
		}

		rec := engine.SummaryRecord{
			VideoID:       videoID,
			SummaryType:   summaryType,
			SummaryLength: summaryLength,
			SummaryText:   summary,
			GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if store != nil {
			if err := store.SaveSummary(ctx, rec); err != nil {
				slog.Warn("history: save summary failed", slog.String("video_id", videoID), slog.Any("error", err))
			}
		}
		toolutil.CacheStoreJSON(ctx, cacheKey, rec, engine.TTLSummary)

		return nil, summarizeOutput(videoID, info.Title, rec, false), nil
	})
}

func summarizeOutput(videoID, title string, rec engine.SummaryRecord, cached bool) engine.SummarizeOutput {
	return engine.SummarizeOutput{
		VideoID:       videoID,
		Title:         title,
		SummaryType:   rec.SummaryType,
		SummaryLength: rec.SummaryLength,
		Summary:       rec.SummaryText,
		Cached:        cached,
		GeneratedAt:   rec.GeneratedAt,
	}
}
