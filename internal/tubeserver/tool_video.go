package tubeserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/sources"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
)

// cachedLanguages is the JSON shape of languages:<id> cache entries.
type cachedLanguages struct {
	VideoID   string                   `json:"video_id"`
	Languages []engine.CaptionLanguage `json:"languages"`
}

func registerVideoInfo(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_info",
		Description: "Get metadata for a YouTube video: title, thumbnail, available caption languages, and transcript size in tokens.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoInfoInput) (*mcp.CallToolResult, engine.VideoInfoOutput, error) {
		if input.URL == "" {
			return nil, engine.VideoInfoOutput{}, fmt.Errorf("url is required")
		}
		engine.IncrVideoInfoRequests()

		videoID := sources.ExtractVideoID(input.URL)
		if videoID == "" {
			return nil, engine.VideoInfoOutput{}, fmt.Errorf("not a YouTube URL or video ID: %q", input.URL)
		}

		cached := false
		info, ok := toolutil.CacheLoadJSON[engine.VideoInfo](ctx, engine.VideoInfoKey(videoID))
		if ok && info.Title != "" {
			cached = true
			if t, ok := toolutil.CacheLoadJSON[cachedTranscript](ctx, engine.TranscriptKey(videoID)); ok {
				info.Transcript = t.Transcript
				info.TranscriptLanguage = t.Language
			}
		} else {
			var err error
			info, err = loadTranscript(ctx, input.URL, toolutil.ParseLangs(""))
			if err != nil {
				return nil, engine.VideoInfoOutput{}, fmt.Errorf("video info: %w", err)
			}
		}

		langs := loadLanguages(ctx, videoID)

		return nil, engine.VideoInfoOutput{
			VideoID:            videoID,
			Title:              info.Title,
			Thumbnail:          info.Thumbnail,
			TranscriptLanguage: info.TranscriptLanguage,
			TranscriptTokens:   engine.CountTokens(info.Transcript),
			Languages:          langs,
			Cached:             cached,
		}, nil
	})
}

// loadLanguages returns the caption language list, cached per video.
// Failures degrade to an empty list.
func loadLanguages(ctx context.Context, videoID string) []engine.CaptionLanguage {
	if c, ok := toolutil.CacheLoadJSON[cachedLanguages](ctx, engine.LanguagesKey(videoID)); ok {
		return c.Languages
	}
	langs, err := sources.ListCaptionLanguages(ctx, videoID)
	if err != nil {
		slog.Warn("video_info: list languages failed", slog.String("video_id", videoID), slog.Any("error", err))
		return nil
	}
	toolutil.CacheStoreJSON(ctx, engine.LanguagesKey(videoID), cachedLanguages{
		VideoID:   videoID,
		Languages: langs,
	}, engine.TTLLanguages)
	return langs
}
