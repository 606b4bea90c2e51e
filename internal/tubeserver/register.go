package tubeserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/history"
	"github.com/anatolykoptev/go_tube/internal/engine/sources"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
)

// RegisterTools registers all video tools on the given MCP server:
// summarize_video, ask_video, video_info, cache_stats, cache_clear.
// store may be nil; conversation history and persisted summaries are
// then disabled.
func RegisterTools(server *mcp.Server, store history.Store) {
	registerSummarize(server, store)
	registerAsk(server, store)
	registerVideoInfo(server)
	registerCacheStats(server)
	registerCacheClear(server)
}

// cachedTranscript is the JSON shape of transcript:<id> cache entries.
type cachedTranscript struct {
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
	Language   string `json:"language,omitempty"`
}

// loadTranscript returns the transcript and its language for a URL or
// video ID, from cache when possible. On a miss the full extraction runs
// and both the transcript and the video metadata are cached.
func loadTranscript(ctx context.Context, rawURL string, langs []string) (engine.VideoInfo, error) {
	videoID := sources.ExtractVideoID(rawURL)
	if videoID != "" {
		if t, ok := toolutil.CacheLoadJSON[cachedTranscript](ctx, engine.TranscriptKey(videoID)); ok && t.Transcript != "" {
			info, _ := toolutil.CacheLoadJSON[engine.VideoInfo](ctx, engine.VideoInfoKey(videoID))
			info.VideoID = videoID
			info.Transcript = t.Transcript
			info.TranscriptLanguage = t.Language
			return info, nil
		}
	}

	info, err := sources.ExtractVideoInfo(ctx, rawURL, langs)
	if err != nil {
		return info, err
	}
	slog.Info("transcript extracted",
		slog.String("video_id", info.VideoID),
		slog.String("language", info.TranscriptLanguage),
		slog.Int("transcript_length", len(info.Transcript)),
	)
	toolutil.CacheStoreJSON(ctx, engine.TranscriptKey(info.VideoID), cachedTranscript{
		VideoID:    info.VideoID,
		Transcript: info.Transcript,
		Language:   info.TranscriptLanguage,
	}, engine.TTLTranscript)

	meta := info
	meta.Transcript = "" // metadata entry stays small
	toolutil.CacheStoreJSON(ctx, engine.VideoInfoKey(info.VideoID), meta, engine.TTLVideoInfo)
	return info, nil
}

// appendTurn persists one conversation turn, logging instead of failing
// the request when the store is down.
func appendTurn(ctx context.Context, store history.Store, videoID string, turn engine.Turn) {
	if store == nil {
		return
	}
	if err := store.AppendTurn(ctx, videoID, turn); err != nil {
		slog.Warn("history: append failed", slog.String("video_id", videoID), slog.Any("error", err))
	}
}
