package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// YouTube implementation is split across three files by responsibility:
//   youtube_innertube.go  - Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go - caption track selection and the transcript fallback paths
//   youtube.go            - video ID parsing, metadata, and the ExtractVideoInfo orchestrator

// ErrNoTranscript means every transcript extraction path failed for the video.
var ErrNoTranscript = errors.New("no transcript available")

// ErrBadURL means the input is neither a YouTube URL nor a video ID.
var ErrBadURL = errors.New("not a YouTube URL or video ID")

var (
	videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|live/|embed/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	bareIDRE  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
// A bare 11-char ID is accepted as-is.
func ExtractVideoID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if m := videoIDRE.FindStringSubmatch(rawURL); len(m) >= 2 {
		return m[1]
	}
	if bareIDRE.MatchString(rawURL) {
		return rawURL
	}
	return ""
}

// extractJSON returns the balanced {...} object at the start of b,
// tracking brace depth outside string literals.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// scrapePlayerResponse fetches the watch page and extracts
// ytInitialPlayerResponse, which carries both video metadata and caption
// tracks in one request.
func scrapePlayerResponse(ctx context.Context, videoID string) (*innertubePlayerResp, error) {
	watchURL := "https://www.youtube.com/watch?v=" + videoID

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return engine.HTTPClient().Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	idx := strings.Index(string(body), ytInitialPlayerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &playerResp, nil
}

// oEmbed is YouTube's public metadata endpoint. No API key, no captcha;
// used when the watch page scrape yields no videoDetails.
type oEmbedResp struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func fetchOEmbed(ctx context.Context, videoID string) (oEmbedResp, error) {
	var out oEmbedResp
	u := "https://www.youtube.com/oembed?format=json&url=" +
		url.QueryEscape("https://www.youtube.com/watch?v="+videoID)
	err := engine.FetchJSON(ctx, u, &out)
	return out, err
}

// metadataFromPlayer pulls title and the largest thumbnail out of a
// player response.
func metadataFromPlayer(p *innertubePlayerResp) (title, thumbnail string) {
	if p == nil || p.VideoDetails == nil {
		return "", ""
	}
	title = p.VideoDetails.Title
	best := -1
	for _, t := range p.VideoDetails.Thumbnail.Thumbnails {
		if area := t.Width * t.Height; area > best {
			best = area
			thumbnail = t.URL
		}
	}
	return title, thumbnail
}

// ExtractVideoInfo resolves a YouTube URL or video ID into metadata plus
// the full transcript. Metadata failures are tolerated (title may be
// empty); only a missing transcript is an error, returned as
// ErrNoTranscript with VideoInfo.Error set for callers that serialize
// the partial result.
func ExtractVideoInfo(ctx context.Context, rawURL string, langs []string) (engine.VideoInfo, error) {
	videoID := ExtractVideoID(rawURL)
	if videoID == "" {
		return engine.VideoInfo{Error: "could not extract video ID"}, fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}
	info := engine.VideoInfo{VideoID: videoID}

	// One watch-page scrape serves both metadata and the primary
	// transcript path.
	playerResp, scrapeErr := scrapePlayerResponse(ctx, videoID)
	if scrapeErr != nil {
		slog.Warn("youtube: watch page scrape failed",
			slog.String("id", videoID), slog.Any("err", scrapeErr))
	}
	info.Title, info.Thumbnail = metadataFromPlayer(playerResp)
	if info.Title == "" {
		if oe, err := fetchOEmbed(ctx, videoID); err == nil {
			info.Title = oe.Title
			if info.Thumbnail == "" {
				info.Thumbnail = oe.ThumbnailURL
			}
		} else {
			slog.Warn("youtube: oembed metadata failed",
				slog.String("id", videoID), slog.Any("err", err))
		}
	}

	engine.IncrTranscriptRequests()
	var text, lang string
	var err error
	if playerResp != nil && playerResp.Captions != nil {
		text, lang, err = transcriptFromTracks(ctx,
			playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, langs)
		if err != nil {
			slog.Warn("youtube: watch page tracks failed, trying remaining paths",
				slog.String("id", videoID), slog.Any("err", err))
		}
	}
	if text == "" {
		if t, e := fetchTranscriptViaEngagementPanel(ctx, videoID); e == nil {
			text, lang = t, ""
		} else {
			slog.Warn("youtube: engagement panel failed, trying player",
				slog.String("id", videoID), slog.Any("err", e))
			text, lang, err = fetchTranscriptViaPlayer(ctx, videoID, langs)
		}
	}
	if text == "" {
		engine.IncrTranscriptErrors()
		if err == nil {
			err = errors.New("all extraction paths returned empty text")
		}
		info.Error = err.Error()
		return info, fmt.Errorf("%w: %v", ErrNoTranscript, err)
	}

	info.Transcript = engine.CollapseWhitespace(text)
	info.TranscriptLanguage = lang
	return info, nil
}
