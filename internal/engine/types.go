package engine

import "time"

// --- Conversation types ---

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Turn is a single conversation message. History is an ordered sequence of
// turns, oldest first, mutated only by appending. External input is parsed
// into this type once at the boundary; everything downstream uses it.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// --- Video / transcript types ---

// VideoInfo is the result of transcript extraction for a single video.
// Error is set (and Transcript empty) when extraction failed entirely.
type VideoInfo struct {
	VideoID            string `json:"video_id"`
	Title              string `json:"title,omitempty"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	Transcript         string `json:"transcript,omitempty"`
	TranscriptLanguage string `json:"transcript_language,omitempty"`
	Error              string `json:"error,omitempty"`
}

// CaptionLanguage describes one available caption track for a video.
type CaptionLanguage struct {
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	AutoGenerated bool   `json:"auto_generated,omitempty"`
}

// SummaryRecord is a persisted/cached summary result.
type SummaryRecord struct {
	VideoID       string `json:"video_id"`
	SummaryType   string `json:"summary_type"`
	SummaryLength string `json:"summary_length"`
	SummaryText   string `json:"summary_text"`
	GeneratedAt   string `json:"generated_at"`
}

// --- MCP tool inputs ---

type SummarizeInput struct {
	URL           string `json:"url" jsonschema:"YouTube video URL or 11-char video ID"`
	SummaryType   string `json:"summary_type,omitempty" jsonschema:"Summary type: brief (default), detailed, key_points, chapters"`
	SummaryLength string `json:"summary_length,omitempty" jsonschema:"Summary length: short, medium (default), long"`
	Languages     string `json:"languages,omitempty" jsonschema:"Comma-separated caption language preference, e.g. en,ru (default en)"`
}

type AskInput struct {
	URL       string `json:"url" jsonschema:"YouTube video URL or 11-char video ID"`
	Question  string `json:"question" jsonschema:"Question about the video content"`
	Languages string `json:"languages,omitempty" jsonschema:"Comma-separated caption language preference, e.g. en,ru (default en)"`
}

type VideoInfoInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL or 11-char video ID"`
}

type CacheClearInput struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true to clear the entire cache"`
}

// --- MCP tool outputs (JSON responses) ---

type SummarizeOutput struct {
	VideoID       string `json:"video_id"`
	Title         string `json:"title,omitempty"`
	SummaryType   string `json:"summary_type"`
	SummaryLength string `json:"summary_length"`
	Summary       string `json:"summary"`
	Cached        bool   `json:"cached"`
	GeneratedAt   string `json:"generated_at"`
}

type AskOutput struct {
	VideoID         string `json:"video_id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	UsedRAG         bool   `json:"used_rag"`
	ProjectedTokens int    `json:"projected_tokens"`
	HistoryTurns    int    `json:"history_turns"`
}

type VideoInfoOutput struct {
	VideoID            string            `json:"video_id"`
	Title              string            `json:"title,omitempty"`
	Thumbnail          string            `json:"thumbnail,omitempty"`
	TranscriptLanguage string            `json:"transcript_language,omitempty"`
	TranscriptTokens   int               `json:"transcript_tokens"`
	Languages          []CaptionLanguage `json:"languages,omitempty"`
	Cached             bool              `json:"cached"`
}
