package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Retrieval over long transcripts. When a transcript exceeds the
// transcript budget we stop truncating and instead select the chunks
// most relevant to the question via embedding similarity. Any failure on
// this path falls back to plain truncation; retrieval never makes a
// request fail.

// ScoredChunk pairs a transcript chunk with its similarity to the query.
type ScoredChunk struct {
	Text  string
	Score float64
}

// ShouldUseRAG reports whether transcript is too large to send whole.
func ShouldUseRAG(transcript string) bool {
	if transcript == "" {
		return false
	}
	return CountTokens(transcript) > cfg.MaxTranscriptTokens
}

// ChunkTranscript splits transcript into word windows of chunkSize words
// advancing by chunkSize-overlap, so consecutive chunks share overlap
// words. The final window is clamped to the end of the text and closes
// the sequence. A transcript of at most chunkSize words is one chunk.
func ChunkTranscript(transcript string, chunkSize, overlap int) []string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}
	if overlap >= chunkSize {
		slog.Warn("rag: chunk overlap >= chunk size, clamping",
			slog.Int("chunk_size", chunkSize),
			slog.Int("overlap", overlap),
		)
		overlap = chunkSize / 2
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end >= len(words) {
			chunks = append(chunks, strings.Join(words[start:], " "))
			break
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// SearchRelevantChunks ranks chunks by cosine similarity to query and
// returns the top topK, highest first. Ties keep chunk order (stable
// sort). Returns nil when the query cannot be embedded.
func SearchRelevantChunks(ctx context.Context, query string, chunks []string, embeddings [][]float32, topK int) []ScoredChunk {
	if len(chunks) == 0 || len(chunks) != len(embeddings) {
		return nil
	}
	em, err := getEmbedder()
	if err != nil {
		return nil
	}
	qv, err := em.Embed(ctx, query)
	if err != nil {
		IncrEmbeddingErrors()
		slog.Warn("rag: query embedding failed", slog.Any("error", err))
		return nil
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Text: c, Score: CosineSimilarity(qv, embeddings[i])}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

// buildSearchQuery combines the last turns of history with the question
// so retrieval sees follow-up context ("what about the second one?").
func buildSearchQuery(question string, history []Turn) string {
	const recentTurns = 2
	start := len(history) - recentTurns
	if start < 0 {
		start = 0
	}
	var parts []string
	for _, t := range history[start:] {
		if t.Content != "" {
			parts = append(parts, t.Content)
		}
	}
	parts = append(parts, question)
	return strings.Join(parts, "\n")
}

// PrepareRAGContext returns the transcript context to place in the
// prompt for question. Short transcripts pass through untouched. Long
// ones are chunked, embedded and filtered to the chunks most relevant to
// the question (plus recent history); each selected chunk is prefixed
// with its relevance score and the assembly is capped at the transcript
// budget. Every failure falls back to TruncateTranscript.
func PrepareRAGContext(ctx context.Context, transcript, question string, history []Turn) string {
	if !ShouldUseRAG(transcript) {
		return transcript
	}
	IncrRAGRequests()

	chunks := ChunkTranscript(transcript, cfg.ChunkSizeWords, cfg.ChunkOverlapWords)
	embeddings, err := CreateEmbeddings(ctx, chunks)
	if err != nil {
		IncrRAGFallbacks()
		slog.Warn("rag: embedding transcript failed, falling back to truncation",
			slog.Int("chunks", len(chunks)),
			slog.Any("error", err),
		)
		return TruncateTranscript(transcript, cfg.MaxTranscriptTokens)
	}

	query := buildSearchQuery(question, history)
	scored := SearchRelevantChunks(ctx, query, chunks, embeddings, cfg.TopKChunks)
	if len(scored) == 0 {
		IncrRAGFallbacks()
		return TruncateTranscript(transcript, cfg.MaxTranscriptTokens)
	}

	var b strings.Builder
	used := 0
	sep := ""
	taken := 0
	for _, sc := range scored {
		piece := fmt.Sprintf("%s[Relevance: %.2f] %s", sep, sc.Score, sc.Text)
		t := CountTokens(piece)
		if used+t > cfg.MaxTranscriptTokens {
			break
		}
		b.WriteString(piece)
		used += t
		sep = "\n\n"
		taken++
	}
	if taken == 0 {
		// Even the single best chunk blew the budget.
		IncrRAGFallbacks()
		return TruncateTranscript(transcript, cfg.MaxTranscriptTokens)
	}
	slog.Info("rag: context assembled",
		slog.Int("chunks_total", len(chunks)),
		slog.Int("chunks_selected", taken),
		slog.Int("context_tokens", used),
	)
	return b.String()
}
