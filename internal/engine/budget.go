package engine

import (
	"log/slog"
	"strings"
	"time"
)

// historySummarizedNotice replaces the entire history when not even the
// newest turn fits the history budget.
const historySummarizedNotice = "[Earlier conversation was summarized away to fit the context window.]"

// TruncateTranscript trims transcript to at most maxTokens tokens,
// keeping whole sentences from the start. If the transcript already fits
// it is returned unchanged, byte for byte. Never fails: pathological
// input degrades to an empty string.
func TruncateTranscript(transcript string, maxTokens int) string {
	if maxTokens <= 0 || transcript == "" {
		return ""
	}
	total := CountTokens(transcript)
	if total <= maxTokens {
		return transcript
	}

	var b strings.Builder
	used := 0
	sep := ""
	kept := 0
	for _, s := range splitSentences(transcript) {
		t := CountTokens(sep + s)
		if used+t > maxTokens {
			break
		}
		b.WriteString(sep)
		b.WriteString(s)
		used += t
		sep = " "
		kept++
	}
	slog.Info("budget: transcript truncated",
		slog.Int("original_tokens", total),
		slog.Int("kept_tokens", used),
		slog.Int("kept_sentences", kept),
	)
	return b.String()
}

// splitSentences splits text into sentences on ., ! or ? followed by
// whitespace. The terminator stays with its sentence. Text without any
// such boundary comes back as a single sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if !isSpaceByte(text[i+1]) {
			continue
		}
		out = append(out, text[start:i+1])
		for i+1 < len(text) && isSpaceByte(text[i+1]) {
			i++
		}
		start = i + 1
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ManageHistoryTokens fits history plus question into maxHistoryTokens.
// It keeps the newest turns that fit (whole turns only, scanning from the
// end) and returns the kept slice, oldest first, plus the leftover token
// budget. When not even the newest turn fits, the result is a single
// synthetic system turn noting the history was summarized away. A nil or
// empty history returns nil and the full budget.
func ManageHistoryTokens(history []Turn, question string, maxHistoryTokens int) ([]Turn, int) {
	if maxHistoryTokens < 0 {
		maxHistoryTokens = 0
	}
	questionTokens := CountTokens(question)
	if questionTokens > cfg.MaxQuestionTokens && cfg.MaxQuestionTokens > 0 {
		questionTokens = cfg.MaxQuestionTokens
	}
	available := maxHistoryTokens - questionTokens
	if available < 0 {
		available = 0
	}
	if len(history) == 0 {
		return nil, available
	}

	total := countTurns(history)
	if total <= available {
		return history, available - total
	}

	var kept []Turn
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		t := CountTokens(history[i].Content)
		if used+t > available {
			break
		}
		kept = append([]Turn{history[i]}, kept...)
		used += t
	}
	dropped := len(history) - len(kept)
	if len(kept) == 0 {
		kept = []Turn{{
			Role:      RoleSystem,
			Content:   historySummarizedNotice,
			Timestamp: time.Now().UTC(),
		}}
		used = CountTokens(historySummarizedNotice)
	}
	slog.Info("budget: history trimmed",
		slog.Int("turns_dropped", dropped),
		slog.Int("turns_kept", len(kept)),
		slog.Int("tokens_kept", used),
	)
	remaining := available - used
	if remaining < 0 {
		remaining = 0
	}
	return kept, remaining
}

// PrepareForModel applies both budgets before an LLM call: history is
// trimmed against the history budget (accounting for the question), then
// the transcript against the transcript budget. Returns the managed
// transcript and history.
func PrepareForModel(transcript, question string, history []Turn) (string, []Turn) {
	managedHistory, _ := ManageHistoryTokens(history, question, cfg.MaxHistoryTokens)
	managedTranscript := TruncateTranscript(transcript, cfg.MaxTranscriptTokens)

	projected := ProjectedTokens(managedTranscript, managedHistory, question)
	if cfg.MaxTotalTokens > 0 {
		pct := float64(projected) / float64(cfg.MaxTotalTokens) * 100
		slog.Info("budget: prepared model input",
			slog.Int("projected_tokens", projected),
			slog.String("context_used", formatPercent(pct)),
		)
	}
	return managedTranscript, managedHistory
}

// ProjectedTokens estimates the total prompt size for a prepared input.
func ProjectedTokens(transcript string, history []Turn, question string) int {
	return CountTokens(transcript) + countTurns(history) + CountTokens(question)
}
