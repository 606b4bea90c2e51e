package engine

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Token counting. The preferred counter is a BPE tokenizer (cl100k_base,
// close to what the target model families use); when it cannot be
// initialized the ~4-chars-per-token heuristic takes over for the life of
// the process, logged once at first use.

// TokenCounter returns a non-negative token count for text, deterministic
// for identical input.
type TokenCounter func(text string) int

var (
	tokMu    sync.Mutex
	tokCount TokenCounter
)

// countTokensFallback estimates tokens as len/4 (integer division).
func countTokensFallback(text string) int {
	return len(text) / 4
}

func counter() TokenCounter {
	tokMu.Lock()
	defer tokMu.Unlock()
	if tokCount == nil {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokens: BPE tokenizer unavailable, using chars/4 heuristic", slog.Any("error", err))
			tokCount = countTokensFallback
		} else {
			slog.Info("tokens: cl100k_base tokenizer initialized")
			tokCount = func(text string) int {
				return len(enc.Encode(text, nil, nil))
			}
		}
	}
	return tokCount
}

// CountTokens counts tokens in text. Empty text counts as 0.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return counter()(text)
}

// SetTokenCounter replaces the token counter. Tests substitute a
// deterministic fake; pass nil to restore lazy initialization.
func SetTokenCounter(fn TokenCounter) {
	tokMu.Lock()
	defer tokMu.Unlock()
	tokCount = fn
}

// countTurns sums the token counts of all turn contents.
func countTurns(history []Turn) int {
	total := 0
	for _, t := range history {
		total += CountTokens(t.Content)
	}
	return total
}
