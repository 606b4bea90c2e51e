package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeEmbedder scores texts by a fixed table; unknown texts embed to a
// zero-similarity vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func TestChunkTranscript(t *testing.T) {
	t.Run("six words size four overlap two", func(t *testing.T) {
		got := ChunkTranscript("w1 w2 w3 w4 w5 w6", 4, 2)
		want := []string{"w1 w2 w3 w4", "w3 w4 w5 w6"}
		if len(got) != len(want) {
			t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("short transcript is one chunk", func(t *testing.T) {
		got := ChunkTranscript("a b c", 10, 2)
		if len(got) != 1 || got[0] != "a b c" {
			t.Errorf("got %q, want single chunk", got)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		if got := ChunkTranscript("   ", 10, 2); got != nil {
			t.Errorf("got %q, want nil", got)
		}
	})

	t.Run("chunk count formula", func(t *testing.T) {
		size, overlap := 50, 10
		step := size - overlap
		for _, words := range []int{51, 100, 123, 500} {
			transcript := strings.TrimSpace(strings.Repeat("w ", words))
			got := ChunkTranscript(transcript, size, overlap)
			want := (words - overlap + step - 1) / step // ceil((W-O)/(S-O))
			if len(got) != want {
				t.Errorf("%d words: got %d chunks, want %d", words, len(got), want)
			}
		}
	})

	t.Run("consecutive chunks share overlap words", func(t *testing.T) {
		transcript := strings.TrimSpace(strings.Repeat("w ", 100))
		chunks := ChunkTranscript(transcript, 20, 5)
		for i := 1; i < len(chunks); i++ {
			prev := strings.Fields(chunks[i-1])
			cur := strings.Fields(chunks[i])
			tail := strings.Join(prev[len(prev)-5:], " ")
			head := strings.Join(cur[:5], " ")
			if tail != head {
				t.Fatalf("chunk %d does not overlap previous", i)
			}
		}
	})

	t.Run("overlap >= size does not loop forever", func(t *testing.T) {
		got := ChunkTranscript(strings.TrimSpace(strings.Repeat("w ", 30)), 10, 10)
		if len(got) == 0 {
			t.Error("expected chunks despite bad overlap")
		}
	})
}

func TestSearchRelevantChunks(t *testing.T) {
	initTestConfig(t)
	SetEmbedder(&fakeEmbedder{vectors: map[string][]float32{"query": {1, 0}}})
	t.Cleanup(func() { SetEmbedder(nil) })

	chunks := []string{"best", "worst", "middle"}
	embeddings := [][]float32{
		{1, 0},   // identical to query
		{-1, 0},  // opposite
		{1, 1},   // partial
	}

	t.Run("ranked descending", func(t *testing.T) {
		got := SearchRelevantChunks(context.Background(), "query", chunks, embeddings, 3)
		if len(got) != 3 {
			t.Fatalf("got %d results, want 3", len(got))
		}
		if got[0].Text != "best" || got[1].Text != "middle" || got[2].Text != "worst" {
			t.Errorf("wrong order: %q %q %q", got[0].Text, got[1].Text, got[2].Text)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Errorf("scores not descending at %d", i)
			}
		}
	})

	t.Run("topK larger than chunks returns all", func(t *testing.T) {
		got := SearchRelevantChunks(context.Background(), "query", chunks, embeddings, 10)
		if len(got) != 3 {
			t.Errorf("got %d results, want 3", len(got))
		}
	})

	t.Run("topK clamps results", func(t *testing.T) {
		got := SearchRelevantChunks(context.Background(), "query", chunks, embeddings, 1)
		if len(got) != 1 || got[0].Text != "best" {
			t.Errorf("got %v, want single best chunk", got)
		}
	})

	t.Run("mismatched embeddings", func(t *testing.T) {
		if got := SearchRelevantChunks(context.Background(), "query", chunks, embeddings[:2], 3); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrepareRAGContext(t *testing.T) {
	initTestConfig(t)

	t.Run("short transcript passes through", func(t *testing.T) {
		in := "short transcript."
		got := PrepareRAGContext(context.Background(), in, "question", nil)
		if got != in {
			t.Errorf("got %q, want input unchanged", got)
		}
	})

	t.Run("embedding failure falls back to truncation", func(t *testing.T) {
		SetEmbedder(&fakeEmbedder{err: errors.New("endpoint down")})
		t.Cleanup(func() { SetEmbedder(nil) })

		long := strings.TrimSpace(strings.Repeat("sentence words here. ", 300))
		got := PrepareRAGContext(context.Background(), long, "question", nil)
		if n := CountTokens(got); n > cfg.MaxTranscriptTokens {
			t.Errorf("fallback result has %d tokens, budget %d", n, cfg.MaxTranscriptTokens)
		}
		if strings.Contains(got, "[Relevance:") {
			t.Error("fallback output should not carry relevance prefixes")
		}
	})

	t.Run("selected chunks carry relevance prefix", func(t *testing.T) {
		SetEmbedder(&fakeEmbedder{vectors: map[string][]float32{}})
		t.Cleanup(func() { SetEmbedder(nil) })
		size, overlap := cfg.ChunkSizeWords, cfg.ChunkOverlapWords
		cfg.ChunkSizeWords, cfg.ChunkOverlapWords = 100, 20
		t.Cleanup(func() { cfg.ChunkSizeWords, cfg.ChunkOverlapWords = size, overlap })

		long := strings.TrimSpace(strings.Repeat("w ", 600))
		got := PrepareRAGContext(context.Background(), long, "question", nil)
		if !strings.Contains(got, "[Relevance: ") {
			t.Errorf("output missing relevance prefix: %q", Truncate(got, 80))
		}
		if n := CountTokens(got); n > cfg.MaxTranscriptTokens {
			t.Errorf("context has %d tokens, budget %d", n, cfg.MaxTranscriptTokens)
		}
	})
}

func TestBuildSearchQuery(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "first"},
		{Role: RoleModel, Content: "second"},
		{Role: RoleUser, Content: "third"},
	}
	got := buildSearchQuery("the question", history)
	if strings.Contains(got, "first") {
		t.Error("query should only include the last two turns")
	}
	for _, want := range []string{"second", "third", "the question"} {
		if !strings.Contains(got, want) {
			t.Errorf("query missing %q: %q", want, got)
		}
	}
}
