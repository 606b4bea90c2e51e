package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Embedder maps text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	embedMu   sync.Mutex
	embedder  Embedder
	embedErr  error
	embedInit bool
)

// getEmbedder lazily builds the process-wide embedder from config. A
// missing endpoint disables retrieval for the life of the process.
func getEmbedder() (Embedder, error) {
	embedMu.Lock()
	defer embedMu.Unlock()
	if !embedInit {
		embedInit = true
		if cfg.EmbedAPIBase == "" {
			embedErr = errors.New("embeddings disabled: no endpoint configured")
			slog.Info("embed: no endpoint configured, retrieval disabled")
		} else {
			embedder = newOpenAIEmbedder(cfg.EmbedAPIBase, cfg.EmbedAPIKey, cfg.EmbedModel, cfg.EmbedRatePerSec)
			slog.Info("embed: embedder initialized",
				slog.String("model", cfg.EmbedModel),
			)
		}
	}
	return embedder, embedErr
}

// SetEmbedder replaces the embedder (tests inject fakes). Passing nil
// re-enables lazy initialization from config.
func SetEmbedder(e Embedder) {
	embedMu.Lock()
	defer embedMu.Unlock()
	embedder = e
	embedErr = nil
	embedInit = e != nil
}

// openAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type openAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

func newOpenAIEmbedder(baseURL, apiKey, model string, ratePerSec float64) *openAIEmbedder {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &openAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  HTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(math.Ceil(ratePerSec))),
	}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	IncrEmbeddingCalls()

	body, err := json.Marshal(map[string]any{
		"input": text,
		"model": e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, errors.New("embedding API returned no data")
	}
	return out.Data[0].Embedding, nil
}

// CreateEmbeddings embeds every chunk, a bounded number in flight at
// once. All-or-nothing: one failed chunk fails the batch, and callers
// fall back to truncation.
func CreateEmbeddings(ctx context.Context, chunks []string) ([][]float32, error) {
	em, err := getEmbedder()
	if err != nil {
		return nil, err
	}
	limit := cfg.EmbedConcurrency
	if limit <= 0 {
		limit = 4
	}

	out := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range chunks {
		g.Go(func() error {
			v, err := em.Embed(gctx, c)
			if err != nil {
				IncrEmbeddingErrors()
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
