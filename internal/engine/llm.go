package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Provider failure taxonomy. Transport errors are classified into these
// sentinels so callers and the fallback loop can branch on kind instead
// of matching strings themselves.
var (
	ErrRateLimited = errors.New("llm: rate limited")
	ErrUnavailable = errors.New("llm: service unavailable")
	ErrInvalidKey  = errors.New("llm: invalid credentials")
)

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// classifyLLMError maps a provider error onto the failure taxonomy by
// inspecting its text. Unrecognized errors pass through unchanged.
func classifyLLMError(err error) error {
	msg := err.Error()
	switch {
	case containsAny(msg, "429", "RESOURCE_EXHAUSTED", "rate limit", "quota"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case containsAny(msg, "503", "UNAVAILABLE", "overloaded"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case containsAny(msg, "401", "403", "API key", "API_KEY_INVALID", "PERMISSION_DENIED"):
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return err
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CallLLM sends a prompt through the configured models in fallback
// order, returning the first successful completion with code fences
// stripped. Invalid credentials abort the chain immediately: every
// client shares the same key, so retrying other models cannot help.
func CallLLM(ctx context.Context, system, prompt string) (string, error) {
	if len(cfg.Completers) == 0 {
		return "", errors.New("llm: no models configured")
	}
	var lastErr error
	for i, complete := range cfg.Completers {
		IncrLLMCalls()
		resp, err := complete(ctx, system, prompt)
		if err == nil {
			if i > 0 {
				slog.Info("llm: fallback model succeeded", slog.String("model", modelName(i)))
			}
			return stripFences(resp), nil
		}
		IncrLLMErrors()
		lastErr = classifyLLMError(err)
		if errors.Is(lastErr, ErrInvalidKey) || ctx.Err() != nil {
			return "", lastErr
		}
		if i < len(cfg.Completers)-1 {
			slog.Warn("llm: model failed, trying fallback",
				slog.String("model", modelName(i)),
				slog.String("next", modelName(i+1)),
				slog.Any("error", lastErr),
			)
		}
	}
	return "", fmt.Errorf("llm: all models failed: %w", lastErr)
}

func modelName(i int) string {
	if i < len(cfg.Models) {
		return cfg.Models[i]
	}
	return fmt.Sprintf("model-%d", i)
}
