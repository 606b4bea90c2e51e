package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"json fence", "```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"bare fence", "```\ntext\n```", "text"},
		{"whitespace", "  answer  ", "answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"http 429", errors.New("API error 429: too many requests"), ErrRateLimited},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED: quota"), ErrRateLimited},
		{"http 503", errors.New("503 Service Unavailable"), ErrUnavailable},
		{"unavailable", errors.New("code UNAVAILABLE, model overloaded"), ErrUnavailable},
		{"bad key", errors.New("401: API key not valid"), ErrInvalidKey},
		{"permission", errors.New("PERMISSION_DENIED"), ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyLLMError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classified as %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unknown passes through", func(t *testing.T) {
		in := errors.New("parse error")
		if got := classifyLLMError(in); got != in {
			t.Errorf("got %v, want original error", got)
		}
	})
}

func withCompleters(t *testing.T, models []string, completers []Completer) {
	t.Helper()
	prevModels, prevCompleters := cfg.Models, cfg.Completers
	cfg.Models, cfg.Completers = models, completers
	t.Cleanup(func() { cfg.Models, cfg.Completers = prevModels, prevCompleters })
}

func TestCallLLMFallback(t *testing.T) {
	initTestConfig(t)
	ctx := context.Background()

	t.Run("primary succeeds", func(t *testing.T) {
		calls := 0
		withCompleters(t, []string{"primary", "backup"}, []Completer{
			func(context.Context, string, string) (string, error) { calls++; return "answer", nil },
			func(context.Context, string, string) (string, error) { t.Error("backup called"); return "", nil },
		})
		got, err := CallLLM(ctx, "", "prompt")
		if err != nil || got != "answer" {
			t.Fatalf("got %q, %v", got, err)
		}
		if calls != 1 {
			t.Errorf("primary called %d times", calls)
		}
	})

	t.Run("unavailable falls through to backup", func(t *testing.T) {
		withCompleters(t, []string{"primary", "backup"}, []Completer{
			func(context.Context, string, string) (string, error) {
				return "", errors.New("503 UNAVAILABLE")
			},
			func(context.Context, string, string) (string, error) { return "from backup", nil },
		})
		got, err := CallLLM(ctx, "", "prompt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "from backup" {
			t.Errorf("got %q, want backup answer", got)
		}
	})

	t.Run("all models fail", func(t *testing.T) {
		fail := func(context.Context, string, string) (string, error) {
			return "", errors.New("503 overloaded")
		}
		withCompleters(t, []string{"a", "b"}, []Completer{fail, fail})
		_, err := CallLLM(ctx, "", "prompt")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("got %v, want ErrUnavailable", err)
		}
	})

	t.Run("invalid key aborts the chain", func(t *testing.T) {
		backupCalled := false
		withCompleters(t, []string{"primary", "backup"}, []Completer{
			func(context.Context, string, string) (string, error) {
				return "", errors.New("401: API key not valid")
			},
			func(context.Context, string, string) (string, error) {
				backupCalled = true
				return "should not run", nil
			},
		})
		_, err := CallLLM(ctx, "", "prompt")
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("got %v, want ErrInvalidKey", err)
		}
		if backupCalled {
			t.Error("backup model tried despite invalid credentials")
		}
	})

	t.Run("no models configured", func(t *testing.T) {
		withCompleters(t, nil, nil)
		if _, err := CallLLM(ctx, "", "prompt"); err == nil {
			t.Error("expected error with no completers")
		}
	})

	t.Run("fences stripped from completion", func(t *testing.T) {
		withCompleters(t, []string{"m"}, []Completer{
			func(context.Context, string, string) (string, error) {
				return fmt.Sprintf("```json\n%s\n```", `{"ok":true}`), nil
			},
		})
		got, err := CallLLM(ctx, "", "prompt")
		if err != nil {
			t.Fatal(err)
		}
		if got != `{"ok":true}` {
			t.Errorf("got %q, fences not stripped", got)
		}
	})
}
