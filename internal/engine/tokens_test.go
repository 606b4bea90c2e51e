package engine

import "testing"

func TestCountTokensFallback(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"three chars", "abc", 0},
		{"four chars", "abcd", 1},
		{"eleven chars", "hello world", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countTokensFallback(tt.in); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountTokensOverride(t *testing.T) {
	SetTokenCounter(func(s string) int { return 42 })
	t.Cleanup(func() { SetTokenCounter(nil) })

	if got := CountTokens("anything"); got != 42 {
		t.Errorf("got %d, want injected counter result 42", got)
	}
	if got := CountTokens(""); got != 0 {
		t.Errorf("empty text = %d, want 0 regardless of counter", got)
	}
}

func TestCountTurns(t *testing.T) {
	SetTokenCounter(wordCounter)
	t.Cleanup(func() { SetTokenCounter(nil) })

	turns := []Turn{
		{Role: RoleUser, Content: "one two three"},
		{Role: RoleModel, Content: "four five"},
	}
	if got := countTurns(turns); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
	if got := countTurns(nil); got != 0 {
		t.Errorf("nil history = %d, want 0", got)
	}
}
