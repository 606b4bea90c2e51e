package sources

import "testing"

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch URL with params", "https://www.youtube.com/watch?t=42&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare ID", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare ID padded", "  dQw4w9WgXcQ ", "dQw4w9WgXcQ"},
		{"not a video", "https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"too short", "abc123", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractVideoID(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `{"a":1};var x=2`, `{"a":1}`},
		{"nested", `{"a":{"b":2}}tail`, `{"a":{"b":2}}`},
		{"braces in string", `{"a":"}{"}rest`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"\"}"}rest`, `{"a":"\"}"}`},
		{"unterminated", `{"a":1`, ""},
		{"not an object", `[1,2]`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(extractJSON([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickBestTrack(t *testing.T) {
	manual := func(lang string) captionTrack {
		return captionTrack{BaseURL: "https://yt/tt?lang=" + lang, LanguageCode: lang}
	}
	asr := func(lang string) captionTrack {
		t := manual(lang)
		t.Kind = "asr"
		return t
	}
	poToken := func(lang string) captionTrack {
		t := manual(lang)
		t.BaseURL += "&exp=xpe"
		return t
	}

	t.Run("manual preferred over asr", func(t *testing.T) {
		got, ok := pickBestTrack([]captionTrack{asr("en"), manual("en")}, []string{"en"})
		if !ok || got.Kind == "asr" {
			t.Errorf("got kind %q, want manual track", got.Kind)
		}
	})

	t.Run("asr in preferred language beats other languages", func(t *testing.T) {
		got, ok := pickBestTrack([]captionTrack{manual("fr"), asr("de")}, []string{"de"})
		if !ok || got.LanguageCode != "de" {
			t.Errorf("got %q, want de", got.LanguageCode)
		}
	})

	t.Run("falls back to english", func(t *testing.T) {
		got, ok := pickBestTrack([]captionTrack{manual("fr"), manual("en-GB")}, []string{"ja"})
		if !ok || got.LanguageCode != "en-GB" {
			t.Errorf("got %q, want en-GB", got.LanguageCode)
		}
	})

	t.Run("first usable when nothing matches", func(t *testing.T) {
		got, ok := pickBestTrack([]captionTrack{manual("fr"), manual("de")}, []string{"ja"})
		if !ok || got.LanguageCode != "fr" {
			t.Errorf("got %q, want fr", got.LanguageCode)
		}
	})

	t.Run("skips potoken tracks", func(t *testing.T) {
		got, ok := pickBestTrack([]captionTrack{poToken("en"), manual("fr")}, []string{"en"})
		if !ok || got.LanguageCode != "fr" {
			t.Errorf("got %q, want fr (the only fetchable track)", got.LanguageCode)
		}
	})

	t.Run("all tracks need potoken", func(t *testing.T) {
		if _, ok := pickBestTrack([]captionTrack{poToken("en")}, []string{"en"}); ok {
			t.Error("expected no usable track")
		}
	})
}

func TestExtractTranscriptToken(t *testing.T) {
	t.Run("found and unescaped", func(t *testing.T) {
		in := []byte(`..."getTranscriptEndpoint":{"params":"CgN0dA%3D%3D"}...`)
		got, err := extractTranscriptToken(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != "CgN0dA==" {
			t.Errorf("got %q, want URL-decoded token", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := extractTranscriptToken([]byte(`{"actions":[]}`)); err == nil {
			t.Error("expected error when endpoint is absent")
		}
	})
}

func TestCleanCaptionLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"double encoded apostrophe", "it&#39;s fine", "it's fine"},
		{"markup", "<i>emphasis</i>", "emphasis"},
		{"whitespace", "  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanCaptionLine(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	var tr captionTrack
	tr.Name.SimpleText = "English"
	if got := tr.displayName(); got != "English" {
		t.Errorf("got %q, want English", got)
	}

	var runs captionTrack
	runs.Name.Runs = []struct {
		Text string `json:"text"`
	}{{Text: "Deutsch"}}
	if got := runs.displayName(); got != "Deutsch" {
		t.Errorf("got %q, want Deutsch", got)
	}

	var empty captionTrack
	if got := empty.displayName(); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
