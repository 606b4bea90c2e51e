package engine

import (
	"strings"
	"testing"
)

func TestNormSummaryType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", SummaryBrief},
		{"brief", SummaryBrief},
		{"Detailed", SummaryDetailed},
		{"KEY_POINTS", SummaryKeyPoints},
		{"chapters", SummaryChapters},
		{"bogus", SummaryBrief},
	}
	for _, tt := range tests {
		if got := NormSummaryType(tt.in); got != tt.want {
			t.Errorf("NormSummaryType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormSummaryLength(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", LengthMedium},
		{"short", LengthShort},
		{"LONG", LengthLong},
		{"huge", LengthMedium},
	}
	for _, tt := range tests {
		if got := NormSummaryLength(tt.in); got != tt.want {
			t.Errorf("NormSummaryLength(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	got := BuildSummaryPrompt("the transcript text", SummaryKeyPoints, LengthShort)
	for _, want := range []string{"the transcript text", summaryTypeInstruction[SummaryKeyPoints], summaryLengthWords[LengthShort]} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildQAPrompt(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "what is this about"},
		{Role: RoleModel, Content: "about Go"},
	}
	system, user := BuildQAPrompt("transcript context here", history, "tell me more")

	if !strings.Contains(system, "transcript context here") {
		t.Error("system message missing transcript context")
	}
	for _, want := range []string{"what is this about", "about Go", "Question: tell me more"} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q", want)
		}
	}

	t.Run("no history", func(t *testing.T) {
		_, user := BuildQAPrompt("ctx", nil, "q")
		if strings.Contains(user, "Conversation so far") {
			t.Error("empty history should omit the conversation block")
		}
	})
}
