package engine

import (
	"fmt"
	"strings"
)

// LLM prompt templates (data only) plus the builders that fill them.

// Summary type and length identifiers accepted by the summarize tool.
const (
	SummaryBrief     = "brief"
	SummaryDetailed  = "detailed"
	SummaryKeyPoints = "key_points"
	SummaryChapters  = "chapters"

	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// NormSummaryType normalises a summary type: empty or unknown → brief.
func NormSummaryType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case SummaryBrief, SummaryDetailed, SummaryKeyPoints, SummaryChapters:
		return t
	}
	return SummaryBrief
}

// NormSummaryLength normalises a summary length: empty or unknown → medium.
func NormSummaryLength(l string) string {
	l = strings.ToLower(strings.TrimSpace(l))
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return l
	}
	return LengthMedium
}

var summaryLengthWords = map[string]string{
	LengthShort:  "100-150 words",
	LengthMedium: "200-300 words",
	LengthLong:   "400-600 words",
}

var summaryTypeInstruction = map[string]string{
	SummaryBrief:     "Write a concise prose summary of the video's main content and conclusions.",
	SummaryDetailed:  "Write a thorough summary covering all significant topics, arguments, and examples in the order they appear.",
	SummaryKeyPoints: "Extract the key points as a bulleted list, one complete sentence per point, most important first.",
	SummaryChapters:  "Break the video into logical chapters. For each chapter give a short title and a 1-2 sentence description, in order.",
}

// summaryPrompt is filled with the type instruction, length target and transcript.
const summaryPrompt = `You are summarizing a YouTube video from its transcript.

%s

Target length: %s.

Rules:
- Use ONLY the transcript below. Do not invent or assume content that is not there.
- Ignore sponsor reads, ad segments, merchandise plugs, and like/subscribe appeals.
- Write in the same language as the transcript.
- Plain text output. No preamble like "This video is about".

Transcript:
%s`

// qaSystemPrompt constrains answers to transcript content only.
const qaSystemPrompt = `You are answering questions about a YouTube video using its transcript.

Rules:
1. Answer ONLY from the transcript context below. If the answer is not there, say so plainly.
2. Do not use outside knowledge about the video, channel, or topic.
3. Quote or closely paraphrase the transcript when it supports the answer.
4. If the transcript context is partial (marked with relevance scores), say when the relevant part may be missing.
5. Answer in the language of the question.
6. Be direct. No preamble, no restating the question.

Transcript context:
%s`

// BuildSummaryPrompt assembles the summarization prompt for a transcript.
// summaryType and summaryLength must be normalised first.
func BuildSummaryPrompt(transcript, summaryType, summaryLength string) string {
	return fmt.Sprintf(summaryPrompt,
		summaryTypeInstruction[summaryType],
		summaryLengthWords[summaryLength],
		transcript,
	)
}

// BuildQAPrompt assembles the system and user messages for a question.
// The transcript context goes in the system message; history and the
// question form the user message.
func BuildQAPrompt(transcriptContext string, history []Turn, question string) (system, user string) {
	system = fmt.Sprintf(qaSystemPrompt, transcriptContext)

	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return system, sb.String()
}
