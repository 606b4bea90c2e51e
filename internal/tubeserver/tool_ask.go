package tubeserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/history"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
)

func registerAsk(server *mcp.Server, store history.Store) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_video",
		Description: "Answer a question about a YouTube video using only its transcript. Long transcripts are searched for the most relevant sections. Conversation history per video is kept across calls.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.AskInput) (*mcp.CallToolResult, engine.AskOutput, error) {
		if input.URL == "" {
			return nil, engine.AskOutput{}, fmt.Errorf("url is required")
		}
		if input.Question == "" {
			return nil, engine.AskOutput{}, fmt.Errorf("question is required")
		}
		engine.IncrAskRequests()

		info, err := loadTranscript(ctx, input.URL, toolutil.ParseLangs(input.Languages))
		if err != nil {
			return nil, engine.AskOutput{}, fmt.Errorf("extract transcript: %w", err)
		}
		videoID := info.VideoID

		var turns []engine.Turn
		if store != nil {
			if h, err := store.Turns(ctx, videoID); err == nil {
				turns = h
			}
		}

		usedRAG := engine.ShouldUseRAG(info.Transcript)
		transcriptContext := engine.PrepareRAGContext(ctx, info.Transcript, input.Question, turns)
		transcriptContext, managedTurns := engine.PrepareForModel(transcriptContext, input.Question, turns)

		system, user := engine.BuildQAPrompt(transcriptContext, managedTurns, input.Question)
		answer, err := engine.CallLLM(ctx, system, user)
		if err != nil {
			return nil, engine.AskOutput{}, fmt.Errorf("answer: %w", err)
		}

		now := time.Now().UTC()
		appendTurn(ctx, store, videoID, engine.Turn{Role: engine.RoleUser, Content: input.Question, Timestamp: now})
		appendTurn(ctx, store, videoID, engine.Turn{Role: engine.RoleModel, Content: answer, Timestamp: now})

		return nil, engine.AskOutput{
			VideoID:         videoID,
			Question:        input.Question,
			Answer:          answer,
			UsedRAG:         usedRAG,
			ProjectedTokens: engine.ProjectedTokens(transcriptContext, managedTurns, input.Question),
			HistoryTurns:    len(managedTurns),
		}, nil
	})
}
