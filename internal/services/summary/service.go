// Package summary condenses prior conversation transcripts into short
// briefs that seed the outbound voice agent's context.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const summarizerSystemPrompt = "You are a simple chat conversation summarizer. " +
	"Summarize the conversation between the agent and the user in at most three sentences. " +
	"Keep amounts, dates and any promise to pay. Reply with the summary only."

// EmptySummary is returned when there is no transcript to summarize and
// whenever the summarization backend fails. Callers treat it as a valid
// summary, never as an error.
const EmptySummary = "No prior conversation occurred."

// Summarizer produces per-channel conversation briefs. Failures degrade to
// EmptySummary so a flaky backend never blocks a dispatch.
type Summarizer struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewSummarizer(client *openai.Client, model string) *Summarizer {
	return &Summarizer{
		client: client,
		model:  model,
		// One request per second, no burst: the second summary of a
		// dispatch pair always waits out the pause.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// Summarize condenses a single channel's transcript. An empty transcript
// short-circuits to EmptySummary without touching the backend.
func (s *Summarizer) Summarize(ctx context.Context, turns []domain.Turn) string {
	if len(turns) == 0 {
		return EmptySummary
	}

	if err := s.limiter.Wait(ctx); err != nil {
		logger.Base().Warn("summarizer rate wait aborted", zap.Error(err))
		return EmptySummary
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderTranscript(turns)},
		},
	})
	if err != nil {
		logger.Base().Error("summarization failed, using fallback", zap.Error(err))
		return EmptySummary
	}
	if len(resp.Choices) == 0 {
		logger.Base().Error("summarization returned no choices, using fallback")
		return EmptySummary
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return EmptySummary
	}
	return out
}

// SummarizePair summarizes the messaging and voice transcripts sequentially,
// messaging first. It never fails; each side independently falls back to
// EmptySummary.
func (s *Summarizer) SummarizePair(ctx context.Context, messaging, voice []domain.Turn) (whatsappSummary, callSummary string) {
	whatsappSummary = s.Summarize(ctx, messaging)
	callSummary = s.Summarize(ctx, voice)
	return whatsappSummary, callSummary
}

func renderTranscript(turns []domain.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
	}
	return b.String()
}
