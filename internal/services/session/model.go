package session

import (
	"context"
	"fmt"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/telemetry"
	openai "github.com/sashabaranov/go-openai"
)

// ToolCall is one structured action request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ModelReply is one model turn: either spoken text or tool calls to run.
type ModelReply struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatModel generates one reply for the accumulated chat history.
type ChatModel interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (ModelReply, error)
}

// openAIModel backs ChatModel with an OpenAI chat completion and records one
// LLM metric per generation.
type openAIModel struct {
	client   *openai.Client
	model    string
	recorder *telemetry.Recorder
}

func NewOpenAIModel(client *openai.Client, model string, recorder *telemetry.Recorder) ChatModel {
	return &openAIModel{
		client:   client,
		model:    model,
		recorder: recorder,
	}
}

func (m *openAIModel) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (ModelReply, error) {
	start := time.Now()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    m.model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return ModelReply{}, fmt.Errorf("%w: chat completion: %v", domain.ErrBackendUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return ModelReply{}, fmt.Errorf("%w: chat completion returned no choices", domain.ErrBackendUnavailable)
	}

	elapsed := time.Since(start)
	tps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		tps = float64(resp.Usage.CompletionTokens) / secs
	}
	m.recorder.RecordLLM(domain.LLMMetric{
		Timestamp: start,
		Duration:  elapsed,
		// Non-streaming client: first token arrives with the full response.
		TTFT:             elapsed,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TokensPerSecond:  tps,
	})

	msg := resp.Choices[0].Message
	reply := ModelReply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}
