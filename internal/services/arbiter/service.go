// Package arbiter maps a borrower's free-text contact preference onto one of
// the two outreach channels.
package arbiter

import (
	"context"
	"fmt"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	voiceTool     = "voice_agent"
	messagingTool = "whatsapp_agent"
)

// DefaultPreference values accepted by Decide.
const (
	PreferCall    = "call"
	PreferMessage = "message"
)

const decisionTemplate = `You are an intelligent decision making model.
You have to use my response to decide between using either the '%s' or the '%s'.
If my response does not mention any preference for the agent use this preference: %s

Use Voice Agent -> '%s':
- If my preference is "call".
- If my response explicitly mentions to speak to someone.
- If my response explicitly mentions to have a phone call.
- If my response explicitly mentions that I prefer to be called.

Use WhatsApp Agent -> '%s':
- If my preference is "message".
- If my response explicitly mentions to send me a message.
- If my response explicitly mentions that I don't want to talk now.
- If my response explicitly mentions that I prefer to be messaged.`

// ChannelArbiter asks the model to pick exactly one of two named actions.
// Anything other than an unambiguous messaging pick resolves to voice.
type ChannelArbiter struct {
	client *openai.Client
	model  string
}

func NewChannelArbiter(client *openai.Client, model string) *ChannelArbiter {
	return &ChannelArbiter{client: client, model: model}
}

// Decide maps a free-text borrower response to an outreach channel.
// Backend failures, missing tool calls and unknown tool names all fall back
// to domain.ChannelVoice.
func (a *ChannelArbiter) Decide(ctx context.Context, response, defaultPreference string) domain.Channel {
	if defaultPreference != PreferCall && defaultPreference != PreferMessage {
		defaultPreference = PreferCall
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(decisionTemplate,
					messagingTool, voiceTool, defaultPreference, voiceTool, messagingTool),
			},
			{Role: openai.ChatMessageRoleUser, Content: response},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        voiceTool,
					Description: "Connects to the Voice Agent to initiate a Voice Call to talk with the customer.",
					Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
				},
			},
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        messagingTool,
					Description: "Connects to the WhatsApp Agent to send messages to the customer through WhatsApp.",
					Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
				},
			},
		},
		ToolChoice: "required",
	})
	if err != nil {
		logger.Base().Error("channel decision failed, defaulting to voice", zap.Error(err))
		return domain.ChannelVoice
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		logger.Base().Warn("channel decision returned no tool call, defaulting to voice")
		return domain.ChannelVoice
	}

	if resp.Choices[0].Message.ToolCalls[0].Function.Name == messagingTool {
		return domain.ChannelMessaging
	}
	return domain.ChannelVoice
}
