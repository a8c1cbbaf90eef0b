package arbiter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func newTestArbiter(t *testing.T, handler http.HandlerFunc) *ChannelArbiter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return NewChannelArbiter(openai.NewClientWithConfig(cfg), "gpt-4o")
}

func toolCallResponse(name string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"%s","arguments":"{}"}}]}}]}`, name)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		want     domain.Channel
	}{
		{"messaging pick routes to messaging", "whatsapp_agent", domain.ChannelMessaging},
		{"voice pick routes to voice", "voice_agent", domain.ChannelVoice},
		{"unknown tool falls back to voice", "email_agent", domain.ChannelVoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestArbiter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(toolCallResponse(tt.toolName)))
			})

			got := a.Decide(context.Background(), "whatever works", PreferCall)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideBackendErrorDefaultsToVoice(t *testing.T) {
	a := newTestArbiter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	got := a.Decide(context.Background(), "message me please", PreferMessage)
	assert.Equal(t, domain.ChannelVoice, got)
}

func TestDecideNoToolCallDefaultsToVoice(t *testing.T) {
	a := newTestArbiter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"sure"}}]}`))
	})

	got := a.Decide(context.Background(), "anything", PreferCall)
	assert.Equal(t, domain.ChannelVoice, got)
}
