// Package livekit adapts the LiveKit control plane and room data channel to
// the call-session and dispatch layers.
package livekit

import (
	"errors"
	"strings"

	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the LiveKit server and SIP trunk configuration.
type Config struct {
	ServerURL  string // LiveKit server WebSocket URL
	APIKey     string
	APISecret  string
	SIPTrunkID string // outbound trunk used to dial borrowers
	AgentName  string // agent name tagged on dispatches
}

func NewConfig(serverURL, apiKey, apiSecret, sipTrunkID, agentName string) (*Config, error) {
	c := &Config{
		ServerURL:  serverURL,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		SIPTrunkID: sipTrunkID,
		AgentName:  agentName,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger.Base().Info("LiveKit configuration initialized", zap.String("server_url", serverURL))
	return c, nil
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("LiveKit server URL is required")
	}
	if c.APIKey == "" {
		return errors.New("LiveKit API key is required")
	}
	if c.APISecret == "" {
		return errors.New("LiveKit API secret is required")
	}
	if c.SIPTrunkID == "" {
		return errors.New("LiveKit SIP trunk ID is required")
	}
	if c.AgentName == "" {
		return errors.New("LiveKit agent name is required")
	}
	return nil
}

// HTTPURL converts the configured WebSocket URL to its HTTP form for the
// twirp control-plane clients.
func (c *Config) HTTPURL() string {
	url := c.ServerURL
	if strings.HasPrefix(url, "wss://") {
		return "https://" + strings.TrimPrefix(url, "wss://")
	}
	if strings.HasPrefix(url, "ws://") {
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}
