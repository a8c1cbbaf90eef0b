// Package events publishes call-outcome events for downstream collections
// analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/PredixionAI/collections-voice-service/internal/services/session"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	ProjectID string
	TopicName string
}

// CallOutcomeEvent is the payload published once per finished call.
type CallOutcomeEvent struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	RoomName      string    `json:"room_name"`
	Answered      bool      `json:"answered"`
	DurationSec   int       `json:"duration_sec"`
	AgentTurns    int       `json:"agent_turns"`
	BorrowerTurns int       `json:"borrower_turns"`
	CreatedAt     time.Time `json:"created_at"`
}

// Publisher pushes call outcomes to a Pub/Sub topic, creating the topic on
// first use if it does not exist.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPublisher(ctx context.Context, cfg *Config) (*Publisher, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}
	if !exists {
		logger.Base().Info("topic does not exist, creating", zap.String("topic", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
	}

	return &Publisher{client: client, topic: topic}, nil
}

// PublishCallOutcome emits one event for a finished call session.
func (p *Publisher) PublishCallOutcome(ctx context.Context, result session.Result) error {
	event := CallOutcomeEvent{
		ID:            uuid.New().String(),
		Phone:         result.Phone,
		RoomName:      result.RoomName,
		Answered:      result.Answered,
		DurationSec:   int(result.Duration.Seconds()),
		AgentTurns:    result.AgentTurns,
		BorrowerTurns: result.BorrowerTurns,
		CreatedAt:     time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize call outcome: %w", err)
	}

	publishResult := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": "call_outcome",
			"phone":      result.Phone,
		},
	})
	if _, err := publishResult.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish call outcome: %w", err)
	}

	logger.Base().Info("published call outcome",
		zap.String("phone", result.Phone),
		zap.String("room", result.RoomName))
	return nil
}

func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
