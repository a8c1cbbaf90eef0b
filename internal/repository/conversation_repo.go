package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultRecentTurnLimit caps how much history a prompt window carries when
// the caller does not ask for a specific amount.
const DefaultRecentTurnLimit = 10

// ConversationRepository implements ContextStore over the conversations table.
// Transcripts live in JSONB columns, one array per channel, extended in place.
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// EnsureConversationRecord creates the row for phone if it does not exist and
// returns the phone key as the handle. At most one insert per phone.
func (r *ConversationRepository) EnsureConversationRecord(ctx context.Context, phone, name string) (string, error) {
	var existing domain.ConversationRecord
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&existing).Error
	if err == nil {
		return phone, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to look up conversation record: %w", err)
	}

	now := time.Now()
	record := domain.ConversationRecord{
		ID:                  uuid.New().String(),
		Phone:               phone,
		Name:                name,
		VoiceTranscript:     datatypes.JSON([]byte("[]")),
		MessagingTranscript: datatypes.JSON([]byte("[]")),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Two concurrent ensures can race to the insert; the unique index on
	// phone makes the loser a no-op for our purposes.
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		var check domain.ConversationRecord
		if lookupErr := r.db.WithContext(ctx).Where("phone = ?", phone).First(&check).Error; lookupErr == nil {
			return phone, nil
		}
		return "", fmt.Errorf("failed to create conversation record: %w", err)
	}

	return phone, nil
}

// AppendTurns extends the channel transcript with turns. Read-modify-write,
// last-writer-wins; previously stored turns keep their order.
func (r *ConversationRepository) AppendTurns(ctx context.Context, handle string, channel domain.Channel, turns []domain.Turn) error {
	if !channel.Valid() {
		return fmt.Errorf("invalid channel: %q", channel)
	}
	if len(turns) == 0 {
		return nil
	}

	var record domain.ConversationRecord
	if err := r.db.WithContext(ctx).Where("phone = ?", handle).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: phone %s", domain.ErrRecordNotFound, handle)
		}
		return fmt.Errorf("failed to read conversation record: %w", err)
	}

	existing, err := decodeTranscript(transcriptColumn(&record, channel))
	if err != nil {
		return fmt.Errorf("failed to decode %s transcript: %w", channel, err)
	}

	merged := append(existing, turns...)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode %s transcript: %w", channel, err)
	}

	column := "voice_transcript"
	if channel == domain.ChannelMessaging {
		column = "messaging_transcript"
	}

	result := r.db.WithContext(ctx).Model(&domain.ConversationRecord{}).
		Where("phone = ?", handle).
		Updates(map[string]interface{}{
			column:       datatypes.JSON(encoded),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to append turns: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: phone %s", domain.ErrRecordNotFound, handle)
	}

	return nil
}

// ReadRecentTurns returns the chronologically last limit turns of the channel
// transcript with timestamps stripped. Missing record or empty transcript is
// an empty slice, never an error.
func (r *ConversationRepository) ReadRecentTurns(ctx context.Context, handle string, channel domain.Channel, limit int) ([]domain.Turn, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("invalid channel: %q", channel)
	}
	if limit <= 0 {
		limit = DefaultRecentTurnLimit
	}

	var record domain.ConversationRecord
	if err := r.db.WithContext(ctx).Where("phone = ?", handle).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []domain.Turn{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation record: %w", err)
	}

	turns, err := decodeTranscript(transcriptColumn(&record, channel))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s transcript: %w", channel, err)
	}

	return RecentTurns(turns, limit), nil
}

// RecentTurns trims turns to the last limit entries and strips timestamps,
// which exist for audit, not for prompt context.
func RecentTurns(turns []domain.Turn, limit int) []domain.Turn {
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		out[i] = domain.Turn{Speaker: t.Speaker, Text: t.Text}
	}
	return out
}

func transcriptColumn(record *domain.ConversationRecord, channel domain.Channel) datatypes.JSON {
	if channel == domain.ChannelMessaging {
		return record.MessagingTranscript
	}
	return record.VoiceTranscript
}

func decodeTranscript(raw datatypes.JSON) ([]domain.Turn, error) {
	if len(raw) == 0 {
		return []domain.Turn{}, nil
	}
	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
