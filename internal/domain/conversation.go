package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Channel identifies which contact surface a transcript belongs to.
type Channel string

const (
	ChannelVoice     Channel = "voice"
	ChannelMessaging Channel = "messaging"
)

func (c Channel) Valid() bool {
	return c == ChannelVoice || c == ChannelMessaging
}

// Turn is one speaker's utterance in a conversation transcript.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRecord holds the per-borrower transcript history, one row per
// phone number, with one ordered JSONB transcript per channel. Transcripts are
// append-only: turns are added in batches at session end and never rewritten.
//
// Consistency contract: appends are read-modify-write with no locking.
// Concurrent writers to the same phone are last-writer-wins; callers accept
// this because two simultaneous calls to one borrower are not expected.
type ConversationRecord struct {
	ID                  string         `gorm:"column:id;primaryKey"`
	Phone               string         `gorm:"column:phone;uniqueIndex"`
	Name                string         `gorm:"column:name"`
	VoiceTranscript     datatypes.JSON `gorm:"column:voice_transcript"`
	MessagingTranscript datatypes.JSON `gorm:"column:messaging_transcript"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (ConversationRecord) TableName() string {
	return "conversations"
}
