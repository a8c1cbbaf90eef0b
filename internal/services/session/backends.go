package session

import (
	"context"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/telemetry"
)

// UserTurn is one completed borrower utterance delivered by the speech
// transport.
type UserTurn struct {
	Text string
	At   time.Time
}

// Conversation is the speech transport for one live call. The production
// implementation bridges a LiveKit room data channel; tests use fakes.
//
// NextUserTurn blocks until the borrower finishes an utterance. It returns an
// error when the borrower hangs up or the transport disconnects; callers must
// treat that as a close signal, not a crash.
type Conversation interface {
	NextUserTurn(ctx context.Context) (UserTurn, error)

	// Say speaks text to the borrower. With waitPlayout the call blocks
	// until audio playout finishes, used for the final utterance before
	// hangup.
	Say(ctx context.Context, text string, waitPlayout bool) error

	Close() error
}

// Telephony is the control-plane surface a session needs: originate the
// outbound leg and tear the room down.
type Telephony interface {
	DialBorrower(ctx context.Context, roomName, phone, identity string) error
	DeleteRoom(ctx context.Context, roomName string) error
}

// ConversationFactory joins the signaling room and returns the speech
// transport for it. The transport emits speech metrics into the session's
// recorder as they arrive.
type ConversationFactory func(ctx context.Context, roomName string, recorder *telemetry.Recorder) (Conversation, error)
