// Package dispatch assembles the call metadata for a borrower and registers
// the outbound voice-agent dispatch against a fresh signaling room.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// guardTTL backstops the per-phone call slot if a session dies without
// releasing it.
const guardTTL = 15 * time.Minute

// Summarizer condenses the two prior-conversation transcripts.
type Summarizer interface {
	SummarizePair(ctx context.Context, messaging, voice []domain.Turn) (whatsappSummary, callSummary string)
}

// Telephony is the control-plane surface dispatch needs.
type Telephony interface {
	CreateCallRoom(ctx context.Context, name string) error
	CreateDispatch(ctx context.Context, roomName, metadata string) error
	CountDispatches(ctx context.Context, roomName string) (int, error)
}

// Guard claims the single in-flight call slot per borrower.
type Guard interface {
	AcquireDispatch(ctx context.Context, phone, room string, ttl time.Duration) (bool, error)
	ReleaseDispatch(ctx context.Context, phone string) error
}

// SessionStarter launches the call session once the dispatch is registered.
type SessionStarter interface {
	StartSession(meta domain.DispatchMetadata, borrower domain.BorrowerRecord, roomName string)
}

// Result is the acknowledgement returned to the dispatch trigger. The call
// itself runs asynchronously.
type Result struct {
	RoomName string `json:"room_name"`
	Phone    string `json:"phone"`
}

// Coordinator implements the dispatch operation end to end: borrower lookup,
// summary generation, metadata assembly, room and dispatch creation.
type Coordinator struct {
	borrowers   repository.BorrowerStore
	contexts    repository.ContextStore
	summarizer  Summarizer
	tele        Telephony
	guard       Guard
	sessions    SessionStarter
	countryCode string
}

func NewCoordinator(
	borrowers repository.BorrowerStore,
	contexts repository.ContextStore,
	summarizer Summarizer,
	tele Telephony,
	guard Guard,
	sessions SessionStarter,
	countryCode string,
) *Coordinator {
	return &Coordinator{
		borrowers:   borrowers,
		contexts:    contexts,
		summarizer:  summarizer,
		tele:        tele,
		guard:       guard,
		sessions:    sessions,
		countryCode: countryCode,
	}
}

// newRoomName generates the per-call signaling room name with a 9-digit
// random suffix.
func newRoomName() string {
	return fmt.Sprintf("livekit_room_%d", 100000000+rand.Intn(900000000))
}

// Dispatch places an outbound call to the borrower. It returns once the
// agent dispatch is registered; it does not block on call completion.
func (c *Coordinator) Dispatch(ctx context.Context, phone string) (Result, error) {
	borrower, err := c.borrowers.FetchBorrower(ctx, phone)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}

	roomName := newRoomName()

	acquired, err := c.guard.AcquireDispatch(ctx, phone, roomName, guardTTL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: dispatch guard: %v", domain.ErrDispatchFailed, err)
	}
	if !acquired {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrCallInProgress, phone)
	}

	result, err := c.dispatchLocked(ctx, *borrower, roomName)
	if err != nil {
		// The session never started; free the slot so the borrower can be
		// redialed.
		if releaseErr := c.guard.ReleaseDispatch(ctx, phone); releaseErr != nil {
			logger.Base().Warn("failed to release dispatch guard after failure",
				zap.String("phone", phone), zap.Error(releaseErr))
		}
		return Result{}, err
	}
	return result, nil
}

func (c *Coordinator) dispatchLocked(ctx context.Context, borrower domain.BorrowerRecord, roomName string) (Result, error) {
	meta, err := c.buildMetadata(ctx, borrower)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return Result{}, fmt.Errorf("%w: metadata serialization: %v", domain.ErrDispatchFailed, err)
	}

	if err := c.tele.CreateCallRoom(ctx, roomName); err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	if err := c.tele.CreateDispatch(ctx, roomName, string(payload)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	count, err := c.tele.CountDispatches(ctx, roomName)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	if count < 1 {
		return Result{}, fmt.Errorf("%w: no dispatch registered in %s", domain.ErrDispatchFailed, roomName)
	}

	logger.Base().Info("registered agent dispatch",
		zap.String("room", roomName),
		zap.String("phone", borrower.Phone),
		zap.Int("dispatches", count))

	c.sessions.StartSession(meta, borrower, roomName)

	return Result{RoomName: roomName, Phone: borrower.Phone}, nil
}

// buildMetadata assembles the dispatch bundle: borrower snapshot plus the two
// prior-conversation summaries, generated sequentially.
func (c *Coordinator) buildMetadata(ctx context.Context, borrower domain.BorrowerRecord) (domain.DispatchMetadata, error) {
	messaging, err := c.contexts.ReadRecentTurns(ctx, borrower.Phone, domain.ChannelMessaging, repository.DefaultRecentTurnLimit)
	if err != nil {
		logger.Base().Warn("failed to read messaging transcript",
			zap.String("phone", borrower.Phone), zap.Error(err))
	}
	voice, err := c.contexts.ReadRecentTurns(ctx, borrower.Phone, domain.ChannelVoice, repository.DefaultRecentTurnLimit)
	if err != nil {
		logger.Base().Warn("failed to read voice transcript",
			zap.String("phone", borrower.Phone), zap.Error(err))
	}

	whatsappSummary, callSummary := c.summarizer.SummarizePair(ctx, messaging, voice)

	var meta domain.DispatchMetadata
	if err := copier.Copy(&meta, &borrower); err != nil {
		return domain.DispatchMetadata{}, fmt.Errorf("%w: metadata mapping: %v", domain.ErrDispatchFailed, err)
	}
	meta.Phone = c.countryCode + borrower.Phone
	meta.MessagingSummary = whatsappSummary
	meta.CallSummary = callSummary
	return meta, nil
}
