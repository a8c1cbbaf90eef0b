// Package session drives one outbound collection call from dispatch metadata
// to persisted transcript and metrics.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/internal/telemetry"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// State is the call lifecycle position. Transitions only move forward.
type State int32

const (
	StateSeeding State = iota
	StateConnecting
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "seeding"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	dialTimeout   = 90 * time.Second
	flushTimeout  = 30 * time.Second
	maxToolRounds = 4

	agentSpeaker = "agent"
)

// Result summarizes a finished call for outcome reporting.
type Result struct {
	RoomName      string
	Phone         string
	Answered      bool
	Duration      time.Duration
	AgentTurns    int
	BorrowerTurns int
}

// CallSession is the per-call state machine. One instance per dispatched
// call; instances share nothing but the external stores.
type CallSession struct {
	meta     domain.DispatchMetadata
	borrower domain.BorrowerRecord
	roomName string

	tele     Telephony
	connect  ConversationFactory
	model    ChatModel
	tools    *ToolRegistry
	recorder *telemetry.Recorder
	flusher  *telemetry.Flusher
	contexts repository.ContextStore

	mu           sync.Mutex
	state        State
	endRequested bool
	messages     []openai.ChatCompletionMessage
	transcript   []domain.Turn
	conv         Conversation
	startedAt    time.Time
}

func NewCallSession(
	meta domain.DispatchMetadata,
	borrower domain.BorrowerRecord,
	roomName string,
	tele Telephony,
	connect ConversationFactory,
	model ChatModel,
	borrowers repository.BorrowerStore,
	contexts repository.ContextStore,
	policies PolicyAnswerer,
	recorder *telemetry.Recorder,
	flusher *telemetry.Flusher,
) *CallSession {
	s := &CallSession{
		meta:     meta,
		borrower: borrower,
		roomName: roomName,
		tele:     tele,
		connect:  connect,
		model:    model,
		contexts: contexts,
		recorder: recorder,
		flusher:  flusher,
		state:    StateSeeding,
	}
	s.tools = newSessionTools(borrowers, borrower.Phone, policies, s.requestEnd)
	return s
}

func (s *CallSession) requestEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endRequested = true
}

func (s *CallSession) endWasRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endRequested
}

func (s *CallSession) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	logger.Base().Info("call state transition",
		zap.String("room", s.roomName),
		zap.String("from", prev.String()),
		zap.String("to", next.String()))
}

func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes the full call lifecycle. The returned error reports why the
// call ended early; in every path the session reaches Closed and both
// shutdown flushes have run before Run returns.
func (s *CallSession) Run(ctx context.Context) (Result, error) {
	s.startedAt = time.Now()

	// Seeding: chat context only, no network I/O.
	s.messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: agentInstructions(s.borrower)},
		{Role: openai.ChatMessageRoleSystem, Content: seedContext(s.meta)},
	}

	s.setState(StateConnecting)

	conv, err := s.connect(ctx, s.roomName, s.recorder)
	if err != nil {
		logger.Base().Error("failed to join signaling room",
			zap.String("room", s.roomName), zap.Error(err))
		s.teardown(false)
		return s.result(false), err
	}
	s.conv = conv

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	err = s.tele.DialBorrower(dialCtx, s.roomName, s.meta.Phone, s.borrower.FullName())
	cancel()
	if err != nil {
		logger.Base().Error("outbound call not answered",
			zap.String("room", s.roomName),
			zap.String("phone", s.meta.Phone),
			zap.Error(err))
		s.teardown(false)
		return s.result(false), err
	}

	s.setState(StateActive)
	runErr := s.converse(ctx)
	return s.result(true), runErr
}

// converse drives turn-taking until end_call fires or the transport closes.
// Borrower barge-in is handled by the speech transport; the session just
// issues one reply per completed borrower utterance.
func (s *CallSession) converse(ctx context.Context) error {
	greeting, err := s.respond(ctx, greetingInstruction)
	if err != nil {
		s.teardown(false)
		return err
	}
	if err := s.say(ctx, greeting, false); err != nil {
		s.teardown(false)
		return err
	}

	for {
		turn, err := s.conv.NextUserTurn(ctx)
		if err != nil {
			// Hangup or transport disconnect: still close through the
			// normal path so both flushes run.
			logger.Base().Info("conversation ended by remote side",
				zap.String("room", s.roomName), zap.Error(err))
			s.teardown(false)
			return nil
		}

		s.appendTurn(s.borrower.FullName(), turn.Text, turn.At)
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: turn.Text,
		})

		reply, err := s.respond(ctx, "")
		if err != nil {
			s.teardown(false)
			return err
		}
		if reply != "" {
			if err := s.say(ctx, reply, false); err != nil {
				s.teardown(false)
				return err
			}
		}

		if s.endWasRequested() {
			s.teardown(true)
			return nil
		}
	}
}

// respond runs the model until it produces spoken text, executing tool calls
// in between. A set end-call flag stops the loop; the closing utterance is
// generated separately during teardown.
func (s *CallSession) respond(ctx context.Context, instruction string) (string, error) {
	if instruction != "" {
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instruction,
		})
	}

	for round := 0; round < maxToolRounds; round++ {
		reply, err := s.model.Complete(ctx, s.messages, s.tools.Definitions())
		if err != nil {
			return "", err
		}

		if len(reply.ToolCalls) == 0 {
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: reply.Text,
			})
			return reply.Text, nil
		}

		assistant := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply.Text,
		}
		for _, tc := range reply.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		s.messages = append(s.messages, assistant)

		for _, tc := range reply.ToolCalls {
			out, err := s.tools.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				logger.Base().Error("tool execution failed",
					zap.String("tool", tc.Name), zap.Error(err))
				out = fmt.Sprintf(`{"error":%q}`, err.Error())
			}
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				ToolCallID: tc.ID,
			})
		}

		if s.endWasRequested() {
			return "", nil
		}
	}

	return "", fmt.Errorf("%w: model did not produce a spoken reply within %d tool rounds",
		domain.ErrBackendUnavailable, maxToolRounds)
}

func (s *CallSession) say(ctx context.Context, text string, waitPlayout bool) error {
	if err := s.conv.Say(ctx, text, waitPlayout); err != nil {
		return fmt.Errorf("%w: speak: %v", domain.ErrBackendUnavailable, err)
	}
	s.appendTurn(agentSpeaker, text, time.Now())
	return nil
}

func (s *CallSession) appendTurn(speaker, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, domain.Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: at,
	})
}

// teardown routes every exit, graceful or not, through Closing and then runs
// the two Closed-state flushes. With graceful set, one final closing
// utterance is generated and fully played out before the room is deleted.
func (s *CallSession) teardown(graceful bool) {
	s.setState(StateClosing)

	// The run context may already be canceled (hangup, disconnect); the
	// flushes must still complete, so teardown uses its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if graceful && s.conv != nil {
		if closing, err := s.respond(ctx, closingInstruction); err != nil {
			logger.Base().Error("closing utterance generation failed", zap.Error(err))
		} else if closing != "" {
			if err := s.say(ctx, closing, true); err != nil {
				logger.Base().Error("closing utterance playout failed", zap.Error(err))
			}
		}
	}

	if s.conv != nil {
		if err := s.conv.Close(); err != nil {
			logger.Base().Warn("conversation close failed", zap.Error(err))
		}
	}
	if err := s.tele.DeleteRoom(ctx, s.roomName); err != nil {
		logger.Base().Warn("room deletion failed",
			zap.String("room", s.roomName), zap.Error(err))
	}

	s.setState(StateClosed)
	s.flushTranscript(ctx)
	s.flushMetrics(ctx)
}

// flushTranscript persists the call transcript under the borrower's local
// phone number. An unanswered call has nothing to persist.
func (s *CallSession) flushTranscript(ctx context.Context) {
	s.mu.Lock()
	turns := make([]domain.Turn, len(s.transcript))
	copy(turns, s.transcript)
	s.mu.Unlock()

	if len(turns) == 0 {
		return
	}

	phone := s.borrower.Phone
	if _, err := s.contexts.EnsureConversationRecord(ctx, phone, s.borrower.FullName()); err != nil {
		logger.Base().Error("failed to ensure conversation record",
			zap.String("phone", phone), zap.Error(err))
		return
	}
	if err := s.contexts.AppendTurns(ctx, phone, domain.ChannelVoice, turns); err != nil {
		logger.Base().Error("failed to append voice transcript",
			zap.String("phone", phone), zap.Error(err))
		return
	}

	logger.Base().Info("stored call transcript",
		zap.String("phone", phone), zap.Int("turns", len(turns)))
}

// flushMetrics writes the metrics payload locally, then mirrors it to blob
// storage. Upload exhaustion is already logged by the flusher; the call is
// complete either way.
func (s *CallSession) flushMetrics(ctx context.Context) {
	payload, err := telemetry.Serialize(s.recorder.Snapshot())
	if err != nil {
		logger.Base().Error("failed to serialize call metrics", zap.Error(err))
		return
	}

	name := telemetry.FileName(s.borrower.Phone, time.Now())
	if _, err := s.flusher.Persist(payload, name); err != nil {
		logger.Base().Error("failed to persist call metrics locally",
			zap.String("name", name), zap.Error(err))
	}
	if err := s.flusher.Upload(ctx, payload, name); err != nil && !errors.Is(err, domain.ErrUploadFailed) {
		logger.Base().Error("metrics upload failed", zap.Error(err))
	}
}

func (s *CallSession) result(answered bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agent, borrower int
	for _, t := range s.transcript {
		if t.Speaker == agentSpeaker {
			agent++
		} else {
			borrower++
		}
	}
	return Result{
		RoomName:      s.roomName,
		Phone:         s.borrower.Phone,
		Answered:      answered,
		Duration:      time.Since(s.startedAt),
		AgentTurns:    agent,
		BorrowerTurns: borrower,
	}
}
