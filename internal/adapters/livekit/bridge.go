package livekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/services/session"
	"github.com/PredixionAI/collections-voice-service/internal/telemetry"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"go.uber.org/zap"
)

// Data-channel message types exchanged with the speech worker in the room.
const (
	msgTranscription = "transcription"
	msgEOU           = "eou"
	msgTTS           = "tts"
	msgPlayoutDone   = "playout_done"
	msgSay           = "say"
)

const playoutWait = 30 * time.Second

// dataEnvelope is the JSON frame on the room data channel. The speech worker
// sends transcriptions, metric events and playout confirmations; the bridge
// sends utterances to speak.
type dataEnvelope struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	UtteranceID string `json:"utterance_id,omitempty"`
	Final       bool   `json:"final,omitempty"`

	DurationMs          float64 `json:"duration_ms,omitempty"`
	AudioDurationMs     float64 `json:"audio_duration_ms,omitempty"`
	TTFBMs              float64 `json:"ttfb_ms,omitempty"`
	CharactersCount     int     `json:"characters_count,omitempty"`
	EndOfUtteranceDelay float64 `json:"end_of_utterance_delay_ms,omitempty"`
	TranscriptionDelay  float64 `json:"transcription_delay_ms,omitempty"`
}

// Bridge is the production session.Conversation: it joins the call room as
// the agent participant and exchanges data-channel frames with the speech
// worker handling STT and TTS.
type Bridge struct {
	config   *Config
	recorder *telemetry.Recorder

	room *lksdk.Room

	turns    chan session.UserTurn
	playouts chan string

	mu        sync.Mutex
	utterance int

	done      chan struct{}
	closeOnce sync.Once
}

// NewConversationFactory returns the factory wired into the session manager.
func NewConversationFactory(config *Config) session.ConversationFactory {
	return func(ctx context.Context, roomName string, recorder *telemetry.Recorder) (session.Conversation, error) {
		return ConnectBridge(ctx, config, roomName, recorder)
	}
}

// ConnectBridge joins roomName as the agent participant.
func ConnectBridge(ctx context.Context, config *Config, roomName string, recorder *telemetry.Recorder) (*Bridge, error) {
	b := &Bridge{
		config:   config,
		recorder: recorder,
		turns:    make(chan session.UserTurn, 16),
		playouts: make(chan string, 16),
		done:     make(chan struct{}),
	}

	room, err := lksdk.ConnectToRoom(config.ServerURL, lksdk.ConnectInfo{
		APIKey:              config.APIKey,
		APISecret:           config.APISecret,
		RoomName:            roomName,
		ParticipantIdentity: config.AgentName,
	}, b.roomCallback(roomName))
	if err != nil {
		return nil, fmt.Errorf("%w: join room %s: %v", domain.ErrBackendUnavailable, roomName, err)
	}
	b.room = room

	logger.Base().Info("agent joined call room", zap.String("room", roomName))
	return b, nil
}

// roomCallback wires the room events the bridge cares about: data frames from
// the speech worker and disconnection.
func (b *Bridge) roomCallback(roomName string) *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataReceived: func(data []byte, rp *lksdk.RemoteParticipant) {
				b.handleData(data)
			},
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			logger.Base().Info("participant left call room",
				zap.String("room", roomName),
				zap.String("participant", rp.Identity()))
		},
		OnDisconnected: func() {
			logger.Base().Info("agent disconnected from call room", zap.String("room", roomName))
			b.signalDone()
		},
	}
}

func (b *Bridge) signalDone() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bridge) handleData(data []byte) {
	var env dataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Base().Warn("undecodable data-channel frame", zap.Error(err))
		return
	}

	switch env.Type {
	case msgTranscription:
		b.recorder.RecordSTT(domain.STTMetric{
			Timestamp:     time.Now(),
			Duration:      ms(env.DurationMs),
			AudioDuration: ms(env.AudioDurationMs),
		})
		if !env.Final {
			return
		}
		select {
		case b.turns <- session.UserTurn{Text: env.Text, At: time.Now()}:
		default:
			logger.Base().Warn("dropping borrower turn, session not consuming",
				zap.String("text", env.Text))
		}
	case msgEOU:
		b.recorder.RecordEOU(domain.EOUMetric{
			Timestamp:           time.Now(),
			EndOfUtteranceDelay: ms(env.EndOfUtteranceDelay),
			TranscriptionDelay:  ms(env.TranscriptionDelay),
		})
	case msgTTS:
		b.recorder.RecordTTS(domain.TTSMetric{
			Timestamp:     time.Now(),
			TTFB:          ms(env.TTFBMs),
			Duration:      ms(env.DurationMs),
			AudioDuration: ms(env.AudioDurationMs),
			Characters:    env.CharactersCount,
		})
	case msgPlayoutDone:
		select {
		case b.playouts <- env.UtteranceID:
		default:
		}
	default:
		logger.Base().Debug("ignoring data-channel frame", zap.String("type", env.Type))
	}
}

// NextUserTurn blocks until the speech worker delivers the next final
// transcription.
func (b *Bridge) NextUserTurn(ctx context.Context) (session.UserTurn, error) {
	select {
	case turn := <-b.turns:
		return turn, nil
	case <-b.done:
		return session.UserTurn{}, errors.New("call room disconnected")
	case <-ctx.Done():
		return session.UserTurn{}, ctx.Err()
	}
}

// Say hands the utterance to the speech worker. With waitPlayout it blocks
// until the worker confirms audio playout finished, bounded by playoutWait.
func (b *Bridge) Say(ctx context.Context, text string, waitPlayout bool) error {
	b.mu.Lock()
	b.utterance++
	id := strconv.Itoa(b.utterance)
	b.mu.Unlock()

	payload, err := json.Marshal(dataEnvelope{
		Type:        msgSay,
		UtteranceID: id,
		Text:        text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode utterance: %w", err)
	}

	if err := b.room.LocalParticipant.PublishData(payload, livekit.DataPacket_RELIABLE, nil); err != nil {
		return fmt.Errorf("failed to publish utterance: %w", err)
	}

	if !waitPlayout {
		return nil
	}

	deadline := time.NewTimer(playoutWait)
	defer deadline.Stop()
	for {
		select {
		case doneID := <-b.playouts:
			if doneID == id {
				return nil
			}
		case <-b.done:
			return errors.New("call room disconnected before playout finished")
		case <-deadline.C:
			return fmt.Errorf("playout confirmation timed out for utterance %s", id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) Close() error {
	b.signalDone()
	if b.room != nil {
		b.room.Disconnect()
	}
	return nil
}

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}
