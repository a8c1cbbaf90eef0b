package session

import (
	"context"
	"sync"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/internal/telemetry"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DispatchGuard releases the per-phone single-call lock when a session ends.
type DispatchGuard interface {
	ReleaseDispatch(ctx context.Context, phone string) error
}

// OutcomePublisher reports a finished call to downstream consumers.
type OutcomePublisher interface {
	PublishCallOutcome(ctx context.Context, result Result) error
}

// Manager owns the set of in-flight call sessions, one per room. Sessions
// share nothing but the external stores.
type Manager struct {
	tele      Telephony
	connect   ConversationFactory
	client    *openai.Client
	chatModel string
	borrowers repository.BorrowerStore
	contexts  repository.ContextStore
	policies  PolicyAnswerer
	uploader  telemetry.Uploader
	localDir  string
	guard     DispatchGuard
	publisher OutcomePublisher

	mu       sync.RWMutex
	sessions map[string]*CallSession // roomName -> session
}

func NewManager(
	tele Telephony,
	connect ConversationFactory,
	client *openai.Client,
	chatModel string,
	borrowers repository.BorrowerStore,
	contexts repository.ContextStore,
	policies PolicyAnswerer,
	uploader telemetry.Uploader,
	localDir string,
	guard DispatchGuard,
	publisher OutcomePublisher,
) *Manager {
	return &Manager{
		tele:      tele,
		connect:   connect,
		client:    client,
		chatModel: chatModel,
		borrowers: borrowers,
		contexts:  contexts,
		policies:  policies,
		uploader:  uploader,
		localDir:  localDir,
		guard:     guard,
		publisher: publisher,
		sessions:  make(map[string]*CallSession),
	}
}

// StartSession builds and launches the call session for a dispatched room.
// It returns once the session goroutine is running; the dispatch path does
// not block on call completion.
func (m *Manager) StartSession(meta domain.DispatchMetadata, borrower domain.BorrowerRecord, roomName string) {
	recorder := telemetry.NewRecorder()
	flusher := telemetry.NewFlusher(m.uploader, m.localDir)
	model := NewOpenAIModel(m.client, m.chatModel, recorder)

	sess := NewCallSession(meta, borrower, roomName,
		m.tele, m.connect, model, m.borrowers, m.contexts, m.policies, recorder, flusher)

	m.mu.Lock()
	m.sessions[roomName] = sess
	m.mu.Unlock()

	logger.Base().Info("call session started",
		zap.String("room", roomName),
		zap.String("phone", borrower.Phone))

	go m.run(sess, borrower.Phone, roomName)
}

func (m *Manager) run(sess *CallSession, phone, roomName string) {
	result, err := sess.Run(context.Background())
	if err != nil {
		logger.Base().Error("call session ended with error",
			zap.String("room", roomName), zap.Error(err))
	}

	m.mu.Lock()
	delete(m.sessions, roomName)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.guard.ReleaseDispatch(ctx, phone); err != nil {
		logger.Base().Warn("failed to release dispatch guard",
			zap.String("phone", phone), zap.Error(err))
	}
	if err := m.publisher.PublishCallOutcome(ctx, result); err != nil {
		logger.Base().Warn("failed to publish call outcome",
			zap.String("room", roomName), zap.Error(err))
	}

	logger.Base().Info("call session finished",
		zap.String("room", roomName),
		zap.String("phone", phone),
		zap.Bool("answered", result.Answered),
		zap.Duration("duration", result.Duration))
}

// ActiveCount reports the number of in-flight sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
