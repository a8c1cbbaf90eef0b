package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BorrowerStore reads borrower financial records. Reads are always fresh;
// nothing is cached across calls.
type BorrowerStore interface {
	FetchBorrower(ctx context.Context, phone string) (*domain.BorrowerRecord, error)
}

// ContextStore reads and writes per-borrower conversation history.
//
// Weak-consistency contract: AppendTurns is read-modify-write with no locking
// or transaction. Concurrent writers to the same phone are last-writer-wins.
type ContextStore interface {
	// EnsureConversationRecord creates the record for phone if absent and
	// returns the phone key as the record handle. Idempotent.
	EnsureConversationRecord(ctx context.Context, phone, name string) (string, error)

	// AppendTurns extends the named channel transcript with turns, preserving
	// both the existing order and the batch order. Returns
	// domain.ErrRecordNotFound if the record vanished after ensure.
	AppendTurns(ctx context.Context, handle string, channel domain.Channel, turns []domain.Turn) error

	// ReadRecentTurns returns at most limit most recent turns with timestamps
	// stripped. Absent record or empty history yields an empty slice.
	ReadRecentTurns(ctx context.Context, handle string, channel domain.Channel, limit int) ([]domain.Turn, error)
}

// Manager combines the repositories behind one connection.
type Manager interface {
	Borrowers() BorrowerStore
	Conversations() ContextStore
	// DB exposes the underlying connection for components that issue their
	// own queries, such as the vector index.
	DB() *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

type gormManager struct {
	db            *gorm.DB
	borrowers     *BorrowerRepository
	conversations *ConversationRepository
}

// Open connects to Postgres and returns the repository manager.
func Open(dsn string) (Manager, error) {
	gormLogger := gormlogger.New(
		logger.NewGORMWriter(),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Error,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return NewManager(db), nil
}

// NewManager builds a manager over an existing connection.
func NewManager(db *gorm.DB) Manager {
	return &gormManager{
		db:            db,
		borrowers:     NewBorrowerRepository(db),
		conversations: NewConversationRepository(db),
	}
}

func (m *gormManager) Borrowers() BorrowerStore {
	return m.borrowers
}

func (m *gormManager) Conversations() ContextStore {
	return m.conversations
}

func (m *gormManager) DB() *gorm.DB {
	return m.db
}

func (m *gormManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *gormManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
