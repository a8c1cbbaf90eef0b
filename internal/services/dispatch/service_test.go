package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBorrowerStore struct {
	record domain.BorrowerRecord
}

func (f *fakeBorrowerStore) FetchBorrower(_ context.Context, phone string) (*domain.BorrowerRecord, error) {
	if phone != f.record.Phone {
		return nil, domain.ErrBorrowerNotFound
	}
	record := f.record
	return &record, nil
}

type fakeContextStore struct {
	messaging []domain.Turn
	voice     []domain.Turn
}

func (f *fakeContextStore) EnsureConversationRecord(_ context.Context, phone, _ string) (string, error) {
	return phone, nil
}

func (f *fakeContextStore) AppendTurns(_ context.Context, _ string, _ domain.Channel, _ []domain.Turn) error {
	return nil
}

func (f *fakeContextStore) ReadRecentTurns(_ context.Context, _ string, channel domain.Channel, _ int) ([]domain.Turn, error) {
	if channel == domain.ChannelMessaging {
		return f.messaging, nil
	}
	return f.voice, nil
}

type fakeSummarizer struct {
	calls int
}

func (f *fakeSummarizer) SummarizePair(_ context.Context, messaging, voice []domain.Turn) (string, string) {
	f.calls++
	whatsapp := "No prior conversation occurred."
	call := "No prior conversation occurred."
	if len(messaging) > 0 {
		whatsapp = "Borrower asked about the due date."
	}
	if len(voice) > 0 {
		call = "Borrower promised to pay."
	}
	return whatsapp, call
}

type fakeTelephony struct {
	createRoomErr error
	dispatchErr   error
	dispatchCount int

	rooms      []string
	dispatches map[string]string
}

func (f *fakeTelephony) CreateCallRoom(_ context.Context, name string) error {
	if f.createRoomErr != nil {
		return f.createRoomErr
	}
	f.rooms = append(f.rooms, name)
	return nil
}

func (f *fakeTelephony) CreateDispatch(_ context.Context, roomName, metadata string) error {
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	if f.dispatches == nil {
		f.dispatches = make(map[string]string)
	}
	f.dispatches[roomName] = metadata
	return nil
}

func (f *fakeTelephony) CountDispatches(_ context.Context, roomName string) (int, error) {
	if f.dispatchCount > 0 {
		return f.dispatchCount, nil
	}
	if _, ok := f.dispatches[roomName]; ok {
		return 1, nil
	}
	return 0, nil
}

type fakeGuard struct {
	held       bool
	acquired   []string
	released   []string
	acquireErr error
}

func (f *fakeGuard) AcquireDispatch(_ context.Context, phone, _ string, _ time.Duration) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.acquired = append(f.acquired, phone)
	return true, nil
}

func (f *fakeGuard) ReleaseDispatch(_ context.Context, phone string) error {
	f.released = append(f.released, phone)
	return nil
}

type fakeStarter struct {
	started []string
	meta    domain.DispatchMetadata
}

func (f *fakeStarter) StartSession(meta domain.DispatchMetadata, _ domain.BorrowerRecord, roomName string) {
	f.started = append(f.started, roomName)
	f.meta = meta
}

func testBorrower() domain.BorrowerRecord {
	return domain.BorrowerRecord{
		Phone:           "9998887770",
		FirstName:       "Asha",
		LastName:        "Verma",
		CurrentBalance:  5000,
		Installment:     2500,
		RepaymentStart:  "2025-01-05",
		LastPaymentDate: "2026-07-05",
	}
}

func newCoordinator(tele *fakeTelephony, guard *fakeGuard, starter *fakeStarter, contexts *fakeContextStore, summarizer *fakeSummarizer) *Coordinator {
	return NewCoordinator(
		&fakeBorrowerStore{record: testBorrower()},
		contexts,
		summarizer,
		tele,
		guard,
		starter,
		"+91",
	)
}

func TestDispatchSuccess(t *testing.T) {
	tele := &fakeTelephony{}
	guard := &fakeGuard{}
	starter := &fakeStarter{}
	contexts := &fakeContextStore{
		messaging: []domain.Turn{{Speaker: "Asha Verma", Text: "When is my due date?"}},
	}
	summarizer := &fakeSummarizer{}

	c := newCoordinator(tele, guard, starter, contexts, summarizer)
	result, err := c.Dispatch(context.Background(), "9998887770")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RoomName, "livekit_room_"))
	assert.Len(t, result.RoomName, len("livekit_room_")+9)
	assert.Equal(t, "9998887770", result.Phone)

	require.Len(t, tele.rooms, 1)
	assert.Contains(t, tele.dispatches, result.RoomName)
	assert.Equal(t, []string{result.RoomName}, starter.started)
	assert.Equal(t, 1, summarizer.calls)
	assert.Empty(t, guard.released, "slot stays held while the call runs")

	assert.Equal(t, "+919998887770", starter.meta.Phone)
	assert.Equal(t, "Asha", starter.meta.FirstName)
	assert.Equal(t, float64(5000), starter.meta.CurrentBalance)
	assert.Equal(t, "Borrower asked about the due date.", starter.meta.MessagingSummary)
	assert.Equal(t, "No prior conversation occurred.", starter.meta.CallSummary)
}

func TestDispatchUnknownBorrower(t *testing.T) {
	tele := &fakeTelephony{}
	guard := &fakeGuard{}
	starter := &fakeStarter{}

	c := newCoordinator(tele, guard, starter, &fakeContextStore{}, &fakeSummarizer{})
	_, err := c.Dispatch(context.Background(), "0000000000")

	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)
	assert.Empty(t, guard.acquired)
	assert.Empty(t, tele.rooms)
	assert.Empty(t, starter.started)
}

func TestDispatchCallAlreadyInProgress(t *testing.T) {
	tele := &fakeTelephony{}
	guard := &fakeGuard{held: true}
	starter := &fakeStarter{}

	c := newCoordinator(tele, guard, starter, &fakeContextStore{}, &fakeSummarizer{})
	_, err := c.Dispatch(context.Background(), "9998887770")

	assert.ErrorIs(t, err, domain.ErrCallInProgress)
	assert.Empty(t, tele.rooms)
	assert.Empty(t, starter.started)
}

func TestDispatchBackendRejectionReleasesGuard(t *testing.T) {
	tele := &fakeTelephony{createRoomErr: errors.New("livekit unavailable")}
	guard := &fakeGuard{}
	starter := &fakeStarter{}

	c := newCoordinator(tele, guard, starter, &fakeContextStore{}, &fakeSummarizer{})
	_, err := c.Dispatch(context.Background(), "9998887770")

	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.Equal(t, []string{"9998887770"}, guard.released)
	assert.Empty(t, starter.started)
}

func TestDispatchNoRegisteredDispatchFails(t *testing.T) {
	tele := &fakeTelephony{dispatchErr: errors.New("agent pool empty")}
	guard := &fakeGuard{}
	starter := &fakeStarter{}

	c := newCoordinator(tele, guard, starter, &fakeContextStore{}, &fakeSummarizer{})
	_, err := c.Dispatch(context.Background(), "9998887770")

	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.Empty(t, starter.started)
}

func TestNewRoomNameShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := newRoomName()
		require.True(t, strings.HasPrefix(name, "livekit_room_"))
		suffix := strings.TrimPrefix(name, "livekit_room_")
		assert.Len(t, suffix, 9)
	}
}
