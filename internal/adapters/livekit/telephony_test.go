package livekit

import (
	"context"
	"errors"
	"testing"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatchService implements the generated AgentDispatchService client
// interface so the request shapes stay checked against the protocol types.
type fakeDispatchService struct {
	created  []*livekit.CreateAgentDispatchRequest
	listed   []*livekit.ListAgentDispatchRequest
	response *livekit.ListAgentDispatchResponse
	err      error
}

func (f *fakeDispatchService) CreateDispatch(_ context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &livekit.AgentDispatch{Id: "AD_test", AgentName: req.AgentName, Room: req.Room}, nil
}

func (f *fakeDispatchService) DeleteDispatch(_ context.Context, req *livekit.DeleteAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	return &livekit.AgentDispatch{Id: req.DispatchId}, nil
}

func (f *fakeDispatchService) ListDispatch(_ context.Context, req *livekit.ListAgentDispatchRequest) (*livekit.ListAgentDispatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.listed = append(f.listed, req)
	return f.response, nil
}

func newTestTelephony(fake *fakeDispatchService) *Telephony {
	return &Telephony{
		config: &Config{
			ServerURL:  "wss://collections.livekit.cloud",
			APIKey:     "key",
			APISecret:  "secret",
			SIPTrunkID: "ST_trunk",
			AgentName:  "Predixion-Voice-Agent",
		},
		dispatchClient: fake,
	}
}

func TestCreateDispatchTagsAgentAndMetadata(t *testing.T) {
	fake := &fakeDispatchService{}
	tele := newTestTelephony(fake)

	err := tele.CreateDispatch(context.Background(), "livekit_room_123456789", `{"phone":"+919998887770"}`)

	require.NoError(t, err)
	require.Len(t, fake.created, 1)
	assert.Equal(t, "Predixion-Voice-Agent", fake.created[0].AgentName)
	assert.Equal(t, "livekit_room_123456789", fake.created[0].Room)
	assert.Equal(t, `{"phone":"+919998887770"}`, fake.created[0].Metadata)
}

func TestCountDispatchesFiltersByRoom(t *testing.T) {
	fake := &fakeDispatchService{
		response: &livekit.ListAgentDispatchResponse{
			AgentDispatches: []*livekit.AgentDispatch{
				{Id: "AD_1", Room: "livekit_room_123456789"},
			},
		},
	}
	tele := newTestTelephony(fake)

	count, err := tele.CountDispatches(context.Background(), "livekit_room_123456789")

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, fake.listed, 1)
	assert.Equal(t, "livekit_room_123456789", fake.listed[0].Room)
}

func TestCountDispatchesEmptyRoom(t *testing.T) {
	fake := &fakeDispatchService{response: &livekit.ListAgentDispatchResponse{}}
	tele := newTestTelephony(fake)

	count, err := tele.CountDispatches(context.Background(), "livekit_room_987654321")

	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDispatchBackendErrorsWrapUnavailable(t *testing.T) {
	fake := &fakeDispatchService{err: errors.New("twirp error unavailable")}
	tele := newTestTelephony(fake)

	err := tele.CreateDispatch(context.Background(), "livekit_room_123456789", "{}")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = tele.CountDispatches(context.Background(), "livekit_room_123456789")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
