package livekit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"go.uber.org/zap"
)

const (
	roomEmptyTimeoutSec = 30
	roomMaxParticipants = 2
	adminTokenTTL       = time.Minute
)

// Telephony wraps the LiveKit control plane: room lifecycle, agent dispatch
// registration and SIP call origination.
type Telephony struct {
	config         *Config
	roomClient     *lksdk.RoomServiceClient
	dispatchClient livekit.AgentDispatchService
	sipClient      livekit.SIP
}

func NewTelephony(config *Config) (*Telephony, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LiveKit config: %w", err)
	}

	httpClient := &http.Client{
		Transport: &adminAuthTransport{config: config},
		Timeout:   2 * time.Minute,
	}

	return &Telephony{
		config:         config,
		roomClient:     lksdk.NewRoomServiceClient(config.HTTPURL(), config.APIKey, config.APISecret),
		dispatchClient: livekit.NewAgentDispatchServiceProtobufClient(config.HTTPURL(), httpClient),
		sipClient:      livekit.NewSIPProtobufClient(config.HTTPURL(), httpClient),
	}, nil
}

// adminAuthTransport mints a short-lived admin token per control-plane request.
type adminAuthTransport struct {
	config *Config
}

func (t *adminAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	at := auth.NewAccessToken(t.config.APIKey, t.config.APISecret)
	at.SetVideoGrant(&auth.VideoGrant{RoomCreate: true, RoomAdmin: true, Agent: true}).
		SetSIPGrant(&auth.SIPGrant{Admin: true, Call: true}).
		SetIdentity("collections-dispatcher").
		SetValidFor(adminTokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("failed to sign admin token: %w", err)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return http.DefaultTransport.RoundTrip(req)
}

// CreateCallRoom creates the signaling room for one outbound call with a
// bounded idle timeout and a two-participant cap.
func (t *Telephony) CreateCallRoom(ctx context.Context, name string) error {
	_, err := t.roomClient.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    roomEmptyTimeoutSec,
		MaxParticipants: roomMaxParticipants,
	})
	if err != nil {
		return fmt.Errorf("%w: create room %s: %v", domain.ErrBackendUnavailable, name, err)
	}

	logger.Base().Info("created call room", zap.String("room", name))
	return nil
}

// DeleteRoom tears down the signaling room, disconnecting any remaining
// participants.
func (t *Telephony) DeleteRoom(ctx context.Context, name string) error {
	_, err := t.roomClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if err != nil {
		return fmt.Errorf("%w: delete room %s: %v", domain.ErrBackendUnavailable, name, err)
	}
	return nil
}

// CreateDispatch registers the voice agent against the room, tagged with the
// serialized call metadata.
func (t *Telephony) CreateDispatch(ctx context.Context, roomName, metadata string) error {
	dispatch, err := t.dispatchClient.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		AgentName: t.config.AgentName,
		Room:      roomName,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("%w: create dispatch in %s: %v", domain.ErrBackendUnavailable, roomName, err)
	}

	logger.Base().Info("created agent dispatch",
		zap.String("room", roomName),
		zap.String("dispatch_id", dispatch.GetId()))
	return nil
}

// CountDispatches returns the number of dispatches registered on the room.
func (t *Telephony) CountDispatches(ctx context.Context, roomName string) (int, error) {
	resp, err := t.dispatchClient.ListDispatch(ctx, &livekit.ListAgentDispatchRequest{Room: roomName})
	if err != nil {
		return 0, fmt.Errorf("%w: list dispatches in %s: %v", domain.ErrBackendUnavailable, roomName, err)
	}
	return len(resp.GetAgentDispatches()), nil
}

// DialBorrower originates the outbound SIP leg to the borrower and blocks
// until the call is answered or the backend rejects it. Rejection and timeout
// are fatal for the session; there is no redial here.
func (t *Telephony) DialBorrower(ctx context.Context, roomName, phone, identity string) error {
	_, err := t.sipClient.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          t.config.SIPTrunkID,
		SipCallTo:           phone,
		RoomName:            roomName,
		ParticipantIdentity: identity,
		ParticipantName:     identity,
		WaitUntilAnswered:   true,
	})
	if err != nil {
		return fmt.Errorf("%w: outbound call to %s: %v", domain.ErrBackendUnavailable, phone, err)
	}

	logger.Base().Info("outbound call answered",
		zap.String("room", roomName),
		zap.String("phone", phone))
	return nil
}
