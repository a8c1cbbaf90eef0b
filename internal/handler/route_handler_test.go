package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArbiter struct {
	channel  domain.Channel
	response string
	pref     string
}

func (f *fakeArbiter) Decide(_ context.Context, response, defaultPreference string) domain.Channel {
	f.response = response
	f.pref = defaultPreference
	return f.channel
}

func postRoute(t *testing.T, h *RouteHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleRoute(rec, req)
	return rec
}

func TestHandleRouteReturnsChosenChannel(t *testing.T) {
	arbiter := &fakeArbiter{channel: domain.ChannelMessaging}
	h := NewRouteHandler(arbiter)

	rec := postRoute(t, h, `{"customer_response":"please message me instead","default_preference":"call"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"channel":"messaging"`)
	assert.Equal(t, "please message me instead", arbiter.response)
	assert.Equal(t, "call", arbiter.pref)
}

func TestHandleRouteMissingResponse(t *testing.T) {
	h := NewRouteHandler(&fakeArbiter{channel: domain.ChannelVoice})

	rec := postRoute(t, h, `{"default_preference":"call"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRouteBadBody(t *testing.T) {
	h := NewRouteHandler(&fakeArbiter{channel: domain.ChannelVoice})

	rec := postRoute(t, h, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
