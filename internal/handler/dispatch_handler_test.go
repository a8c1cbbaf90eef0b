package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/services/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	result dispatch.Result
	err    error
	phones []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, phone string) (dispatch.Result, error) {
	f.phones = append(f.phones, phone)
	if f.err != nil {
		return dispatch.Result{}, f.err
	}
	return f.result, nil
}

func postDispatch(t *testing.T, h *DispatchHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDispatch(rec, req)
	return rec
}

func TestHandleDispatchSuccess(t *testing.T) {
	d := &fakeDispatcher{result: dispatch.Result{RoomName: "livekit_room_123456789", Phone: "9998887770"}}
	h := NewDispatchHandler(d)

	rec := postDispatch(t, h, `{"customer_phone":"9998887770"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dispatched", resp.Status)
	assert.Equal(t, "livekit_room_123456789", resp.RoomName)
	assert.Equal(t, []string{"9998887770"}, d.phones)
}

func TestHandleDispatchMissingPhone(t *testing.T) {
	h := NewDispatchHandler(&fakeDispatcher{})

	rec := postDispatch(t, h, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDispatchBadBody(t *testing.T) {
	h := NewDispatchHandler(&fakeDispatcher{})

	rec := postDispatch(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDispatchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"call already in progress", fmt.Errorf("%w: 9998887770", domain.ErrCallInProgress), http.StatusConflict},
		{"malformed phone", fmt.Errorf("%w: %w", domain.ErrDispatchFailed, domain.ErrMalformedPhone), http.StatusBadRequest},
		{"borrower missing", fmt.Errorf("%w: %w", domain.ErrDispatchFailed, domain.ErrBorrowerNotFound), http.StatusNotFound},
		{"backend rejected", fmt.Errorf("%w: create room", domain.ErrDispatchFailed), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDispatchHandler(&fakeDispatcher{err: tt.err})
			rec := postDispatch(t, h, `{"customer_phone":"9998887770"}`)

			assert.Equal(t, tt.want, rec.Code)
			var resp DispatchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}
