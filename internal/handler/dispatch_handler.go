package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/services/dispatch"
)

// Dispatcher triggers one outbound call.
type Dispatcher interface {
	Dispatch(ctx context.Context, phone string) (dispatch.Result, error)
}

// DispatchRequest is the dispatch trigger payload.
type DispatchRequest struct {
	CustomerPhone string `json:"customer_phone"`
}

// DispatchResponse acknowledges a registered dispatch.
type DispatchResponse struct {
	Status   string `json:"status"`
	RoomName string `json:"room_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DispatchHandler exposes the dispatch trigger endpoint.
type DispatchHandler struct {
	coordinator Dispatcher
}

func NewDispatchHandler(coordinator Dispatcher) *DispatchHandler {
	return &DispatchHandler{coordinator: coordinator}
}

// HandleDispatch handles POST /api/v1/dispatch.
func (h *DispatchHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, DispatchResponse{
			Status:  "error",
			Message: "invalid request body",
		})
		return
	}
	if req.CustomerPhone == "" {
		writeJSON(w, http.StatusBadRequest, DispatchResponse{
			Status:  "error",
			Message: "customer_phone is required",
		})
		return
	}

	result, err := h.coordinator.Dispatch(r.Context(), req.CustomerPhone)
	if err != nil {
		writeJSON(w, statusForDispatchError(err), DispatchResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, DispatchResponse{
		Status:   "dispatched",
		RoomName: result.RoomName,
		Phone:    result.Phone,
	})
}

func statusForDispatchError(err error) int {
	switch {
	case errors.Is(err, domain.ErrCallInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformedPhone):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBorrowerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
