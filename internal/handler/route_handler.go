package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
)

// Arbiter picks the outreach channel for the next contact attempt.
type Arbiter interface {
	Decide(ctx context.Context, response, defaultPreference string) domain.Channel
}

// RouteRequest carries the borrower's last free-text response.
type RouteRequest struct {
	CustomerResponse  string `json:"customer_response"`
	DefaultPreference string `json:"default_preference,omitempty"`
}

// RouteResponse names the chosen channel.
type RouteResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

// RouteHandler exposes the channel decision endpoint.
type RouteHandler struct {
	arbiter Arbiter
}

func NewRouteHandler(arbiter Arbiter) *RouteHandler {
	return &RouteHandler{arbiter: arbiter}
}

// HandleRoute handles POST /api/v1/route.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, RouteResponse{
			Status:  "error",
			Message: "invalid request body",
		})
		return
	}
	if req.CustomerResponse == "" {
		writeJSON(w, http.StatusBadRequest, RouteResponse{
			Status:  "error",
			Message: "customer_response is required",
		})
		return
	}

	channel := h.arbiter.Decide(r.Context(), req.CustomerResponse, req.DefaultPreference)
	writeJSON(w, http.StatusOK, RouteResponse{
		Status:  "ok",
		Channel: string(channel),
	})
}
