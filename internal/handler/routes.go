package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/gorilla/mux"
)

// Manager wires the HTTP surface: the dispatch trigger plus health probes.
type Manager struct {
	dispatchHandler *DispatchHandler
	routeHandler    *RouteHandler
	repoManager     repository.Manager
	authSecret      string
}

func NewManager(coordinator Dispatcher, arbiter Arbiter, repoManager repository.Manager, authSecret string) *Manager {
	return &Manager{
		dispatchHandler: NewDispatchHandler(coordinator),
		routeHandler:    NewRouteHandler(arbiter),
		repoManager:     repoManager,
		authSecret:      authSecret,
	}
}

// SetupRoutes registers all endpoints on the router.
func (m *Manager) SetupRoutes(router *mux.Router) {
	router.Use(LoggingMiddleware)
	router.Use(ValidationMiddleware)

	router.HandleFunc("/health", m.handleHealth).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	if m.authSecret != "" {
		api.Use(AuthMiddleware(m.authSecret))
	}
	api.HandleFunc("/dispatch", m.dispatchHandler.HandleDispatch).Methods("POST")
	api.HandleFunc("/route", m.routeHandler.HandleRoute).Methods("POST")
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := m.repoManager.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
