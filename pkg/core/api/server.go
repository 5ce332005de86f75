/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api provides the HTTP surface of the presence core: catalog
// status merges, live presence views, and the websocket entry point.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	pwHttp "github.com/polewatch/polewatch/pkg/http"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/presence"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	shutdownTimeout = 10 * time.Second
)

// CoreService is the status and presence surface the API exposes.
type CoreService interface {
	PolesWithStatus(ctx context.Context) []models.Pole
	CamerasWithStatus(ctx context.Context, poleCode string) ([]models.Camera, error)
	OnlineUnits() []*models.UnitPresence
	CamerasByView(poleCode string, view presence.View) []*models.CameraPresence
}

// APIServer serves the REST endpoints and upgrades websocket sessions
// into the hub.
type APIServer struct {
	router     *mux.Router
	corsConfig models.CORSConfig
	apiKey     string

	core   CoreService
	hub    ConnectionServer
	logger logger.Logger

	httpServer *http.Server
}

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(config models.CORSConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: config,
		logger:     logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithCoreService attaches the status/presence surface.
func WithCoreService(core CoreService) func(*APIServer) {
	return func(server *APIServer) {
		server.core = core
	}
}

// WithConnectionServer attaches the websocket hub.
func WithConnectionServer(hub ConnectionServer) func(*APIServer) {
	return func(server *APIServer) {
		server.hub = hub
	}
}

// WithAPIKey protects the REST endpoints with a static key. The
// websocket endpoint is excluded; field units authenticate at the
// network layer.
func WithAPIKey(apiKey string) func(*APIServer) {
	return func(server *APIServer) {
		server.apiKey = apiKey
	}
}

// WithLogger sets the API server logger.
func WithLogger(log logger.Logger) func(*APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return pwHttp.CommonMiddleware(next, s.corsConfig)
	})

	// The websocket route sits outside the API-key check.
	s.router.HandleFunc("/api/ws", s.serveWebSocket).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(pwHttp.APIKeyMiddleware(s.apiKey))

	// OPTIONS is listed so preflight requests reach the CORS middleware;
	// it answers them before the API-key check runs.
	protected.HandleFunc("/status", s.getSystemStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/units", s.getUnits).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/poles/status", s.getPolesStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/poles/{pole_code}/cameras/status", s.getPoleCamerasStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/poles/{pole_code}/cameras/presence", s.getPoleCamerasPresence).Methods(http.MethodGet, http.MethodOptions)
}

// SystemStatus is the health payload for GET /api/status.
type SystemStatus struct {
	Connections int       `json:"connections"`
	OnlineUnits int       `json:"online_units"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *APIServer) getSystemStatus(w http.ResponseWriter, _ *http.Request) {
	status := SystemStatus{
		OnlineUnits: len(s.core.OnlineUnits()),
		Timestamp:   time.Now(),
	}

	if s.hub != nil {
		status.Connections = s.hub.ConnectionCount()
	}

	s.encodeJSONResponse(w, status)
}

func (s *APIServer) getUnits(w http.ResponseWriter, _ *http.Request) {
	s.encodeJSONResponse(w, s.core.OnlineUnits())
}

func (s *APIServer) getPolesStatus(w http.ResponseWriter, r *http.Request) {
	s.encodeJSONResponse(w, s.core.PolesWithStatus(r.Context()))
}

func (s *APIServer) getPoleCamerasStatus(w http.ResponseWriter, r *http.Request) {
	poleCode := mux.Vars(r)["pole_code"]

	cameras, err := s.core.CamerasWithStatus(r.Context(), poleCode)
	if err != nil {
		s.logger.Error().Err(err).Str("pole_code", poleCode).Msg("Failed to merge camera status")
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, cameras)
}

func (s *APIServer) getPoleCamerasPresence(w http.ResponseWriter, r *http.Request) {
	poleCode := mux.Vars(r)["pole_code"]

	view := presence.View(r.URL.Query().Get("view"))
	switch view {
	case presence.ViewOnline, presence.ViewOffline:
	case "", presence.ViewAll:
		view = presence.ViewAll
	default:
		http.Error(w, "view must be one of all, online, offline", http.StatusBadRequest)
		return
	}

	s.encodeJSONResponse(w, s.core.CamerasByView(poleCode, view))
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// Start serves the API until the context is canceled, then drains with a
// bounded shutdown.
func (s *APIServer) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the mux for tests.
func (s *APIServer) Router() *mux.Router {
	return s.router
}
