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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/presence"
)

var errCatalog = errors.New("catalog unavailable")

type fakeCore struct {
	poles      []models.Pole
	cameras    []models.Camera
	camerasErr error
	units      []*models.UnitPresence
	records    []*models.CameraPresence

	gotPoleCode string
	gotView     presence.View
}

func (f *fakeCore) PolesWithStatus(_ context.Context) []models.Pole {
	return f.poles
}

func (f *fakeCore) CamerasWithStatus(_ context.Context, poleCode string) ([]models.Camera, error) {
	f.gotPoleCode = poleCode
	return f.cameras, f.camerasErr
}

func (f *fakeCore) OnlineUnits() []*models.UnitPresence {
	return f.units
}

func (f *fakeCore) CamerasByView(poleCode string, view presence.View) []*models.CameraPresence {
	f.gotPoleCode = poleCode
	f.gotView = view

	return f.records
}

func newTestServer(core *fakeCore, options ...func(*APIServer)) *APIServer {
	opts := append([]func(*APIServer){
		WithCoreService(core),
		WithLogger(logger.NewTestLogger()),
	}, options...)

	return NewAPIServer(models.CORSConfig{AllowedOrigins: []string{"*"}}, opts...)
}

func TestGetPolesStatus(t *testing.T) {
	core := &fakeCore{poles: []models.Pole{
		{ID: 1, Code: "P2", Status: 1},
		{ID: 2, Code: "P9", Status: 0},
	}}
	server := newTestServer(core)

	req := httptest.NewRequest(http.MethodGet, "/api/poles/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var poles []models.Pole
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &poles))
	require.Len(t, poles, 2)
	assert.Equal(t, "P2", poles[0].Code)
	assert.Equal(t, 1, poles[0].Status)
}

func TestGetPoleCamerasStatus(t *testing.T) {
	core := &fakeCore{cameras: []models.Camera{
		{ID: 1, PoleCode: "P2", CameraIP: "10.11.5.144", Status: 1},
	}}
	server := newTestServer(core)

	req := httptest.NewRequest(http.MethodGet, "/api/poles/P2/cameras/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P2", core.gotPoleCode)
}

func TestGetPoleCamerasStatusError(t *testing.T) {
	server := newTestServer(&fakeCore{camerasErr: errCatalog})

	req := httptest.NewRequest(http.MethodGet, "/api/poles/P2/cameras/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPoleCamerasPresenceViews(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantView   presence.View
	}{
		{name: "default is all", query: "", wantStatus: http.StatusOK, wantView: presence.ViewAll},
		{name: "online", query: "?view=online", wantStatus: http.StatusOK, wantView: presence.ViewOnline},
		{name: "offline", query: "?view=offline", wantStatus: http.StatusOK, wantView: presence.ViewOffline},
		{name: "explicit all", query: "?view=all", wantStatus: http.StatusOK, wantView: presence.ViewAll},
		{name: "bogus view rejected", query: "?view=bogus", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := &fakeCore{}
			server := newTestServer(core)

			req := httptest.NewRequest(http.MethodGet, "/api/poles/P2/cameras/presence"+tt.query, nil)
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantView, core.gotView)
			}
		})
	}
}

func TestGetSystemStatus(t *testing.T) {
	core := &fakeCore{units: []*models.UnitPresence{{PoleCode: "P2"}}}
	server := newTestServer(core)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.OnlineUnits)
}

func TestAPIKeyProtectsRESTButNotWebSocket(t *testing.T) {
	server := newTestServer(&fakeCore{}, WithAPIKey("secret"))

	req := httptest.NewRequest(http.MethodGet, "/api/units", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/units", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The websocket route never sees the key check; without a hub wired
	// it reports unavailable, not unauthorized.
	req = httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSHeadersApplied(t *testing.T) {
	server := newTestServer(&fakeCore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/units", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
