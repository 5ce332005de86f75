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

package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/polewatch/polewatch/pkg/core/alerts"
	"github.com/polewatch/polewatch/pkg/db"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/presence"
)

type sentFrame struct {
	topic        string
	connectionID string
	event        string
	payload      any
}

// recordingBroadcaster captures every delivery the dispatcher requests.
type recordingBroadcaster struct {
	mu         sync.Mutex
	joins      []sentFrame
	broadcasts []sentFrame
	globals    []sentFrame
	unicasts   []sentFrame
}

func (r *recordingBroadcaster) Join(connectionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.joins = append(r.joins, sentFrame{connectionID: connectionID, topic: topic})
}

func (r *recordingBroadcaster) Broadcast(topic, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcasts = append(r.broadcasts, sentFrame{topic: topic, event: event, payload: payload})
}

func (r *recordingBroadcaster) BroadcastAll(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.globals = append(r.globals, sentFrame{event: event, payload: payload})
}

func (r *recordingBroadcaster) SendTo(connectionID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unicasts = append(r.unicasts, sentFrame{connectionID: connectionID, event: event, payload: payload})
}

// recordingAlerts captures raised alerts; the pipeline itself is tested
// in its own package.
type recordingAlerts struct {
	mu     sync.Mutex
	raised []*alerts.Alert
}

func (r *recordingAlerts) Raise(_ context.Context, alert *alerts.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.raised = append(r.raised, alert)
}

func (r *recordingAlerts) Close() {}

type fixture struct {
	server      *Server
	store       *presence.Store
	broadcaster *recordingBroadcaster
	alerts      *recordingAlerts
	db          *db.MockService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		store:       presence.NewStore(),
		broadcaster: &recordingBroadcaster{},
		alerts:      &recordingAlerts{},
		db:          db.NewMockService(ctrl),
	}
	f.server = NewServer(f.store, f.broadcaster, f.alerts, f.db, logger.NewTestLogger())

	return f
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func TestUnitOnlineJoinsTopicAndBroadcastsUnitList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.server.HandleEvent(ctx, "conn-1", models.EventUnitOnline, mustJSON(t, models.UnitOnlinePayload{
		PoleCode:     "P2",
		RouterIP:     "192.168.1.1",
		FileServerID: "fs-7",
	}))

	require.Len(t, f.broadcaster.joins, 1)
	assert.Equal(t, "P2", f.broadcaster.joins[0].topic)

	require.Len(t, f.broadcaster.globals, 1)
	assert.Equal(t, models.EventUnitListUpdated, f.broadcaster.globals[0].event)

	units, ok := f.broadcaster.globals[0].payload.([]*models.UnitPresence)
	require.True(t, ok)
	require.Len(t, units, 1)
	assert.Equal(t, "P2", units[0].PoleCode)
}

func TestPoleCameraLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.server.HandleEvent(ctx, "conn-1", models.EventUnitOnline, mustJSON(t, models.UnitOnlinePayload{
		PoleCode: "P2", RouterIP: "192.168.1.1", FileServerID: "fs-7",
	}))

	f.server.HandleEvent(ctx, "conn-1", models.EventCameraOnline, mustJSON(t, models.CameraStatePayload{
		CameraIP: "10.11.5.144", PoleCode: "P2",
	}))

	online := f.store.ListByPole("P2", presence.ViewOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "10.11.5.144", online[0].CameraIP)
	assert.Empty(t, f.alerts.raised)

	require.Len(t, f.broadcaster.broadcasts, 1)
	assert.Equal(t, "P2", f.broadcaster.broadcasts[0].topic)
	assert.Equal(t, models.EventPoleCameraListUpdated, f.broadcaster.broadcasts[0].event)

	f.server.HandleEvent(ctx, "conn-1", models.EventCameraOffline, mustJSON(t, models.CameraStatePayload{
		CameraIP: "10.11.5.144", PoleCode: "P2", RouterIP: "192.168.1.1", FileServerID: "fs-7",
	}))

	assert.Empty(t, f.store.ListByPole("P2", presence.ViewOnline))
	require.Len(t, f.store.ListByPole("P2", presence.ViewOffline), 1)

	require.Len(t, f.alerts.raised, 1)
	alert := f.alerts.raised[0]
	assert.Equal(t, alerts.KindCameraDisconnected, alert.Kind)
	assert.Equal(t, "P2", alert.PoleCode)
	assert.Equal(t, "10.11.5.144", alert.CameraIP)

	// Unit disconnect purges the pole and raises the second alert with
	// the pole code captured before the purge.
	f.server.HandleDisconnect(ctx, "conn-1")

	assert.Empty(t, f.store.ListByPole("P2", presence.ViewAll))
	assert.Empty(t, f.store.OnlineUnits())

	require.Len(t, f.alerts.raised, 2)
	assert.Equal(t, alerts.KindUnitDisconnected, f.alerts.raised[1].Kind)
	assert.Equal(t, "P2", f.alerts.raised[1].PoleCode)
}

func TestCameraOfflineFirstSightingRaisesNoAlert(t *testing.T) {
	f := newFixture(t)

	f.server.HandleEvent(context.Background(), "conn-1", models.EventCameraOffline, mustJSON(t, models.CameraStatePayload{
		CameraIP: "10.0.0.9", PoleCode: "P4",
	}))

	assert.Empty(t, f.alerts.raised)
	require.Len(t, f.store.ListByPole("P4", presence.ViewOffline), 1)
}

func TestObserverDisconnectIsNoOp(t *testing.T) {
	f := newFixture(t)

	f.server.HandleEvent(context.Background(), "observer-1", models.EventJoinPoleTopic,
		mustJSON(t, models.JoinPoleTopicPayload{PoleCode: "P2"}))

	f.server.HandleDisconnect(context.Background(), "observer-1")

	assert.Empty(t, f.alerts.raised)
	assert.Empty(t, f.broadcaster.globals)
}

func TestResourceRequestRelayAndReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.server.HandleEvent(ctx, "dashboard-1", models.EventResourceRequest, mustJSON(t, models.ResourceRequestPayload{
		PoleCode: "P2",
	}))

	require.Len(t, f.broadcaster.broadcasts, 1)
	relay := f.broadcaster.broadcasts[0]
	assert.Equal(t, "P2", relay.topic)
	assert.Equal(t, models.EventResourceRequest, relay.event)

	request, ok := relay.payload.(models.ResourceRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "dashboard-1", request.RequesterID)

	f.server.HandleEvent(ctx, "unit-conn", models.EventResourceReply, mustJSON(t, models.ResourceReplyPayload{
		RequesterID: request.RequesterID,
		PoleCode:    "P2",
		Payload:     json.RawMessage(`{"disk":"ok"}`),
	}))

	require.Len(t, f.broadcaster.unicasts, 1)
	assert.Equal(t, "dashboard-1", f.broadcaster.unicasts[0].connectionID)
	assert.Equal(t, models.EventResourceReply, f.broadcaster.unicasts[0].event)
}

func TestMalformedPayloadMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.server.HandleEvent(ctx, "conn-1", models.EventUnitOnline, json.RawMessage(`{"pole_code":`))
	f.server.HandleEvent(ctx, "conn-1", models.EventUnitOnline, mustJSON(t, models.UnitOnlinePayload{}))
	f.server.HandleEvent(ctx, "conn-1", models.EventCameraOnline, mustJSON(t, models.CameraStatePayload{PoleCode: "P2"}))

	assert.Empty(t, f.store.OnlineUnits())
	assert.Empty(t, f.broadcaster.joins)
	assert.Empty(t, f.broadcaster.globals)
	assert.Empty(t, f.broadcaster.broadcasts)
}

func TestUnrecognizedEventIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.server.HandleEvent(context.Background(), "conn-1", "no-such-event", json.RawMessage(`{}`))

	assert.Empty(t, f.broadcaster.joins)
	assert.Empty(t, f.broadcaster.globals)
}

func TestPolesWithStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.db.EXPECT().GetPoles(gomock.Any()).Return([]models.Pole{
		{ID: 1, Code: "P2", RouterIP: "192.168.1.1"},
		{ID: 2, Code: "P9", RouterIP: "192.168.1.9"},
	}, nil)

	require.NoError(t, f.server.refreshCatalog(ctx))

	f.server.HandleEvent(ctx, "conn-1", models.EventUnitOnline, mustJSON(t, models.UnitOnlinePayload{
		PoleCode: "P2",
	}))

	poles := f.server.PolesWithStatus(ctx)
	require.Len(t, poles, 2)

	byCode := map[string]int{}
	for _, pole := range poles {
		byCode[pole.Code] = pole.Status
	}

	assert.Equal(t, statusOnline, byCode["P2"])
	assert.Equal(t, statusOffline, byCode["P9"])
}

func TestCamerasWithStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.db.EXPECT().GetCamerasByPoleCode(gomock.Any(), "P2").Return([]models.Camera{
		{ID: 1, PoleCode: "P2", CameraIP: "10.11.5.144"},
		{ID: 2, PoleCode: "P2", CameraIP: "10.11.5.145"},
	}, nil)

	f.server.HandleEvent(ctx, "conn-1", models.EventCameraOnline, mustJSON(t, models.CameraStatePayload{
		CameraIP: "10.11.5.144", PoleCode: "P2",
	}))

	cameras, err := f.server.CamerasWithStatus(ctx, "P2")
	require.NoError(t, err)
	require.Len(t, cameras, 2)

	byIP := map[string]int{}
	for _, camera := range cameras {
		byIP[camera.CameraIP] = camera.Status
	}

	assert.Equal(t, statusOnline, byIP["10.11.5.144"])
	assert.Equal(t, statusOffline, byIP["10.11.5.145"])
}
