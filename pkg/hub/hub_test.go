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

package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// joinHandler joins a connection to the topic named in a "join" frame and
// signals each handled frame so tests can synchronize.
type joinHandler struct {
	hub     *Hub
	handled chan string
}

func (h *joinHandler) HandleConnect(_ context.Context, _ string) {}

func (h *joinHandler) HandleEvent(_ context.Context, connectionID, event string, data json.RawMessage) {
	if event == "join" {
		var payload struct {
			Topic string `json:"topic"`
		}

		if err := json.Unmarshal(data, &payload); err == nil {
			h.hub.Join(connectionID, payload.Topic)
		}
	}

	h.handled <- event
}

func (h *joinHandler) HandleDisconnect(_ context.Context, _ string) {}

type testPeer struct {
	conn *websocket.Conn
	id   string
}

func newTestHub(t *testing.T) (*Hub, *joinHandler, *httptest.Server) {
	t.Helper()

	handler := &joinHandler{handled: make(chan string, 16)}
	h := NewHub(logger.NewTestLogger())
	handler.hub = h
	h.RegisterHandler(handler)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		h.ServeConn(r.Context(), conn)
	}))
	t.Cleanup(server.Close)

	return h, handler, server
}

func dialPeer(t *testing.T, server *httptest.Server) *testPeer {
	t.Helper()

	url := strings.Replace(server.URL, "http", "ws", 1)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	// First frame is always the assigned connection id.
	env := readEnvelope(t, conn)
	require.Equal(t, "assigned-connection-id", env.Event)

	var assigned struct {
		ConnectionID string `json:"connection_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &assigned))
	require.NotEmpty(t, assigned.ConnectionID)

	return &testPeer{conn: conn, id: assigned.ConnectionID}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))

	return env
}

func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	var env Envelope

	err := conn.ReadJSON(&env)
	require.Error(t, err, "expected no frame, got %q", env.Event)
}

func sendJoin(t *testing.T, handler *joinHandler, peer *testPeer, topic string) {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"topic": topic})
	require.NoError(t, peer.conn.WriteJSON(Envelope{Event: "join", Data: payload}))

	select {
	case <-handler.handled:
	case <-time.After(2 * time.Second):
		t.Fatal("join frame was not handled")
	}
}

func TestBroadcastReachesOnlyTopicMembers(t *testing.T) {
	h, handler, server := newTestHub(t)

	member := dialPeer(t, server)
	outsider := dialPeer(t, server)

	sendJoin(t, handler, member, "P2")

	h.Broadcast("P2", "pole-camera-list-updated", map[string]string{"pole_code": "P2"})

	env := readEnvelope(t, member.conn)
	assert.Equal(t, "pole-camera-list-updated", env.Event)

	expectNoFrame(t, outsider.conn)
}

func TestJoinIsIdempotent(t *testing.T) {
	h, handler, server := newTestHub(t)

	member := dialPeer(t, server)
	sendJoin(t, handler, member, "P2")
	sendJoin(t, handler, member, "P2")

	h.Broadcast("P2", "ping", nil)

	env := readEnvelope(t, member.conn)
	assert.Equal(t, "ping", env.Event)

	// A duplicate join must not cause duplicate delivery.
	expectNoFrame(t, member.conn)
}

func TestSendToTargetsSingleConnection(t *testing.T) {
	h, _, server := newTestHub(t)

	target := dialPeer(t, server)
	other := dialPeer(t, server)

	h.SendTo(target.id, "resource-reply", map[string]string{"pole_code": "P2"})

	env := readEnvelope(t, target.conn)
	assert.Equal(t, "resource-reply", env.Event)

	expectNoFrame(t, other.conn)

	// Unknown connection ids are dropped silently.
	h.SendTo("no-such-connection", "resource-reply", nil)
}

func TestBroadcastAll(t *testing.T) {
	h, _, server := newTestHub(t)

	first := dialPeer(t, server)
	second := dialPeer(t, server)

	h.BroadcastAll("unit-list-updated", []string{})

	assert.Equal(t, "unit-list-updated", readEnvelope(t, first.conn).Event)
	assert.Equal(t, "unit-list-updated", readEnvelope(t, second.conn).Event)
}

func TestUnregisterOnDisconnect(t *testing.T) {
	h, handler, server := newTestHub(t)

	peer := dialPeer(t, server)
	sendJoin(t, handler, peer, "P2")
	require.Equal(t, 1, h.ConnectionCount())

	require.NoError(t, peer.conn.Close())

	assert.Eventually(t, func() bool {
		return h.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	h, handler, server := newTestHub(t)

	peer := dialPeer(t, server)

	require.NoError(t, peer.conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// Connection survives the malformed frame and later events still work.
	sendJoin(t, handler, peer, "P2")
	h.Broadcast("P2", "ping", nil)
	assert.Equal(t, "ping", readEnvelope(t, peer.conn).Event)
}
