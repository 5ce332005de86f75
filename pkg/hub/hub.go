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

// Package hub tracks live websocket connections and the topics they have
// joined, and delivers topic-scoped broadcasts and unicasts. Delivery is
// best effort: there is no acknowledgment, no retry, and frames to dead
// or slow connections are dropped.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
)

// Envelope is the wire framing for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventHandler consumes inbound frames and connection lifecycle changes.
// Frames from one connection arrive in the order received; no ordering
// holds across connections.
type EventHandler interface {
	HandleConnect(ctx context.Context, connectionID string)
	HandleEvent(ctx context.Context, connectionID, event string, data json.RawMessage)
	HandleDisconnect(ctx context.Context, connectionID string)
}

// Hub is the connection registry and topic router.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[string]*Client
	// joined tracks topic membership per connection for cleanup.
	joined map[string]map[string]struct{}

	handler EventHandler
	logger  logger.Logger
}

// NewHub creates an empty hub. RegisterHandler must be called before the
// first connection is served; until then inbound frames are dropped.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]*Client),
		joined:  make(map[string]map[string]struct{}),
		handler: noopHandler{},
		logger:  log,
	}
}

// RegisterHandler sets the consumer of inbound frames and lifecycle
// notifications. The hub and its handler reference each other, so the
// handler is attached after construction.
func (h *Hub) RegisterHandler(handler EventHandler) {
	h.handler = handler
}

type noopHandler struct{}

func (noopHandler) HandleConnect(context.Context, string) {}

func (noopHandler) HandleEvent(context.Context, string, string, json.RawMessage) {}

func (noopHandler) HandleDisconnect(context.Context, string) {}

// register assigns a connection id and adds the client to the registry.
func (h *Hub) register(client *Client) string {
	id := uuid.New().String()

	h.mu.Lock()
	client.id = id
	h.clients[id] = client
	h.mu.Unlock()

	return id
}

// unregister removes the client and every topic membership it holds.
func (h *Hub) unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, connectionID)

	for topic := range h.joined[connectionID] {
		members := h.topics[topic]
		delete(members, connectionID)

		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}

	delete(h.joined, connectionID)
}

// Join subscribes a connection to a topic. Joining is idempotent and a
// connection may belong to any number of topics. Unknown connections are
// ignored.
func (h *Hub) Join(connectionID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return
	}

	members, ok := h.topics[topic]
	if !ok {
		members = make(map[string]*Client)
		h.topics[topic] = members
	}

	members[connectionID] = client

	joined, ok := h.joined[connectionID]
	if !ok {
		joined = make(map[string]struct{})
		h.joined[connectionID] = joined
	}

	joined[topic] = struct{}{}
}

// Broadcast delivers an event to every connection joined to the topic.
func (h *Hub) Broadcast(topic, event string, payload any) {
	env, err := seal(event, payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Dropping unencodable broadcast")
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.topics[topic]))
	for _, client := range h.topics[topic] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.enqueue(env)
	}
}

// BroadcastAll delivers an event to every registered connection (the
// global topic).
func (h *Hub) BroadcastAll(event string, payload any) {
	env, err := seal(event, payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Dropping unencodable broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(env)
	}
}

// SendTo delivers an event to a single connection. If the connection is
// gone the event is silently dropped.
func (h *Hub) SendTo(connectionID, event string, payload any) {
	env, err := seal(event, payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Dropping unencodable unicast")
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	client.enqueue(env)
}

// ConnectionCount reports how many connections are registered.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func seal(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}

		env.Data = data
	}

	return env, nil
}

// assignedConnectionID is sent to the peer right after registration so it
// can correlate later events.
type assignedConnectionID struct {
	ConnectionID string `json:"connection_id"`
}

func (h *Hub) announce(client *Client) {
	env, err := seal(models.EventAssignedConnectionID, assignedConnectionID{ConnectionID: client.id})
	if err != nil {
		return
	}

	client.enqueue(env)
}
