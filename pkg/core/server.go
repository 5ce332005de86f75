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

// Package core is the event dispatcher: it consumes inbound presence and
// control events from the connection layer, mutates the presence store,
// and fans the resulting view changes out to topic subscribers and the
// alerting pipeline.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/polewatch/polewatch/pkg/core/alerts"
	"github.com/polewatch/polewatch/pkg/db"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/presence"
)

// Broadcaster is what the dispatcher needs from the connection layer.
// The hub satisfies it; tests substitute a recorder.
type Broadcaster interface {
	Join(connectionID, topic string)
	Broadcast(topic, event string, payload any)
	BroadcastAll(event string, payload any)
	SendTo(connectionID, event string, payload any)
}

// PresencePublisher publishes liveness transitions to the event stream.
type PresencePublisher interface {
	PublishUnitPresence(ctx context.Context, data *models.PresenceEventData) error
	PublishCameraPresence(ctx context.Context, data *models.PresenceEventData) error
}

// Server dispatches connection events. It holds no per-connection state
// of its own; all presence truth lives in the store.
type Server struct {
	store       *presence.Store
	broadcaster Broadcaster
	alerts      alerts.AlertService
	db          db.Service
	logger      logger.Logger

	publisher PresencePublisher

	catalogMu      sync.RWMutex
	catalog        []models.Pole
	catalogRefresh time.Duration
}

// ServerOption configures optional Server collaborators.
type ServerOption func(*Server)

// WithPresencePublisher enables presence event publishing.
func WithPresencePublisher(publisher PresencePublisher) ServerOption {
	return func(s *Server) {
		s.publisher = publisher
	}
}

// WithCatalogRefresh overrides the catalog refresh interval.
func WithCatalogRefresh(interval time.Duration) ServerOption {
	return func(s *Server) {
		if interval > 0 {
			s.catalogRefresh = interval
		}
	}
}

// NewServer wires the dispatcher to its collaborators.
func NewServer(store *presence.Store, broadcaster Broadcaster, alertService alerts.AlertService,
	dbService db.Service, log logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		store:          store,
		broadcaster:    broadcaster,
		alerts:         alertService,
		db:             dbService,
		logger:         log,
		catalogRefresh: time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HandleConnect implements hub.EventHandler. Registration itself carries
// no presence meaning until the peer reports unit-online.
func (s *Server) HandleConnect(_ context.Context, connectionID string) {
	s.logger.Debug().
		Str("connection_id", connectionID).
		Msg("Connection established")
}

// HandleEvent implements hub.EventHandler. Malformed payloads are logged
// and dropped; the connection stays open and no state is mutated.
func (s *Server) HandleEvent(ctx context.Context, connectionID, event string, data json.RawMessage) {
	var err error

	switch event {
	case models.EventUnitOnline:
		err = s.handleUnitOnline(ctx, connectionID, data)
	case models.EventJoinPoleTopic:
		err = s.handleJoinPoleTopic(connectionID, data)
	case models.EventCameraOnline:
		err = s.handleCameraOnline(ctx, connectionID, data)
	case models.EventCameraOffline:
		err = s.handleCameraOffline(ctx, connectionID, data)
	case models.EventResourceRequest:
		err = s.handleResourceRequest(connectionID, data)
	case models.EventResourceReply:
		err = s.handleResourceReply(data)
	case models.EventGenericAlert:
		err = s.handleGenericAlert(ctx, data)
	default:
		s.logger.Warn().
			Str("connection_id", connectionID).
			Str("event", event).
			Msg("Ignoring unrecognized event")

		return
	}

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("connection_id", connectionID).
			Str("event", event).
			Msg("Ignoring malformed event payload")
	}
}

// HandleDisconnect implements hub.EventHandler. A session-end for a
// connection with no unit presence is an observer leaving: registry
// cleanup only, no purge, no alert, no broadcast.
func (s *Server) HandleDisconnect(ctx context.Context, connectionID string) {
	unit, ok := s.store.RemoveUnit(connectionID)
	if !ok {
		s.logger.Debug().
			Str("connection_id", connectionID).
			Msg("Observer disconnected")

		return
	}

	// The pole code is captured here, before the purge, so the alert
	// below never depends on state the purge just erased.
	purged := s.store.PurgeByPole(unit.PoleCode)

	s.logger.Info().
		Str("connection_id", connectionID).
		Str("pole_code", unit.PoleCode).
		Int("cameras_purged", purged).
		Msg("Unit disconnected")

	s.broadcaster.BroadcastAll(models.EventUnitListUpdated, s.store.OnlineUnits())

	s.alerts.Raise(ctx, &alerts.Alert{
		Kind:         alerts.KindUnitDisconnected,
		Title:        "Device disconnected",
		Message:      fmt.Sprintf("Pole %s went offline", unit.PoleCode),
		PoleCode:     unit.PoleCode,
		RouterIP:     unit.RouterIP,
		FileServerID: unit.FileServerID,
	})

	s.publishUnitPresence(ctx, unit, string(models.CameraStateOnline), string(models.CameraStateOffline))
}

func (s *Server) handleUnitOnline(ctx context.Context, connectionID string, data json.RawMessage) error {
	var payload models.UnitOnlinePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PoleCode == "" {
		return errMissingPoleCode
	}

	unit := s.store.ReportUnitOnline(connectionID, payload)
	s.broadcaster.Join(connectionID, unit.PoleCode)
	s.broadcaster.BroadcastAll(models.EventUnitListUpdated, s.store.OnlineUnits())

	s.logger.Info().
		Str("connection_id", connectionID).
		Str("pole_code", unit.PoleCode).
		Str("router_ip", unit.RouterIP).
		Msg("Unit online")

	s.publishUnitPresence(ctx, unit, "unknown", string(models.CameraStateOnline))

	return nil
}

func (s *Server) handleJoinPoleTopic(connectionID string, data json.RawMessage) error {
	var payload models.JoinPoleTopicPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PoleCode == "" {
		return errMissingPoleCode
	}

	s.broadcaster.Join(connectionID, payload.PoleCode)

	return nil
}

func (s *Server) handleCameraOnline(ctx context.Context, connectionID string, data json.RawMessage) error {
	var payload models.CameraStatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PoleCode == "" || payload.CameraIP == "" {
		return errMissingCameraIdentity
	}

	record := s.store.ReportCameraOnline(connectionID, payload.CameraIP, payload.PoleCode, payload.Metadata)
	s.broadcaster.Join(connectionID, payload.PoleCode)
	s.broadcastCameraList(payload.PoleCode)

	// Recovery raises no alert; only the offline direction does.
	s.publishCameraPresence(ctx, record, "unknown", string(models.CameraStateOnline))

	return nil
}

func (s *Server) handleCameraOffline(ctx context.Context, connectionID string, data json.RawMessage) error {
	var payload models.CameraStatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PoleCode == "" || payload.CameraIP == "" {
		return errMissingCameraIdentity
	}

	record, wasOnline := s.store.ReportCameraOffline(connectionID, payload.CameraIP, payload.PoleCode, payload.Metadata)

	if wasOnline {
		s.logger.Info().
			Str("pole_code", payload.PoleCode).
			Str("camera_ip", payload.CameraIP).
			Msg("Camera went offline")

		s.alerts.Raise(ctx, &alerts.Alert{
			Kind:         alerts.KindCameraDisconnected,
			Title:        "Camera disconnected",
			Message:      fmt.Sprintf("Camera %s on pole %s went offline", payload.CameraIP, payload.PoleCode),
			PoleCode:     payload.PoleCode,
			RouterIP:     payload.RouterIP,
			FileServerID: payload.FileServerID,
			CameraIP:     payload.CameraIP,
		})
	}

	s.broadcastCameraList(payload.PoleCode)

	previous := "unknown"
	if wasOnline {
		previous = string(models.CameraStateOnline)
	}

	s.publishCameraPresence(ctx, record, previous, string(models.CameraStateOffline))

	return nil
}

func (s *Server) handleResourceRequest(connectionID string, data json.RawMessage) error {
	var payload models.ResourceRequestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PoleCode == "" {
		return errMissingPoleCode
	}

	// Stamp the requester so the unit's reply can be unicast back even
	// when the requester did not fill it in.
	if payload.RequesterID == "" {
		payload.RequesterID = connectionID
	}

	s.broadcaster.Broadcast(payload.PoleCode, models.EventResourceRequest, payload)

	return nil
}

func (s *Server) handleResourceReply(data json.RawMessage) error {
	var payload models.ResourceReplyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.RequesterID == "" {
		return errMissingRequester
	}

	s.broadcaster.SendTo(payload.RequesterID, models.EventResourceReply, payload)

	return nil
}

func (s *Server) handleGenericAlert(ctx context.Context, data json.RawMessage) error {
	var payload models.GenericAlertPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	s.alerts.Raise(ctx, &alerts.Alert{
		Kind:         alerts.KindGeneric,
		Title:        payload.Title,
		Message:      payload.Message,
		PoleCode:     payload.PoleCode,
		RouterIP:     payload.RouterIP,
		FileServerID: payload.FileServerID,
	})

	return nil
}

// broadcastCameraList pushes the pole's full camera view to the pole
// topic; each record carries its own state.
func (s *Server) broadcastCameraList(poleCode string) {
	s.broadcaster.Broadcast(poleCode, models.EventPoleCameraListUpdated, map[string]any{
		"pole_code": poleCode,
		"cameras":   s.store.ListByPole(poleCode, presence.ViewAll),
	})
}

func (s *Server) publishUnitPresence(ctx context.Context, unit *models.UnitPresence, previous, current string) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.PublishUnitPresence(ctx, &models.PresenceEventData{
		PoleCode:      unit.PoleCode,
		ConnectionID:  unit.ConnectionID,
		PreviousState: previous,
		CurrentState:  current,
		Timestamp:     time.Now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("pole_code", unit.PoleCode).Msg("Failed to publish unit presence event")
	}
}

func (s *Server) publishCameraPresence(ctx context.Context, record *models.CameraPresence, previous, current string) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.PublishCameraPresence(ctx, &models.PresenceEventData{
		PoleCode:      record.PoleCode,
		ConnectionID:  record.ConnectionID,
		CameraIP:      record.CameraIP,
		PreviousState: previous,
		CurrentState:  current,
		Timestamp:     time.Now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("pole_code", record.PoleCode).Msg("Failed to publish camera presence event")
	}
}
