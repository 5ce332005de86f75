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

package models

import (
	"encoding/json"
	"time"
)

// Inbound event names on the duplex connection.
const (
	EventUnitOnline      = "unit-online"
	EventJoinPoleTopic   = "join-pole-topic"
	EventCameraOnline    = "camera-online"
	EventCameraOffline   = "camera-offline"
	EventResourceRequest = "resource-request"
	EventResourceReply   = "resource-reply"
	EventGenericAlert    = "generic-alert"
)

// Outbound event names.
const (
	EventAssignedConnectionID  = "assigned-connection-id"
	EventUnitListUpdated       = "unit-list-updated"
	EventPoleCameraListUpdated = "pole-camera-list-updated"
	EventLiveNotification      = "live-notification"
)

// UnitOnlinePayload announces a field unit coming online for a pole.
type UnitOnlinePayload struct {
	PoleCode     string            `json:"pole_code"`
	RouterIP     string            `json:"router_ip"`
	FileServerID string            `json:"file_server_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// JoinPoleTopicPayload subscribes an observer connection to a pole topic.
// It has no presence effect.
type JoinPoleTopicPayload struct {
	PoleCode string `json:"pole_code"`
}

// CameraStatePayload reports a camera transition on behalf of a pole.
// RouterIP and FileServerID identify the reporting unit and ride along on
// camera-offline so the disconnect alert can reference them.
type CameraStatePayload struct {
	CameraIP     string            `json:"camera_ip"`
	PoleCode     string            `json:"pole_code"`
	RouterIP     string            `json:"router_ip,omitempty"`
	FileServerID string            `json:"file_server_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ResourceRequestPayload asks the unit(s) on a pole topic for their
// resource report. RequesterID is carried so the reply can be unicast back.
type ResourceRequestPayload struct {
	PoleCode    string `json:"pole_code"`
	RequesterID string `json:"requester_connection_id"`
}

// ResourceReplyPayload is a unit's answer to a resource request, addressed
// to the requesting connection.
type ResourceReplyPayload struct {
	RequesterID string          `json:"requester_connection_id"`
	PoleCode    string          `json:"pole_code"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// GenericAlertPayload is a pass-through alert raised by a field unit.
type GenericAlertPayload struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	PoleCode     string `json:"pole_code"`
	RouterIP     string `json:"router_ip,omitempty"`
	FileServerID string `json:"file_server_id,omitempty"`
}

// LiveNotification is the lightweight alert broadcast to every connected
// dashboard; the durable copy goes through the notification sink.
type LiveNotification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// CloudEvent wraps presence transitions published to JetStream.
type CloudEvent struct {
	SpecVersion     string     `json:"specversion"`
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	Type            string     `json:"type"`
	DataContentType string     `json:"datacontenttype"`
	Subject         string     `json:"subject"`
	Time            *time.Time `json:"time,omitempty"`
	Data            any        `json:"data,omitempty"`
}

// PresenceEventData is the CloudEvent payload for unit and camera
// liveness transitions.
type PresenceEventData struct {
	PoleCode      string    `json:"pole_code"`
	ConnectionID  string    `json:"connection_id"`
	CameraIP      string    `json:"camera_ip,omitempty"`
	PreviousState string    `json:"previous_state"`
	CurrentState  string    `json:"current_state"`
	Timestamp     time.Time `json:"timestamp"`
}
