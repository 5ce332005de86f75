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

// Package models contains the shared data types for the polewatch core.
package models

import "time"

// CameraState is the liveness state of a reported camera.
type CameraState string

const (
	CameraStateOnline  CameraState = "online"
	CameraStateOffline CameraState = "offline"
)

// UnitPresence is the live record for a field unit's websocket session.
// Presence is in-memory only; it does not survive a core restart.
type UnitPresence struct {
	ConnectionID string            `json:"connection_id"`
	PoleCode     string            `json:"pole_code"`
	RouterIP     string            `json:"router_ip"`
	FileServerID string            `json:"file_server_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ReportedAt   time.Time         `json:"reported_at"`
}

// CameraPresence is the live record for a camera as reported by a field
// unit. Cameras never connect themselves; identity is the triple
// (ConnectionID, CameraIP, PoleCode), so the same physical camera reported
// over two connections is two independent records.
type CameraPresence struct {
	ConnectionID string            `json:"connection_id"`
	CameraIP     string            `json:"camera_ip"`
	PoleCode     string            `json:"pole_code"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	State        CameraState       `json:"state"`
	ReportedAt   time.Time         `json:"reported_at"`
}
