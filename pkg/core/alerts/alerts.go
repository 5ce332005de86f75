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

// Package alerts delivers disconnect and pass-through alerts to the
// notification sink and to every live dashboard connection.
package alerts

import (
	"context"
	"fmt"
)

// Kind selects the stored notification description and note format.
type Kind string

const (
	// KindCameraDisconnected is raised when a previously online camera
	// goes offline.
	KindCameraDisconnected Kind = "camera disconnected"

	// KindUnitDisconnected is raised when a unit's session ends while it
	// still holds presence.
	KindUnitDisconnected Kind = "device disconnected"

	// KindGeneric is a pass-through alert raised by a field unit.
	KindGeneric Kind = "generic"
)

// Alert is one alert to deliver. Title and Message feed the live
// broadcast; the remaining fields feed the stored notification.
type Alert struct {
	Kind         Kind
	Title        string
	Message      string
	PoleCode     string
	RouterIP     string
	FileServerID string
	CameraIP     string
}

// Description is the stored notification description.
func (a *Alert) Description() string {
	if a.Kind == KindGeneric {
		return a.Title
	}

	return string(a.Kind)
}

// Note is the stored notification note, formatted per kind.
func (a *Alert) Note() string {
	switch a.Kind {
	case KindCameraDisconnected:
		return fmt.Sprintf("file_server_id: %s camera ip: %s", a.FileServerID, a.CameraIP)
	case KindUnitDisconnected:
		return fmt.Sprintf("file_server_id: %s", a.FileServerID)
	default:
		return fmt.Sprintf("%s >> %s", a.FileServerID, a.Message)
	}
}

// AlertService accepts alerts for asynchronous delivery. Raise never
// blocks on collaborators and never reports their failures to the
// caller.
type AlertService interface {
	Raise(ctx context.Context, alert *Alert)
	Close()
}
