/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db pkg/db/interfaces.go
package db

import (
	"context"

	"github.com/polewatch/polewatch/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/polewatch/polewatch/pkg/db Service

// CapabilityViewNotification marks users eligible to receive disconnect
// notifications.
const CapabilityViewNotification = "view_notification"

// Service represents the external collaborators the presence core calls
// out to: the catalog store, the permission resolver, and the
// notification sink. Presence itself never touches the database.
type Service interface {
	Close() error

	// Catalog operations.

	GetPoles(ctx context.Context) ([]models.Pole, error)
	GetCamerasByPoleCode(ctx context.Context, poleCode string) ([]models.Camera, error)

	// Permission resolution.

	ListActiveUsersWithCapability(ctx context.Context, capability string) ([]models.User, error)

	// Notification sink.

	WriteNotifications(ctx context.Context, notifications []*models.Notification) error
}
