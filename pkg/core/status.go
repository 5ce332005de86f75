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
	"fmt"
	"time"

	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/presence"
)

const (
	statusOnline  = 1
	statusOffline = 0
)

// Run refreshes the cached pole catalog until the context is canceled.
// Status merges read the cache so a slow catalog database never sits on
// the request path.
func (s *Server) Run(ctx context.Context) error {
	if err := s.refreshCatalog(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}

	ticker := time.NewTicker(s.catalogRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.refreshCatalog(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Catalog refresh failed, keeping previous snapshot")
			}
		}
	}
}

func (s *Server) refreshCatalog(ctx context.Context) error {
	poles, err := s.db.GetPoles(ctx)
	if err != nil {
		return err
	}

	s.catalogMu.Lock()
	s.catalog = poles
	s.catalogMu.Unlock()

	s.logger.Debug().Int("poles", len(poles)).Msg("Catalog refreshed")

	return nil
}

// PolesWithStatus merges the cached pole catalog with live unit presence:
// a pole is online when a live unit has reported for its code.
func (s *Server) PolesWithStatus(_ context.Context) []models.Pole {
	onlineByPole := make(map[string]struct{})
	for _, unit := range s.store.OnlineUnits() {
		onlineByPole[unit.PoleCode] = struct{}{}
	}

	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	poles := make([]models.Pole, 0, len(s.catalog))

	for _, pole := range s.catalog {
		pole.Status = statusOffline
		if _, ok := onlineByPole[pole.Code]; ok {
			pole.Status = statusOnline
		}

		poles = append(poles, pole)
	}

	return poles
}

// CamerasWithStatus merges the pole's catalog cameras with live camera
// presence, matching on camera IP.
func (s *Server) CamerasWithStatus(ctx context.Context, poleCode string) ([]models.Camera, error) {
	catalog, err := s.db.GetCamerasByPoleCode(ctx, poleCode)
	if err != nil {
		return nil, fmt.Errorf("load pole cameras: %w", err)
	}

	onlineByIP := make(map[string]struct{})
	for _, record := range s.store.ListByPole(poleCode, presence.ViewOnline) {
		onlineByIP[record.CameraIP] = struct{}{}
	}

	cameras := make([]models.Camera, 0, len(catalog))

	for _, camera := range catalog {
		camera.Status = statusOffline
		if _, ok := onlineByIP[camera.CameraIP]; ok {
			camera.Status = statusOnline
		}

		cameras = append(cameras, camera)
	}

	return cameras, nil
}

// OnlineUnits exposes the live unit list for the HTTP API.
func (s *Server) OnlineUnits() []*models.UnitPresence {
	return s.store.OnlineUnits()
}

// CamerasByView exposes pole-scoped presence records for the HTTP API.
func (s *Server) CamerasByView(poleCode string, view presence.View) []*models.CameraPresence {
	return s.store.ListByPole(poleCode, view)
}
