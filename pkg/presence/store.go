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

// Package presence holds the in-memory registry of live field units and
// the cameras they report. Nothing here is durable; a restart empties the
// registry and units rebuild it by re-reporting.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/polewatch/polewatch/pkg/models"
)

// View selects which camera set a pole-scoped read returns.
type View string

const (
	ViewAll     View = "all"
	ViewOnline  View = "online"
	ViewOffline View = "offline"
)

// cameraKey is the identity of a camera presence record. Cameras are
// reported on behalf of by a unit's connection, so the connection id is
// part of the identity: the same camera reported over two connections is
// two records.
type cameraKey struct {
	connectionID string
	cameraIP     string
	poleCode     string
}

// Store is the single authority for live presence. Every record set is
// keyed for O(1) upsert and O(k) pole-scoped reads, where k is the number
// of records on one pole. All mutations are serialized behind one lock;
// reads for status merges may run concurrently.
type Store struct {
	mu sync.RWMutex

	// units holds one record per live unit connection.
	units map[string]*models.UnitPresence

	// cameras holds the latest record per identity regardless of state;
	// the online/offline views are derived from the State field, which
	// keeps them disjoint by construction.
	cameras map[cameraKey]*models.CameraPresence

	// byPole indexes camera identities per pole code for list and purge.
	byPole map[string]map[cameraKey]struct{}

	now func() time.Time
}

// NewStore creates an empty presence store.
func NewStore() *Store {
	return &Store{
		units:   make(map[string]*models.UnitPresence),
		cameras: make(map[cameraKey]*models.CameraPresence),
		byPole:  make(map[string]map[cameraKey]struct{}),
		now:     time.Now,
	}
}

// ReportUnitOnline upserts the unit record for a connection. A second
// report on the same connection replaces the first.
func (s *Store) ReportUnitOnline(connectionID string, report models.UnitOnlinePayload) *models.UnitPresence {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := &models.UnitPresence{
		ConnectionID: connectionID,
		PoleCode:     report.PoleCode,
		RouterIP:     report.RouterIP,
		FileServerID: report.FileServerID,
		Metadata:     report.Metadata,
		ReportedAt:   s.now(),
	}
	s.units[connectionID] = unit

	return cloneUnit(unit)
}

// Unit resolves the unit record for a connection, if any.
func (s *Store) Unit(connectionID string) (*models.UnitPresence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unit, ok := s.units[connectionID]
	if !ok {
		return nil, false
	}

	return cloneUnit(unit), true
}

// RemoveUnit removes and returns the unit record for a connection.
// Unknown connections (pure observers) return ok=false.
func (s *Store) RemoveUnit(connectionID string) (*models.UnitPresence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit, ok := s.units[connectionID]
	if !ok {
		return nil, false
	}

	delete(s.units, connectionID)

	return cloneUnit(unit), true
}

// OnlineUnits returns a snapshot of every live unit record.
func (s *Store) OnlineUnits() []*models.UnitPresence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]*models.UnitPresence, 0, len(s.units))
	for _, unit := range s.units {
		units = append(units, cloneUnit(unit))
	}

	sort.Slice(units, func(i, j int) bool { return units[i].PoleCode < units[j].PoleCode })

	return units
}

// ReportCameraOnline upserts a camera record as online. A camera that was
// offline leaves the offline view; no alert is raised on recovery.
func (s *Store) ReportCameraOnline(connectionID, cameraIP, poleCode string, metadata map[string]string) *models.CameraPresence {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.upsertCamera(connectionID, cameraIP, poleCode, metadata, models.CameraStateOnline)

	return cloneCamera(record)
}

// ReportCameraOffline upserts a camera record as offline. wasOnline
// reports whether the identity was online immediately before this call;
// it is the sole trigger condition for camera-disconnect alerting.
func (s *Store) ReportCameraOffline(connectionID, cameraIP, poleCode string, metadata map[string]string) (*models.CameraPresence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cameraKey{connectionID: connectionID, cameraIP: cameraIP, poleCode: poleCode}
	prior, existed := s.cameras[key]
	wasOnline := existed && prior.State == models.CameraStateOnline

	record := s.upsertCamera(connectionID, cameraIP, poleCode, metadata, models.CameraStateOffline)

	return cloneCamera(record), wasOnline
}

func (s *Store) upsertCamera(connectionID, cameraIP, poleCode string, metadata map[string]string, state models.CameraState) *models.CameraPresence {
	key := cameraKey{connectionID: connectionID, cameraIP: cameraIP, poleCode: poleCode}

	record := &models.CameraPresence{
		ConnectionID: connectionID,
		CameraIP:     cameraIP,
		PoleCode:     poleCode,
		Metadata:     metadata,
		State:        state,
		ReportedAt:   s.now(),
	}
	s.cameras[key] = record

	index, ok := s.byPole[poleCode]
	if !ok {
		index = make(map[cameraKey]struct{})
		s.byPole[poleCode] = index
	}

	index[key] = struct{}{}

	return record
}

// PurgeByPole removes every camera record for a pole from all views and
// returns how many were removed. The purge is keyed by pole code, not by
// the reporting connection: if two connections ever report for the same
// pole, one disconnecting erases the other's cameras as well. That
// matches the deployed behavior and is kept deliberately.
func (s *Store) PurgeByPole(poleCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.byPole[poleCode]
	if !ok {
		return 0
	}

	for key := range index {
		delete(s.cameras, key)
	}

	removed := len(index)
	delete(s.byPole, poleCode)

	return removed
}

// ListByPole returns the camera records for a pole in the requested view.
// An unknown view behaves as ViewAll.
func (s *Store) ListByPole(poleCode string, view View) []*models.CameraPresence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.byPole[poleCode]
	records := make([]*models.CameraPresence, 0, len(index))

	for key := range index {
		record := s.cameras[key]

		switch view {
		case ViewOnline:
			if record.State != models.CameraStateOnline {
				continue
			}
		case ViewOffline:
			if record.State != models.CameraStateOffline {
				continue
			}
		case ViewAll:
		}

		records = append(records, cloneCamera(record))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CameraIP < records[j].CameraIP })

	return records
}

func cloneUnit(unit *models.UnitPresence) *models.UnitPresence {
	out := *unit
	return &out
}

func cloneCamera(camera *models.CameraPresence) *models.CameraPresence {
	out := *camera
	return &out
}
