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

// Pole is a catalog row for a physical site, independent of liveness.
// Status is filled in by the core when merging with presence (1 = online).
type Pole struct {
	ID          int64   `json:"id"`
	ZoneID      int64   `json:"zone_id"`
	ZoneName    string  `json:"zone_name"`
	Code        string  `json:"code"`
	RouterIP    string  `json:"router_ip"`
	RouterVPNIP string  `json:"router_vpn_ip"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	CameraCount int     `json:"camera_count"`
	Status      int     `json:"status"`
}

// Camera is a catalog row for a camera installed on a pole.
type Camera struct {
	ID       int64  `json:"id"`
	PoleID   int64  `json:"pole_id"`
	PoleCode string `json:"pole_code"`
	CameraIP string `json:"camera_ip"`
	Name     string `json:"name"`
	Status   int    `json:"status"`
}

// User is the subset of a user row the alerting pipeline needs.
type User struct {
	ID          int64  `json:"user_id"`
	Username    string `json:"username"`
	Designation string `json:"designation"`
	Active      bool   `json:"active"`
}

// Notification is one notification-sink write, fanned out to UserIDs.
type Notification struct {
	UserIDs      []int64 `json:"user_ids"`
	PoleRouterIP string  `json:"pole_router_ip"`
	PoleCode     string  `json:"pole_code"`
	Description  string  `json:"description"`
	Note         string  `json:"note"`
}
