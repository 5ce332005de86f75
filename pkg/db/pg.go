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

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
)

// DB implements Service against Postgres.
type DB struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New connects a pgx pool using the database configuration.
func New(ctx context.Context, config *models.DatabaseConfig, log logger.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", config.Host).
		Str("database", config.Name).
		Msg("Connected to database")

	return &DB{pool: pool, logger: log}, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

const polesSelect = `
SELECT
	p.id,
	p.zone_id,
	z.name AS zone_name,
	p.code,
	p.router_ip,
	p.router_vpn_ip,
	p.lat,
	p.lng,
	COUNT(c.id) AS camera_count
FROM poles p
JOIN zones z ON p.zone_id = z.id
LEFT JOIN cameras c ON c.pole_id = p.id
WHERE p.deleted_at IS NULL
GROUP BY p.id, z.name`

// GetPoles returns the persisted pole catalog, independent of liveness.
func (db *DB) GetPoles(ctx context.Context) ([]models.Pole, error) {
	rows, err := db.pool.Query(ctx, polesSelect)
	if err != nil {
		return nil, fmt.Errorf("query poles: %w", err)
	}
	defer rows.Close()

	var poles []models.Pole

	for rows.Next() {
		var p models.Pole

		if err := rows.Scan(
			&p.ID, &p.ZoneID, &p.ZoneName, &p.Code,
			&p.RouterIP, &p.RouterVPNIP, &p.Lat, &p.Lng, &p.CameraCount); err != nil {
			return nil, fmt.Errorf("scan pole: %w", err)
		}

		poles = append(poles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poles: %w", err)
	}

	return poles, nil
}

const camerasByPoleSelect = `
SELECT
	c.id,
	c.pole_id,
	p.code AS pole_code,
	c.camera_ip,
	c.name
FROM cameras c
JOIN poles p ON p.id = c.pole_id
WHERE p.code = $1 AND c.deleted_at IS NULL`

// GetCamerasByPoleCode returns the catalog cameras installed on a pole.
func (db *DB) GetCamerasByPoleCode(ctx context.Context, poleCode string) ([]models.Camera, error) {
	rows, err := db.pool.Query(ctx, camerasByPoleSelect, poleCode)
	if err != nil {
		return nil, fmt.Errorf("query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []models.Camera

	for rows.Next() {
		var c models.Camera

		if err := rows.Scan(&c.ID, &c.PoleID, &c.PoleCode, &c.CameraIP, &c.Name); err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}

		cameras = append(cameras, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cameras: %w", err)
	}

	return cameras, nil
}

const usersWithCapabilitySelect = `
SELECT
	u.id AS user_id,
	u.username,
	u.designation,
	u.active
FROM users u
JOIN user_permissions up ON up.user_id = u.id
JOIN permissions p ON p.id = up.permission_id
WHERE u.active = TRUE AND p.key = $1`

// ListActiveUsersWithCapability resolves the recipient set for alerting.
func (db *DB) ListActiveUsersWithCapability(ctx context.Context, capability string) ([]models.User, error) {
	rows, err := db.pool.Query(ctx, usersWithCapabilitySelect, capability)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User

	for rows.Next() {
		var u models.User

		if err := rows.Scan(&u.ID, &u.Username, &u.Designation, &u.Active); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

const notificationInsert = `
INSERT INTO notifications (user_id, pole_router_ip, pole_code, description, note, is_read)
VALUES ($1, $2, $3, $4, $5, FALSE)`

// WriteNotifications fans each notification out to its recipient ids in
// one batch round trip.
func (db *DB) WriteNotifications(ctx context.Context, notifications []*models.Notification) error {
	batch := &pgx.Batch{}

	for _, n := range notifications {
		for _, userID := range n.UserIDs {
			batch.Queue(notificationInsert, userID, n.PoleRouterIP, n.PoleCode, n.Description, n.Note)
		}
	}

	if batch.Len() == 0 {
		return nil
	}

	results := db.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	return nil
}
