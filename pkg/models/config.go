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
	"errors"
	"fmt"
	"time"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration is a time.Duration that unmarshals from either a duration
// string ("30s") or nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// CORSConfig controls allowed origins for the HTTP API and websocket
// upgrades.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// DatabaseConfig points at the catalog/notification database.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// ConnString renders a pgx connection string.
func (c *DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Name, sslMode)
}

// NATSConfig enables the presence event publisher when URL is set.
type NATSConfig struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

// AlertingConfig tunes the alerting pipeline.
type AlertingConfig struct {
	// Timeout bounds each call to the permission resolver and the
	// notification sink so a slow backend cannot stall delivery.
	Timeout Duration `json:"timeout"`
}

// CoreServiceConfig is the top-level configuration for the core service.
type CoreServiceConfig struct {
	ListenAddr string         `json:"listen_addr"`
	APIKey     string         `json:"api_key,omitempty"`
	CORS       CORSConfig     `json:"cors"`
	Database   DatabaseConfig `json:"database"`
	NATS       NATSConfig     `json:"nats"`
	Alerting   AlertingConfig `json:"alerting"`
	// CatalogRefresh is the interval for re-reading the pole catalog
	// used in status merges.
	CatalogRefresh Duration       `json:"catalog_refresh"`
	Logging        *LoggingConfig `json:"logging,omitempty"`
}

// LoggingConfig mirrors logger.Config without importing it; the loader
// maps it across.
type LoggingConfig struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

var errDatabaseHostRequired = errors.New("database host is required")

const (
	defaultListenAddr      = ":8090"
	defaultAlertTimeout    = Duration(10 * time.Second)
	defaultCatalogRefresh  = Duration(time.Minute)
	defaultNATSStreamName  = "presence-events"
	defaultDatabasePort    = 5432
	defaultDatabaseSSLMode = "disable"
)

// Validate fills defaults and rejects configurations the core cannot run
// with.
func (c *CoreServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.Alerting.Timeout == 0 {
		c.Alerting.Timeout = defaultAlertTimeout
	}

	if c.CatalogRefresh == 0 {
		c.CatalogRefresh = defaultCatalogRefresh
	}

	if c.Database.Host == "" {
		return errDatabaseHostRequired
	}

	if c.Database.Port == 0 {
		c.Database.Port = defaultDatabasePort
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultDatabaseSSLMode
	}

	if c.NATS.URL != "" && c.NATS.Stream == "" {
		c.NATS.Stream = defaultNATSStreamName
	}

	return nil
}

// ApplyEnv lets the deployment inject secrets without writing them into
// the config file.
func (c *CoreServiceConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("DB_PASSWORD"); ok {
		c.Database.Password = v
	}

	if v, ok := lookup("API_KEY"); ok {
		c.APIKey = v
	}
}
