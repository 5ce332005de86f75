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

// Package config loads service configuration from JSON files with
// environment overrides.
package config

import (
	"context"
	"errors"
	"os"

	"github.com/polewatch/polewatch/pkg/logger"
)

var errLoadConfigFailed = errors.New("failed to load configuration")

// Validator is implemented by config structs that can check themselves
// after loading.
type Validator interface {
	Validate() error
}

// ConfigLoader loads configuration from a source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader ConfigLoader
	logger logger.Logger
}

// NewConfig initializes a new Config instance with a file loader.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		loader: &FileConfigLoader{},
		logger: log,
	}
}

// LoadAndValidate loads the config at path into dst, applies environment
// overrides, and runs dst's Validate method when present.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	if err := c.loader.Load(ctx, path, dst); err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Config load failed")
		return errors.Join(errLoadConfigFailed, err)
	}

	applyEnvOverrides(dst)

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	c.logger.Info().Str("path", path).Msg("Configuration loaded")

	return nil
}

// envOverridable lets config structs consume environment variables the
// deployment sets instead of baking secrets into the JSON file.
type envOverridable interface {
	ApplyEnv(lookup func(string) (string, bool))
}

func applyEnvOverrides(dst interface{}) {
	if o, ok := dst.(envOverridable); ok {
		o.ApplyEnv(os.LookupEnv)
	}
}
