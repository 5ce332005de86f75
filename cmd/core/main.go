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

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polewatch/polewatch/pkg/config"
	"github.com/polewatch/polewatch/pkg/core"
	"github.com/polewatch/polewatch/pkg/core/alerts"
	"github.com/polewatch/polewatch/pkg/core/api"
	"github.com/polewatch/polewatch/pkg/db"
	"github.com/polewatch/polewatch/pkg/hub"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
	"github.com/polewatch/polewatch/pkg/natsutil"
	"github.com/polewatch/polewatch/pkg/presence"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/polewatch/core.json", "Path to core config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg models.CoreServiceConfig
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	if cfg.Logging != nil {
		logCfg = &logger.Config{
			Level:      cfg.Logging.Level,
			Debug:      cfg.Logging.Debug,
			Output:     cfg.Logging.Output,
			TimeFormat: cfg.Logging.TimeFormat,
		}
	}

	mainLogger, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	database, err := db.New(ctx, &cfg.Database, mainLogger)
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	store := presence.NewStore()
	connHub := hub.NewHub(mainLogger)

	notifier := alerts.NewNotifier(database, connHub, time.Duration(cfg.Alerting.Timeout), mainLogger)
	defer notifier.Close()

	serverOpts := []core.ServerOption{
		core.WithCatalogRefresh(time.Duration(cfg.CatalogRefresh)),
	}

	if cfg.NATS.URL != "" {
		publisher, natsConn, pubErr := natsutil.ConnectWithEventPublisher(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if pubErr != nil {
			return pubErr
		}

		defer natsConn.Close()

		serverOpts = append(serverOpts, core.WithPresencePublisher(publisher))

		mainLogger.Info().Str("url", cfg.NATS.URL).Str("stream", cfg.NATS.Stream).Msg("Presence event publishing enabled")
	}

	server := core.NewServer(store, connHub, notifier, database, mainLogger, serverOpts...)
	connHub.RegisterHandler(server)

	apiServer := api.NewAPIServer(cfg.CORS,
		api.WithCoreService(server),
		api.WithConnectionServer(connHub),
		api.WithAPIKey(cfg.APIKey),
		api.WithLogger(mainLogger),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx)
	})

	g.Go(func() error {
		return apiServer.Start(ctx, cfg.ListenAddr)
	})

	if err := g.Wait(); err != nil && !isShutdown(err) {
		return err
	}

	mainLogger.Info().Msg("Core service stopped")

	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
