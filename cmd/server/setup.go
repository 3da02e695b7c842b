// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main contains the setup and initialization logic for the
// application's state. This file creates the centralized state manager
// holding all shared dependencies: configuration, the blob store, the movie
// index, the media prober, the screenshot worker and the movie service.
//
// Functions:
//   - SetupOS: Points the configuration loader at the config directory and
//     runtime environment when the environment does not already say so.
//   - GetConfig: A singleton accessor for the application configuration.
//   - InitState: Builds every shared component and starts the background
//     screenshot worker.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moviekeep/moviekeep/internal/config"
	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/prober"
	"github.com/moviekeep/moviekeep/internal/core/services"
	"github.com/moviekeep/moviekeep/internal/core/storage"
	"github.com/moviekeep/moviekeep/internal/core/workflow"
)

// StateManager holds all the shared dependencies for the application,
// avoiding global variables scattered across handlers.
type StateManager struct {
	config  *config.Config
	storage storage.MovieStorage
	index   index.MovieIndex
	prober  prober.Prober
	worker  *workflow.ScreenshotWorker
	movies  *services.MovieService
}

// state is the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader reads,
// unless the environment already provides them.
func SetupOS() (err error) {
	if os.Getenv(config.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(config.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		err = os.Setenv(config.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig provides a singleton instance of the application configuration,
// loading it from the TOML files on first use.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up environment: %v\n", err)
		}
		cfg := config.NewConfig()
		config.LoadConfig(cfg)
		state.config = cfg
	}
	return state.config
}

// InitState builds the application state from the configuration: the blob
// store rooted at the library directory, the configured index backend, the
// ffmpeg prober (verified immediately so a missing binary fails startup),
// the screenshot worker and the movie service wired on top.
func InitState(ctx context.Context) error {
	cfg := GetConfig()

	store, err := storage.NewFileStorage(cfg.Library.RootDir)
	if err != nil {
		return fmt.Errorf("failed to open library storage: %w", err)
	}
	state.storage = store

	pages := index.PageDefaults{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}
	switch cfg.Library.Index {
	case config.IndexBackendSqlite:
		idx, err := index.NewSqliteIndex(filepath.Join(cfg.Library.RootDir, cfg.Library.SqliteFile), pages)
		if err != nil {
			return fmt.Errorf("failed to open sqlite index: %w", err)
		}
		state.index = idx
	case config.IndexBackendMemory:
		state.index = index.NewMemoryIndex(pages)
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Library.Index)
	}

	p := prober.NewFFmpegProber(cfg.Prober.FFmpegPath, cfg.Prober.FFprobePath, cfg.Prober.Timeout())
	if err := p.Verify(ctx); err != nil {
		return fmt.Errorf("media tooling unavailable: %w", err)
	}
	state.prober = p
	slog.Info("media tooling verified", "ffmpeg", cfg.Prober.FFmpegPath, "ffprobe", cfg.Prober.FFprobePath)

	state.worker = workflow.NewScreenshotWorker(state.prober, state.storage, state.index, cfg.Upload.ScreenshotQueueSize)
	state.worker.Listen(ctx)

	state.movies = services.NewMovieService(state.index, state.storage, state.worker, cfg.Upload)
	return nil
}
