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

// Package config_test verifies the hierarchical TOML loader: base file,
// runtime overlay and the defaults that survive when files are missing.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/moviekeep/moviekeep/internal/config"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestLoadConfigOverlay verifies that the runtime file overlays the base
// file and that values set in neither keep their defaults.
func TestLoadConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".env.toml", `
[application]
name = "moviekeep"
port = 9090

[library]
index = "sqlite"

[search]
default_page_size = 25
`)
	writeConfigFile(t, dir, ".env.custom.toml", `
[application]
port = 9091

[library]
index = "memory"
`)

	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "custom")

	cfg := config.NewConfig()
	config.LoadConfig(cfg)

	// Base values not touched by the overlay stick.
	assert.Equal(t, "moviekeep", cfg.Application.Name)
	assert.Equal(t, 25, cfg.Search.DefaultPageSize)

	// Overlay values win.
	assert.Equal(t, 9091, cfg.Application.Port)
	assert.Equal(t, config.IndexBackendMemory, cfg.Library.Index)

	// Values in neither file keep their defaults.
	assert.Equal(t, 500, cfg.Search.MaxPageSize)
	assert.Equal(t, "movies.db", cfg.Library.SqliteFile)
}

// TestLoadConfigMissingFiles verifies that missing files are not an error
// and the compiled-in defaults remain in place.
func TestLoadConfigMissingFiles(t *testing.T) {
	t.Setenv(config.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(config.EnvConfigRuntime, "nonexistent")

	cfg := config.NewConfig()
	config.LoadConfig(cfg)

	assert.Equal(t, "moviekeep", cfg.Application.Name)
	assert.Equal(t, 8080, cfg.Application.Port)
	assert.Equal(t, config.IndexBackendMemory, cfg.Library.Index)
	assert.Equal(t, 256, cfg.Upload.BufferSizeKB)
}

// TestProberTimeoutDefault covers the zero-value fallback.
func TestProberTimeoutDefault(t *testing.T) {
	p := config.Prober{}
	assert.Equal(t, 30*time.Second, p.Timeout())

	p.TimeoutInSeconds = 5
	assert.Equal(t, 5*time.Second, p.Timeout())
}
