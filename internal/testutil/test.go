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

// Package testutil provides utility functions and sample data to support the
// application's test suite: a cached test configuration and a set of sample
// movies covering the title, tag and sorting edge cases the search tests
// exercise.
package testutil

import (
	"log"
	"os"
	"testing"

	"github.com/moviekeep/moviekeep/internal/config"
	"github.com/moviekeep/moviekeep/internal/core/model"
)

// StateManager caches the test configuration so TOML files are read only
// once per test run.
type StateManager struct {
	config *config.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the test configuration files.
func SetupOS() (err error) {
	err = os.Setenv(config.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(config.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		cfg := config.NewConfig()
		config.LoadConfig(cfg)
		state.config = cfg
	}
	return state.config
}

// SampleMovies returns a fixed set of movies whose titles, tags and shapes
// cover the interesting search cases: shared words, quoting targets, shared
// tags with differing counts, and an untagged entry.
func SampleMovies() []model.Movie {
	return []model.Movie{
		{
			Title:       "Doctor Who",
			Description: "The adventures of a time-travelling alien.",
			Tags:        []string{"Sci-Fi", "Series"},
		},
		{
			Title:       "The X-Files",
			Description: "Two FBI agents investigate the unexplained.",
			Tags:        []string{"Sci-Fi", "Series", "Mystery"},
		},
		{
			Title:       "E.T. the Extra-Terrestrial",
			Description: "A stranded alien befriends a boy.",
			Tags:        []string{"Sci-Fi", "Family"},
		},
		{
			Title:       "Das Boot",
			Description: "A German U-boat crew on patrol in 1941.",
			Tags:        []string{"War", "Drama"},
		},
		{
			Title: "Doctor Strange",
			Tags:  []string{"Fantasy"},
		},
		{
			Title: "Untagged Short",
		},
	}
}

// TinyPNG returns a minimal valid PNG payload, small enough to inline and
// recognizable by magic-byte sniffing.
func TinyPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, // IEND chunk
		0x44, 0xAE, 0x42, 0x60, 0x82,
	}
}
