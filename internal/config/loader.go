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

// Package config defines the application configuration. This file contains
// the hierarchical configuration loader: a base file is read first and an
// environment-specific file overlays it, both located and selected through
// environment variables.
package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Constants used for locating and naming configuration files.
const (
	ConfigFileBaseName  = ".env"                    // Base name of configuration files (".env.toml").
	ConfigFileExtension = ".toml"                   // Extension of configuration files.
	ConfigSeparator     = "."                       // Separator in overlay file names (".env.local.toml").
	EnvConfigFilePrefix = "MOVIEKEEP_CONFIG_PREFIX" // Environment variable naming the config directory.
	EnvConfigRuntime    = "MOVIEKEEP_RUNTIME"       // Environment variable naming the runtime ("local", "test", ...).
)

// fileExists checks whether a file exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates the given configuration struct from TOML files. It
// first decodes the base file (e.g. "configs/.env.toml") and then decodes the
// runtime-specific overlay (e.g. "configs/.env.local.toml") on top of it, so
// overlay values win. The config directory comes from MOVIEKEEP_CONFIG_PREFIX
// and the runtime from MOVIEKEEP_RUNTIME, defaulting to "test".
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}
