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

// Package config defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the library storage layout, the movie index backend, the media prober
// binaries, search defaults and the upload path.
//
// Structs:
//   - Library: Location of the movie library and the index backend to use.
//   - Prober: Paths and time budget for the ffmpeg/ffprobe binaries.
//   - Search: Pagination defaults for the search evaluator.
//   - Upload: Buffering, queueing and progress-reporting parameters.
//   - Telemetry: Local exporter switches.
//   - Config: The top-level struct aggregating all of the above.
package config

import "time"

// Index backend identifiers accepted in Library.Index.
const (
	IndexBackendMemory = "memory"
	IndexBackendSqlite = "sqlite"
)

// Library configures where movie metadata and blobs live.
type Library struct {
	RootDir    string `toml:"root_dir"`    // Directory holding one sub-directory per movie id.
	Index      string `toml:"index"`       // Index backend: "memory" or "sqlite".
	SqliteFile string `toml:"sqlite_file"` // Database file name inside RootDir, used by the sqlite backend.
}

// Prober configures the external frame-extraction tool.
type Prober struct {
	FFmpegPath       string `toml:"ffmpeg_path"`        // Path to the ffmpeg binary.
	FFprobePath      string `toml:"ffprobe_path"`       // Path to the ffprobe binary.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Hard limit per subprocess invocation.
}

// Timeout returns the prober time budget as a duration, defaulting to 30s.
func (p Prober) Timeout() time.Duration {
	if p.TimeoutInSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutInSeconds) * time.Second
}

// Search configures the search evaluator's pagination behavior.
type Search struct {
	DefaultPageSize int `toml:"default_page_size"` // Page size when a query does not ask for one.
	MaxPageSize     int `toml:"max_page_size"`     // Upper bound on any requested page size.
}

// Upload configures the streaming file-ingestion path.
type Upload struct {
	BufferSizeKB            int `toml:"buffer_size_kb"`             // Copy buffer size for streaming writes.
	MaxUploadSizeMB         int `toml:"max_upload_size_mb"`         // Upper bound on a single upload; 0 disables the check.
	ProgressEventsPerSecond int `toml:"progress_events_per_second"` // Rate cap on progress callbacks.
	ScreenshotQueueSize     int `toml:"screenshot_queue_size"`      // Capacity of the screenshot request queue.
}

// Telemetry configures the local OpenTelemetry exporters.
type Telemetry struct {
	StdoutExport bool `toml:"stdout_export"` // Write traces and metrics to stdout when true.
}

// Config represents the overall configuration for the application, loaded
// from TOML files.
type Config struct {
	Application struct {
		Name string `toml:"name"` // The name of the application, used as the telemetry service name.
		Port int    `toml:"port"` // HTTP listen port.
	} `toml:"application"`
	Library   Library   `toml:"library"`
	Prober    Prober    `toml:"prober"`
	Search    Search    `toml:"search"`
	Upload    Upload    `toml:"upload"`
	Telemetry Telemetry `toml:"telemetry"`
}

// NewConfig creates a Config populated with workable defaults. Values are
// overlaid by LoadConfig from the TOML files.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.Application.Name = "moviekeep"
	cfg.Application.Port = 8080
	cfg.Library = Library{RootDir: "./library", Index: IndexBackendMemory, SqliteFile: "movies.db"}
	cfg.Prober = Prober{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", TimeoutInSeconds: 30}
	cfg.Search = Search{DefaultPageSize: 50, MaxPageSize: 500}
	cfg.Upload = Upload{BufferSizeKB: 256, MaxUploadSizeMB: 4096, ProgressEventsPerSecond: 4, ScreenshotQueueSize: 64}
	return cfg
}
