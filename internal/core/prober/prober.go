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

// Package prober wraps the external media tooling used to inspect uploaded
// videos and extract the preview frame. The core never links a media
// library; everything goes through subprocess invocations of ffprobe and
// ffmpeg so the binaries are a deployment concern, not a build one.
package prober

import "context"

// Prober inspects video files and extracts single frames.
type Prober interface {
	// Verify checks that the underlying tooling is available and
	// executable. Called once at startup so a missing binary surfaces
	// immediately instead of on the first upload.
	Verify(ctx context.Context) error

	// Duration returns the playing time of the video at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// ExtractFrame renders the frame at the given offset as an encoded
	// image and returns its bytes.
	ExtractFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error)
}
