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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// value types piped between the commands of the screenshot chain.
package commands

import "github.com/moviekeep/moviekeep/internal/core/model"

// ScreenshotJob is the chain's input: a committed video to take a preview
// frame from.
type ScreenshotJob struct {
	MovieId   model.MovieId
	VideoPath string
}

// FrameJob is the probe command's output: the job plus the resolved offset
// to snapshot at.
type FrameJob struct {
	MovieId   model.MovieId
	VideoPath string
	AtSeconds float64
}

// FrameData is the extractor's output: the encoded frame with its sniffed
// file type.
type FrameData struct {
	MovieId   model.MovieId
	Bytes     []byte
	Extension string
	MimeType  string
}
