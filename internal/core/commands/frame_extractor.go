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
// second step of the screenshot chain: rendering the preview frame and
// sniffing its actual file type from the bytes produced.
package commands

import (
	"fmt"

	"github.com/h2non/filetype"

	"github.com/moviekeep/moviekeep/internal/core/cor"
	"github.com/moviekeep/moviekeep/internal/core/prober"
)

// FrameExtractor renders one video frame into an encoded image. The image
// type is sniffed from the produced bytes rather than assumed, so the stored
// extension and MIME type always describe the real payload.
type FrameExtractor struct {
	cor.BaseCommand
	prober prober.Prober
}

// NewFrameExtractor is the constructor for the FrameExtractor command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - p: The media prober used to render the frame.
//
// Outputs:
//   - *FrameExtractor: A pointer to the newly instantiated command.
func NewFrameExtractor(name string, p prober.Prober) *FrameExtractor {
	return &FrameExtractor{BaseCommand: *cor.NewBaseCommand(name), prober: p}
}

// Execute renders the frame described by the incoming FrameJob and emits
// FrameData for the persist step.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *FrameExtractor) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*FrameJob)

	data, err := c.prober.ExtractFrame(context.GetContext(), job.VideoPath, job.AtSeconds)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to extract frame: %w", err))
		return
	}

	kind, err := filetype.Image(data)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("extracted frame is not a recognizable image: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &FrameData{
		MovieId:   job.MovieId,
		Bytes:     data,
		Extension: kind.Extension,
		MimeType:  kind.MIME.Value,
	})
}
