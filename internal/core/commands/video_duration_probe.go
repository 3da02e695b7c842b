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
// first step of the screenshot chain: asking the prober for the video's
// duration and picking the midpoint as the preview frame offset.
package commands

import (
	"fmt"

	"github.com/moviekeep/moviekeep/internal/core/cor"
	"github.com/moviekeep/moviekeep/internal/core/prober"
)

// VideoDurationProbe resolves a screenshot job's frame offset. The midpoint
// of the video is used so the frame lands past any title card or fade-in.
type VideoDurationProbe struct {
	cor.BaseCommand
	prober prober.Prober
}

// NewVideoDurationProbe is the constructor for the VideoDurationProbe
// command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and
//     telemetry.
//   - p: The media prober used to read the video duration.
//
// Outputs:
//   - *VideoDurationProbe: A pointer to the newly instantiated command.
func NewVideoDurationProbe(name string, p prober.Prober) *VideoDurationProbe {
	return &VideoDurationProbe{BaseCommand: *cor.NewBaseCommand(name), prober: p}
}

// Execute probes the video and emits a FrameJob at the midpoint offset.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *VideoDurationProbe) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*ScreenshotJob)

	seconds, err := c.prober.Duration(context.GetContext(), job.VideoPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to probe video duration: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &FrameJob{
		MovieId:   job.MovieId,
		VideoPath: job.VideoPath,
		AtSeconds: seconds / 2,
	})
}
