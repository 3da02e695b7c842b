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
// final step of the screenshot chain: writing the frame bytes through the
// blob store and flipping the record's screenshot to present.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/moviekeep/moviekeep/internal/core/cor"
	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/core/storage"
)

// ScreenshotPersist stores an extracted frame as the movie's screenshot
// blob. The index flip happens only after the blob is durable. When the
// record was deleted while the frame was being produced, the blob is
// reclaimed instead.
type ScreenshotPersist struct {
	cor.BaseCommand
	storage storage.MovieStorage
	index   index.MovieIndex
}

// NewScreenshotPersist is the constructor for the ScreenshotPersist command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - store: The blob store the frame is written to.
//   - idx: The movie index whose screenshot presence is flipped.
//
// Outputs:
//   - *ScreenshotPersist: A pointer to the newly instantiated command.
func NewScreenshotPersist(name string, store storage.MovieStorage, idx index.MovieIndex) *ScreenshotPersist {
	return &ScreenshotPersist{BaseCommand: *cor.NewBaseCommand(name), storage: store, index: idx}
}

// Execute writes the incoming FrameData through a staged blob write, commits
// it, and records the screenshot on the index.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *ScreenshotPersist) Execute(context cor.Context) {
	frame := context.Get(c.GetInputParam()).(*FrameData)
	ctx := context.GetContext()

	writer, err := c.storage.Writer(ctx, frame.MovieId, model.BlobScreenshot, frame.Extension)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to open screenshot writer: %w", err))
		return
	}
	if _, err := writer.Write(frame.Bytes); err != nil {
		_ = writer.Abort()
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to write screenshot: %w", err))
		return
	}
	if err := writer.Commit(); err != nil {
		_ = writer.Abort()
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to commit screenshot: %w", err))
		return
	}

	err = c.index.CommitAttachment(ctx, frame.MovieId, model.BlobScreenshot, frame.Extension, frame.MimeType)
	if err != nil {
		if model.IsCode(err, model.ErrNotFound) {
			// The movie was deleted mid-pipeline. Reclaim the blob.
			slog.Info("movie deleted during screenshot extraction, discarding frame", "id", frame.MovieId)
			if rmErr := c.storage.Remove(ctx, frame.MovieId); rmErr != nil {
				slog.Warn("failed to reclaim orphaned screenshot", "id", frame.MovieId, "error", rmErr)
			}
			c.GetSuccessCounter().Add(ctx, 1)
			context.Add(c.GetOutputParam(), frame.MovieId)
			return
		}
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to record screenshot: %w", err))
		return
	}

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(c.GetOutputParam(), frame.MovieId)
}
