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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. This file implements the
// background screenshot worker: a queue of committed videos that each get a
// preview frame extracted and attached to their record.
//
// Logic Flow:
//  1. After a video upload commits, the service enqueues a ScreenshotRequest.
//  2. The worker goroutine drains the queue one request at a time.
//  3. For each request it flips the record's screenshot to pending, then
//     runs the screenshot chain: probe the duration, extract the midpoint
//     frame, persist the frame as the screenshot blob.
//  4. On any chain error the pending flag is rolled back to absent and the
//     failure is logged. A movie without a preview frame is still fully
//     usable, so extraction failures never fail the upload that caused them.
package workflow

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/moviekeep/moviekeep/internal/core/commands"
	"github.com/moviekeep/moviekeep/internal/core/cor"
	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/core/prober"
	"github.com/moviekeep/moviekeep/internal/core/storage"
)

// ScreenshotRequest asks the worker to extract a preview frame for the
// movie whose committed video lives at VideoPath.
type ScreenshotRequest struct {
	MovieId   model.MovieId
	VideoPath string
}

// ScreenshotWorker owns the screenshot queue and the chain that serves it.
// Requests are processed strictly one at a time so at most one ffmpeg
// subprocess runs per worker.
type ScreenshotWorker struct {
	queue chan ScreenshotRequest
	chain cor.Chain
	index index.MovieIndex
	done  chan struct{}
}

// NewScreenshotWorker assembles the screenshot chain and its queue.
//
// Inputs:
//   - p: The media prober used to probe and render frames.
//   - store: The blob store frames are written to.
//   - idx: The movie index tracking screenshot presence.
//   - queueSize: Capacity of the request queue. Enqueueing beyond it drops
//     the request rather than blocking the upload path.
//
// Outputs:
//   - *ScreenshotWorker: A pointer to the newly created worker.
func NewScreenshotWorker(p prober.Prober, store storage.MovieStorage, idx index.MovieIndex, queueSize int) *ScreenshotWorker {
	if queueSize <= 0 {
		queueSize = 16
	}
	chain := cor.NewBaseChain("screenshot-chain").
		AddCommand(commands.NewVideoDurationProbe("video-duration-probe", p)).
		AddCommand(commands.NewFrameExtractor("frame-extractor", p)).
		AddCommand(commands.NewScreenshotPersist("screenshot-persist", store, idx))

	return &ScreenshotWorker{
		queue: make(chan ScreenshotRequest, queueSize),
		chain: chain,
		index: idx,
		done:  make(chan struct{}),
	}
}

// Enqueue submits a request to the worker. Returns false when the queue is
// full; the caller logs and moves on, since a missing screenshot is not a
// failure.
func (w *ScreenshotWorker) Enqueue(req ScreenshotRequest) bool {
	select {
	case w.queue <- req:
		return true
	default:
		slog.Warn("screenshot queue full, skipping preview frame", "id", req.MovieId)
		return false
	}
}

// Listen starts the background goroutine draining the queue. The goroutine
// exits when ctx is canceled; Wait blocks until then.
func (w *ScreenshotWorker) Listen(ctx context.Context) {
	slog.Info("screenshot worker listening")

	go func() {
		defer close(w.done)
		tracer := otel.Tracer("screenshot-worker")

		for {
			select {
			case <-ctx.Done():
				return
			case req := <-w.queue:
				spanCtx, span := tracer.Start(ctx, "extract-screenshot")
				span.SetAttributes(attribute.String("movie_id", string(req.MovieId)))

				w.process(spanCtx, req)

				span.SetStatus(codes.Ok, "request handled")
				span.End()
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (w *ScreenshotWorker) Wait() {
	<-w.done
}

// process runs the screenshot chain for one request, rolling the pending
// flag back on failure.
func (w *ScreenshotWorker) process(ctx context.Context, req ScreenshotRequest) {
	if err := w.index.BeginAttachment(ctx, req.MovieId, model.BlobScreenshot); err != nil {
		// Deleted before we got to it, or a screenshot already exists.
		slog.Info("skipping screenshot extraction", "id", req.MovieId, "reason", err)
		return
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, &commands.ScreenshotJob{MovieId: req.MovieId, VideoPath: req.VideoPath})

	w.chain.Execute(chainCtx)
	chainCtx.Close()

	if chainCtx.HasErrors() {
		for name, err := range chainCtx.GetErrors() {
			slog.Warn("screenshot extraction failed", "id", req.MovieId, "command", name, "error", err)
		}
		if err := w.index.AbortAttachment(ctx, req.MovieId, model.BlobScreenshot); err != nil &&
			!model.IsCode(err, model.ErrNotFound) {
			slog.Warn("failed to reset screenshot state", "id", req.MovieId, "error", err)
		}
		return
	}

	slog.Info("screenshot attached", "id", req.MovieId)
}
