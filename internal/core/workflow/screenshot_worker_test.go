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

// Package workflow_test contains tests for the screenshot worker running
// the full chain against a scripted prober, a real file store and the
// in-memory index.
package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/core/prober"
	"github.com/moviekeep/moviekeep/internal/core/storage"
	"github.com/moviekeep/moviekeep/internal/core/workflow"
	"github.com/moviekeep/moviekeep/internal/testutil"
)

type workerFixture struct {
	index   *index.MemoryIndex
	storage *storage.FileStorage
	worker  *workflow.ScreenshotWorker
	cancel  context.CancelFunc
}

func newWorkerFixture(t *testing.T, p prober.Prober) *workerFixture {
	t.Helper()
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	idx := index.NewMemoryIndex(index.PageDefaults{DefaultPageSize: 50, MaxPageSize: 500})

	worker := workflow.NewScreenshotWorker(p, store, idx, 8)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Listen(ctx)
	t.Cleanup(func() {
		cancel()
		worker.Wait()
	})

	return &workerFixture{index: idx, storage: store, worker: worker, cancel: cancel}
}

// addMovieWithVideo creates a record with a committed video blob and
// returns its id and the blob path.
func addMovieWithVideo(t *testing.T, f *workerFixture) (model.MovieId, string) {
	t.Helper()
	ctx := context.Background()

	id, err := f.index.AddMovie(ctx, model.Movie{Title: "Doctor Who"})
	require.NoError(t, err)

	writer, err := f.storage.Writer(ctx, id, model.BlobVideo, "mp4")
	require.NoError(t, err)
	_, err = writer.Write([]byte("fake video payload"))
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	require.NoError(t, f.index.CommitAttachment(ctx, id, model.BlobVideo, "mp4", "video/mp4"))

	return id, f.storage.Path(id, model.BlobVideo, "mp4")
}

func screenshotStatus(t *testing.T, f *workerFixture, id model.MovieId) model.FileInfo {
	t.Helper()
	record, err := f.index.GetMovie(context.Background(), id)
	require.NoError(t, err)
	return record.Screenshot
}

// TestWorkerAttachesScreenshot verifies the happy path: the midpoint frame
// is extracted, sniffed as PNG, stored and flipped to present.
func TestWorkerAttachesScreenshot(t *testing.T) {
	_, span := tracer.Start(context.Background(), "screenshot-happy-path-test")
	defer span.End()

	mock := &prober.MockProber{DurationSeconds: 90, Frame: testutil.TinyPNG()}
	f := newWorkerFixture(t, mock)
	id, path := addMovieWithVideo(t, f)

	require.True(t, f.worker.Enqueue(workflow.ScreenshotRequest{MovieId: id, VideoPath: path}))

	require.Eventually(t, func() bool {
		return screenshotStatus(t, f, id).Present()
	}, 5*time.Second, 10*time.Millisecond)

	info := screenshotStatus(t, f, id)
	assert.Equal(t, "png", info.Extension)
	assert.Equal(t, "image/png", info.MimeType)

	// The frame came from the midpoint.
	assert.Equal(t, []float64{45}, mock.Offsets())

	// The stored blob matches the extracted bytes.
	reader, size, err := f.storage.Reader(context.Background(), id, model.BlobScreenshot, "png")
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	assert.Equal(t, int64(len(testutil.TinyPNG())), size)
}

// TestWorkerProbeFailureLeavesVideoIntact verifies the documented downgrade:
// a probe failure is swallowed, the video stays present and the screenshot
// slot resets to absent so nothing blocks a later retry.
func TestWorkerProbeFailureLeavesVideoIntact(t *testing.T) {
	mock := &prober.MockProber{DurationErr: errors.New("no duration in container")}
	f := newWorkerFixture(t, mock)
	id, path := addMovieWithVideo(t, f)

	require.True(t, f.worker.Enqueue(workflow.ScreenshotRequest{MovieId: id, VideoPath: path}))

	// The slot passes through pending and settles back on absent.
	require.Eventually(t, func() bool {
		return mock.ProbeCount() > 0 && screenshotStatus(t, f, id).Status == model.PresenceAbsent
	}, 5*time.Second, 10*time.Millisecond)

	record, err := f.index.GetMovie(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, record.Video.Present())
	assert.False(t, record.Screenshot.Present())
}

// TestWorkerSkipsDeletedMovie verifies a request for a movie deleted before
// processing is skipped without error.
func TestWorkerSkipsDeletedMovie(t *testing.T) {
	mock := &prober.MockProber{DurationSeconds: 10, Frame: testutil.TinyPNG()}
	f := newWorkerFixture(t, mock)
	id, path := addMovieWithVideo(t, f)

	require.NoError(t, f.index.RemoveMovie(context.Background(), id))
	require.NoError(t, f.storage.Remove(context.Background(), id))

	require.True(t, f.worker.Enqueue(workflow.ScreenshotRequest{MovieId: id, VideoPath: path}))

	// Drain: a follow-up request for a live movie completes, proving the
	// dead one was processed and skipped.
	id2, path2 := addMovieWithVideo(t, f)
	require.True(t, f.worker.Enqueue(workflow.ScreenshotRequest{MovieId: id2, VideoPath: path2}))
	require.Eventually(t, func() bool {
		return screenshotStatus(t, f, id2).Present()
	}, 5*time.Second, 10*time.Millisecond)

	// The deleted movie never reappeared.
	_, err := f.index.GetMovie(context.Background(), id)
	assert.True(t, model.IsCode(err, model.ErrNotFound))
}

// TestWorkerQueueOverflow verifies Enqueue reports a full queue instead of
// blocking the caller.
func TestWorkerQueueOverflow(t *testing.T) {
	// A worker that was never started only accumulates.
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	idx := index.NewMemoryIndex(index.PageDefaults{DefaultPageSize: 50, MaxPageSize: 500})
	worker := workflow.NewScreenshotWorker(&prober.MockProber{}, store, idx, 2)

	assert.True(t, worker.Enqueue(workflow.ScreenshotRequest{MovieId: "a"}))
	assert.True(t, worker.Enqueue(workflow.ScreenshotRequest{MovieId: "b"}))
	assert.False(t, worker.Enqueue(workflow.ScreenshotRequest{MovieId: "c"}))
}
