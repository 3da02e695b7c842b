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

// Package services implements the application facade the HTTP shell talks
// to. MovieService composes the index, the blob store, the prober and the
// screenshot worker into the operations of the collection: metadata CRUD,
// streamed video ingestion, blob retrieval, search and the tag index.
package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/time/rate"

	"github.com/moviekeep/moviekeep/internal/config"
	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/core/storage"
	"github.com/moviekeep/moviekeep/internal/core/workflow"
)

// ProgressFunc receives upload progress callbacks: bytes written so far and
// the total size, or -1 when the total is unknown. Invocations are rate
// limited, except that the first and last reports are always delivered.
type ProgressFunc func(written int64, total int64)

// Blob is a committed blob opened for reading, together with the metadata
// needed to serve it byte-exact.
type Blob struct {
	Reader   io.ReadSeekCloser
	Size     int64
	MimeType string
}

// MovieService is the single entry point for every collection operation.
type MovieService struct {
	index      index.MovieIndex
	storage    storage.MovieStorage
	worker     *workflow.ScreenshotWorker
	bufferSize int
	maxBytes   int64 // 0 means unlimited.
	eventsPerS int
}

// NewMovieService wires the service together using the upload section of
// the configuration.
func NewMovieService(idx index.MovieIndex, store storage.MovieStorage, worker *workflow.ScreenshotWorker, upload config.Upload) *MovieService {
	bufferSizeKB := upload.BufferSizeKB
	if bufferSizeKB <= 0 {
		bufferSizeKB = 256
	}
	eventsPerS := upload.ProgressEventsPerSecond
	if eventsPerS <= 0 {
		eventsPerS = 4
	}
	return &MovieService{
		index:      idx,
		storage:    store,
		worker:     worker,
		bufferSize: bufferSizeKB * 1024,
		maxBytes:   int64(upload.MaxUploadSizeMB) * 1024 * 1024,
		eventsPerS: eventsPerS,
	}
}

// CreateMovie stores new movie metadata and returns its id.
func (s *MovieService) CreateMovie(ctx context.Context, movie model.Movie) (model.MovieId, error) {
	return s.index.AddMovie(ctx, movie)
}

// GetMovie returns the full record for the id.
func (s *MovieService) GetMovie(ctx context.Context, id model.MovieId) (model.MovieRecord, error) {
	return s.index.GetMovie(ctx, id)
}

// DeleteMovie removes the record, its tag contributions and its blobs. The
// index entry goes first: once it is gone no reader can resolve the id, so
// removing the blob directory afterwards is safe even against a concurrent
// attachment, whose commit will fail with NotFound and reclaim its blob.
func (s *MovieService) DeleteMovie(ctx context.Context, id model.MovieId) error {
	if err := s.index.RemoveMovie(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Remove(ctx, id); err != nil {
		// The record is already gone, so the delete succeeded as far as any
		// reader can tell. A stray blob directory is left for reclamation.
		slog.Warn("failed to remove movie blobs", "id", id, "error", err)
	}
	return nil
}

// UpdateTitle replaces the movie's title.
func (s *MovieService) UpdateTitle(ctx context.Context, id model.MovieId, title string) error {
	return s.index.UpdateTitle(ctx, id, title)
}

// UpdateDescription replaces the movie's description.
func (s *MovieService) UpdateDescription(ctx context.Context, id model.MovieId, description string) error {
	return s.index.UpdateDescription(ctx, id, description)
}

// UpdateTags replaces the movie's tag set.
func (s *MovieService) UpdateTags(ctx context.Context, id model.MovieId, tags []string) error {
	return s.index.UpdateTags(ctx, id, tags)
}

// Search evaluates a structured query and returns one page of matches.
func (s *MovieService) Search(ctx context.Context, query model.SearchQuery) ([]model.MovieListEntry, error) {
	return s.index.Search(ctx, query)
}

// ListTags returns the tag-frequency index.
func (s *MovieService) ListTags(ctx context.Context) ([]model.TagCount, error) {
	return s.index.ListTags(ctx)
}

// AttachVideo streams a video upload into the movie's blob slot.
//
// The body is copied through a fixed-size buffer, so memory use is bounded
// regardless of file size. The flow follows the attachment protocol: the
// index flips the slot to pending before any byte lands, the bytes stream
// to a staged file, and only after a durable commit does the slot flip to
// present. Any failure rolls the slot back and reclaims the staged bytes.
// On success a screenshot request is enqueued; its outcome never affects
// the upload result.
//
// filename supplies the stored extension; total is the expected size in
// bytes, or -1 when unknown. progress may be nil. Payloads whose sniffed
// MIME type is not a video container are rejected after streaming.
func (s *MovieService) AttachVideo(ctx context.Context, id model.MovieId, filename string, body io.Reader, total int64, progress ProgressFunc) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return model.NewInvalidInput("uploaded file name %q carries no extension", filename)
	}
	if s.maxBytes > 0 && total > s.maxBytes {
		return model.NewInvalidInput("upload of %d bytes exceeds the limit of %d bytes", total, s.maxBytes)
	}

	if err := s.index.BeginAttachment(ctx, id, model.BlobVideo); err != nil {
		return err
	}

	writer, err := s.storage.Writer(ctx, id, model.BlobVideo, ext)
	if err != nil {
		s.rollbackVideo(ctx, id)
		return model.NewIOError("failed to open video writer", err)
	}

	written, head, err := s.streamBody(ctx, writer, body, total, progress)
	if err != nil {
		_ = writer.Abort()
		s.rollbackVideo(ctx, id)
		return err
	}

	mime := sniffVideoMime(head, ext)
	if !strings.HasPrefix(mime, "video/") {
		_ = writer.Abort()
		s.rollbackVideo(ctx, id)
		return model.NewInvalidInput("upload %q is not a video (detected %s)", filename, mime)
	}

	if err := writer.Commit(); err != nil {
		_ = writer.Abort()
		// A concurrent delete removes the blob directory, which also
		// fails the commit rename. Report that as the deletion it is.
		if _, getErr := s.index.GetMovie(ctx, id); model.IsCode(getErr, model.ErrNotFound) {
			return model.NewNotFound(id)
		}
		s.rollbackVideo(ctx, id)
		return model.NewIOError("failed to commit video", err)
	}

	if err := s.index.CommitAttachment(ctx, id, model.BlobVideo, ext, mime); err != nil {
		if model.IsCode(err, model.ErrNotFound) {
			// The movie was deleted while the upload streamed. Reclaim
			// the committed blob and report the deletion to the caller.
			if rmErr := s.storage.Remove(ctx, id); rmErr != nil {
				slog.Warn("failed to reclaim orphaned video", "id", id, "error", rmErr)
			}
			return err
		}
		return err
	}

	slog.Info("video attached", "id", id, "bytes", written, "mime", mime)

	if s.worker != nil {
		s.worker.Enqueue(workflow.ScreenshotRequest{
			MovieId:   id,
			VideoPath: s.storage.Path(id, model.BlobVideo, ext),
		})
	}
	return nil
}

// VideoBlob opens the movie's video for byte-exact serving.
func (s *MovieService) VideoBlob(ctx context.Context, id model.MovieId) (*Blob, error) {
	record, err := s.index.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Video.Present() {
		return nil, model.NewNoVideo(id)
	}
	return s.openBlob(ctx, id, model.BlobVideo, record.Video)
}

// ScreenshotBlob opens the movie's preview frame for serving.
func (s *MovieService) ScreenshotBlob(ctx context.Context, id model.MovieId) (*Blob, error) {
	record, err := s.index.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Screenshot.Present() {
		return nil, model.NewNoScreenshot(id)
	}
	return s.openBlob(ctx, id, model.BlobScreenshot, record.Screenshot)
}

func (s *MovieService) openBlob(ctx context.Context, id model.MovieId, kind model.BlobKind, info model.FileInfo) (*Blob, error) {
	reader, size, err := s.storage.Reader(ctx, id, kind, info.Extension)
	if err != nil {
		return nil, model.NewIOError("failed to open blob", err)
	}
	return &Blob{Reader: reader, Size: size, MimeType: info.MimeType}, nil
}

// streamBody copies the body into the writer through a fixed buffer,
// retaining the first bytes for type sniffing and reporting rate-limited
// progress. Returns the total bytes written and the retained head.
func (s *MovieService) streamBody(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, []byte, error) {
	limiter := rate.NewLimiter(rate.Limit(s.eventsPerS), 1)
	report := func(written int64, force bool) {
		if progress == nil {
			return
		}
		if force || limiter.Allow() {
			progress(written, total)
		}
	}
	report(0, true)

	buf := make([]byte, s.bufferSize)
	var written int64
	var head []byte

	for {
		if err := ctx.Err(); err != nil {
			return written, head, model.NewIOError("upload canceled", err)
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if len(head) < sniffLen {
				head = append(head, buf[:min(n, sniffLen-len(head))]...)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, head, model.NewIOError("failed to write video bytes", err)
			}
			written += int64(n)
			// The declared total is not trusted; the limit holds against
			// the bytes actually received.
			if s.maxBytes > 0 && written > s.maxBytes {
				return written, head, model.NewInvalidInput("upload exceeds the limit of %d bytes", s.maxBytes)
			}
			report(written, false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, head, model.NewIOError("failed to read upload body", readErr)
		}
	}

	report(written, true)
	return written, head, nil
}

// rollbackVideo resets the record's pending video slot after a failed
// upload. A NotFound just means the record was deleted meanwhile.
func (s *MovieService) rollbackVideo(ctx context.Context, id model.MovieId) {
	if err := s.index.AbortAttachment(ctx, id, model.BlobVideo); err != nil &&
		!model.IsCode(err, model.ErrNotFound) {
		slog.Warn("failed to reset video state", "id", id, "error", err)
	}
}

// sniffLen is how many leading bytes are retained for file-type sniffing.
const sniffLen = 262

// sniffVideoMime derives the stored MIME type from the payload's magic
// bytes, falling back to an extension-based guess when the container is not
// recognized. AttachVideo rejects anything this does not classify under
// video/.
func sniffVideoMime(head []byte, ext string) string {
	if kind, err := filetype.Match(head); err == nil && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	if t := filetype.GetType(ext); t.MIME.Value != "" {
		return t.MIME.Value
	}
	return "application/octet-stream"
}
