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

// Package storage provides durable placement for movie blobs. This file
// implements MovieStorage on the local filesystem. Layout:
//
//	<root>/<movie-id>/movie.<ext>       committed video
//	<root>/<movie-id>/screenshot.<ext>  committed preview frame
//	<root>/<movie-id>/*.partial         staged writes, invisible to readers
//
// A staged write is committed by fsync plus rename within the same
// directory, which is atomic on POSIX filesystems.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// Base file names for the two blob kinds.
const (
	videoFileBase      = "movie"
	screenshotFileBase = "screenshot"
	partialSuffix      = ".partial"
)

// FileStorage implements MovieStorage on a local directory tree.
type FileStorage struct {
	rootDir string
}

// NewFileStorage creates the storage root if necessary and returns a
// FileStorage rooted there.
func NewFileStorage(rootDir string) (*FileStorage, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", rootDir, err)
	}
	return &FileStorage{rootDir: rootDir}, nil
}

// movieDir returns the directory holding all blobs of the given movie.
func (s *FileStorage) movieDir(id model.MovieId) string {
	return filepath.Join(s.rootDir, string(id))
}

// fileBase maps a blob kind to its on-disk base name.
func fileBase(kind model.BlobKind) string {
	if kind == model.BlobScreenshot {
		return screenshotFileBase
	}
	return videoFileBase
}

// Path reports the final on-disk location of a blob.
func (s *FileStorage) Path(id model.MovieId, kind model.BlobKind, ext string) string {
	return filepath.Join(s.movieDir(id), fmt.Sprintf("%s.%s", fileBase(kind), ext))
}

// Writer opens a staged write for the given blob. The temporary file lives
// in the movie's own directory so the final rename never crosses a
// filesystem boundary.
func (s *FileStorage) Writer(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string) (BlobWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.movieDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create movie directory %s: %w", dir, err)
	}

	finalPath := s.Path(id, kind, ext)
	tempPath := finalPath + partialSuffix
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file %s: %w", tempPath, err)
	}
	return &fileBlobWriter{file: file, tempPath: tempPath, finalPath: finalPath}, nil
}

// Reader opens a committed blob and reports its size for Content-Length.
func (s *FileStorage) Reader(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string) (io.ReadSeekCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	path := s.Path(id, kind, ext)
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open blob %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("failed to stat blob %s: %w", path, err)
	}
	return file, info.Size(), nil
}

// Remove deletes the movie's blob directory with everything in it,
// committed blobs and staged partials alike.
func (s *FileStorage) Remove(_ context.Context, id model.MovieId) error {
	dir := s.movieDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove movie directory %s: %w", dir, err)
	}
	slog.Info("removed movie blob directory", "id", id)
	return nil
}

// fileBlobWriter stages bytes in a .partial file and promotes it on Commit.
type fileBlobWriter struct {
	file      *os.File
	tempPath  string
	finalPath string
	closed    bool
}

func (w *fileBlobWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Commit flushes the staged file and renames it into place. On any failure
// the staged file is removed so no partial blob survives.
func (w *fileBlobWriter) Commit() error {
	if err := w.file.Sync(); err != nil {
		_ = w.discard()
		return fmt.Errorf("failed to sync staged blob %s: %w", w.tempPath, err)
	}
	if err := w.file.Close(); err != nil {
		w.closed = true
		_ = os.Remove(w.tempPath)
		return fmt.Errorf("failed to close staged blob %s: %w", w.tempPath, err)
	}
	w.closed = true
	if err := os.Rename(w.tempPath, w.finalPath); err != nil {
		_ = os.Remove(w.tempPath)
		return fmt.Errorf("failed to commit blob %s: %w", w.finalPath, err)
	}
	return nil
}

// Abort discards the staged file.
func (w *fileBlobWriter) Abort() error {
	return w.discard()
}

func (w *fileBlobWriter) discard() error {
	if !w.closed {
		w.closed = true
		_ = w.file.Close()
	}
	if err := os.Remove(w.tempPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
