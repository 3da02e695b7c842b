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

// Package storage provides durable placement for movie blobs. Every movie id
// owns one directory that holds its video and screenshot files. Writes are
// staged to a temporary file and only become visible once committed, so a
// partially written blob is never observable through a Reader.
package storage

import (
	"context"
	"io"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// BlobWriter is a staged write of one blob. Bytes stream to a temporary
// location; Commit makes them durable and visible atomically, Abort discards
// them. Exactly one of Commit or Abort must be called.
type BlobWriter interface {
	io.Writer

	// Commit flushes the staged bytes to disk and atomically moves them
	// into their final location.
	Commit() error

	// Abort discards the staged bytes. Safe to call after a failed Commit.
	Abort() error
}

// MovieStorage stores and retrieves the blobs belonging to movie records.
type MovieStorage interface {
	// Writer opens a staged write for the given blob of the given movie.
	Writer(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string) (BlobWriter, error)

	// Reader opens the committed blob for reading and reports its size.
	Reader(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string) (io.ReadSeekCloser, int64, error)

	// Remove deletes every blob of the given movie, committed or staged.
	// Removing a movie that owns no blobs is not an error.
	Remove(ctx context.Context, id model.MovieId) error

	// Path reports the final on-disk location of a blob. Used to hand a
	// committed video to the external prober.
	Path(id model.MovieId, kind model.BlobKind, ext string) string
}
