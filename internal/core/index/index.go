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

// Package index manages the movie metadata table and the derived
// tag-frequency index. It is the single owner of all shared mutable record
// state: every mutation happens atomically with respect to both the record
// table and the tag counts, so no caller ever observes an intermediate
// state. Two implementations exist, an in-memory index and a SQLite-backed
// one, selected by configuration.
package index

import (
	"context"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// PageDefaults carries the configured pagination bounds into the search
// evaluator.
type PageDefaults struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Clamp resolves a requested page size against the defaults.
func (p PageDefaults) Clamp(requested int) int {
	size := requested
	if size <= 0 {
		size = p.DefaultPageSize
	}
	if p.MaxPageSize > 0 && size > p.MaxPageSize {
		size = p.MaxPageSize
	}
	return size
}

// MovieIndex is the movie metadata table plus the tag-frequency index.
//
// The attachment life-cycle for either blob kind is a three-step protocol:
// Begin flips the presence flag from absent to pending (failing with
// AlreadyPresent when the blob exists or is being written), Commit flips
// pending to present once the blob is durable, and Abort rolls pending back
// to absent. Commit fails with NotFound when the record was deleted while
// the blob was being written; the caller then discards the orphaned blob.
type MovieIndex interface {
	// AddMovie validates and persists new movie metadata, allocating a
	// fresh id. Fails with InvalidInput when the title is empty.
	AddMovie(ctx context.Context, movie model.Movie) (model.MovieId, error)

	// GetMovie returns the full record for the id. Fails with NotFound.
	GetMovie(ctx context.Context, id model.MovieId) (model.MovieRecord, error)

	// RemoveMovie deletes the record and its tag contributions atomically.
	// Fails with NotFound.
	RemoveMovie(ctx context.Context, id model.MovieId) error

	// ListMovies returns a consistent snapshot of every record.
	ListMovies(ctx context.Context) ([]model.MovieRecord, error)

	// UpdateTitle replaces the record's title. Fails with InvalidInput on
	// an empty title and NotFound on an unknown id.
	UpdateTitle(ctx context.Context, id model.MovieId, title string) error

	// UpdateDescription replaces the record's description.
	UpdateDescription(ctx context.Context, id model.MovieId, description string) error

	// UpdateTags replaces the record's tag set, adjusting the tag index
	// atomically.
	UpdateTags(ctx context.Context, id model.MovieId, tags []string) error

	// BeginAttachment starts the attachment protocol for a blob.
	BeginAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind) error

	// CommitAttachment completes the attachment protocol, recording the
	// blob's extension and MIME type.
	CommitAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string, mime string) error

	// AbortAttachment rolls a pending attachment back to absent.
	AbortAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind) error

	// Search evaluates a structured query and returns one page of matches.
	Search(ctx context.Context, query model.SearchQuery) ([]model.MovieListEntry, error)

	// ListTags returns the tag-frequency index sorted by count descending,
	// ties by tag name ascending.
	ListTags(ctx context.Context) ([]model.TagCount, error)

	// Close releases any resources held by the index.
	Close() error
}
