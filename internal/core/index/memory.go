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

// Package index manages the movie metadata table. This file implements the
// in-memory backend: a map of records plus a tag counter map, both guarded
// by one RWMutex. The lock covers only in-memory updates and is never held
// across blob or subprocess I/O, so long uploads do not block reads.
package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// MemoryIndex implements MovieIndex with process-local state. Contents are
// lost on restart; the sqlite backend persists across restarts.
type MemoryIndex struct {
	mu        sync.RWMutex
	movies    map[model.MovieId]model.MovieRecord
	tagCounts map[string]int
	pages     PageDefaults
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(pages PageDefaults) *MemoryIndex {
	return &MemoryIndex{
		movies:    make(map[model.MovieId]model.MovieRecord),
		tagCounts: make(map[string]int),
		pages:     pages,
	}
}

// AddMovie validates and persists new movie metadata.
func (x *MemoryIndex) AddMovie(_ context.Context, movie model.Movie) (model.MovieId, error) {
	if movie.Title == "" {
		return "", model.NewInvalidInput("movie title must not be empty")
	}
	movie.Tags = model.NormalizeTags(movie.Tags)

	id := model.GenerateMovieId()
	record := model.MovieRecord{
		Id:         id,
		Movie:      movie,
		CreatedAt:  time.Now().UTC(),
		Video:      model.FileInfo{Status: model.PresenceAbsent},
		Screenshot: model.FileInfo{Status: model.PresenceAbsent},
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.movies[id] = record
	for _, tag := range movie.Tags {
		x.tagCounts[tag]++
	}

	slog.Info("added movie", "id", id, "title", movie.Title)
	return id, nil
}

// GetMovie returns the record for the id.
func (x *MemoryIndex) GetMovie(_ context.Context, id model.MovieId) (model.MovieRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	record, ok := x.movies[id]
	if !ok {
		return model.MovieRecord{}, model.NewNotFound(id)
	}
	return record, nil
}

// RemoveMovie deletes the record and its tag contributions atomically.
func (x *MemoryIndex) RemoveMovie(_ context.Context, id model.MovieId) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	delete(x.movies, id)
	x.dropTagsLocked(record.Movie.Tags)

	slog.Info("removed movie", "id", id)
	return nil
}

// ListMovies returns a consistent snapshot of every record.
func (x *MemoryIndex) ListMovies(_ context.Context) ([]model.MovieRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snapshotLocked(), nil
}

// UpdateTitle replaces the record's title.
func (x *MemoryIndex) UpdateTitle(_ context.Context, id model.MovieId, title string) error {
	if title == "" {
		return model.NewInvalidInput("movie title must not be empty")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	record.Movie.Title = title
	x.movies[id] = record
	return nil
}

// UpdateDescription replaces the record's description.
func (x *MemoryIndex) UpdateDescription(_ context.Context, id model.MovieId, description string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	record.Movie.Description = description
	x.movies[id] = record
	return nil
}

// UpdateTags replaces the record's tag set, adjusting the tag index in the
// same critical section.
func (x *MemoryIndex) UpdateTags(_ context.Context, id model.MovieId, tags []string) error {
	normalized := model.NormalizeTags(tags)

	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	x.dropTagsLocked(record.Movie.Tags)
	for _, tag := range normalized {
		x.tagCounts[tag]++
	}
	record.Movie.Tags = normalized
	x.movies[id] = record
	return nil
}

// BeginAttachment flips a blob from absent to pending.
func (x *MemoryIndex) BeginAttachment(_ context.Context, id model.MovieId, kind model.BlobKind) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	info := record.BlobInfo(kind)
	if info.Status != model.PresenceAbsent {
		return model.NewAlreadyPresent(id, kind)
	}
	record.SetBlobInfo(kind, model.FileInfo{Status: model.PresencePending})
	x.movies[id] = record
	return nil
}

// CommitAttachment flips a pending blob to present. The caller guarantees
// the blob is durable before this is called.
func (x *MemoryIndex) CommitAttachment(_ context.Context, id model.MovieId, kind model.BlobKind, ext string, mime string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		// The record vanished while the blob was being written. The
		// caller reclaims the blob.
		return model.NewNotFound(id)
	}
	record.SetBlobInfo(kind, model.FileInfo{Status: model.PresencePresent, Extension: ext, MimeType: mime})
	x.movies[id] = record
	return nil
}

// AbortAttachment rolls a pending blob back to absent.
func (x *MemoryIndex) AbortAttachment(_ context.Context, id model.MovieId, kind model.BlobKind) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	record, ok := x.movies[id]
	if !ok {
		return model.NewNotFound(id)
	}
	record.SetBlobInfo(kind, model.FileInfo{Status: model.PresenceAbsent})
	x.movies[id] = record
	return nil
}

// Search evaluates the query against a snapshot of the record table.
func (x *MemoryIndex) Search(_ context.Context, query model.SearchQuery) ([]model.MovieListEntry, error) {
	x.mu.RLock()
	snapshot := x.snapshotLocked()
	x.mu.RUnlock()
	return EvaluateSearch(snapshot, query, x.pages), nil
}

// ListTags returns the tag-frequency index in its canonical order.
func (x *MemoryIndex) ListTags(_ context.Context) ([]model.TagCount, error) {
	x.mu.RLock()
	out := make([]model.TagCount, 0, len(x.tagCounts))
	for tag, count := range x.tagCounts {
		out = append(out, model.TagCount{Tag: tag, Count: count})
	}
	x.mu.RUnlock()

	SortTagCounts(out)
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (x *MemoryIndex) Close() error { return nil }

// snapshotLocked copies the record table. Caller holds at least a read lock.
func (x *MemoryIndex) snapshotLocked() []model.MovieRecord {
	out := make([]model.MovieRecord, 0, len(x.movies))
	for _, record := range x.movies {
		out = append(out, record)
	}
	return out
}

// dropTagsLocked decrements every tag's count, deleting entries that reach
// zero so no entry with count <= 0 ever exists. Caller holds the write lock.
func (x *MemoryIndex) dropTagsLocked(tags []string) {
	for _, tag := range tags {
		if x.tagCounts[tag] <= 1 {
			delete(x.tagCounts, tag)
		} else {
			x.tagCounts[tag]--
		}
	}
}
