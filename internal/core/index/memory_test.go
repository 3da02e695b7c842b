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

// Package index_test contains unit tests for the in-memory index backend:
// record CRUD, the attachment protocol, tag-count maintenance and the
// metadata update operations.
package index_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/testutil"
)

func newTestIndex() *index.MemoryIndex {
	return index.NewMemoryIndex(testPages)
}

// TestAddAndGetMovie verifies the create/get roundtrip and initial state.
func TestAddAndGetMovie(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	id, err := idx.AddMovie(ctx, model.Movie{
		Title:       "Das Boot",
		Description: "A German U-boat crew on patrol.",
		Tags:        []string{"War", "Drama", "war"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := idx.GetMovie(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Das Boot", record.Movie.Title)
	assert.Equal(t, []string{"drama", "war"}, record.Movie.Tags)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, model.PresenceAbsent, record.Video.Status)
	assert.Equal(t, model.PresenceAbsent, record.Screenshot.Status)
}

// TestAddMovieEmptyTitle verifies validation happens before any mutation.
func TestAddMovieEmptyTitle(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	_, err := idx.AddMovie(ctx, model.Movie{Title: ""})
	assert.True(t, model.IsCode(err, model.ErrInvalidInput))

	records, err := idx.ListMovies(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	tags, err := idx.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

// TestGetMovieNotFound verifies unknown ids classify as NotFound.
func TestGetMovieNotFound(t *testing.T) {
	idx := newTestIndex()

	_, err := idx.GetMovie(context.Background(), "no-such-id")
	assert.True(t, model.IsCode(err, model.ErrNotFound))
}

// TestRemoveMovie verifies deletion drops the record and its tag counts.
func TestRemoveMovie(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	id, err := idx.AddMovie(ctx, model.Movie{Title: "Doctor Who", Tags: []string{"sci-fi", "series"}})
	require.NoError(t, err)

	require.NoError(t, idx.RemoveMovie(ctx, id))

	_, err = idx.GetMovie(ctx, id)
	assert.True(t, model.IsCode(err, model.ErrNotFound))

	tags, err := idx.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	// Deleting twice is NotFound, not a crash.
	err = idx.RemoveMovie(ctx, id)
	assert.True(t, model.IsCode(err, model.ErrNotFound))
}

// TestTagCounts verifies the tag-frequency index tracks live records only.
func TestTagCounts(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	ids := make([]model.MovieId, 0)
	for _, movie := range testutil.SampleMovies() {
		id, err := idx.AddMovie(ctx, movie)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	tags, err := idx.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{
		{Tag: "sci-fi", Count: 3},
		{Tag: "series", Count: 2},
		{Tag: "drama", Count: 1},
		{Tag: "family", Count: 1},
		{Tag: "fantasy", Count: 1},
		{Tag: "mystery", Count: 1},
		{Tag: "war", Count: 1},
	}, tags)

	// Removing the X-Files drops mystery entirely and decrements the rest.
	require.NoError(t, idx.RemoveMovie(ctx, ids[1]))
	tags, err = idx.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{
		{Tag: "sci-fi", Count: 2},
		{Tag: "drama", Count: 1},
		{Tag: "family", Count: 1},
		{Tag: "fantasy", Count: 1},
		{Tag: "series", Count: 1},
		{Tag: "war", Count: 1},
	}, tags)
}

// TestUpdateOperations verifies the metadata mutation operations.
func TestUpdateOperations(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	id, err := idx.AddMovie(ctx, model.Movie{Title: "Working Title", Tags: []string{"old"}})
	require.NoError(t, err)

	require.NoError(t, idx.UpdateTitle(ctx, id, "Final Title"))
	require.NoError(t, idx.UpdateDescription(ctx, id, "Now with a description."))
	require.NoError(t, idx.UpdateTags(ctx, id, []string{"New", "Tags"}))

	record, err := idx.GetMovie(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Final Title", record.Movie.Title)
	assert.Equal(t, "Now with a description.", record.Movie.Description)
	assert.Equal(t, []string{"new", "tags"}, record.Movie.Tags)

	// The tag index reflects the replacement, not the union.
	tags, err := idx.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{
		{Tag: "new", Count: 1},
		{Tag: "tags", Count: 1},
	}, tags)

	// Validation and NotFound still apply.
	err = idx.UpdateTitle(ctx, id, "")
	assert.True(t, model.IsCode(err, model.ErrInvalidInput))
	err = idx.UpdateTitle(ctx, "no-such-id", "X")
	assert.True(t, model.IsCode(err, model.ErrNotFound))
	err = idx.UpdateTags(ctx, "no-such-id", nil)
	assert.True(t, model.IsCode(err, model.ErrNotFound))
}

// TestAttachmentProtocol verifies the absent-pending-present life-cycle and
// its failure modes.
func TestAttachmentProtocol(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	id, err := idx.AddMovie(ctx, model.Movie{Title: "Doctor Who"})
	require.NoError(t, err)

	require.NoError(t, idx.BeginAttachment(ctx, id, model.BlobVideo))
	record, _ := idx.GetMovie(ctx, id)
	assert.Equal(t, model.PresencePending, record.Video.Status)

	// A second begin on the same slot conflicts; the other slot is free.
	err = idx.BeginAttachment(ctx, id, model.BlobVideo)
	assert.True(t, model.IsCode(err, model.ErrAlreadyPresent))
	require.NoError(t, idx.BeginAttachment(ctx, id, model.BlobScreenshot))

	require.NoError(t, idx.CommitAttachment(ctx, id, model.BlobVideo, "mp4", "video/mp4"))
	record, _ = idx.GetMovie(ctx, id)
	assert.True(t, record.Video.Present())
	assert.Equal(t, "mp4", record.Video.Extension)
	assert.Equal(t, "video/mp4", record.Video.MimeType)

	// Abort resets the screenshot slot for a later retry.
	require.NoError(t, idx.AbortAttachment(ctx, id, model.BlobScreenshot))
	record, _ = idx.GetMovie(ctx, id)
	assert.Equal(t, model.PresenceAbsent, record.Screenshot.Status)
	require.NoError(t, idx.BeginAttachment(ctx, id, model.BlobScreenshot))

	// A present video cannot be begun again.
	err = idx.BeginAttachment(ctx, id, model.BlobVideo)
	assert.True(t, model.IsCode(err, model.ErrAlreadyPresent))
}

// TestCommitAfterDelete verifies the commit of an attachment whose record
// vanished reports NotFound so the caller reclaims the blob.
func TestCommitAfterDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	id, err := idx.AddMovie(ctx, model.Movie{Title: "Doctor Who"})
	require.NoError(t, err)
	require.NoError(t, idx.BeginAttachment(ctx, id, model.BlobVideo))

	require.NoError(t, idx.RemoveMovie(ctx, id))

	err = idx.CommitAttachment(ctx, id, model.BlobVideo, "mp4", "video/mp4")
	assert.True(t, model.IsCode(err, model.ErrNotFound))
}

// TestConcurrentAdds verifies ids stay unique and counts consistent under
// parallel writers.
func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	const writers = 16
	var wg sync.WaitGroup
	ids := make(chan model.MovieId, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := idx.AddMovie(ctx, model.Movie{Title: "Concurrent", Tags: []string{"stress"}})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[model.MovieId]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	records, err := idx.ListMovies(ctx)
	require.NoError(t, err)
	assert.Len(t, records, writers)

	tags, err := idx.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, model.TagCount{Tag: "stress", Count: writers}, tags[0])
}

// TestMemoryIndexSearch verifies the backend feeds the shared evaluator.
func TestMemoryIndexSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	for _, movie := range testutil.SampleMovies() {
		_, err := idx.AddMovie(ctx, movie)
		require.NoError(t, err)
	}

	got, err := idx.Search(ctx, model.SearchQuery{
		SortingField: model.SortingFieldTitle,
		Tags:         []string{"sci-fi", "series"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Doctor Who", "The X-Files"}, titles(got))
}
