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

// Package index_test contains unit tests for the shared search evaluator:
// title pattern modes, tag filtering, ordering and pagination.
package index_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moviekeep/moviekeep/internal/core/index"
	"github.com/moviekeep/moviekeep/internal/core/model"
)

var testPages = index.PageDefaults{DefaultPageSize: 50, MaxPageSize: 500}

// searchFixture builds records with ids that encode their creation order so
// result assertions read naturally.
func searchFixture() []model.MovieRecord {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(ord int, title string, tags ...string) model.MovieRecord {
		return model.MovieRecord{
			Id:        fmt.Sprintf("id-%02d", ord),
			Movie:     model.Movie{Title: title, Tags: model.NormalizeTags(tags)},
			CreatedAt: base.Add(time.Duration(ord) * time.Hour),
		}
	}
	return []model.MovieRecord{
		mk(1, "Doctor Who", "sci-fi", "series"),
		mk(2, "The X-Files", "sci-fi", "series", "mystery"),
		mk(3, "E.T. the Extra-Terrestrial", "sci-fi", "family"),
		mk(4, "Das Boot", "war", "drama"),
		mk(5, "Doctor Strange", "fantasy"),
	}
}

func titles(entries []model.MovieListEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

// TestSearchMatchAll verifies the empty query returns everything, ordered by
// creation date ascending by default.
func TestSearchMatchAll(t *testing.T) {
	got := index.EvaluateSearch(searchFixture(), model.SearchQuery{}, testPages)

	assert.Equal(t, []string{
		"Doctor Who",
		"The X-Files",
		"E.T. the Extra-Terrestrial",
		"Das Boot",
		"Doctor Strange",
	}, titles(got))
}

// TestSearchTitleSubstring verifies an unquoted pattern behaves as a
// case-sensitive substring match.
func TestSearchTitleSubstring(t *testing.T) {
	got := index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: "Doctor"}, testPages)
	assert.Equal(t, []string{"Doctor Who", "Doctor Strange"}, titles(got))

	// Case matters.
	got = index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: "doctor"}, testPages)
	assert.Empty(t, got)
}

// TestSearchTitleGlob verifies explicit wildcards match segments in order.
func TestSearchTitleGlob(t *testing.T) {
	got := index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: "D*o"}, testPages)
	assert.Equal(t, []string{"Doctor Who", "Das Boot", "Doctor Strange"}, titles(got))

	// Segments must appear in order.
	got = index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: "Who*Doctor"}, testPages)
	assert.Empty(t, got)
}

// TestSearchTitleQuoted verifies the quoted pattern demands exact equality.
func TestSearchTitleQuoted(t *testing.T) {
	got := index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: `"Doctor Who"`}, testPages)
	assert.Equal(t, []string{"Doctor Who"}, titles(got))

	// Exact means no substring leniency.
	got = index.EvaluateSearch(searchFixture(), model.SearchQuery{Title: `"Doctor"`}, testPages)
	assert.Empty(t, got)
}

// TestSearchTagsAnd verifies the tag filter requires every tag.
func TestSearchTagsAnd(t *testing.T) {
	got := index.EvaluateSearch(searchFixture(), model.SearchQuery{Tags: []string{"sci-fi", "series"}}, testPages)
	assert.Equal(t, []string{"Doctor Who", "The X-Files"}, titles(got))

	// Query tags are normalized before matching.
	got = index.EvaluateSearch(searchFixture(), model.SearchQuery{Tags: []string{"Sci-Fi", "SERIES"}}, testPages)
	assert.Equal(t, []string{"Doctor Who", "The X-Files"}, titles(got))

	got = index.EvaluateSearch(searchFixture(), model.SearchQuery{Tags: []string{"sci-fi", "war"}}, testPages)
	assert.Empty(t, got)
}

// TestSearchSortTitleDescending verifies title ordering both ways.
func TestSearchSortTitleDescending(t *testing.T) {
	asc := index.EvaluateSearch(searchFixture(), model.SearchQuery{
		SortingField: model.SortingFieldTitle,
	}, testPages)
	assert.Equal(t, []string{
		"Das Boot",
		"Doctor Strange",
		"Doctor Who",
		"E.T. the Extra-Terrestrial",
		"The X-Files",
	}, titles(asc))

	desc := index.EvaluateSearch(searchFixture(), model.SearchQuery{
		SortingField: model.SortingFieldTitle,
		SortingOrder: model.SortingOrderDescending,
	}, testPages)
	assert.Equal(t, []string{
		"The X-Files",
		"E.T. the Extra-Terrestrial",
		"Doctor Who",
		"Doctor Strange",
		"Das Boot",
	}, titles(desc))
}

// TestSearchTieBreakById verifies identical sort keys fall back to id
// ascending, keeping the ordering deterministic.
func TestSearchTieBreakById(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.MovieRecord{
		{Id: "id-b", Movie: model.Movie{Title: "Same"}, CreatedAt: when},
		{Id: "id-a", Movie: model.Movie{Title: "Same"}, CreatedAt: when},
	}

	got := index.EvaluateSearch(records, model.SearchQuery{}, testPages)
	assert.Equal(t, "id-a", got[0].Id)
	assert.Equal(t, "id-b", got[1].Id)

	// Descending negates the key comparison but not the tie-break.
	got = index.EvaluateSearch(records, model.SearchQuery{SortingOrder: model.SortingOrderDescending}, testPages)
	assert.Equal(t, "id-a", got[0].Id)
}

// TestSearchPagination verifies offset and size handling, including the
// out-of-range and capped cases.
func TestSearchPagination(t *testing.T) {
	fixture := searchFixture()

	page := index.EvaluateSearch(fixture, model.SearchQuery{StartIndex: 1, NumResults: 2}, testPages)
	assert.Equal(t, []string{"The X-Files", "E.T. the Extra-Terrestrial"}, titles(page))

	// A page crossing the end is truncated, not an error.
	page = index.EvaluateSearch(fixture, model.SearchQuery{StartIndex: 4, NumResults: 10}, testPages)
	assert.Equal(t, []string{"Doctor Strange"}, titles(page))

	// Starting past the end yields an empty page.
	page = index.EvaluateSearch(fixture, model.SearchQuery{StartIndex: 99}, testPages)
	assert.Empty(t, page)

	// Zero size selects the default page size.
	small := index.PageDefaults{DefaultPageSize: 2, MaxPageSize: 3}
	page = index.EvaluateSearch(fixture, model.SearchQuery{}, small)
	assert.Len(t, page, 2)

	// Requests above the maximum are capped.
	page = index.EvaluateSearch(fixture, model.SearchQuery{NumResults: 100}, small)
	assert.Len(t, page, 3)
}

// TestSortTagCounts verifies count-descending order with name tie-break.
func TestSortTagCounts(t *testing.T) {
	tags := []model.TagCount{
		{Tag: "war", Count: 1},
		{Tag: "series", Count: 2},
		{Tag: "drama", Count: 1},
		{Tag: "sci-fi", Count: 3},
	}
	index.SortTagCounts(tags)

	assert.Equal(t, []model.TagCount{
		{Tag: "sci-fi", Count: 3},
		{Tag: "series", Count: 2},
		{Tag: "drama", Count: 1},
		{Tag: "war", Count: 1},
	}, tags)
}
