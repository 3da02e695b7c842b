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
// search evaluator shared by both index backends: title matching, tag
// filtering, deterministic ordering and pagination over a record snapshot.
package index

import (
	"sort"
	"strings"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// titleMatcher is the compiled form of a query's title pattern.
type titleMatcher struct {
	exact    bool
	pattern  string   // Exact title when exact is true.
	segments []string // Glob segments otherwise, matched in order.
}

// compileTitleMatcher turns the query's title pattern into a matcher.
//
// A pattern wrapped in double quotes demands exact case-sensitive equality
// with the inner text. Any other pattern is treated as a glob with an
// implicit wildcard on both ends: the text between explicit `*` characters
// must appear in the title in order, so a plain word behaves as a substring
// match. A nil matcher means "match everything".
func compileTitleMatcher(pattern string) *titleMatcher {
	if pattern == "" {
		return nil
	}
	if len(pattern) >= 2 && strings.HasPrefix(pattern, `"`) && strings.HasSuffix(pattern, `"`) {
		return &titleMatcher{exact: true, pattern: pattern[1 : len(pattern)-1]}
	}
	segments := make([]string, 0)
	for _, seg := range strings.Split(pattern, "*") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return &titleMatcher{segments: segments}
}

// matches reports whether the title satisfies the pattern.
func (m *titleMatcher) matches(title string) bool {
	if m == nil {
		return true
	}
	if m.exact {
		return title == m.pattern
	}
	rest := title
	for _, seg := range m.segments {
		i := strings.Index(rest, seg)
		if i < 0 {
			return false
		}
		rest = rest[i+len(seg):]
	}
	return true
}

// matchesTags reports whether the record carries every queried tag.
// The query tags must already be normalized.
func matchesTags(record *model.MovieRecord, tags []string) bool {
	for _, tag := range tags {
		if !record.HasTag(tag) {
			return false
		}
	}
	return true
}

// less orders two records per the query's sorting parameters, with the id
// as the final ascending tie-breaker so identical state always produces an
// identical ordering.
func less(a, b *model.MovieRecord, field model.SortingField, order model.SortingOrder) bool {
	var cmp int
	switch field {
	case model.SortingFieldTitle:
		cmp = strings.Compare(a.Movie.Title, b.Movie.Title)
	default:
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			cmp = -1
		case a.CreatedAt.After(b.CreatedAt):
			cmp = 1
		}
	}
	if order == model.SortingOrderDescending {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	return a.Id < b.Id
}

// EvaluateSearch filters, sorts and paginates a snapshot of movie records
// per the query. The snapshot is not modified. Both index backends feed
// their record sets through this single evaluator so the matching and
// ordering semantics cannot drift apart.
func EvaluateSearch(records []model.MovieRecord, query model.SearchQuery, pages PageDefaults) []model.MovieListEntry {
	query = query.Normalized()
	matcher := compileTitleMatcher(query.Title)

	matched := make([]*model.MovieRecord, 0, len(records))
	for i := range records {
		record := &records[i]
		if !matcher.matches(record.Movie.Title) {
			continue
		}
		if !matchesTags(record, query.Tags) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool {
		return less(matched[i], matched[j], query.SortingField, query.SortingOrder)
	})

	start := query.StartIndex
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []model.MovieListEntry{}
	}
	end := start + pages.Clamp(query.NumResults)
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]model.MovieListEntry, 0, end-start)
	for _, record := range matched[start:end] {
		out = append(out, model.MovieListEntry{Id: record.Id, Title: record.Movie.Title})
	}
	return out
}

// SortTagCounts orders a tag-frequency listing by count descending with
// ties broken by tag name ascending, in place.
func SortTagCounts(tags []model.TagCount) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
}
