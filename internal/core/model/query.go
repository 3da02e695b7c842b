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

// Package model defines the core data structures for the application.
// This file holds the search query structures shared by the index
// implementations and the HTTP layer.
package model

// SortingField selects the record attribute a search is ordered by.
type SortingField string

const (
	SortingFieldTitle SortingField = "title"
	SortingFieldDate  SortingField = "date"
)

// SortingOrder selects the direction of a search ordering.
type SortingOrder string

const (
	SortingOrderAscending  SortingOrder = "ascending"
	SortingOrderDescending SortingOrder = "descending"
)

// SearchQuery describes a single structured search over the movie index.
//
// The title pattern supports two modes: a value wrapped in double quotes
// ("The Matrix") requires exact, case-sensitive equality, while an unquoted
// value is glob-matched with an implicit leading and trailing wildcard, so
// plain text behaves as a case-sensitive substring match and explicit `*`
// characters are honored.
//
// Tags filter with AND semantics against the record's normalized tag set; an
// empty list matches every record. StartIndex and NumResults paginate the
// filtered, sorted result set; a StartIndex beyond the end yields an empty
// page, never an error.
type SearchQuery struct {
	SortingField SortingField `json:"sorting_field" form:"sorting_field"`
	SortingOrder SortingOrder `json:"sorting_order" form:"sorting_order"`

	// Optional title pattern. Empty matches all titles.
	Title string `json:"title,omitempty" form:"title"`

	// Optional tag filter, AND semantics. Normalized before matching.
	Tags []string `json:"tags,omitempty" form:"tags"`

	// Zero-based offset into the filtered, sorted result set.
	StartIndex int `json:"start_index,omitempty" form:"start_index"`

	// Maximum number of entries to return. Zero selects the configured
	// default page size; values above the configured maximum are capped.
	NumResults int `json:"num_results,omitempty" form:"num_results"`
}

// Normalized returns a copy of the query with defaults applied to the
// sorting parameters and the tag filter converted to canonical form.
func (q SearchQuery) Normalized() SearchQuery {
	if q.SortingField == "" {
		q.SortingField = SortingFieldDate
	}
	if q.SortingOrder == "" {
		q.SortingOrder = SortingOrderAscending
	}
	q.Tags = NormalizeTags(q.Tags)
	return q
}
