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
// This file contains the persistent movie record model: the metadata a user
// submits for a movie, the record the index keeps for it, and the file
// information tracked for the two blobs (video and screenshot) that may be
// attached to a record over its lifetime.
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MovieId is the opaque unique identifier of a movie record. It doubles as
// the storage key for the record's blobs and is never reused.
type MovieId = string

// GenerateMovieId allocates a fresh random MovieId.
func GenerateMovieId() MovieId {
	return uuid.NewString()
}

// Presence is the tri-state life-cycle marker of a blob belonging to a movie
// record. A blob starts out absent, becomes pending while bytes are being
// written (or a probe is running), and flips to present only after the blob
// is durable on disk.
type Presence string

const (
	PresenceAbsent  Presence = "absent"
	PresencePending Presence = "pending"
	PresencePresent Presence = "present"
)

// BlobKind distinguishes the two payloads a movie record can own.
type BlobKind string

const (
	BlobVideo      BlobKind = "video"
	BlobScreenshot BlobKind = "screenshot"
)

// FileInfo describes one blob of a movie record. Extension and MimeType are
// only meaningful while Status is PresencePresent; both are cleared whenever
// the blob is reset to absent.
type FileInfo struct {
	Status    Presence `json:"status"`
	Extension string   `json:"extension,omitempty"` // File extension without the leading dot, e.g. "mp4".
	MimeType  string   `json:"mime_type,omitempty"` // MIME type for byte-exact retrieval, e.g. "video/mp4".
}

// Present reports whether the blob has been durably written.
func (f FileInfo) Present() bool { return f.Status == PresencePresent }

// Movie is the user-submitted metadata of a single collection entry.
type Movie struct {
	// The title of the movie. Must not be empty for any persisted record.
	Title string `json:"title"`

	// An optional free-form description.
	Description string `json:"description"`

	// Tags associated with the movie. Stored lower-cased, duplicate-free
	// and sorted ascending, which is also the canonical display order.
	Tags []string `json:"tags"`
}

// MovieRecord is the full persisted state of a movie: the submitted metadata
// plus the immutable creation timestamp and the state of both blobs.
type MovieRecord struct {
	Id         MovieId   `json:"id"`
	Movie      Movie     `json:"movie"`
	CreatedAt  time.Time `json:"created_at"`
	Video      FileInfo  `json:"video"`
	Screenshot FileInfo  `json:"screenshot"`
}

// BlobInfo returns the FileInfo for the given blob kind.
func (r *MovieRecord) BlobInfo(kind BlobKind) FileInfo {
	if kind == BlobScreenshot {
		return r.Screenshot
	}
	return r.Video
}

// SetBlobInfo replaces the FileInfo for the given blob kind.
func (r *MovieRecord) SetBlobInfo(kind BlobKind, info FileInfo) {
	if kind == BlobScreenshot {
		r.Screenshot = info
	} else {
		r.Video = info
	}
}

// HasTag reports whether the record carries the given normalized tag. The
// record's tag list is kept sorted, so a binary search suffices.
func (r *MovieRecord) HasTag(tag string) bool {
	tags := r.Movie.Tags
	i := sort.SearchStrings(tags, tag)
	return i < len(tags) && tags[i] == tag
}

// MovieListEntry is the lightweight search result projection. Full detail
// requires a separate get on the id.
type MovieListEntry struct {
	Id    MovieId `json:"id"`
	Title string  `json:"title"`
}

// TagCount is a single entry of the tag-frequency index: a tag and the
// number of live records carrying it. Entries with a count of zero are never
// reported.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NormalizeTags converts a submitted tag list into its canonical form:
// lower-cased, trimmed, duplicate-free and sorted ascending. The input slice
// is not modified.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
