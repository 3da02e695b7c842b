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
// SQLite backend on GORM. Records live in a movies table with one row per
// movie; tags live in a movie_tags table with one row per (movie, tag) pair
// so the tag-frequency index is a GROUP BY away. Every mutation that touches
// both tables runs in a transaction.
package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// movieRow is the GORM model for one movie record.
type movieRow struct {
	Id                  string    `gorm:"column:id;primaryKey"`
	Title               string    `gorm:"column:title;index"`
	Description         string    `gorm:"column:description"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	VideoStatus         string    `gorm:"column:video_status"`
	VideoExtension      string    `gorm:"column:video_extension"`
	VideoMimeType       string    `gorm:"column:video_mime_type"`
	ScreenshotStatus    string    `gorm:"column:screenshot_status"`
	ScreenshotExtension string    `gorm:"column:screenshot_extension"`
	ScreenshotMimeType  string    `gorm:"column:screenshot_mime_type"`
}

func (movieRow) TableName() string { return "movies" }

// movieTagRow is the GORM model for one (movie, tag) association.
type movieTagRow struct {
	MovieId string `gorm:"column:movie_id;primaryKey;index"`
	Tag     string `gorm:"column:tag;primaryKey;index"`
}

func (movieTagRow) TableName() string { return "movie_tags" }

// SqliteIndex implements MovieIndex on a SQLite database file, so the
// collection survives restarts. Blob bytes stay on the filesystem; only
// metadata and presence flags are stored here.
type SqliteIndex struct {
	db    *gorm.DB
	pages PageDefaults
}

// NewSqliteIndex opens (or creates) the database file and migrates the
// schema.
func NewSqliteIndex(path string, pages PageDefaults) (*SqliteIndex, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, model.NewIOError("failed to open movie database", err)
	}
	if err := db.AutoMigrate(&movieRow{}, &movieTagRow{}); err != nil {
		return nil, model.NewIOError("failed to migrate movie database", err)
	}
	slog.Info("opened movie database", "path", path)
	return &SqliteIndex{db: db, pages: pages}, nil
}

// AddMovie validates and persists new movie metadata.
func (x *SqliteIndex) AddMovie(ctx context.Context, movie model.Movie) (model.MovieId, error) {
	if movie.Title == "" {
		return "", model.NewInvalidInput("movie title must not be empty")
	}
	tags := model.NormalizeTags(movie.Tags)

	id := model.GenerateMovieId()
	row := movieRow{
		Id:               id,
		Title:            movie.Title,
		Description:      movie.Description,
		CreatedAt:        time.Now().UTC(),
		VideoStatus:      string(model.PresenceAbsent),
		ScreenshotStatus: string(model.PresenceAbsent),
	}

	err := x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return insertTags(tx, id, tags)
	})
	if err != nil {
		return "", model.NewIOError("failed to store movie", err)
	}

	slog.Info("added movie", "id", id, "title", movie.Title)
	return id, nil
}

// GetMovie returns the record for the id.
func (x *SqliteIndex) GetMovie(ctx context.Context, id model.MovieId) (model.MovieRecord, error) {
	var row movieRow
	if err := x.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.MovieRecord{}, model.NewNotFound(id)
		}
		return model.MovieRecord{}, model.NewIOError("failed to load movie", err)
	}
	tags, err := x.tagsOf(ctx, id)
	if err != nil {
		return model.MovieRecord{}, err
	}
	return recordFromRow(row, tags), nil
}

// RemoveMovie deletes the record and its tag rows in one transaction.
func (x *SqliteIndex) RemoveMovie(ctx context.Context, id model.MovieId) error {
	err := x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&movieRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.NewNotFound(id)
		}
		return tx.Delete(&movieTagRow{}, "movie_id = ?", id).Error
	})
	if err != nil {
		if model.IsCode(err, model.ErrNotFound) {
			return err
		}
		return model.NewIOError("failed to remove movie", err)
	}

	slog.Info("removed movie", "id", id)
	return nil
}

// ListMovies returns every record with its tags.
func (x *SqliteIndex) ListMovies(ctx context.Context) ([]model.MovieRecord, error) {
	var rows []movieRow
	if err := x.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, model.NewIOError("failed to list movies", err)
	}

	var tagRows []movieTagRow
	if err := x.db.WithContext(ctx).Find(&tagRows).Error; err != nil {
		return nil, model.NewIOError("failed to list movie tags", err)
	}
	tagsById := make(map[string][]string, len(rows))
	for _, tr := range tagRows {
		tagsById[tr.MovieId] = append(tagsById[tr.MovieId], tr.Tag)
	}

	out := make([]model.MovieRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(row, model.NormalizeTags(tagsById[row.Id])))
	}
	return out, nil
}

// UpdateTitle replaces the record's title.
func (x *SqliteIndex) UpdateTitle(ctx context.Context, id model.MovieId, title string) error {
	if title == "" {
		return model.NewInvalidInput("movie title must not be empty")
	}
	return x.updateColumns(ctx, id, map[string]any{"title": title})
}

// UpdateDescription replaces the record's description.
func (x *SqliteIndex) UpdateDescription(ctx context.Context, id model.MovieId, description string) error {
	return x.updateColumns(ctx, id, map[string]any{"description": description})
}

// UpdateTags replaces the record's tag rows in one transaction.
func (x *SqliteIndex) UpdateTags(ctx context.Context, id model.MovieId, tags []string) error {
	normalized := model.NormalizeTags(tags)

	err := x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireMovie(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&movieTagRow{}, "movie_id = ?", id).Error; err != nil {
			return err
		}
		return insertTags(tx, id, normalized)
	})
	if err != nil {
		if model.IsCode(err, model.ErrNotFound) {
			return err
		}
		return model.NewIOError("failed to update movie tags", err)
	}
	return nil
}

// BeginAttachment flips a blob from absent to pending. The check and the
// flip run in one transaction so concurrent uploads of the same blob cannot
// both pass.
func (x *SqliteIndex) BeginAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind) error {
	err := x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row movieRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.NewNotFound(id)
			}
			return err
		}
		if statusOf(row, kind) != string(model.PresenceAbsent) {
			return model.NewAlreadyPresent(id, kind)
		}
		return tx.Model(&movieRow{}).Where("id = ?", id).
			Updates(blobColumns(kind, model.FileInfo{Status: model.PresencePending})).Error
	})
	return wrapUnlessService(err, "failed to begin attachment")
}

// CommitAttachment flips a pending blob to present. Returns NotFound when
// the record was deleted while the blob was being written; the caller then
// reclaims the blob.
func (x *SqliteIndex) CommitAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind, ext string, mime string) error {
	info := model.FileInfo{Status: model.PresencePresent, Extension: ext, MimeType: mime}
	return wrapUnlessService(x.setBlob(ctx, id, kind, info), "failed to commit attachment")
}

// AbortAttachment rolls a pending blob back to absent.
func (x *SqliteIndex) AbortAttachment(ctx context.Context, id model.MovieId, kind model.BlobKind) error {
	info := model.FileInfo{Status: model.PresenceAbsent}
	return wrapUnlessService(x.setBlob(ctx, id, kind, info), "failed to abort attachment")
}

// Search loads candidate records and runs the shared evaluator. The tag
// filter is pushed into SQL to keep the candidate set small; title matching
// and ordering happen in the evaluator so both backends agree exactly.
func (x *SqliteIndex) Search(ctx context.Context, query model.SearchQuery) ([]model.MovieListEntry, error) {
	query = query.Normalized()

	db := x.db.WithContext(ctx).Model(&movieRow{})
	if len(query.Tags) > 0 {
		// Only movies carrying every requested tag survive the HAVING.
		db = db.Where(
			"id IN (?)",
			x.db.Model(&movieTagRow{}).
				Select("movie_id").
				Where("tag IN ?", query.Tags).
				Group("movie_id").
				Having("COUNT(DISTINCT tag) = ?", len(query.Tags)),
		)
	}

	var rows []movieRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, model.NewIOError("failed to search movies", err)
	}

	records := make([]model.MovieRecord, 0, len(rows))
	for _, row := range rows {
		// Tag list unused by the evaluator once the SQL filter ran, but
		// the evaluator re-checks tags, so satisfy it cheaply.
		tags, err := x.tagsOf(ctx, row.Id)
		if err != nil {
			return nil, err
		}
		records = append(records, recordFromRow(row, tags))
	}
	return EvaluateSearch(records, query, x.pages), nil
}

// ListTags returns the tag-frequency index in its canonical order.
func (x *SqliteIndex) ListTags(ctx context.Context) ([]model.TagCount, error) {
	var out []model.TagCount
	err := x.db.WithContext(ctx).Model(&movieTagRow{}).
		Select("tag, COUNT(*) AS count").
		Group("tag").
		Scan(&out).Error
	if err != nil {
		return nil, model.NewIOError("failed to list tags", err)
	}
	SortTagCounts(out)
	return out, nil
}

// Close closes the underlying database connection.
func (x *SqliteIndex) Close() error {
	sqlDB, err := x.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// setBlob overwrites one blob's columns, mapping a missing row to NotFound.
func (x *SqliteIndex) setBlob(ctx context.Context, id model.MovieId, kind model.BlobKind, info model.FileInfo) error {
	res := x.db.WithContext(ctx).Model(&movieRow{}).Where("id = ?", id).
		Updates(blobColumns(kind, info))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.NewNotFound(id)
	}
	return nil
}

func (x *SqliteIndex) updateColumns(ctx context.Context, id model.MovieId, cols map[string]any) error {
	res := x.db.WithContext(ctx).Model(&movieRow{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return model.NewIOError("failed to update movie", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NewNotFound(id)
	}
	return nil
}

func (x *SqliteIndex) tagsOf(ctx context.Context, id model.MovieId) ([]string, error) {
	var tags []string
	err := x.db.WithContext(ctx).Model(&movieTagRow{}).
		Where("movie_id = ?", id).
		Order("tag ASC").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, model.NewIOError("failed to load movie tags", err)
	}
	return tags, nil
}

func insertTags(tx *gorm.DB, id model.MovieId, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]movieTagRow, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, movieTagRow{MovieId: id, Tag: tag})
	}
	return tx.Create(&rows).Error
}

func requireMovie(tx *gorm.DB, id model.MovieId) error {
	var count int64
	if err := tx.Model(&movieRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return model.NewNotFound(id)
	}
	return nil
}

func statusOf(row movieRow, kind model.BlobKind) string {
	if kind == model.BlobScreenshot {
		return row.ScreenshotStatus
	}
	return row.VideoStatus
}

func blobColumns(kind model.BlobKind, info model.FileInfo) map[string]any {
	prefix := "video"
	if kind == model.BlobScreenshot {
		prefix = "screenshot"
	}
	return map[string]any{
		prefix + "_status":    string(info.Status),
		prefix + "_extension": info.Extension,
		prefix + "_mime_type": strings.TrimSpace(info.MimeType),
	}
}

func recordFromRow(row movieRow, tags []string) model.MovieRecord {
	return model.MovieRecord{
		Id: row.Id,
		Movie: model.Movie{
			Title:       row.Title,
			Description: row.Description,
			Tags:        tags,
		},
		CreatedAt: row.CreatedAt,
		Video: model.FileInfo{
			Status:    model.Presence(row.VideoStatus),
			Extension: row.VideoExtension,
			MimeType:  row.VideoMimeType,
		},
		Screenshot: model.FileInfo{
			Status:    model.Presence(row.ScreenshotStatus),
			Extension: row.ScreenshotExtension,
			MimeType:  row.ScreenshotMimeType,
		},
	}
}

// wrapUnlessService passes ServiceErrors through and wraps anything else as
// an IO error.
func wrapUnlessService(err error, msg string) error {
	if err == nil {
		return nil
	}
	var se *model.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return model.NewIOError(msg, err)
}
