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

// Package main contains the route handlers of the REST API. Handlers are
// thin shells over the MovieService: they bind the request, call the
// service, and translate service error codes into HTTP status codes.
//
// Endpoints:
//   - POST   /api/v1/movies                 Create movie metadata.
//   - GET    /api/v1/movies/search          Search the collection.
//   - GET    /api/v1/movies/:id             Retrieve a full movie record.
//   - PATCH  /api/v1/movies/:id             Update title/description/tags.
//   - DELETE /api/v1/movies/:id             Delete a movie and its files.
//   - POST   /api/v1/movies/:id/file        Upload the movie's video (multipart).
//   - GET    /api/v1/movies/:id/file        Download the video byte-exact.
//   - GET    /api/v1/movies/:id/screenshot  Download the preview frame.
//   - GET    /api/v1/tags                   List the tag-frequency index.
package main

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moviekeep/moviekeep/internal/core/model"
	"github.com/moviekeep/moviekeep/internal/core/services"
)

// movieUpdate is the PATCH body. Nil fields are left unchanged.
type movieUpdate struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// MovieRouter sets up the API routes for movie records and their blobs.
//
// Inputs:
//   - r: A *gin.RouterGroup the movie routes are added to, allowing nesting
//     under a common prefix (e.g. "/api/v1").
func MovieRouter(r *gin.RouterGroup) {
	movies := r.Group("/movies")
	{
		// Handler for POST /movies
		movies.POST("", func(c *gin.Context) {
			var movie model.Movie
			if err := c.ShouldBindJSON(&movie); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := state.movies.CreateMovie(c.Request.Context(), movie)
			if err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": id})
		})

		// Handler for GET /movies/search?title=...&tags=...&sorting_field=...
		movies.GET("/search", func(c *gin.Context) {
			var query model.SearchQuery
			if err := c.ShouldBindQuery(&query); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			results, err := state.movies.Search(c.Request.Context(), query)
			if err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.JSON(http.StatusOK, results)
		})

		// Handler for GET /movies/:id
		movies.GET("/:id", func(c *gin.Context) {
			record, err := state.movies.GetMovie(c.Request.Context(), c.Param("id"))
			if err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.JSON(http.StatusOK, record)
		})

		// Handler for PATCH /movies/:id
		movies.PATCH("/:id", func(c *gin.Context) {
			var update movieUpdate
			if err := c.ShouldBindJSON(&update); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx := c.Request.Context()
			id := c.Param("id")
			if update.Title != nil {
				if err := state.movies.UpdateTitle(ctx, id, *update.Title); err != nil {
					abortWithServiceError(c, err)
					return
				}
			}
			if update.Description != nil {
				if err := state.movies.UpdateDescription(ctx, id, *update.Description); err != nil {
					abortWithServiceError(c, err)
					return
				}
			}
			if update.Tags != nil {
				if err := state.movies.UpdateTags(ctx, id, *update.Tags); err != nil {
					abortWithServiceError(c, err)
					return
				}
			}
			c.Status(http.StatusNoContent)
		})

		// Handler for DELETE /movies/:id
		movies.DELETE("/:id", func(c *gin.Context) {
			if err := state.movies.DeleteMovie(c.Request.Context(), c.Param("id")); err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		// Handler for POST /movies/:id/file
		// Accepts multipart/form-data with the video under the "file" field.
		// The part is consumed straight off the wire and streamed into the
		// blob store, so arbitrarily large files upload in bounded memory
		// and are never spooled to a temporary copy first.
		movies.POST("/:id/file", func(c *gin.Context) {
			id := c.Param("id")

			reader, err := c.Request.MultipartReader()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "expected a multipart/form-data body"})
				return
			}
			part, err := videoPart(reader)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\""})
				return
			}
			defer func() { _ = part.Close() }()

			progress := func(written int64, total int64) {
				slog.Info("upload progress", "id", id, "written", written, "total", total)
			}
			err = state.movies.AttachVideo(c.Request.Context(), id, part.FileName(), part, -1, progress)
			if err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.Status(http.StatusCreated)
		})

		// Handler for GET /movies/:id/file
		movies.GET("/:id/file", func(c *gin.Context) {
			serveBlob(c, func() (*services.Blob, error) {
				return state.movies.VideoBlob(c.Request.Context(), c.Param("id"))
			})
		})

		// Handler for GET /movies/:id/screenshot
		movies.GET("/:id/screenshot", func(c *gin.Context) {
			serveBlob(c, func() (*services.Blob, error) {
				return state.movies.ScreenshotBlob(c.Request.Context(), c.Param("id"))
			})
		})
	}
}

// TagRouter sets up the API route for the tag-frequency index.
//
// Inputs:
//   - r: A *gin.RouterGroup the tag route is added to.
func TagRouter(r *gin.RouterGroup) {
	tags := r.Group("/tags")
	{
		// Handler for GET /tags
		tags.GET("", func(c *gin.Context) {
			out, err := state.movies.ListTags(c.Request.Context())
			if err != nil {
				abortWithServiceError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}

// videoPart advances the multipart reader to the "file" part. The part's
// bytes stay on the wire until the caller reads them.
func videoPart(r *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := r.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

// serveBlob streams a committed blob with its exact stored MIME type and
// length. http.ServeContent handles range requests, which matters for video
// seeking in browsers.
func serveBlob(c *gin.Context, open func() (*services.Blob, error)) {
	blob, err := open()
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	defer func() { _ = blob.Reader.Close() }()

	c.Header("Content-Type", blob.MimeType)
	http.ServeContent(c.Writer, c.Request, "", time.Time{}, blob.Reader)
}

// abortWithServiceError maps a service error code to an HTTP status and
// writes the error payload.
func abortWithServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch model.CodeOf(err) {
	case model.ErrInvalidInput:
		status = http.StatusBadRequest
	case model.ErrNotFound:
		status = http.StatusNotFound
	case model.ErrAlreadyPresent:
		status = http.StatusConflict
	case model.ErrNoVideo, model.ErrNoScreenshot:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": model.CodeOf(err)})
}
