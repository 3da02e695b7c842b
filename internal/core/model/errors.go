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
// This file defines the typed service error carried across the core's
// boundary operations. Every failure a caller can act on is classified by an
// ErrorCode; the HTTP shell maps codes to status codes without inspecting
// message text.
package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a service failure.
type ErrorCode string

const (
	// ErrInvalidInput marks a request rejected before any mutation.
	ErrInvalidInput ErrorCode = "invalid_input"

	// ErrNotFound marks an unknown or deleted movie id. No side effects.
	ErrNotFound ErrorCode = "not_found"

	// ErrAlreadyPresent marks an attachment attempt on a blob that already
	// exists or is being written. There are no overwrite semantics; the
	// caller must delete and recreate the record.
	ErrAlreadyPresent ErrorCode = "already_present"

	// ErrIO marks a storage failure. Any partial blob from the failed
	// attempt is reclaimed so presence is never falsely flipped.
	ErrIO ErrorCode = "io_error"

	// ErrNoVideo marks a byte retrieval on a record without a video.
	ErrNoVideo ErrorCode = "no_video_attached"

	// ErrNoScreenshot marks a byte retrieval on a record whose preview
	// frame has not (or could not) be extracted.
	ErrNoScreenshot ErrorCode = "no_screenshot_available"

	// ErrInternal marks an unexpected failure.
	ErrInternal ErrorCode = "internal"
)

// ServiceError is the error type returned by all core boundary operations.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error // Optional underlying cause.
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewInvalidInput builds an ErrInvalidInput service error.
func NewInvalidInput(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound builds an ErrNotFound service error for the given movie id.
func NewNotFound(id MovieId) *ServiceError {
	return &ServiceError{Code: ErrNotFound, Message: fmt.Sprintf("movie with id %s not found", id)}
}

// NewAlreadyPresent builds an ErrAlreadyPresent service error.
func NewAlreadyPresent(id MovieId, kind BlobKind) *ServiceError {
	return &ServiceError{Code: ErrAlreadyPresent, Message: fmt.Sprintf("%s for movie %s already present", kind, id)}
}

// NewNoVideo builds an ErrNoVideo service error.
func NewNoVideo(id MovieId) *ServiceError {
	return &ServiceError{Code: ErrNoVideo, Message: fmt.Sprintf("movie %s has no video attached", id)}
}

// NewNoScreenshot builds an ErrNoScreenshot service error.
func NewNoScreenshot(id MovieId) *ServiceError {
	return &ServiceError{Code: ErrNoScreenshot, Message: fmt.Sprintf("movie %s has no screenshot available", id)}
}

// NewIOError wraps a low-level storage failure.
func NewIOError(msg string, err error) *ServiceError {
	return &ServiceError{Code: ErrIO, Message: msg, Err: err}
}

// NewInternal wraps an unexpected failure.
func NewInternal(msg string, err error) *ServiceError {
	return &ServiceError{Code: ErrInternal, Message: msg, Err: err}
}

// CodeOf extracts the ErrorCode from an error chain. Errors that are not
// ServiceErrors are reported as ErrInternal.
func CodeOf(err error) ErrorCode {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrInternal
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
