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

package prober

import (
	"context"
	"sync"
)

// MockProber is a scripted Prober for tests. It records the offsets it was
// asked to extract and returns canned results without touching any binary.
type MockProber struct {
	mu sync.Mutex

	// Scripted results.
	DurationSeconds float64
	DurationErr     error
	Frame           []byte
	FrameErr        error

	// Recorded calls.
	ProbedPaths      []string
	ExtractedOffsets []float64
}

// Verify always succeeds.
func (m *MockProber) Verify(context.Context) error { return nil }

// Duration returns the scripted duration or error.
func (m *MockProber) Duration(_ context.Context, path string) (float64, error) {
	m.mu.Lock()
	m.ProbedPaths = append(m.ProbedPaths, path)
	m.mu.Unlock()
	if m.DurationErr != nil {
		return 0, m.DurationErr
	}
	return m.DurationSeconds, nil
}

// ExtractFrame returns the scripted frame bytes or error.
func (m *MockProber) ExtractFrame(_ context.Context, _ string, atSeconds float64) ([]byte, error) {
	m.mu.Lock()
	m.ExtractedOffsets = append(m.ExtractedOffsets, atSeconds)
	m.mu.Unlock()
	if m.FrameErr != nil {
		return nil, m.FrameErr
	}
	return m.Frame, nil
}

// ProbeCount reports how many Duration calls were made. Safe to call while
// the prober is in use from another goroutine.
func (m *MockProber) ProbeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ProbedPaths)
}

// Offsets returns a copy of the recorded extraction offsets.
func (m *MockProber) Offsets() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.ExtractedOffsets))
	copy(out, m.ExtractedOffsets)
	return out
}
