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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moviekeep/moviekeep/internal/core/model"
)

// FFmpegProber implements Prober by shelling out to ffprobe and ffmpeg.
// Every invocation runs under a deadline so a wedged subprocess cannot
// stall the screenshot worker.
type FFmpegProber struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

// NewFFmpegProber creates a prober for the given binary paths.
func NewFFmpegProber(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegProber {
	return &FFmpegProber{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

// Verify runs both binaries with -version to confirm they are present and
// executable.
func (p *FFmpegProber) Verify(ctx context.Context) error {
	for _, bin := range []string{p.FFprobePath, p.FFmpegPath} {
		cctx, cancel := context.WithTimeout(ctx, p.Timeout)
		err := exec.CommandContext(cctx, bin, "-version").Run()
		cancel()
		if err != nil {
			return model.NewInternal(fmt.Sprintf("media tool %q is not usable", bin), err)
		}
	}
	return nil
}

// Duration asks ffprobe for the container duration of the file at path.
func (p *FFmpegProber) Duration(ctx context.Context, path string) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, p.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, model.NewInternal(
			fmt.Sprintf("ffprobe failed for %s: %s", path, strings.TrimSpace(stderr.String())), err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, model.NewInternal(fmt.Sprintf("ffprobe returned an unparsable duration for %s", path), err)
	}
	if seconds <= 0 {
		return 0, model.NewInternal(fmt.Sprintf("ffprobe reported a non-positive duration for %s", path), nil)
	}
	return seconds, nil
}

// ExtractFrame renders one frame at the given offset into a temporary PNG
// and returns its bytes. ffmpeg refuses to write image output to a pipe for
// some containers, so a temp file is the reliable route.
func (p *FFmpegProber) ExtractFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error) {
	tmp, err := os.CreateTemp("", "frame-*.png")
	if err != nil {
		return nil, model.NewIOError("failed to create temp file for frame extraction", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp frame file", "path", tmpPath, "error", err)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, p.FFmpegPath,
		"-y",
		"-v", "error",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		tmpPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, model.NewInternal(
			fmt.Sprintf("ffmpeg failed to extract a frame from %s: %s",
				filepath.Base(path), strings.TrimSpace(stderr.String())), err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, model.NewIOError("failed to read extracted frame", err)
	}
	if len(data) == 0 {
		return nil, model.NewInternal(fmt.Sprintf("ffmpeg produced an empty frame for %s", filepath.Base(path)), nil)
	}
	return data, nil
}
