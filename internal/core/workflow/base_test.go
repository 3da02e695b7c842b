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

// This file sets up the shared state for the workflow test suite: the test
// configuration, structured logging and the OpenTelemetry providers. These
// resources are available to all other test files in this package.
package workflow_test

import (
	"context"
	"os"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"

	"github.com/moviekeep/moviekeep/internal/config"
	"github.com/moviekeep/moviekeep/internal/telemetry"
	"github.com/moviekeep/moviekeep/internal/testutil"
)

const tName = "github.com/moviekeep/moviekeep/tests/workflow"

var (
	cfg    *config.Config
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

// TestMain initializes logging and telemetry once for the whole suite and
// flushes the providers after the tests complete.
func TestMain(m *testing.M) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg = testutil.GetConfig()

	telemetry.SetupLogging()

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, cfg)
	if err != nil {
		panic(err)
	}

	logger.Info("starting workflow test suite", "application", cfg.Application.Name)

	code := m.Run()

	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shut down telemetry", "error", err)
	}
	os.Exit(code)
}
