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

// Package main is the entry point for the movie collection server.
//
// The application runs a web server using the Gin framework exposing a REST
// API for managing a personal movie collection: metadata CRUD, streamed
// video uploads, preview frame retrieval, search and the tag index. The
// server is instrumented with OpenTelemetry for logging, tracing, and
// metrics.
//
// The main function initializes configuration, logging and telemetry, builds
// the application state (blob store, movie index, media prober, the
// background screenshot worker and the movie service on top of them),
// registers the API routes and handles graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/moviekeep/moviekeep/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, cfg)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	if err := InitState(ctx); err != nil {
		slog.Error("Failed to initialize application state", "error", err)
		log.Fatal(err)
	}
	slog.Info("Initialized State")

	r := gin.Default()
	r.Use(otelgin.Middleware(cfg.Application.Name))

	// Permissive CORS, suitable for a single-user deployment.
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		MovieRouter(apiV1)
		TagRouter(apiV1)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Application.Port),
		Handler:     r,
		ReadTimeout: 0, // Uploads may take arbitrarily long.
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", cfg.Application.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}

	// Stop the screenshot worker and flush telemetry.
	cancel()
	state.worker.Wait()
	if err := state.index.Close(); err != nil {
		slog.Warn("failed to close movie index", "error", err)
	}
	if err := shutdownTelemetry(context.Background()); err != nil {
		slog.Warn("failed to shut down telemetry", "error", err)
	}

	log.Println("Server exiting")
}
