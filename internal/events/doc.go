// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events carries installation progress from the workflow steps to
// whatever front end is watching.
//
// Steps never print. They emit an Event to the Sink they were given, and the
// front end decides how to show it: structured log lines, a TUI list, or an
// HTML page.
//
// # Key Types
//
//   - Event: A single progress message with step name, level and attributes
//   - Sink: The observer interface every step writes to
//   - Recorder: An in-memory Sink used by the web front end, the TUI and tests
//   - SlogSink: A Sink that forwards to a *slog.Logger
//
// # Usage
//
//	rec := events.NewRecorder()
//	sink := events.Multi(rec, events.NewSlogSink(logger))
//	sink.Emit(events.Info("fetch", "Downloading archive", "url", url))
package events
