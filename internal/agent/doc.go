// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent runs the Odoo installation workflow.
//
// The workflow is a short fail-fast sequence:
//
//	detect ──found──────────────┐
//	   │                        ▼
//	   └─not found─▶ fetch ─▶ setup ─▶ gemini ─▶ succeeded
//
// Any failing step ends the run in the Failed state and nothing after it
// runs. Nothing is rolled back: files written by earlier steps stay on disk.
// A detect miss is not a failure, it routes the run through fetch.
//
// Every run produces a Report listing the steps taken, their durations and
// the kind of failure if there was one. Front ends decide what to show from
// the Report rather than from log text.
//
// # Usage
//
//	a := agent.New(agent.Options{
//		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
//		Sink:         events.NewSlogSink(logger),
//	})
//	report := a.Run(ctx, agent.Request{Version: "16.0", TargetDir: "odoo_installation"})
//	if !report.OK() {
//		fmt.Println(report.Failure().Message)
//	}
package agent
