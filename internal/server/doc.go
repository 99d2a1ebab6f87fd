// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the browser front end for odoo-agent.
//
// # Endpoints
//
//   - GET  /          - Installation form
//   - POST /install   - Run an installation and show the captured events
//   - GET  /runs/:id  - JSON report of a previous run
//   - GET  /health    - Health check
//
// Only one installation runs at a time; a second POST while one is in
// flight gets 409 Conflict. The Gemini key is taken from the form, then the
// server's configured secret, then GEMINI_API_KEY.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8501"})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
