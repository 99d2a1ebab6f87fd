// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the installer packages.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateWidth: Display-width aware truncation for terminal output
//   - StringWidth: Terminal cell width of a string
//
// # Usage
//
//	// Write odoo.conf without ever leaving a half-written file
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Fit an event line into the terminal
//	line := util.TruncateWidth(msg, width-4)
package util
