// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Command installer is the interactive one-click Odoo installer.

# Overview

The installer is a terminal UI built with Bubble Tea that checks the host,
asks for the installation settings and then runs a real installation:
download (skipped when odoo-bin already exists), pip requirements, odoo.conf
and server start. A text mode gives the same flow with plain prompts for
terminals where the TUI does not work well.

# Building

	go build -o odoo-installer ./cmd/installer

Or with version information:

	go build -ldflags "-X main.version=1.0.0" -o odoo-installer ./cmd/installer

# Command Line Options

	--text, -t     Run in text mode (copy/paste friendly, no TUI)
	--help, -h     Show help information
	--version, -v  Show version number

# Settings

Defaults for the version, the target directory, the download host and the
Python interpreter come from ~/.odoo-agent/config.toml (see internal/config).
The Gemini API key entered in the form wins; a blank entry falls back to
gemini.api_key and then to GEMINI_API_KEY.

# Architecture

  - main.go: entry point, argument parsing, settings wiring
  - installer.go: TUI model with phases
  - text.go: text mode built on liner prompts

The TUI is a phase-based state machine:

  - PhaseWelcome: introduction
  - PhaseSystemCheck: preflight checks, one at a time
  - PhaseInputs: huh form for version, target directory and key
  - PhaseInstalling: spinner and live workflow events
  - PhaseComplete: result, with the http://localhost:8069 link on success

# Exit Codes

The exit status follows the odoo-agent CLI table (internal/cli/errors.go);
130 means the user quit before the run finished.
*/
package main
