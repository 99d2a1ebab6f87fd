// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the odoo-agent command tree.
//
// # Commands
//
//   - install: run the full workflow (detect, fetch, setup, gemini)
//   - detect: look for an existing odoo-bin only
//   - conf: preview the odoo.conf that setup would write
//   - doctor: preflight checks for the host
//   - serve: start the web front end
//   - config: show, create, query and edit the settings file
//   - version: print build information
//
// # Exit Codes
//
// A failed install exits with a code derived from the failing step's
// outcome.Kind; see ExitCodeFor.
package cli
