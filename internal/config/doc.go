// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides settings loading and management for odoo-agent.
//
// Supports both TOML and YAML settings files, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main settings structure
//   - InstallConfig: Default installation request (version, target, mode)
//   - DownloadConfig: Where source archives come from
//   - WebConfig: Web front end listener and rate limit
//
// # Configuration Precedence
//
// Settings are resolved from (in order of precedence):
//   - Environment variables (ODOO_AGENT_*)
//   - ~/.odoo-agent/config.toml
//   - ~/.odoo-agent/config.yaml
//   - Built-in defaults
//
// GEMINI_API_KEY is consulted last, only when no key is configured.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := config.NewLogger(cfg.Log, os.Stderr)
package config
