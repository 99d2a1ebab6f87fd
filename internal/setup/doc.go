// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package setup prepares an Odoo source tree to run.
//
// Configure performs four steps in order:
//
//  1. Python dependencies: pip install -r requirements.txt (real mode only)
//  2. Database: always simulated, nothing is provisioned
//  3. odoo.conf: always written, content depends only on the source path
//  4. Server: odoo-bin is launched detached (real mode only)
//
// In simulated mode nothing but odoo.conf touches the system and no
// subprocess is ever spawned. Commands go through the Runner interface so
// tests can observe them without executing anything.
package setup
