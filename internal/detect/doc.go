// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect locates an existing odoo-bin executable.
//
// The locator walks a fixed list of well-known install locations, then any
// caller-supplied paths, and returns the first one that is a regular,
// executable file. It never fails: an empty search is reported as a
// KindNotFound result that the workflow treats as "go download it".
//
// # Search Order
//
//  1. /usr/local/bin/odoo-bin
//  2. /opt/odoo/odoo-bin
//  3. /usr/bin/odoo-bin
//  4. /home/odoo/odoo-bin
//  5. ~/.local/bin/odoo-bin
//  6. ./odoo-bin (working directory)
//  7. Extra paths, in the order given
//
// # Usage
//
//	loc := detect.New(sink, cfg.Detect.ExtraPaths...)
//	res := loc.Locate()
//	if res.OK {
//		fmt.Println("found", res.Payload)
//	}
package detect
