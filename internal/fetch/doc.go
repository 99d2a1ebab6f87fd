// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fetch downloads and unpacks an Odoo source archive.
//
// The archive is streamed to <target>/odoo_<version>.zip (or .tar.gz), then
// extracted into <target>/odoo_<version>_extracted. Release archives wrap
// everything in one top-level directory, so the fetcher returns the first
// subdirectory it finds there. When there is none it falls back to the
// extraction directory itself and emits a warning.
//
// Entries that would land outside the extraction directory are refused and
// the whole fetch fails as a malformed archive. Symlinks written by earlier
// entries are resolved before each write.
//
// Downloads have no overall deadline. NewClient bounds the wait for response
// headers and WithStallTimeout aborts a body that stops delivering data.
//
// # Usage
//
//	f := fetch.New(fetch.NewClient(time.Minute), sink).WithStallTimeout(time.Minute)
//	res := f.Fetch(ctx, "16.0", "odoo_installation", "")
//	if !res.OK {
//		return res.Err
//	}
//	srcDir := res.Payload
package fetch
