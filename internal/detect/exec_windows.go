// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package detect

import (
	"os"
	"path/filepath"
	"strings"
)

// Windows has no execute bit. Go by extension.
func canExecute(path string, _ os.FileInfo) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".bat", ".cmd":
		return true
	}
	return false
}
