// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package detect

import (
	"os"

	"golang.org/x/sys/unix"
)

func canExecute(path string, _ os.FileInfo) bool {
	return unix.Access(path, unix.X_OK) == nil
}
