// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Runner executes the external commands Configure needs.
type Runner interface {
	// Run executes a command to completion and returns its combined output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// Start launches a command detached from the caller with stdout and
	// stderr appended to logPath. It returns as soon as the process exists.
	Start(dir, logPath, name string, args ...string) (pid int, err error)
}

// DefaultPython is the interpreter used when none is configured.
func DefaultPython() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args in dir.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Start launches name in its own process group so it outlives the caller.
func (ExecRunner) Start(dir, logPath, name string, args ...string) (int, error) {
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", name, err)
	}

	pid := cmd.Process.Pid
	// Reap the child if it exits while we are still running.
	go cmd.Wait()

	return pid, nil
}
