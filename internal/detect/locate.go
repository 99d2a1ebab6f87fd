// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// Step is the step name used in events and results.
const Step = "detect"

// ExecutableName is the file the locator looks for.
const ExecutableName = "odoo-bin"

// ErrNotFound is wrapped by the NotFound result.
var ErrNotFound = errors.New("no odoo-bin executable found")

// Locator searches well-known locations for odoo-bin.
type Locator struct {
	sink  events.Sink
	extra []string

	// Overridable for tests.
	homeDir    func() (string, error)
	workDir    func() (string, error)
	standard   []string
	executable func(path string) bool
}

// New creates a locator. Extra paths are appended after the standard ones.
func New(sink events.Sink, extra ...string) *Locator {
	return &Locator{
		sink:       events.OrDiscard(sink),
		extra:      extra,
		homeDir:    os.UserHomeDir,
		workDir:    os.Getwd,
		standard:   standardPaths(),
		executable: isExecutable,
	}
}

func standardPaths() []string {
	return []string{
		"/usr/local/bin/odoo-bin",
		"/opt/odoo/odoo-bin",
		"/usr/bin/odoo-bin",
		"/home/odoo/odoo-bin",
	}
}

// Candidates returns every path Locate would check, in order.
func (l *Locator) Candidates(extra ...string) []string {
	paths := make([]string, 0, len(l.standard)+2+len(l.extra)+len(extra))
	paths = append(paths, l.standard...)
	if home, err := l.homeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".local", "bin", ExecutableName))
	}
	if wd, err := l.workDir(); err == nil && wd != "" {
		paths = append(paths, filepath.Join(wd, ExecutableName))
	}
	paths = append(paths, l.extra...)
	paths = append(paths, extra...)
	return paths
}

// Locate returns the first qualifying candidate. A miss is a KindNotFound
// failure, which callers should treat as benign.
func (l *Locator) Locate(extra ...string) (res outcome.Result) {
	defer outcome.Recover(Step, &res)

	l.sink.Emit(events.Info(Step, "Searching for existing Odoo installation"))

	for _, p := range l.Candidates(extra...) {
		if p == "" {
			continue
		}
		l.sink.Emit(events.Debug(Step, "Checking candidate", "path", p))
		if l.executable(p) {
			l.sink.Emit(events.Info(Step, "Found existing Odoo executable", "path", p))
			return outcome.Success(p)
		}
	}

	l.sink.Emit(events.Info(Step, "No existing Odoo installation found"))
	return outcome.Failure(Step, outcome.KindNotFound, ErrNotFound)
}

// isExecutable reports whether path is a regular file the current user may run.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return canExecute(path, info)
}
