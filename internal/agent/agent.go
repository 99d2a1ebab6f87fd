// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/odoo-agent/internal/detect"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/fetch"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/outcome"
	"github.com/jeranaias/odoo-agent/internal/setup"
)

// Step is the step name used for the controller's own events.
const Step = "agent"

const (
	// DefaultVersion is the Odoo branch installed when none is requested.
	DefaultVersion = "16.0"
	// DefaultTargetDir is where archives go when no directory is requested.
	DefaultTargetDir = "."
)

// Request describes one installation.
type Request struct {
	Version     string `json:"version"`
	TargetDir   string `json:"target_dir"`
	RealInstall bool   `json:"real_install"`
	// DownloadURL overrides the default archive location.
	DownloadURL string `json:"download_url,omitempty"`
}

func (r Request) withDefaults() Request {
	if r.Version == "" {
		r.Version = DefaultVersion
	}
	if r.TargetDir == "" {
		r.TargetDir = DefaultTargetDir
	}
	return r
}

// Locator finds an existing executable. *detect.Locator satisfies it.
type Locator interface {
	Locate(extra ...string) outcome.Result
}

// Options configures an Agent.
type Options struct {
	GeminiAPIKey     string
	ExtraSearchPaths []string

	// Locator replaces the standard filesystem search when set.
	Locator Locator

	Sink       events.Sink
	HTTPClient *http.Client
	Runner     setup.Runner

	// Python is the interpreter for pip and odoo-bin. Empty uses the platform default.
	Python       string
	ReadyTimeout time.Duration
	// StallTimeout aborts a download that receives nothing for this long.
	StallTimeout time.Duration
	Source       fetch.Source
}

// Agent runs installations. It is safe to share, but runs that touch the
// same target directory should not overlap.
type Agent struct {
	opts Options

	mu         sync.Mutex
	configPath string
}

// New creates an agent.
func New(opts Options) *Agent {
	opts.Sink = events.OrDiscard(opts.Sink)
	return &Agent{opts: opts}
}

// ConfigPath returns the odoo.conf written by the last successful setup step.
func (a *Agent) ConfigPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configPath
}

// Execute runs the workflow and reports only whether it succeeded.
func (a *Agent) Execute(ctx context.Context, req Request) bool {
	return a.Run(ctx, req).OK()
}

// Run executes detect, fetch (only on a detect miss), setup and gemini in
// order, stopping at the first failure.
func (a *Agent) Run(ctx context.Context, req Request) *Report {
	req = req.withDefaults()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Request:   req,
		DryRun:    !req.RealInstall,
		State:     StateFailed,
	}
	defer func() {
		if r := recover(); r != nil {
			report.record(Step, outcome.Failf(Step, outcome.KindUnexpected, "panic: %v", r), 0)
			report.State = StateFailed
		}
		report.EndedAt = time.Now()
	}()

	sink := events.WithRunID(a.opts.Sink, report.RunID)
	sink.Emit(events.Info(Step, "Starting Odoo installation process",
		"version", req.Version, "target", req.TargetDir, "real_install", req.RealInstall))

	root, ok := a.resolveSource(ctx, sink, report, req)
	if !ok {
		return report
	}
	report.InstallRoot = root

	configurator := setup.New(setup.Options{
		Python:       a.opts.Python,
		Runner:       a.opts.Runner,
		Sink:         sink,
		ReadyTimeout: a.opts.ReadyTimeout,
		HTTPClient:   a.opts.HTTPClient,
	})
	start := time.Now()
	res := configurator.Configure(ctx, root, req.RealInstall)
	report.record(setup.Step, res, time.Since(start))
	if !res.OK {
		sink.Emit(events.Error(Step, "Odoo setup failed", "kind", res.Kind()))
		return report
	}
	report.ConfigPath = res.Payload
	a.mu.Lock()
	a.configPath = res.Payload
	a.mu.Unlock()

	gate := gemini.New(sink)
	start = time.Now()
	res = gate.Check(gemini.Options{APIKey: a.opts.GeminiAPIKey}, gemini.DefaultInstance)
	report.record(gemini.Step, res, time.Since(start))
	if !res.OK {
		sink.Emit(events.Error(Step, "Google API integration failed", "kind", res.Kind()))
		return report
	}

	report.State = StateSucceeded
	sink.Emit(events.Info(Step, "Odoo installation process completed successfully"))
	return report
}

// resolveSource returns the directory setup should run in: the parent of a
// detected executable, or a freshly fetched source tree.
func (a *Agent) resolveSource(ctx context.Context, sink events.Sink, report *Report, req Request) (string, bool) {
	var locator Locator = detect.New(sink, a.opts.ExtraSearchPaths...)
	if a.opts.Locator != nil {
		locator = a.opts.Locator
	}
	start := time.Now()
	res := locator.Locate()
	report.record(detect.Step, res, time.Since(start))

	switch {
	case res.OK:
		root := filepath.Dir(res.Payload)
		sink.Emit(events.Info(Step, "Odoo executable found, skipping download", "path", res.Payload))
		sink.Emit(events.Info(Step, "Using detected Odoo path for setup", "path", root))
		report.skip(fetch.Step, "existing installation detected")
		return root, true
	case res.Kind() != outcome.KindNotFound:
		sink.Emit(events.Error(Step, "Executable detection failed", "kind", res.Kind()))
		return "", false
	}

	fetcher := fetch.New(a.opts.HTTPClient, sink).
		WithSource(a.opts.Source).
		WithStallTimeout(a.opts.StallTimeout)
	start = time.Now()
	res = fetcher.Fetch(ctx, req.Version, req.TargetDir, req.DownloadURL)
	report.record(fetch.Step, res, time.Since(start))
	if !res.OK {
		sink.Emit(events.Error(Step, "Odoo download failed", "kind", res.Kind()))
		return "", false
	}
	return res.Payload, true
}
