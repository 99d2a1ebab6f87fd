// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/outcome"
	"github.com/jeranaias/odoo-agent/internal/util"
)

// Step is the step name used in events and results.
const Step = "setup"

const (
	// ManifestName is the dependency manifest looked up in the source tree.
	ManifestName = "requirements.txt"
	// ServerBinary is the entry point launched in real mode.
	ServerBinary = "odoo-bin"
	// ServerLogName receives the detached server's output.
	ServerLogName = "odoo-server.log"
)

// ErrMissingServerBinary is wrapped when odoo-bin is absent in real mode.
var ErrMissingServerBinary = errors.New("odoo-bin not found in source path")

// Options configures a Configurator. Zero values are usable.
type Options struct {
	// Python is the interpreter used for pip and odoo-bin.
	Python string
	Runner Runner
	Sink   events.Sink

	// ReadyTimeout bounds the post-launch readiness poll. Zero skips it.
	ReadyTimeout time.Duration
	// ReadyURL overrides the polled address.
	ReadyURL   string
	HTTPClient *http.Client
}

// Configurator installs dependencies, writes odoo.conf and starts the server.
type Configurator struct {
	python       string
	runner       Runner
	sink         events.Sink
	readyTimeout time.Duration
	readyURL     string
	client       *http.Client
}

// New creates a configurator.
func New(opts Options) *Configurator {
	c := &Configurator{
		python:       opts.Python,
		runner:       opts.Runner,
		sink:         events.OrDiscard(opts.Sink),
		readyTimeout: opts.ReadyTimeout,
		readyURL:     opts.ReadyURL,
		client:       opts.HTTPClient,
	}
	if c.python == "" {
		c.python = DefaultPython()
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.readyURL == "" {
		c.readyURL = fmt.Sprintf("http://127.0.0.1:%d/web/login", XMLRPCPort)
	}
	if c.client == nil {
		c.client = cleanhttp.DefaultClient()
	}
	return c
}

// Configure prepares sourcePath. The payload is the path of the written
// odoo.conf. With realInstall false no subprocess is started.
func (c *Configurator) Configure(ctx context.Context, sourcePath string, realInstall bool) (res outcome.Result) {
	defer outcome.Recover(Step, &res)

	mode := "simulated"
	if realInstall {
		mode = "real"
	}
	c.sink.Emit(events.Info(Step, "Starting Odoo setup", "source", sourcePath, "mode", mode))

	if r := c.installDependencies(ctx, sourcePath, realInstall); !r.OK {
		return r
	}

	c.sink.Emit(events.Info(Step, "Setting up PostgreSQL database (simulated)"))
	c.sink.Emit(events.Info(Step, "PostgreSQL database setup complete"))

	confPath, err := c.writeConfig(sourcePath)
	if err != nil {
		c.sink.Emit(events.Error(Step, "Could not write Odoo configuration file", "error", err))
		return outcome.Failure(Step, outcome.KindUnexpected, err)
	}
	c.sink.Emit(events.Info(Step, "Odoo configuration file created", "path", confPath))

	if r := c.startServer(ctx, sourcePath, confPath, realInstall); !r.OK {
		return r
	}

	c.sink.Emit(events.Info(Step, "Odoo setup completed successfully"))
	return outcome.Success(confPath)
}

func (c *Configurator) installDependencies(ctx context.Context, sourcePath string, realInstall bool) outcome.Result {
	if !realInstall {
		c.sink.Emit(events.Info(Step, "Installing Python dependencies (simulated)"))
		return outcome.Success("")
	}

	manifest := filepath.Join(sourcePath, ManifestName)
	if _, err := os.Stat(manifest); err != nil {
		c.sink.Emit(events.Warn(Step, "requirements.txt not found, skipping dependency installation", "path", manifest))
		return outcome.Success("")
	}

	c.sink.Emit(events.Info(Step, "Installing Python dependencies", "manifest", manifest))
	out, err := c.runner.Run(ctx, sourcePath, c.python, "-m", "pip", "install", "-r", ManifestName)
	if err != nil {
		c.sink.Emit(events.Error(Step, "Dependency installation failed", "error", err, "output", tail(out, 20)))
		return outcome.Failure(Step, outcome.KindDependencyInstall, fmt.Errorf("pip install: %w", err))
	}

	c.sink.Emit(events.Info(Step, "Python dependencies installed"))
	return outcome.Success("")
}

func (c *Configurator) writeConfig(sourcePath string) (string, error) {
	data, err := RenderConfig(sourcePath)
	if err != nil {
		return "", err
	}
	path := ConfigPath(sourcePath)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", ConfigFileName, err)
	}
	return path, nil
}

func (c *Configurator) startServer(ctx context.Context, sourcePath, confPath string, realInstall bool) outcome.Result {
	if !realInstall {
		c.sink.Emit(events.Info(Step, "Odoo server start simulated"))
		return outcome.Success("")
	}

	bin := filepath.Join(sourcePath, ServerBinary)
	if _, err := os.Stat(bin); err != nil {
		c.sink.Emit(events.Error(Step, "odoo-bin not found, cannot start server", "path", bin))
		return outcome.Failure(Step, outcome.KindMissingServerBinary, fmt.Errorf("%w: %s", ErrMissingServerBinary, bin))
	}

	logPath := filepath.Join(sourcePath, ServerLogName)
	c.sink.Emit(events.Info(Step, "Starting Odoo server", "binary", bin, "config", confPath))

	pid, err := c.runner.Start(sourcePath, logPath, c.python, bin, "-c", confPath)
	if err != nil {
		c.sink.Emit(events.Error(Step, "Could not start Odoo server", "error", err))
		return outcome.Failure(Step, outcome.KindUnexpected, err)
	}
	c.sink.Emit(events.Info(Step, "Odoo server started in background", "pid", pid, "log", logPath))

	if c.readyTimeout > 0 {
		c.waitReady(ctx)
	}
	return outcome.Success("")
}

// tail returns the last n lines of out.
func tail(out []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
