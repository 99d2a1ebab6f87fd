// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/config"
	"github.com/jeranaias/odoo-agent/internal/fetch"
	"github.com/jeranaias/odoo-agent/internal/setup"
)

// Build information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// skipConfig marks commands that must work without a readable settings file.
const skipConfig = "skip-config"

// app carries state shared by every command in one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger

	// Replaced in tests.
	locator agent.Locator
	runner  setup.Runner
	client  *http.Client
}

// NewRootCommand builds the odoo-agent command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "odoo-agent",
		Short: "Detect, download, configure and launch Odoo",
		Long: `odoo-agent installs an Odoo server in one step.

It looks for an existing odoo-bin, downloads and extracts the requested
branch when none is found, writes odoo.conf, optionally installs Python
dependencies and starts the server, and finally verifies the Gemini API
credential.

Installs are simulated unless --real is given.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "settings file (default ~/.odoo-agent/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newInstallCmd(a),
		newDetectCmd(a),
		newConfCmd(a),
		newDoctorCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		DisplayError(root.ErrOrStderr(), err)
	}
	return GetExitCode(err)
}

// load reads the settings file once per invocation.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipConfig]; ok {
		a.cfg = config.Default()
		a.cfg.ApplyEnvOverrides()
		a.logger = config.NewLogger(a.cfg.Log, cmd.ErrOrStderr())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return nil
}

func (a *app) httpClient() *http.Client {
	if a.client != nil {
		return a.client
	}
	return fetch.NewClient(a.cfg.DownloadTimeout())
}

func (a *app) source() fetch.Source {
	return fetch.Source{
		Host:    a.cfg.Download.Host,
		Org:     a.cfg.Download.Org,
		Project: a.cfg.Download.Project,
	}
}

// agentOptions builds the workflow options shared by install and serve.
func (a *app) agentOptions() agent.Options {
	return agent.Options{
		ExtraSearchPaths: a.cfg.Detect.ExtraPaths,
		Locator:          a.locator,
		HTTPClient:       a.httpClient(),
		Runner:           a.runner,
		Python:           a.cfg.Install.Python,
		ReadyTimeout:     a.cfg.ReadyTimeout(),
		StallTimeout:     a.cfg.DownloadTimeout(),
		Source:           a.source(),
	}
}

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: ""},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !verbose {
				fmt.Fprintf(out, "odoo-agent %s\n", Version)
				return nil
			}
			fmt.Fprintln(out, TitleStyle.Render("odoo-agent"))
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Version:"), Version)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Commit:"), GitCommit)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Built:"), BuildTime)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show build details")
	return cmd
}
