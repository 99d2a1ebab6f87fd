// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/cli"
	"github.com/jeranaias/odoo-agent/internal/config"
	"github.com/jeranaias/odoo-agent/internal/fetch"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/preflight"
)

// version is set at build time.
var version = "dev"

// exitAborted is the status when the user quits before the run finishes.
const exitAborted = 130

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	textMode := false
	for _, arg := range args {
		switch arg {
		case "--text", "-t", "--simple":
			textMode = true
		case "--help", "-h":
			printHelp(os.Stdout)
			return cli.ExitSuccess
		case "--version", "-v":
			fmt.Printf("odoo installer v%s\n", version)
			return cli.ExitSuccess
		default:
			fmt.Fprintf(os.Stderr, "unknown option %q\n\n", arg)
			printHelp(os.Stderr)
			return cli.ExitUsageError
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		return cli.ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	settings := settingsFrom(cfg)

	if textMode {
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		return runTextInstaller(ctx, os.Stdout, line, settings)
	}

	if !cli.IsTTY() {
		fmt.Println("The Odoo installer requires an interactive terminal.")
		fmt.Println("Run with --text for a simple text-based install.")
		return cli.ExitGeneralError
	}

	installer := NewInstaller(ctx, settings)
	p := tea.NewProgram(installer, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && installer.Report() == nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return exitAborted
		}
		fmt.Fprintf(os.Stderr, "Error running installer: %v\n", err)
		return cli.ExitGeneralError
	}

	// The alt screen is gone; leave the outcome in the scrollback.
	if r := installer.Report(); r != nil {
		fmt.Println(cli.RenderResult(r.OK()))
		if r.OK() {
			fmt.Printf("Open %s to reach your Odoo instance.\n", OdooURL)
		} else if f := r.Failure(); f != nil {
			fmt.Printf("%s step failed (%s): %s\n", f.Step, f.Kind, f.Message)
		}
	}
	return installer.ExitCode()
}

// settingsFrom wires the settings file into the checks and the workflow.
func settingsFrom(cfg *config.Config) Settings {
	client := fetch.NewClient(cfg.DownloadTimeout())

	return Settings{
		Version:       cfg.Install.Version,
		TargetDir:     cfg.Install.TargetDir,
		ConfiguredKey: cfg.Gemini.APIKey,
		Preflight: preflight.Options{
			Python:       cfg.Install.Python,
			DownloadHost: cfg.Download.Host,
			GeminiAPIKey: gemini.ResolveKey(cfg.Gemini.APIKey),
		},
		Agent: agent.Options{
			ExtraSearchPaths: cfg.Detect.ExtraPaths,
			HTTPClient:       client,
			Python:           cfg.Install.Python,
			ReadyTimeout:     cfg.ReadyTimeout(),
			Source: fetch.Source{
				Host:    cfg.Download.Host,
				Org:     cfg.Download.Org,
				Project: cfg.Download.Project,
			},
		},
	}
}

// printHelp shows usage information
func printHelp(w io.Writer) {
	fmt.Fprintln(w, `odoo installer v`+version+`

Usage: odoo-installer [OPTIONS]

Options:
  --text, -t     Run in text mode (copy/paste friendly)
  --help, -h     Show this help
  --version, -v  Show version

The installer checks this host, asks for an Odoo version, a target
directory and a Gemini API key, then downloads Odoo, installs its Python
requirements, writes odoo.conf and starts the server.

Defaults come from ~/.odoo-agent/config.toml. A blank Gemini key falls
back to gemini.api_key and then to GEMINI_API_KEY.`)
}
