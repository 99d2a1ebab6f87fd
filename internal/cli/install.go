// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/setup"
)

type installFlags struct {
	version      string
	target       string
	real         bool
	url          string
	geminiKey    string
	summary      bool
	structured   bool
	readyTimeout time.Duration
}

func newInstallCmd(a *app) *cobra.Command {
	var f installFlags
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run the full installation workflow",
		Long: `Run detect, download, setup and the Gemini check in order, stopping at the
first failure.

Defaults come from the settings file: version 16.0, target directory
odoo_installation, simulated mode. The Gemini key is taken from --gemini-key,
then gemini.api_key, then GEMINI_API_KEY.

Examples:
  odoo-agent install
  odoo-agent install --version 17.0 --target /srv/odoo --real
  odoo-agent install --url https://mirror.example/odoo-16.0.tar.gz --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInstall(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.version, "version", "", "Odoo branch to install (default from settings, 16.0)")
	fl.StringVar(&f.target, "target", "", "directory for the archive and extracted tree")
	fl.BoolVar(&f.real, "real", false, "install dependencies and start the server")
	fl.StringVar(&f.url, "url", "", "download URL override")
	fl.StringVar(&f.geminiKey, "gemini-key", "", "Gemini API key")
	fl.BoolVar(&f.summary, "summary", false, "print a markdown summary of the run")
	fl.BoolVar(&f.structured, "structured", false, "log events as structured records on stderr instead of styled lines")
	fl.DurationVar(&f.readyTimeout, "ready-timeout", 0, "wait up to this long for the server to answer (real installs)")
	return cmd
}

// request merges flags over the settings file.
func (a *app) request(cmd *cobra.Command, f installFlags) agent.Request {
	req := agent.Request{
		Version:     a.cfg.Install.Version,
		TargetDir:   a.cfg.Install.TargetDir,
		RealInstall: a.cfg.Install.RealInstall,
		DownloadURL: f.url,
	}
	if f.version != "" {
		req.Version = f.version
	}
	if f.target != "" {
		req.TargetDir = f.target
	}
	if cmd.Flags().Changed("real") {
		req.RealInstall = f.real
	}
	return req
}

func (a *app) runInstall(cmd *cobra.Command, f installFlags) error {
	out := cmd.OutOrStdout()
	req := a.request(cmd, f)

	var sink events.Sink = events.Func(func(e events.Event) {
		fmt.Fprintln(out, RenderEvent(e))
	})
	if f.structured {
		sink = events.NewSlogSink(a.logger)
	}

	opts := a.agentOptions()
	opts.Sink = sink
	opts.GeminiAPIKey = gemini.ResolveKey(f.geminiKey, a.cfg.Gemini.APIKey)
	if cmd.Flags().Changed("ready-timeout") {
		opts.ReadyTimeout = f.readyTimeout
	}

	report := agent.New(opts).Run(cmd.Context(), req)

	fmt.Fprintln(out, RenderSeparator(50))
	fmt.Fprintln(out, RenderResult(report.OK()))
	if report.OK() {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("Configuration:"), report.ConfigPath)
		if req.RealInstall {
			fmt.Fprintf(out, "Open http://localhost:%d to reach your Odoo instance.\n", setup.XMLRPCPort)
		}
	}
	if f.summary {
		printMarkdown(out, report.Markdown())
	}

	if fail := report.Failure(); fail != nil {
		return &ExitError{
			Code: ExitCodeFor(fail.Kind),
			Err:  fmt.Errorf("%s step failed (%s): %s", fail.Step, fail.Kind, fail.Message),
		}
	}
	return nil
}

// printMarkdown renders md with glamour on a terminal and writes it raw
// otherwise.
func printMarkdown(w io.Writer, md string) {
	if !IsStdoutTTY() {
		fmt.Fprint(w, md)
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	rendered, err := r.Render(md)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, rendered)
}
