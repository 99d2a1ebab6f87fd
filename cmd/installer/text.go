// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/cli"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/preflight"
)

// =============================================================================
// TEXT MODE INSTALLER (Copy/Paste Friendly)
// =============================================================================

// prompter reads a line of input. *liner.State satisfies it.
type prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

var errAborted = errors.New("installation cancelled")

const rule = "--------------------------------------------------------------------------------"

// runTextInstaller walks through the same phases as the TUI with plain
// output and returns the exit status.
func runTextInstaller(ctx context.Context, out io.Writer, p prompter, s Settings) int {
	code, err := textInstall(ctx, out, p, s)
	if errors.Is(err, errAborted) {
		fmt.Fprintln(out, "Installation cancelled.")
		return exitAborted
	}
	return code
}

func textInstall(ctx context.Context, out io.Writer, p prompter, s Settings) (int, error) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out, "                                ODOO INSTALLER")
	fmt.Fprintln(out, "            "+tagline)
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This installer will:")
	fmt.Fprintln(out, "  [1] Check your system requirements")
	fmt.Fprintln(out, "  [2] Ask for the Odoo version, target directory and Gemini API key")
	fmt.Fprintln(out, "  [3] Download Odoo, install its requirements and write odoo.conf")
	fmt.Fprintln(out, "  [4] Start the Odoo server")
	fmt.Fprintln(out)

	input, err := ask(p, "Press Enter to continue (or 'q' to quit): ")
	if err != nil {
		return 0, err
	}
	if input == "q" {
		return 0, errAborted
	}

	section(out, "SYSTEM REQUIREMENTS CHECK")
	opts := s.Preflight
	if opts.TargetDir == "" {
		opts.TargetDir = s.TargetDir
	}
	for i := range preflight.Names() {
		fmt.Fprintln(out, textCheckLine(preflight.RunOne(ctx, opts, i)))
	}
	fmt.Fprintln(out)

	section(out, "INSTALLATION SETTINGS")
	req, key, err := askRequest(p, s)
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Version:   %s\n", req.Version)
	fmt.Fprintf(out, "  Target:    %s\n", req.TargetDir)
	if key != "" {
		fmt.Fprintf(out, "  Gemini:    %s\n", gemini.MaskKey(key))
	} else {
		fmt.Fprintln(out, "  Gemini:    [!!] no key, the Gemini step will fail")
	}
	fmt.Fprintln(out)

	section(out, "INSTALLING")
	agentOpts := s.Agent
	agentOpts.GeminiAPIKey = key
	agentOpts.Sink = events.Multi(events.Func(func(e events.Event) {
		fmt.Fprintln(out, textEventLine(e))
	}), agentOpts.Sink)
	report := agent.New(agentOpts).Run(ctx, req)

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	if report.OK() {
		fmt.Fprintln(out, "                             INSTALLATION COMPLETE!")
	} else {
		fmt.Fprintln(out, "                              INSTALLATION FAILED")
	}
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out)

	if !report.OK() {
		f := report.Failure()
		fmt.Fprintln(out, "Result: FAILED")
		if f == nil {
			return cli.ExitGeneralError, nil
		}
		fmt.Fprintf(out, "%s step failed (%s): %s\n", f.Step, f.Kind, f.Message)
		return cli.ExitCodeFor(f.Kind), nil
	}

	fmt.Fprintln(out, "Result: SUCCESS")
	if report.ConfigPath != "" {
		fmt.Fprintf(out, "Configuration: %s\n", report.ConfigPath)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Open %s to reach your Odoo instance.\n", OdooURL)
	return cli.ExitSuccess, nil
}

// askRequest prompts for the run settings, keeping defaults on blank input.
func askRequest(p prompter, s Settings) (agent.Request, string, error) {
	version := s.Version
	if version == "" {
		version = agent.DefaultVersion
	}
	target := s.TargetDir
	if target == "" {
		target = agent.DefaultTargetDir
	}

	v, err := ask(p, fmt.Sprintf("Odoo version [%s]: ", version))
	if err != nil {
		return agent.Request{}, "", err
	}
	if v != "" {
		version = v
	}

	t, err := ask(p, fmt.Sprintf("Target directory [%s]: ", target))
	if err != nil {
		return agent.Request{}, "", err
	}
	if t != "" {
		target = t
	}

	hint := "blank uses " + gemini.EnvAPIKey
	if s.ConfiguredKey != "" {
		hint = "blank uses your settings file"
	}
	k, err := p.PasswordPrompt(fmt.Sprintf("Gemini API key (%s): ", hint))
	if err != nil {
		return agent.Request{}, "", promptErr(err)
	}

	req := agent.Request{Version: version, TargetDir: target, RealInstall: true}
	return req, gemini.ResolveKey(strings.TrimSpace(k), s.ConfiguredKey), nil
}

func ask(p prompter, prompt string) (string, error) {
	in, err := p.Prompt(prompt)
	if err != nil {
		return "", promptErr(err)
	}
	return strings.TrimSpace(in), nil
}

// promptErr treats Ctrl+C and end of input as a cancel.
func promptErr(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return errAborted
	}
	return err
}

func section(out io.Writer, title string) {
	fmt.Fprintln(out, rule)
	pad := (len(rule) - len(title)) / 2
	fmt.Fprintln(out, strings.Repeat(" ", pad)+title)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out)
}

func textCheckLine(c preflight.Check) string {
	tag := "[OK]"
	switch c.Status {
	case preflight.Warn:
		tag = "[!!]"
	case preflight.Fail:
		tag = "[FAIL]"
	}
	line := fmt.Sprintf("  %s %s: %s", tag, c.Name, c.Message)
	if c.Fix != "" {
		line += "\n       -> " + c.Fix
	}
	return line
}

// textEventLine renders an event without styling, attributes sorted by key.
func textEventLine(e events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%s] %s", e.Step, e.Message)
	if e.Level >= events.LevelWarn {
		fmt.Fprintf(&b, " (%s)", e.Level)
	}

	fields := e.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}
