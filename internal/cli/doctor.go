// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Preflight checks for the host.
//
// Checks: operating system, Python, pip, free disk space in the target
// directory, an existing odoo-bin, reachability of the archive host and
// the Gemini API key.
//
// Exit Codes:
//   0   No check failed (warnings allowed)
//   1   One or more checks failed

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/preflight"
)

// doctorReport is the --json output.
type doctorReport struct {
	Checks  []preflight.Check `json:"checks"`
	Passed  int               `json:"passed"`
	Warned  int               `json:"warned"`
	Failed  int               `json:"failed"`
	Healthy bool              `json:"healthy"`
}

func newDoctorCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		target string
	)
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"preflight"},
		Short:   "Check that this host can run an installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				target = a.cfg.Install.TargetDir
			}
			opts := preflight.Options{
				Python:       a.cfg.Install.Python,
				TargetDir:    target,
				DownloadHost: a.cfg.Download.Host,
				GeminiAPIKey: gemini.ResolveKey(a.cfg.Gemini.APIKey),
				Runner:       a.runner,
				Client:       a.client,
			}
			if a.locator != nil {
				opts.Locator = a.locator
			}

			checks := preflight.Run(cmd.Context(), opts)
			passed, warned, failed := preflight.Summarize(checks)
			out := cmd.OutOrStdout()

			if asJSON {
				data, err := json.MarshalIndent(doctorReport{
					Checks:  checks,
					Passed:  passed,
					Warned:  warned,
					Failed:  failed,
					Healthy: failed == 0,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal doctor report: %w", err)
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprintln(out, TitleStyle.Render("odoo-agent doctor"))
				for _, c := range checks {
					fmt.Fprintln(out, RenderCheck(c))
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, SeparatorStyle.Render(strings.Repeat("-", 41)))

				parts := []string{fmt.Sprintf("%d passed", passed)}
				if warned > 0 {
					parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", warned)))
				}
				if failed > 0 {
					parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", failed)))
				}
				fmt.Fprintln(out, DimStyle.Render(strings.Join(parts, ", ")))
			}

			if failed > 0 {
				return &ExitError{Code: ExitGeneralError, Err: fmt.Errorf("%d check(s) failed", failed), Silent: asJSON}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	cmd.Flags().StringVar(&target, "target", "", "directory to check for free space (default from settings)")
	return cmd
}
