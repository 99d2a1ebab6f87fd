// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/detect"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

func newDetectCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "detect [path...]",
		Short: "Look for an existing odoo-bin",
		Long: `Search the standard locations, ~/.local/bin, the working directory and any
configured or given paths for an executable odoo-bin. Exits 7 when none is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			extra := append(append([]string(nil), a.cfg.Detect.ExtraPaths...), args...)

			if list {
				for _, p := range detect.New(nil, extra...).Candidates() {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			var locator agent.Locator = detect.New(nil, extra...)
			if a.locator != nil {
				locator = a.locator
			}
			res := locator.Locate()
			if res.OK {
				fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("[OK]"), res.Payload)
				return nil
			}
			if res.Kind() == outcome.KindNotFound {
				fmt.Fprintf(out, "%s no %s found\n", WarningStyle.Render("[!!]"), detect.ExecutableName)
				return &ExitError{Code: ExitNotFoundError, Silent: true}
			}
			return res.Err
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the search order and exit")
	return cmd
}
