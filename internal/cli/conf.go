// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/setup"
)

func newConfCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "conf <source_path>",
		Short: "Preview the odoo.conf setup would write",
		Long: `Print the odoo.conf that setup would write for source_path, without
touching the disk. Output is highlighted when colors are enabled (stdout is a
terminal and NO_COLOR is unset).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[0])
			if err != nil {
				return &ValidationError{Field: "source_path", Value: args[0], Reason: err.Error()}
			}
			data, err := setup.RenderConfig(src)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, DimStyle.Render("# "+setup.ConfigPath(src)))
			if plain || !ColorsEnabled() {
				fmt.Fprint(out, string(data))
				return nil
			}
			fmt.Fprint(out, highlightINI(string(data)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable syntax highlighting")
	return cmd
}

// highlightINI applies terminal syntax highlighting, returning the input
// unchanged if anything fails.
func highlightINI(text string) string {
	lexer := lexers.Get("ini")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return text
	}
	return buf.String()
}
