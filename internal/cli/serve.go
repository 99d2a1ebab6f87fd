// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web installer",
		Long: `Serve an installation form in the browser. Runs use the settings file
defaults; the Gemini key falls back from the form to web.gemini_api_key and
then GEMINI_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Web.Addr
			}
			gin.SetMode(gin.ReleaseMode)
			server.Version = Version

			srv := server.New(server.Config{
				Addr:          addr,
				RatePerMinute: a.cfg.Web.RatePerMinute,
				GeminiAPIKey:  a.cfg.Web.GeminiAPIKey,
				Defaults: agent.Request{
					Version:     a.cfg.Install.Version,
					TargetDir:   a.cfg.Install.TargetDir,
					RealInstall: a.cfg.Install.RealInstall,
				},
				Agent:  a.agentOptions(),
				Logger: a.logger,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("odoo-agent web installer"))
			fmt.Fprintf(out, "%shttp://%s\n", RenderLabel("Listening on:"), srv.Addr())
			fmt.Fprintln(out, DimStyle.Render("Press Ctrl+C to stop the server"))

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- srv.Start()
			}()

			select {
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-serverErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from settings, 127.0.0.1:8501)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for in-flight requests at shutdown")
	return cmd
}
