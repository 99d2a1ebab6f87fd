// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/gemini"
)

// installForm is the POST /install body, either form-encoded or JSON.
// Whether the run is real and where the archive comes from are server
// settings only.
type installForm struct {
	Version      string `form:"version" json:"version"`
	TargetDir    string `form:"target_dir" json:"target_dir"`
	GeminiAPIKey string `form:"gemini_api_key" json:"gemini_api_key"`
}

func (f installForm) request(defaults agent.Request) agent.Request {
	req := agent.Request{
		Version:     strings.TrimSpace(f.Version),
		TargetDir:   strings.TrimSpace(f.TargetDir),
		RealInstall: defaults.RealInstall,
		DownloadURL: defaults.DownloadURL,
	}
	if req.Version == "" {
		req.Version = defaults.Version
	}
	if req.TargetDir == "" {
		req.TargetDir = defaults.TargetDir
	}
	return req
}

// resolveKey applies the credential fallback: form, server secret, environment.
func (s *Server) resolveKey(formKey string) string {
	return gemini.ResolveKey(formKey, s.cfg.GeminiAPIKey)
}

// keyAvailable reports whether a run with a blank form key would still
// have a credential.
func (s *Server) keyAvailable() bool {
	return strings.TrimSpace(s.cfg.GeminiAPIKey) != "" || strings.TrimSpace(os.Getenv(gemini.EnvAPIKey)) != ""
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", gin.H{
		"Defaults":      s.cfg.Defaults,
		"KeyConfigured": s.keyAvailable(),
		"Version":       Version,
	})
}

func (s *Server) handleInstall(c *gin.Context) {
	var form installForm
	if err := c.ShouldBind(&form); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": "invalid request: " + err.Error(),
		})
		return
	}

	req := form.request(s.cfg.Defaults)
	key := s.resolveKey(form.GeminiAPIKey)
	if key == "" {
		s.logger.Warn("no Gemini API key available for web run")
	}

	// A closed browser tab must not abandon a half-extracted tree.
	ctx := context.WithoutCancel(c.Request.Context())
	report, captured, err := s.Install(ctx, req, key)
	if errors.Is(err, ErrBusy) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"ok":     report.OK(),
			"run_id": report.RunID,
			"report": report,
			"events": captured,
		})
		return
	}

	c.HTML(http.StatusOK, "result", gin.H{
		"Report":  report,
		"Events":  captured,
		"OK":      report.OK(),
		"Failure": report.Failure(),
		"Version": Version,
	})
}

func (s *Server) handleRun(c *gin.Context) {
	r, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"ok":    false,
			"error": "run not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     r.Report.OK(),
		"report": r.Report,
		"events": r.Events,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"status":  "healthy",
		"version": Version,
		"busy":    s.busy.Load(),
	})
}

// levelClass maps an event level to a CSS class in the result page.
func levelClass(l events.Level) string {
	switch l {
	case events.LevelError:
		return "error"
	case events.LevelWarn:
		return "warn"
	case events.LevelDebug:
		return "debug"
	default:
		return "info"
	}
}
