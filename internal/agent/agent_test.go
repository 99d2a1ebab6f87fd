// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/fetch"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// =============================================================================
// FIXTURES
// =============================================================================

type stubLocator struct {
	res outcome.Result
}

func (s stubLocator) Locate(...string) outcome.Result { return s.res }

func notFound() Locator {
	return stubLocator{res: outcome.Failf("detect", outcome.KindNotFound, "no odoo-bin executable found")}
}

type countingRunner struct {
	runs, starts atomic.Int32
}

func (c *countingRunner) Run(context.Context, string, string, ...string) ([]byte, error) {
	c.runs.Add(1)
	return nil, nil
}

func (c *countingRunner) Start(string, string, string, ...string) (int, error) {
	c.starts.Add(1)
	return 1, nil
}

// archiveServer serves a branch archive containing odoo-16.0/ and counts hits.
func archiveServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"odoo-16.0/odoo-bin", "odoo-16.0/requirements.txt", "odoo-16.0/addons/base/__init__.py"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

// Nothing installed, default URL, simulated mode, key present.
func TestRun_FreshSimulatedInstall(t *testing.T) {
	srv, hits := archiveServer(t)
	target := filepath.Join(t.TempDir(), "odoo_installation")
	runner := &countingRunner{}
	rec := events.NewRecorder()

	a := New(Options{
		GeminiAPIKey: "key-123",
		Locator:      notFound(),
		Sink:         rec,
		HTTPClient:   srv.Client(),
		Runner:       runner,
		Source:       fetch.Source{Host: srv.URL},
	})
	report := a.Run(context.Background(), Request{Version: "16.0", TargetDir: target})

	require.True(t, report.OK(), report.Markdown())
	assert.Nil(t, report.Failure())
	assert.True(t, report.DryRun)
	assert.Equal(t, int32(1), hits.Load())
	assert.Zero(t, runner.runs.Load())
	assert.Zero(t, runner.starts.Load())

	src := filepath.Join(target, "odoo_16.0_extracted", "odoo-16.0")
	assert.Equal(t, src, report.InstallRoot)
	assert.Equal(t, filepath.Join(src, "odoo.conf"), a.ConfigPath())
	assert.Equal(t, a.ConfigPath(), report.ConfigPath)
	assert.FileExists(t, a.ConfigPath())

	var names []string
	for _, s := range report.Steps {
		names = append(names, s.Step)
	}
	assert.Equal(t, []string{"detect", "fetch", "setup", "gemini"}, names)
	assert.Equal(t, StatusNotFound, report.Step("detect").Status)

	for _, e := range rec.Events() {
		assert.Equal(t, report.RunID, e.RunID)
	}
}

// Existing executable, so no download and setup runs in its directory.
func TestRun_ExistingInstallSkipsFetch(t *testing.T) {
	srv, hits := archiveServer(t)
	optDir := t.TempDir()
	bin := filepath.Join(optDir, "odoo-bin")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	a := New(Options{
		GeminiAPIKey: "key-123",
		Locator:      stubLocator{res: outcome.Success(bin)},
		HTTPClient:   srv.Client(),
		Runner:       &countingRunner{},
		Source:       fetch.Source{Host: srv.URL},
	})
	report := a.Run(context.Background(), Request{})

	require.True(t, report.OK())
	assert.Zero(t, hits.Load())
	assert.Equal(t, optDir, report.InstallRoot)
	assert.Equal(t, filepath.Join(optDir, "odoo.conf"), a.ConfigPath())
	assert.Equal(t, StatusSkipped, report.Step("fetch").Status)
	assert.Equal(t, DefaultVersion, report.Request.Version)
}

// Missing credential fails at the gate after setup already wrote odoo.conf.
func TestRun_MissingCredentialFailsAtGate(t *testing.T) {
	srv, _ := archiveServer(t)
	target := t.TempDir()

	a := New(Options{
		Locator:    notFound(),
		HTTPClient: srv.Client(),
		Runner:     &countingRunner{},
		Source:     fetch.Source{Host: srv.URL},
	})
	report := a.Run(context.Background(), Request{Version: "16.0", TargetDir: target})

	assert.False(t, report.OK())
	assert.False(t, a.Execute(context.Background(), Request{Version: "16.0", TargetDir: target}))

	f := report.Failure()
	require.NotNil(t, f)
	assert.Equal(t, "gemini", f.Step)
	assert.Equal(t, outcome.KindMissingCredential, f.Kind)

	assert.NotEmpty(t, a.ConfigPath())
	assert.FileExists(t, a.ConfigPath())
}

func TestRun_DownloadFailureStopsWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	runner := &countingRunner{}

	a := New(Options{
		GeminiAPIKey: "key",
		Locator:      notFound(),
		HTTPClient:   srv.Client(),
		Runner:       runner,
	})
	report := a.Run(context.Background(), Request{Version: "0.0", TargetDir: t.TempDir(), DownloadURL: srv.URL + "/x.zip", RealInstall: true})

	assert.Equal(t, StateFailed, report.State)
	assert.False(t, report.DryRun)
	f := report.Failure()
	require.NotNil(t, f)
	assert.Equal(t, "fetch", f.Step)
	assert.Equal(t, outcome.KindTransport, f.Kind)
	assert.Nil(t, report.Step("setup"))
	assert.Nil(t, report.Step("gemini"))
	assert.Empty(t, a.ConfigPath())
	assert.Zero(t, runner.runs.Load())
}

func TestRun_RealInstallUsesRunner(t *testing.T) {
	srv, _ := archiveServer(t)
	runner := &countingRunner{}

	a := New(Options{
		GeminiAPIKey: "key",
		Locator:      notFound(),
		HTTPClient:   srv.Client(),
		Runner:       runner,
		Source:       fetch.Source{Host: srv.URL},
	})
	report := a.Run(context.Background(), Request{Version: "16.0", TargetDir: t.TempDir(), RealInstall: true})

	require.True(t, report.OK(), report.Markdown())
	assert.Equal(t, int32(1), runner.runs.Load())
	assert.Equal(t, int32(1), runner.starts.Load())
}

func TestRun_LocatorErrorOtherThanNotFound(t *testing.T) {
	a := New(Options{
		GeminiAPIKey: "key",
		Locator:      stubLocator{res: outcome.Failf("detect", outcome.KindUnexpected, "panic: boom")},
	})
	report := a.Run(context.Background(), Request{TargetDir: t.TempDir()})

	f := report.Failure()
	require.NotNil(t, f)
	assert.Equal(t, "detect", f.Step)
	assert.Nil(t, report.Step("fetch"))
}

func TestReport_Markdown(t *testing.T) {
	a := New(Options{Locator: stubLocator{res: outcome.Failf("detect", outcome.KindUnexpected, "a|b")}})
	report := a.Run(context.Background(), Request{TargetDir: t.TempDir()})

	md := report.Markdown()
	assert.Contains(t, md, "# Odoo installation: FAILED")
	assert.Contains(t, md, `a\|b`)
	assert.Contains(t, md, "**detect** failed (unexpected)")
}
