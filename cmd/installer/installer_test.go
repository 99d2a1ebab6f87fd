// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/cli"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/outcome"
	"github.com/jeranaias/odoo-agent/internal/preflight"
)

// =============================================================================
// FIXTURES
// =============================================================================

type stubLocator struct {
	res outcome.Result
}

func (s stubLocator) Locate(...string) outcome.Result { return s.res }

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, string, ...string) ([]byte, error) {
	return []byte("Python 3.11.4"), nil
}

func (nopRunner) Start(string, string, string, ...string) (int, error) { return 1, nil }

// scriptedPrompter answers prompts in order, then reports end of input.
type scriptedPrompter struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompter) next(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Prompt(prompt string) (string, error) { return p.next(prompt) }

func (p *scriptedPrompter) PasswordPrompt(prompt string) (string, error) { return p.next(prompt) }

// existingInstall returns settings whose locator finds an odoo-bin in a
// temp directory, so no download happens.
func existingInstall(t *testing.T) (Settings, string) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")

	dir := t.TempDir()
	bin := filepath.Join(dir, "odoo-bin")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(host.Close)

	loc := stubLocator{res: outcome.Success(bin)}
	return Settings{
		Version:   "16.0",
		TargetDir: t.TempDir(),
		Preflight: preflight.Options{
			DownloadHost: host.URL,
			Runner:       nopRunner{},
			Client:       host.Client(),
			Locator:      loc,
		},
		Agent: agent.Options{
			Locator: loc,
			Runner:  nopRunner{},
		},
	}, dir
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// drive runs cmd and feeds every resulting message back into the model
// until no commands remain. Ticks are skipped.
func drive(t *testing.T, m *Installer, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case checkCompleteMsg, installCompleteMsg, eventMsg, eventsClosedMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

// =============================================================================
// TUI MODEL TESTS
// =============================================================================

func TestInstaller_StartsAtWelcome(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)

	assert.Equal(t, PhaseWelcome, m.phase)
	assert.Len(t, m.checks, len(preflight.Names()))
	assert.Contains(t, m.View(), "Press ENTER to begin")
	assert.Equal(t, "16.0", m.version)
}

func TestInstaller_SystemCheckRunsEveryCheck(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)

	_, cmd := m.Update(key("enter"))
	require.Equal(t, PhaseSystemCheck, m.phase)

	// Enter is ignored until every check has reported.
	m.Update(key("enter"))
	assert.Equal(t, PhaseSystemCheck, m.phase)

	drive(t, m, cmd)

	assert.True(t, m.checksDone())
	for _, c := range m.checks {
		assert.NotEqual(t, preflight.Pending, c.Status, c.Name)
	}
	assert.Contains(t, m.View(), "Press ENTER to continue")
}

func TestInstaller_ChecksDoneOpensForm(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.phase = PhaseSystemCheck
	m.currentCheck = len(m.checks)

	m.Update(key("enter"))

	assert.Equal(t, PhaseInputs, m.phase)
	require.NotNil(t, m.form)
	assert.Contains(t, m.View(), "Configure Your Installation")
}

func TestInstaller_QuitBeforeInstall(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)

	_, cmd := m.Update(key("q"))

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Aborted())
	assert.Equal(t, exitAborted, m.ExitCode())
	assert.Error(t, m.ctx.Err())
}

func TestInstaller_QIgnoredWhileInstalling(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.phase = PhaseInstalling

	_, cmd := m.Update(key("q"))

	assert.Nil(t, cmd)
	assert.False(t, m.Aborted())
}

func TestInstaller_ResolvedKeyFallback(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)

	t.Setenv("GEMINI_API_KEY", "from-env")
	assert.Equal(t, "from-env", m.resolvedKey())

	m.settings.ConfiguredKey = "from-settings"
	assert.Equal(t, "from-settings", m.resolvedKey())

	m.apiKey = "  from-form  "
	assert.Equal(t, "from-form", m.resolvedKey())
}

func TestInstaller_RequestIsRealInstall(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.version = " 17.0 "
	m.target = "/srv/odoo"

	req := m.request()

	assert.Equal(t, agent.Request{Version: "17.0", TargetDir: "/srv/odoo", RealInstall: true}, req)
}

func TestInstaller_InstallSucceeds(t *testing.T) {
	s, dir := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.phase = PhaseInstalling
	m.apiKey = "test-key"

	drive(t, m, m.startInstall())

	require.NotNil(t, m.Report())
	assert.True(t, m.Report().OK())
	assert.Equal(t, PhaseComplete, m.phase)
	assert.Equal(t, cli.ExitSuccess, m.ExitCode())
	assert.FileExists(t, filepath.Join(dir, "odoo.conf"))
	assert.NotEmpty(t, m.log)

	view := m.View()
	assert.Contains(t, view, "Installation Complete")
	assert.Contains(t, view, OdooURL)
}

func TestInstaller_InstallWithoutKeyFails(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.phase = PhaseInstalling

	drive(t, m, m.startInstall())

	require.NotNil(t, m.Report())
	assert.False(t, m.Report().OK())
	assert.Equal(t, cli.ExitAuthError, m.ExitCode())

	view := m.View()
	assert.Contains(t, view, "Installation failed")
	assert.Contains(t, view, "gemini")
	assert.NotContains(t, view, OdooURL)
}

func TestInstaller_RenderLogKeepsTail(t *testing.T) {
	s, _ := existingInstall(t)
	m := NewInstaller(context.Background(), s)
	m.width = 40
	for _, msg := range []string{"one", "two", "three"} {
		m.Update(eventMsg(events.Info("fetch", msg)))
	}
	m.Update(eventMsg(events.Error("setup", "a very long failure message that will not fit in forty cells")))

	out := m.renderLog(2)

	assert.NotContains(t, out, "two")
	assert.Contains(t, out, "three")
	assert.Contains(t, out, "...")
}

func TestFailureText(t *testing.T) {
	assert.Equal(t, "The installation did not finish.", failureText(nil))

	r := &agent.Report{Steps: []agent.StepReport{{
		Step:    "fetch",
		Status:  agent.StatusFailed,
		Kind:    outcome.KindTransport,
		Message: "HTTP 404",
	}}}
	got := failureText(r)
	assert.Contains(t, got, "Step: fetch")
	assert.Contains(t, got, "Reason: transport")
	assert.Contains(t, got, "HTTP 404")
}

// =============================================================================
// TEXT MODE TESTS
// =============================================================================

func TestTextInstaller_Success(t *testing.T) {
	s, dir := existingInstall(t)
	p := &scriptedPrompter{answers: []string{"", "", "", "secret-key-1234"}}
	var out bytes.Buffer

	code := runTextInstaller(context.Background(), &out, p, s)

	require.Equal(t, cli.ExitSuccess, code, out.String())
	assert.Contains(t, out.String(), "SYSTEM REQUIREMENTS CHECK")
	assert.Contains(t, out.String(), "[OK] Existing Odoo")
	assert.Contains(t, out.String(), "***********1234")
	assert.NotContains(t, out.String(), "secret-key-1234")
	assert.Contains(t, out.String(), "Odoo executable found, skipping download")
	assert.Contains(t, out.String(), "Result: SUCCESS")
	assert.Contains(t, out.String(), OdooURL)
	assert.FileExists(t, filepath.Join(dir, "odoo.conf"))
	assert.Contains(t, p.asked[1], "[16.0]")
}

func TestTextInstaller_MissingKey(t *testing.T) {
	s, _ := existingInstall(t)
	p := &scriptedPrompter{answers: []string{"", "17.0", "", ""}}
	var out bytes.Buffer

	code := runTextInstaller(context.Background(), &out, p, s)

	assert.Equal(t, cli.ExitAuthError, code)
	assert.Contains(t, out.String(), "no key, the Gemini step will fail")
	assert.Contains(t, out.String(), "Result: FAILED")
	assert.Contains(t, out.String(), "gemini step failed (missing_credential)")
}

func TestTextInstaller_Quit(t *testing.T) {
	s, _ := existingInstall(t)
	var out bytes.Buffer

	code := runTextInstaller(context.Background(), &out, &scriptedPrompter{answers: []string{"q"}}, s)

	assert.Equal(t, exitAborted, code)
	assert.Contains(t, out.String(), "Installation cancelled.")
	assert.NotContains(t, out.String(), "SYSTEM REQUIREMENTS CHECK")
}

func TestTextInstaller_EndOfInputCancels(t *testing.T) {
	s, _ := existingInstall(t)
	var out bytes.Buffer

	code := runTextInstaller(context.Background(), &out, &scriptedPrompter{answers: []string{""}}, s)

	assert.Equal(t, exitAborted, code)
	assert.NotContains(t, out.String(), "INSTALLING")
}

func TestAskRequest_KeyFallsBackToSettings(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	p := &scriptedPrompter{answers: []string{"18.0", "/opt/odoo", ""}}

	req, k, err := askRequest(p, Settings{ConfiguredKey: "from-settings"})

	require.NoError(t, err)
	assert.Equal(t, "18.0", req.Version)
	assert.Equal(t, "/opt/odoo", req.TargetDir)
	assert.True(t, req.RealInstall)
	assert.Equal(t, "from-settings", k)
	assert.Contains(t, p.asked[2], "settings file")
}

func TestPromptErr(t *testing.T) {
	assert.ErrorIs(t, promptErr(liner.ErrPromptAborted), errAborted)
	assert.ErrorIs(t, promptErr(io.EOF), errAborted)

	other := errors.New("tty gone")
	assert.Equal(t, other, promptErr(other))
}

func TestTextEventLine(t *testing.T) {
	line := textEventLine(events.Warn("setup", "requirements.txt not found", "path", "/x", "dir", "/y"))
	assert.Equal(t, "  [setup] requirements.txt not found (warn) dir=/y path=/x", line)

	assert.Equal(t, "  [fetch] Downloading", textEventLine(events.Info("fetch", "Downloading")))
}

func TestTextCheckLine(t *testing.T) {
	got := textCheckLine(preflight.Check{Name: "pip", Status: preflight.Fail, Message: "missing", Fix: "Run: python -m ensurepip"})
	assert.Equal(t, "  [FAIL] pip: missing\n       -> Run: python -m ensurepip", got)
}
