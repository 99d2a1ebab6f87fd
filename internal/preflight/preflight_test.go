// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/odoo-agent/internal/outcome"
)

type scriptedRunner struct {
	outputs map[string]string
}

func (s scriptedRunner) Run(_ context.Context, _, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	if out, ok := s.outputs[key]; ok {
		return []byte(out), nil
	}
	return nil, errors.New("exec: not found")
}

func (scriptedRunner) Start(string, string, string, ...string) (int, error) {
	return 0, errors.New("not supported")
}

type fixedLocator outcome.Result

func (f fixedLocator) Locate(...string) outcome.Result { return outcome.Result(f) }

func healthyOptions(t *testing.T) Options {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
	}))
	t.Cleanup(srv.Close)

	return Options{
		Python:       "python3",
		TargetDir:    filepath.Join(t.TempDir(), "not", "yet", "created"),
		DownloadHost: srv.URL,
		GeminiAPIKey: "key",
		MinFreeBytes: 1,
		Runner: scriptedRunner{outputs: map[string]string{
			"python3 --version":        "Python 3.11.4\n",
			"python3 -m pip --version": "pip 23.2 from /usr/lib/python3/dist-packages/pip (python 3.11)\n",
		}},
		Client:  srv.Client(),
		Locator: fixedLocator(outcome.Failf("detect", outcome.KindNotFound, "none")),
	}
}

func TestRun_AllPass(t *testing.T) {
	results := Run(context.Background(), healthyOptions(t))

	require.Len(t, results, len(Names()))
	for _, c := range results {
		assert.Equal(t, Pass, c.Status, "%s: %s", c.Name, c.Message)
	}
	assert.Equal(t, "Python 3.11.4", results[1].Message)
	assert.Equal(t, "pip 23.2", results[2].Message)

	passed, warned, failed := Summarize(results)
	assert.Equal(t, len(results), passed)
	assert.Zero(t, warned)
	assert.Zero(t, failed)
}

func TestRun_MissingPythonFails(t *testing.T) {
	opts := healthyOptions(t)
	opts.Runner = scriptedRunner{}

	results := Run(context.Background(), opts)

	assert.Equal(t, Fail, results[1].Status)
	assert.NotEmpty(t, results[1].Fix)
	assert.Equal(t, Warn, results[2].Status)
}

func TestRunOne_ExistingInstall(t *testing.T) {
	opts := healthyOptions(t)
	opts.Locator = fixedLocator(outcome.Success("/opt/odoo/odoo-bin"))

	c := RunOne(context.Background(), opts, 4)

	assert.Equal(t, "Existing Odoo", c.Name)
	assert.Equal(t, Pass, c.Status)
	assert.Contains(t, c.Message, "/opt/odoo/odoo-bin")
}

func TestRunOne_UnreachableHostWarns(t *testing.T) {
	opts := healthyOptions(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	opts.DownloadHost = srv.URL
	srv.Close()

	c := RunOne(context.Background(), opts, 5)
	assert.Equal(t, Warn, c.Status)
}

func TestRunOne_LowDiskWarns(t *testing.T) {
	opts := healthyOptions(t)
	opts.MinFreeBytes = 1 << 62

	c := RunOne(context.Background(), opts, 3)
	assert.Equal(t, Warn, c.Status)
	assert.NotEmpty(t, c.Fix)
}

func TestRunOne_MissingGeminiKeyWarns(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	opts := healthyOptions(t)
	opts.GeminiAPIKey = ""

	c := RunOne(context.Background(), opts, 6)
	assert.Equal(t, Warn, c.Status)
}

func TestRunOne_OutOfRange(t *testing.T) {
	assert.Equal(t, Fail, RunOne(context.Background(), Options{}, 99).Status)
}

func TestPendingChecks(t *testing.T) {
	pending := PendingChecks()
	require.Len(t, pending, len(Names()))
	for _, c := range pending {
		assert.Equal(t, Pending, c.Status)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pass", Pass.String())
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "fail", Fail.String())
	assert.Equal(t, "pending", Pending.String())
}

func TestExistingParent(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, existingParent(filepath.Join(dir, "a", "b")))
}
