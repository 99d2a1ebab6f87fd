// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// FIXTURES
// =============================================================================

type stubLocator struct {
	res outcome.Result
}

func (s stubLocator) Locate(...string) outcome.Result { return s.res }

// newTestServer returns a server whose runs find an existing install in a
// temp directory, so no download happens.
func newTestServer(t *testing.T, mutate func(*Config)) (*Server, string) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	cfg := Config{
		RatePerMinute: 100,
		Defaults:      agent.Request{Version: "16.0", TargetDir: dir},
		Agent: agent.Options{
			Locator: stubLocator{res: outcome.Success(filepath.Join(dir, "odoo-bin"))},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), dir
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/install", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type installResponse struct {
	OK     bool   `json:"ok"`
	RunID  string `json:"run_id"`
	Report struct {
		State string `json:"state"`
		Steps []struct {
			Step   string `json:"step"`
			Status string `json:"status"`
			Kind   string `json:"kind"`
		} `json:"steps"`
	} `json:"report"`
	Events []struct {
		Step    string `json:"step"`
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"events"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) installResponse {
	t.Helper()
	var resp installResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["busy"])
}

func TestHandleIndex_WarnsWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No Gemini API key is configured")
	assert.Contains(t, w.Body.String(), `name="gemini_api_key"`)
	assert.Contains(t, w.Body.String(), `value="16.0"`)
}

func TestHandleIndex_ServerSecretSuppressesWarning(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.GeminiAPIKey = "server-secret" })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, w.Body.String(), "No Gemini API key is configured")
}

func TestHandleInstall_JSONSuccess(t *testing.T) {
	s, dir := newTestServer(t, nil)

	w := postJSON(t, s.Handler(), `{"gemini_api_key":"form-key"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.OK)
	assert.Equal(t, "succeeded", resp.Report.State)
	assert.NotEmpty(t, resp.RunID)
	assert.FileExists(t, filepath.Join(dir, "odoo.conf"))

	var messages []string
	for _, e := range resp.Events {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Odoo installation process completed successfully")
}

func TestHandleInstall_FallsBackToServerSecret(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.GeminiAPIKey = "server-secret" })

	resp := decode(t, postJSON(t, s.Handler(), `{}`))

	assert.True(t, resp.OK)
}

func TestHandleInstall_FallsBackToEnvironment(t *testing.T) {
	s, _ := newTestServer(t, nil)
	t.Setenv("GEMINI_API_KEY", "env-key")

	resp := decode(t, postJSON(t, s.Handler(), `{}`))

	assert.True(t, resp.OK)
}

func TestHandleInstall_NoKeyFailsAtGate(t *testing.T) {
	s, _ := newTestServer(t, nil)

	resp := decode(t, postJSON(t, s.Handler(), `{}`))

	assert.False(t, resp.OK)
	require.NotEmpty(t, resp.Report.Steps)
	last := resp.Report.Steps[len(resp.Report.Steps)-1]
	assert.Equal(t, "gemini", last.Step)
	assert.Equal(t, "failed", last.Status)
	assert.Equal(t, outcome.KindMissingCredential.String(), last.Kind)

	require.NotEmpty(t, resp.Events)
	assert.Equal(t, "warn", resp.Events[0].Level)
	assert.Contains(t, resp.Events[0].Message, "No Gemini API key provided")
}

func TestHandleInstall_HTMLForm(t *testing.T) {
	s, _ := newTestServer(t, nil)

	form := url.Values{"version": {"17.0"}, "gemini_api_key": {"k"}}
	req := httptest.NewRequest(http.MethodPost, "/install", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "succeeded")
	assert.Contains(t, body, "version 17.0")
	assert.Contains(t, body, "simulated")
	assert.NotContains(t, body, "http://localhost:8069")
}

// recordingRunner records every command the workflow spawns.
type recordingRunner struct {
	calls []string
}

func (r *recordingRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return nil, nil
}

func (r *recordingRunner) Start(_ string, _ string, name string, args ...string) (int, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return 1, nil
}

func postForm(h http.Handler, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/install", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleInstall_CrossSiteRejected(t *testing.T) {
	runner := &recordingRunner{}
	s, dir := newTestServer(t, func(c *Config) { c.Agent.Runner = runner })
	form := url.Values{
		"gemini_api_key": {"k"},
		"real_install":   {"true"},
		"download_url":   {"http://attacker.example/evil.zip"},
	}

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"foreign origin", map[string]string{"Origin": "https://attacker.example"}},
		{"opaque origin", map[string]string{"Origin": "null"}},
		{"fetch metadata", map[string]string{"Sec-Fetch-Site": "cross-site"}},
		{"same site other origin", map[string]string{"Sec-Fetch-Site": "same-site"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(s.Handler(), form, tt.headers)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Contains(t, w.Body.String(), "cross-site")
		})
	}
	assert.Empty(t, runner.calls)
	assert.NoFileExists(t, filepath.Join(dir, "odoo.conf"))
}

func TestHandleInstall_SameOriginAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := postForm(s.Handler(), url.Values{"gemini_api_key": {"k"}}, map[string]string{
		"Origin":         "http://example.com",
		"Sec-Fetch-Site": "same-origin",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "succeeded")
}

func TestHandleInstall_FormCannotForceRealInstall(t *testing.T) {
	runner := &recordingRunner{}
	s, _ := newTestServer(t, func(c *Config) { c.Agent.Runner = runner })

	w := postForm(s.Handler(), url.Values{
		"gemini_api_key": {"k"},
		"real_install":   {"true"},
		"download_url":   {"http://attacker.example/evil.zip"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "simulated")
	assert.Empty(t, runner.calls)
}

func TestHandleIndex_NoRealInstallToggle(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, w.Body.String(), `name="real_install"`)
	assert.Contains(t, w.Body.String(), "Simulated installation")
}

func TestHandleInstall_BusyReturnsConflict(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.installMu.Lock()
	defer s.installMu.Unlock()

	w := postJSON(t, s.Handler(), `{"gemini_api_key":"k"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), ErrBusy.Error())
}

func TestHandleInstall_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.RatePerMinute = 1 })

	first := postJSON(t, s.Handler(), `{"gemini_api_key":"k"}`)
	second := postJSON(t, s.Handler(), `{"gemini_api_key":"k"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestHandleRun(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := decode(t, postJSON(t, s.Handler(), `{"gemini_api_key":"k"}`))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+resp.RunID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.RunID)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

// =============================================================================
// UNIT TESTS
// =============================================================================

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestInstallForm_RequestDefaults(t *testing.T) {
	defaults := agent.Request{Version: "16.0", TargetDir: "odoo_installation", DownloadURL: "http://mirror/x.zip", RealInstall: true}

	req := installForm{Version: " 17.0 "}.request(defaults)

	assert.Equal(t, "17.0", req.Version)
	assert.Equal(t, "odoo_installation", req.TargetDir)
	assert.Equal(t, "http://mirror/x.zip", req.DownloadURL)
	assert.True(t, req.RealInstall)
}

func TestRunStoreEvictsOldest(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for i := 0; i < maxRuns+1; i++ {
		s.store(&run{Report: &agent.Report{RunID: string(rune('a' + i%26)) + strings.Repeat("x", i)}})
	}

	_, ok := s.lookup("a")
	assert.False(t, ok)
	assert.Len(t, s.runs, maxRuns)
}
