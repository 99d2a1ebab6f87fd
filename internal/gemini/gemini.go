// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini gates the workflow on a Google Gemini credential.
//
// No request is sent to Google. The gate checks that an API key is present
// and reports the integration steps a real client would perform against the
// freshly configured Odoo instance.
package gemini

import (
	"errors"
	"os"
	"strings"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// Step is the step name used in events and results.
const Step = "gemini"

// EnvAPIKey is the environment variable consulted by front ends.
const EnvAPIKey = "GEMINI_API_KEY"

// ErrMissingCredential is wrapped when no API key is configured.
var ErrMissingCredential = errors.New("Gemini API key not found in configuration")

// Options carries the credential for the gate.
type Options struct {
	APIKey string
}

// InstanceDetails describes the Odoo instance being integrated.
type InstanceDetails struct {
	URL       string `json:"url"`
	AdminUser string `json:"admin_user"`
}

// DefaultInstance is the placeholder used after a successful setup.
var DefaultInstance = InstanceDetails{
	URL:       "http://localhost:8069",
	AdminUser: "admin",
}

// Gate performs the simulated Gemini integration.
type Gate struct {
	sink events.Sink
}

// New creates a gate reporting to sink.
func New(sink events.Sink) *Gate {
	return &Gate{sink: events.OrDiscard(sink)}
}

// Check fails with KindMissingCredential when opts has no usable key. A
// successful result carries no payload.
func (g *Gate) Check(opts Options, details InstanceDetails) (res outcome.Result) {
	defer outcome.Recover(Step, &res)

	g.sink.Emit(events.Info(Step, "Starting Google Gemini API integration"))
	g.sink.Emit(events.Info(Step, "Authenticating with Google Gemini API (simulated)"))

	if strings.TrimSpace(opts.APIKey) == "" {
		g.sink.Emit(events.Error(Step, "Google Gemini API key not found in configuration"))
		return outcome.Failure(Step, outcome.KindMissingCredential, ErrMissingCredential)
	}

	g.sink.Emit(events.Info(Step, "Gemini authentication simulated with provided key", "key", MaskKey(opts.APIKey)))
	g.sink.Emit(events.Info(Step, "Integrating Gemini generative tasks (simulated)",
		"instance_url", details.URL, "admin_user", details.AdminUser))
	g.sink.Emit(events.Info(Step, "Google Gemini API integration completed successfully"))

	// No file comes out of this step, so the payload stays empty.
	return outcome.Success("")
}

// ResolveKey returns the first non-blank candidate, falling back to the
// GEMINI_API_KEY environment variable.
func ResolveKey(candidates ...string) string {
	for _, c := range candidates {
		if k := strings.TrimSpace(c); k != "" {
			return k
		}
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
