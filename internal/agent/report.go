// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// =============================================================================
// STEP STATUS
// =============================================================================

// StepStatus is the outcome of a single workflow step.
type StepStatus string

const (
	StatusSuccess StepStatus = "success"
	StatusFailed  StepStatus = "failed"
	// StatusNotFound marks a benign miss, such as no existing installation.
	StatusNotFound StepStatus = "not_found"
	StatusSkipped  StepStatus = "skipped"
)

// State is the terminal state of a run.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// StepReport records one step of a run.
type StepReport struct {
	Step     string        `json:"step"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Payload  string        `json:"payload,omitempty"`
	Kind     outcome.Kind  `json:"kind"`
	Message  string        `json:"message,omitempty"`
}

// Report is the record of one installation run.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Request   Request   `json:"request"`
	// DryRun is true when no system changes beyond odoo.conf were made.
	DryRun      bool         `json:"dry_run"`
	Steps       []StepReport `json:"steps"`
	State       State        `json:"state"`
	ConfigPath  string       `json:"config_path,omitempty"`
	InstallRoot string       `json:"install_root,omitempty"`
}

// OK reports whether the run succeeded.
func (r *Report) OK() bool {
	return r.State == StateSucceeded
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Failure returns the step that ended the run, or nil for a successful run.
func (r *Report) Failure() *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Step returns the report for the named step, or nil if it was never recorded.
func (r *Report) Step(name string) *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

func (r *Report) record(step string, res outcome.Result, d time.Duration) {
	sr := StepReport{
		Step:     step,
		Duration: d,
		Payload:  res.Payload,
		Kind:     res.Kind(),
		Message:  res.Message(),
	}
	switch {
	case res.OK:
		sr.Status = StatusSuccess
	case res.Kind().Benign():
		sr.Status = StatusNotFound
	default:
		sr.Status = StatusFailed
	}
	r.Steps = append(r.Steps, sr)
}

func (r *Report) skip(step, reason string) {
	r.Steps = append(r.Steps, StepReport{Step: step, Status: StatusSkipped, Message: reason})
}

// Markdown renders the report as a short markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder

	result := "SUCCESS"
	if !r.OK() {
		result = "FAILED"
	}
	mode := "real install"
	if r.DryRun {
		mode = "simulated"
	}

	fmt.Fprintf(&b, "# Odoo installation: %s\n\n", result)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- **Version:** %s\n", r.Request.Version)
	fmt.Fprintf(&b, "- **Mode:** %s\n", mode)
	fmt.Fprintf(&b, "- **Duration:** %s\n", r.Duration().Round(time.Millisecond))
	if r.InstallRoot != "" {
		fmt.Fprintf(&b, "- **Source:** `%s`\n", r.InstallRoot)
	}
	if r.ConfigPath != "" {
		fmt.Fprintf(&b, "- **Config:** `%s`\n", r.ConfigPath)
	}

	b.WriteString("\n| Step | Status | Duration | Detail |\n|---|---|---|---|\n")
	for _, s := range r.Steps {
		detail := s.Payload
		if s.Message != "" {
			detail = s.Message
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			s.Step, s.Status, s.Duration.Round(time.Millisecond), strings.ReplaceAll(detail, "|", `\|`))
	}

	if f := r.Failure(); f != nil {
		fmt.Fprintf(&b, "\n> **%s** failed (%s): %s\n", f.Step, f.Kind, f.Message)
	}
	return b.String()
}
