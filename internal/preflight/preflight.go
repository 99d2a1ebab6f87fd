// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package preflight checks whether a machine is ready for an Odoo install.
//
// The checks never change anything. They are shared by the doctor command
// and the installer's system check screen, which runs them one at a time.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/jeranaias/odoo-agent/internal/detect"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/outcome"
	"github.com/jeranaias/odoo-agent/internal/setup"
)

// DefaultMinFreeBytes is the free space below which the disk check warns.
// An Odoo branch archive plus its extracted tree is roughly 1.5 GB.
const DefaultMinFreeBytes = 2 << 30

// =============================================================================
// CHECK TYPES
// =============================================================================

// Status represents the status of a check.
type Status int

const (
	// Pending means the check has not run yet.
	Pending Status = iota
	Pass
	Warn
	Fail
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Check is a single preflight result.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// Locator finds an existing odoo-bin. *detect.Locator satisfies it.
type Locator interface {
	Locate(extra ...string) outcome.Result
}

// Options configures the checks. Zero values are usable.
type Options struct {
	Python       string
	TargetDir    string
	DownloadHost string
	GeminiAPIKey string
	MinFreeBytes uint64

	Runner  setup.Runner
	Client  *http.Client
	Locator Locator
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Python == "" {
		o.Python = setup.DefaultPython()
	}
	if o.TargetDir == "" {
		o.TargetDir = "."
	}
	if o.DownloadHost == "" {
		o.DownloadHost = "https://github.com"
	}
	if o.MinFreeBytes == 0 {
		o.MinFreeBytes = DefaultMinFreeBytes
	}
	if o.Runner == nil {
		o.Runner = setup.ExecRunner{}
	}
	if o.Client == nil {
		o.Client = cleanhttp.DefaultClient()
	}
	if o.Locator == nil {
		o.Locator = detect.New(nil)
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// =============================================================================
// CHECK LIST
// =============================================================================

type checkFunc func(ctx context.Context, o Options) Check

var checks = []struct {
	name string
	fn   checkFunc
}{
	{"Operating System", checkOS},
	{"Python", checkPython},
	{"pip", checkPip},
	{"Disk Space", checkDisk},
	{"Existing Odoo", checkExisting},
	{"Archive Host", checkNetwork},
	{"Gemini API Key", checkGeminiKey},
}

// Names returns the check names in run order.
func Names() []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.name
	}
	return out
}

// PendingChecks returns every check in the Pending state, for display before they run.
func PendingChecks() []Check {
	out := make([]Check, len(checks))
	for i, c := range checks {
		out[i] = Check{Name: c.name, Status: Pending}
	}
	return out
}

// RunOne runs the check at index.
func RunOne(ctx context.Context, opts Options, index int) Check {
	if index < 0 || index >= len(checks) {
		return Check{Name: fmt.Sprintf("check %d", index), Status: Fail, Message: "no such check"}
	}
	c := checks[index]
	res := c.fn(ctx, opts.withDefaults())
	res.Name = c.name
	return res
}

// Run runs every check in order.
func Run(ctx context.Context, opts Options) []Check {
	out := make([]Check, len(checks))
	for i := range checks {
		out[i] = RunOne(ctx, opts, i)
	}
	return out
}

// Summarize counts results by status.
func Summarize(results []Check) (passed, warned, failed int) {
	for _, c := range results {
		switch c.Status {
		case Pass:
			passed++
		case Warn:
			warned++
		case Fail:
			failed++
		}
	}
	return passed, warned, failed
}

// =============================================================================
// CHECKS
// =============================================================================

func checkOS(_ context.Context, _ Options) Check {
	return Check{
		Status:  Pass,
		Message: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func checkPython(ctx context.Context, o Options) Check {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	out, err := o.Runner.Run(ctx, "", o.Python, "--version")
	if err != nil {
		return Check{
			Status:  Fail,
			Message: fmt.Sprintf("%s not found", o.Python),
			Fix:     "Install Python 3.10 or newer, or set install.python",
		}
	}
	return Check{Status: Pass, Message: strings.TrimSpace(string(out))}
}

func checkPip(ctx context.Context, o Options) Check {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	out, err := o.Runner.Run(ctx, "", o.Python, "-m", "pip", "--version")
	if err != nil {
		return Check{
			Status:  Warn,
			Message: "pip unavailable (only needed for real installs)",
			Fix:     fmt.Sprintf("Run: %s -m ensurepip --upgrade", o.Python),
		}
	}
	fields := strings.Fields(string(out))
	msg := strings.TrimSpace(string(out))
	if len(fields) >= 2 {
		msg = fields[0] + " " + fields[1]
	}
	return Check{Status: Pass, Message: msg}
}

func checkDisk(_ context.Context, o Options) Check {
	dir := existingParent(o.TargetDir)
	free, err := freeDiskSpace(dir)
	if err != nil {
		return Check{Status: Warn, Message: fmt.Sprintf("could not read free space for %s", dir)}
	}

	msg := fmt.Sprintf("%s free at %s", humanize.IBytes(free), dir)
	if free < o.MinFreeBytes {
		return Check{
			Status:  Warn,
			Message: msg,
			Fix:     fmt.Sprintf("Free up space or choose a target with at least %s", humanize.IBytes(o.MinFreeBytes)),
		}
	}
	return Check{Status: Pass, Message: msg}
}

func checkExisting(_ context.Context, o Options) Check {
	res := o.Locator.Locate()
	if res.OK {
		return Check{Status: Pass, Message: "found " + res.Payload + " (download will be skipped)"}
	}
	if res.Kind() == outcome.KindNotFound {
		return Check{Status: Pass, Message: "none found, source will be downloaded"}
	}
	return Check{Status: Warn, Message: res.Message()}
}

func checkNetwork(ctx context.Context, o Options) Check {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.DownloadHost, nil)
	if err != nil {
		return Check{Status: Fail, Message: fmt.Sprintf("invalid download host %q", o.DownloadHost)}
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Check{
			Status:  Warn,
			Message: fmt.Sprintf("%s unreachable", o.DownloadHost),
			Fix:     "Check your connection or set download.host to a reachable mirror",
		}
	}
	resp.Body.Close()
	return Check{Status: Pass, Message: fmt.Sprintf("%s reachable (HTTP %d)", o.DownloadHost, resp.StatusCode)}
}

func checkGeminiKey(_ context.Context, o Options) Check {
	if gemini.ResolveKey(o.GeminiAPIKey) == "" {
		return Check{
			Status:  Warn,
			Message: "no key configured, the Gemini step will fail",
			Fix:     "Run: export " + gemini.EnvAPIKey + "=<your key>",
		}
	}
	return Check{Status: Pass, Message: "configured"}
}

// existingParent walks up from dir to the nearest directory that exists.
func existingParent(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	for {
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return abs
		}
		abs = parent
	}
}
