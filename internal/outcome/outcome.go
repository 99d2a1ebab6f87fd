// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package outcome defines the result shape shared by every installation step.
//
// A step never panics across its boundary and never returns a bare error.
// It returns a Result whose Err carries a Kind, so callers can branch on the
// cause of a failure instead of parsing log text.
package outcome

import (
	"errors"
	"fmt"
)

// Kind classifies why a step did not succeed.
type Kind int

const (
	// KindNone is the zero value used by successful results.
	KindNone Kind = iota
	// KindNotFound means the locator found no executable. Benign.
	KindNotFound
	// KindTransport is a network failure or a non-2xx download response.
	KindTransport
	// KindMalformedArchive is a corrupt or hostile archive.
	KindMalformedArchive
	// KindUnsupportedFormat is an archive extension other than .zip or .tar.gz.
	KindUnsupportedFormat
	// KindMissingManifest means requirements.txt was absent. Benign.
	KindMissingManifest
	// KindDependencyInstall is a non-zero exit from the package installer.
	KindDependencyInstall
	// KindMissingServerBinary means odoo-bin was not found under the source path.
	KindMissingServerBinary
	// KindMissingCredential means no Gemini API key was configured.
	KindMissingCredential
	// KindUnexpected covers everything else, including recovered panics.
	KindUnexpected
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindMalformedArchive:
		return "malformed_archive"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindMissingManifest:
		return "missing_manifest"
	case KindDependencyInstall:
		return "dependency_install"
	case KindMissingServerBinary:
		return "missing_server_binary"
	case KindMissingCredential:
		return "missing_credential"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Benign reports whether a failure of this kind should not abort a workflow.
func (k Kind) Benign() bool {
	return k == KindNotFound || k == KindMissingManifest
}

// MarshalText lets a Kind appear as its name in JSON and TOML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a step failure carrying its kind and the step that produced it.
type Error struct {
	Step string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnexpected
// for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnexpected
}

// Result is what every step returns. Payload is a filesystem path on success
// and empty on failure.
type Result struct {
	OK      bool
	Payload string
	Err     *Error
}

// Success builds a successful result.
func Success(payload string) Result {
	return Result{OK: true, Payload: payload}
}

// Failure builds a failed result with an empty payload.
func Failure(step string, kind Kind, err error) Result {
	return Result{Err: &Error{Step: step, Kind: kind, Err: err}}
}

// Failf is Failure with a formatted error message.
func Failf(step string, kind Kind, format string, args ...any) Result {
	return Failure(step, kind, fmt.Errorf(format, args...))
}

// Kind returns the failure kind, or KindNone for a successful result.
func (r Result) Kind() Kind {
	if r.Err == nil {
		return KindNone
	}
	return r.Err.Kind
}

// Message returns the failure message, or "" for a successful result.
func (r Result) Message() string {
	if r.Err == nil || r.Err.Err == nil {
		return ""
	}
	return r.Err.Err.Error()
}

// Recover converts a panic into a KindUnexpected result. Use it deferred with
// a pointer to the named return value:
//
//	defer outcome.Recover("fetch", &res)
func Recover(step string, res *Result) {
	if r := recover(); r != nil {
		*res = Failf(step, KindUnexpected, "panic: %v", r)
	}
}
