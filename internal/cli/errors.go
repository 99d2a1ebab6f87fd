// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for odoo-agent commands.
//
// Commands always return errors and never print-and-return-nil. Execute
// displays the error once and maps it to an exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/odoo-agent/internal/outcome"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = 0
	// ExitGeneralError indicates a general or unexpected failure
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a settings file problem or a failed
	// dependency installation
	ExitConfigError = 3
	// ExitAuthError indicates a missing credential
	ExitAuthError = 4
	// ExitNetworkError indicates a download or connectivity failure
	ExitNetworkError = 5
	// ExitArchiveError indicates a malformed or unsupported archive
	ExitArchiveError = 6
	// ExitNotFoundError indicates a required binary was not found
	ExitNotFoundError = 7
)

// ExitCodeFor maps a step failure kind to a process exit code.
func ExitCodeFor(kind outcome.Kind) int {
	switch kind {
	case outcome.KindNone, outcome.KindNotFound, outcome.KindMissingManifest:
		return ExitSuccess
	case outcome.KindTransport:
		return ExitNetworkError
	case outcome.KindMalformedArchive, outcome.KindUnsupportedFormat:
		return ExitArchiveError
	case outcome.KindMissingServerBinary:
		return ExitNotFoundError
	case outcome.KindMissingCredential:
		return ExitAuthError
	case outcome.KindDependencyInstall:
		return ExitConfigError
	default:
		return ExitGeneralError
	}
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ExitError carries an explicit exit code out of a command.
type ExitError struct {
	Code int
	Err  error
	// Silent suppresses the error line when the command already reported.
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// GetExitCode returns the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ExitUsageError
	}

	if kind := outcome.KindOf(err); kind != outcome.KindNone {
		return ExitCodeFor(kind)
	}
	return ExitGeneralError
}

// DisplayError writes err in the standard "[ERROR]" format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Silent {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}
