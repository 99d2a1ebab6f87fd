// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for odoo-agent commands.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set.
// FORCE_COLOR overrides the TTY check.

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/preflight"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")). // Cyan
			MarginBottom(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(20)

	// ValueStyle is used for regular values
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for timestamps, attributes and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// StepStyle tags the workflow step an event came from
	StepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")). // Blue
			Width(8)

	fixStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			PaddingLeft(2)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal separator line. Default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string, width ...int) string {
	if len(width) > 0 && width[0] > 0 {
		return LabelStyle.Width(width[0]).Render(label)
	}
	return LabelStyle.Render(label)
}

// RenderResult renders the final "Result:" line of an installation.
func RenderResult(ok bool) string {
	if ok {
		return "Result: " + SuccessStyle.Render("SUCCESS")
	}
	return "Result: " + ErrorStyle.Render("FAILED")
}

// levelTag returns the colored bracket tag for an event level.
func levelTag(l events.Level) string {
	switch l {
	case events.LevelError:
		return ErrorStyle.Render("[FAIL]")
	case events.LevelWarn:
		return WarningStyle.Render("[WARN]")
	case events.LevelDebug:
		return DimStyle.Render("[DBG] ")
	default:
		return SuccessStyle.Render("[OK]  ")
	}
}

// RenderEvent formats a workflow event as a single terminal line.
func RenderEvent(e events.Event) string {
	var b strings.Builder
	b.WriteString(DimStyle.Render(e.Time.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(levelTag(e.Level))
	b.WriteString(" ")
	b.WriteString(StepStyle.Render(e.Step))
	b.WriteString(" ")
	b.WriteString(ValueStyle.Render(e.Message))

	fields := e.Fields()
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
		}
		b.WriteString(" ")
		b.WriteString(DimStyle.Render(strings.Join(parts, " ")))
	}
	return b.String()
}

// checkSymbol returns the bracket symbol for a preflight status.
func checkSymbol(s preflight.Status) string {
	switch s {
	case preflight.Pass:
		return SuccessStyle.Render("[OK]")
	case preflight.Warn:
		return WarningStyle.Render("[!!]")
	case preflight.Fail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return DimStyle.Render("[..]")
	}
}

// RenderCheck returns a formatted preflight result, with the fix hint on a
// second line when the check did not pass.
func RenderCheck(c preflight.Check) string {
	line := fmt.Sprintf("%s %s %s", checkSymbol(c.Status), RenderLabel(c.Name, 16), ValueStyle.Render(c.Message))
	if c.Status != preflight.Pass && c.Fix != "" {
		line += "\n" + fixStyle.Render("-> "+WrapText(c.Fix, GetTerminalWidth()-6))
	}
	return line
}
