// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/cli"
	"github.com/jeranaias/odoo-agent/internal/events"
	"github.com/jeranaias/odoo-agent/internal/gemini"
	"github.com/jeranaias/odoo-agent/internal/preflight"
	"github.com/jeranaias/odoo-agent/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Colors
	brandPrimary   = lipgloss.Color("#714B67") // Odoo purple
	brandSecondary = lipgloss.Color("#017E84") // Teal
	brandAccent    = lipgloss.Color("#10B981") // Emerald
	brandWarning   = lipgloss.Color("#F59E0B") // Amber
	brandError     = lipgloss.Color("#EF4444") // Red
	textMuted      = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	highlightStyle = lipgloss.NewStyle().
			Foreground(brandSecondary).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)
)

const logo = `
     ___      _
    / _ \  __| | ___   ___
   | | | |/ _' |/ _ \ / _ \
   | |_| | (_| | (_) | (_) |
    \___/ \__,_|\___/ \___/
`

const tagline = "Download, configure and start an Odoo server in one go"

// OdooURL is where a started server listens.
const OdooURL = "http://localhost:8069"

// maxFailureRunes caps the failure message, which may carry pip output.
const maxFailureRunes = 600

// maxLogLines bounds the live event list on the installing screen.
const maxLogLines = 12

// =============================================================================
// INSTALLER MODEL
// =============================================================================

// Phase represents the current installation phase
type Phase int

const (
	PhaseWelcome Phase = iota
	PhaseSystemCheck
	PhaseInputs
	PhaseInstalling
	PhaseComplete
)

// Settings are the defaults and collaborators the installer runs with.
type Settings struct {
	Version   string
	TargetDir string
	// ConfiguredKey is the gemini.api_key setting; GEMINI_API_KEY is consulted after it.
	ConfiguredKey string

	Preflight preflight.Options
	Agent     agent.Options
}

// Installer is the main installer model
type Installer struct {
	phase        Phase
	width        int
	height       int
	spinner      spinner.Model
	checks       []preflight.Check
	currentCheck int

	settings Settings
	form     *huh.Form
	version  string
	target   string
	apiKey   string

	ctx    context.Context
	cancel context.CancelFunc

	eventCh chan events.Event
	log     []events.Event
	report  *agent.Report
	aborted bool
}

// NewInstaller creates a new installer instance
func NewInstaller(ctx context.Context, s Settings) *Installer {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	if s.Version == "" {
		s.Version = agent.DefaultVersion
	}
	if s.TargetDir == "" {
		s.TargetDir = agent.DefaultTargetDir
	}
	s.Preflight.TargetDir = s.TargetDir

	ctx, cancel := context.WithCancel(ctx)
	return &Installer{
		phase:    PhaseWelcome,
		spinner:  sp,
		checks:   preflight.PendingChecks(),
		settings: s,
		version:  s.Version,
		target:   s.TargetDir,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the installer
func (i *Installer) Init() tea.Cmd {
	return i.spinner.Tick
}

// Report returns the finished run, or nil before the install completes.
func (i *Installer) Report() *agent.Report {
	return i.report
}

// Aborted reports whether the user quit before the install finished.
func (i *Installer) Aborted() bool {
	return i.aborted
}

// =============================================================================
// UPDATE
// =============================================================================

// checkCompleteMsg signals a check is complete
type checkCompleteMsg struct {
	index  int
	result preflight.Check
}

// eventMsg carries one workflow event to the view.
type eventMsg events.Event

// eventsClosedMsg signals that the run emits no more events.
type eventsClosedMsg struct{}

// installCompleteMsg signals installation is complete
type installCompleteMsg struct {
	report *agent.Report
}

// Update handles messages
func (i *Installer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return i.quit()
		}
		if i.phase == PhaseInputs {
			return i.updateForm(msg)
		}
		return i.handleKey(msg)

	case tea.WindowSizeMsg:
		i.width = msg.Width
		i.height = msg.Height

		boxWidth := msg.Width - 16
		if boxWidth < 40 {
			boxWidth = 40
		}
		if boxWidth > 76 {
			boxWidth = 76
		}
		boxStyle = boxStyle.Width(boxWidth)

		if i.phase == PhaseInputs {
			return i.updateForm(msg)
		}
		return i, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		i.spinner, cmd = i.spinner.Update(msg)
		return i, cmd

	case checkCompleteMsg:
		i.checks[msg.index] = msg.result
		i.currentCheck++
		if i.currentCheck < len(i.checks) {
			return i, i.runCheck(i.currentCheck)
		}
		return i, nil

	case eventMsg:
		i.log = append(i.log, events.Event(msg))
		return i, waitForEvent(i.eventCh)

	case eventsClosedMsg:
		return i, nil

	case installCompleteMsg:
		i.report = msg.report
		i.phase = PhaseComplete
		return i, nil
	}

	if i.phase == PhaseInputs {
		return i.updateForm(msg)
	}
	return i, nil
}

// handleKey processes key presses outside the form
func (i *Installer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		if i.phase == PhaseInstalling {
			return i, nil
		}
		return i.quit()

	case "enter", " ":
		return i.handleSelect()
	}
	return i, nil
}

// handleSelect processes enter
func (i *Installer) handleSelect() (tea.Model, tea.Cmd) {
	switch i.phase {
	case PhaseWelcome:
		i.phase = PhaseSystemCheck
		return i, i.runCheck(0)

	case PhaseSystemCheck:
		if !i.checksDone() {
			return i, nil
		}
		i.phase = PhaseInputs
		i.form = i.newForm()
		return i, i.form.Init()

	case PhaseComplete:
		return i, tea.Quit
	}
	return i, nil
}

func (i *Installer) quit() (tea.Model, tea.Cmd) {
	if i.report == nil {
		i.aborted = true
	}
	i.cancel()
	return i, tea.Quit
}

func (i *Installer) checksDone() bool {
	return i.currentCheck >= len(i.checks)
}

// updateForm forwards msg to the input form and starts the install once it
// is submitted.
func (i *Installer) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if i.form == nil {
		return i, nil
	}
	form, cmd := i.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		i.form = f
	}

	switch i.form.State {
	case huh.StateAborted:
		return i.quit()
	case huh.StateCompleted:
		i.phase = PhaseInstalling
		return i, tea.Batch(i.spinner.Tick, i.startInstall())
	}
	return i, cmd
}

// =============================================================================
// FORM
// =============================================================================

func (i *Installer) newForm() *huh.Form {
	keyHint := "Leave blank to use GEMINI_API_KEY"
	if i.settings.ConfiguredKey != "" {
		keyHint = "Leave blank to use the key from your settings file"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("version").
				Title("Odoo version").
				Description("Branch to download, e.g. 16.0 or 17.0").
				Value(&i.version).
				Validate(required("version")),
			huh.NewInput().
				Key("target").
				Title("Target directory").
				Description("The archive is downloaded and extracted here").
				Value(&i.target).
				Validate(required("target directory")),
			huh.NewInput().
				Key("gemini_key").
				Title("Gemini API key").
				Description(keyHint).
				EchoMode(huh.EchoModePassword).
				Value(&i.apiKey),
		).Title("Installation settings"),
	).WithShowHelp(true)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// runCheck runs one preflight check
func (i *Installer) runCheck(index int) tea.Cmd {
	opts := i.settings.Preflight
	ctx := i.ctx
	return func() tea.Msg {
		return checkCompleteMsg{index: index, result: preflight.RunOne(ctx, opts, index)}
	}
}

// request builds the run from the form values.
func (i *Installer) request() agent.Request {
	return agent.Request{
		Version:     strings.TrimSpace(i.version),
		TargetDir:   strings.TrimSpace(i.target),
		RealInstall: true,
	}
}

// resolvedKey applies the fallback chain: form, settings file, environment.
func (i *Installer) resolvedKey() string {
	return gemini.ResolveKey(strings.TrimSpace(i.apiKey), i.settings.ConfiguredKey)
}

// startInstall runs the workflow in the background. Events stream to the
// view until the run returns.
func (i *Installer) startInstall() tea.Cmd {
	i.eventCh = make(chan events.Event, 256)
	rec := events.NewRecorder()
	rec.Notify(i.eventCh)

	opts := i.settings.Agent
	opts.GeminiAPIKey = i.resolvedKey()
	opts.Sink = events.Multi(rec, opts.Sink)
	req := i.request()
	ctx, ch := i.ctx, i.eventCh

	run := func() tea.Msg {
		report := agent.New(opts).Run(ctx, req)
		close(ch)
		return installCompleteMsg{report: report}
	}
	return tea.Batch(run, waitForEvent(ch))
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the installer
func (i *Installer) View() string {
	switch i.phase {
	case PhaseWelcome:
		return i.viewWelcome()
	case PhaseSystemCheck:
		return i.viewSystemCheck()
	case PhaseInputs:
		return i.viewInputs()
	case PhaseInstalling:
		return i.viewInstalling()
	case PhaseComplete:
		return i.viewComplete()
	}
	return ""
}

func (i *Installer) viewWelcome() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Foreground(brandPrimary).Bold(true).Render(logo))
	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("    " + tagline))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render(fmt.Sprintf("    Version %s", version)))
	s.WriteString("\n\n")

	welcomeText := `Welcome to the Odoo installer!

This installer will:

  * Check your system requirements
  * Ask for the Odoo version and a target directory
  * Download and extract the Odoo source (unless odoo-bin exists)
  * Install the Python requirements and write odoo.conf
  * Start the Odoo server`
	s.WriteString(boxStyle.Render(welcomeText))
	s.WriteString("\n\n")

	s.WriteString(highlightStyle.Render("  Press ENTER to begin"))
	s.WriteString(dimStyle.Render("  |  Press Q to quit"))

	return i.center(s.String())
}

func (i *Installer) viewSystemCheck() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  System Requirements Check"))
	s.WriteString("\n\n")

	for idx, check := range i.checks {
		icon, style := checkIcon(check.Status)
		status := check.Message
		if check.Status == preflight.Pending {
			status = "Checking..."
			if idx == i.currentCheck {
				icon = i.spinner.View()
			}
		}

		s.WriteString(fmt.Sprintf("  %s %s", style.Render(util.PadRight(icon, 6)), check.Name))
		s.WriteString(dimStyle.Render(" - " + status))
		s.WriteString("\n")
		if check.Fix != "" {
			s.WriteString(dimStyle.Render("      -> " + check.Fix))
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")

	if i.checksDone() {
		_, _, failed := preflight.Summarize(i.checks)
		if failed == 0 {
			s.WriteString(successStyle.Render("  All checks passed!"))
			s.WriteString("\n\n")
			s.WriteString(highlightStyle.Render("  Press ENTER to continue"))
		} else {
			s.WriteString(warningStyle.Render("  Some checks need attention"))
			s.WriteString("\n\n")
			s.WriteString(highlightStyle.Render("  Press ENTER to continue anyway"))
		}
	}

	return i.center(s.String())
}

func checkIcon(st preflight.Status) (string, lipgloss.Style) {
	switch st {
	case preflight.Pass:
		return "[OK]", successStyle
	case preflight.Warn:
		return "[!!]", warningStyle
	case preflight.Fail:
		return "[FAIL]", errorStyle
	default:
		return "[ ]", dimStyle
	}
}

func (i *Installer) viewInputs() string {
	if i.form == nil {
		return ""
	}
	var s strings.Builder
	s.WriteString(titleStyle.Render("  Configure Your Installation"))
	s.WriteString("\n\n")
	s.WriteString(i.form.View())
	return i.center(s.String())
}

func (i *Installer) viewInstalling() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Installing Odoo " + i.request().Version))
	s.WriteString("\n\n")

	step := "starting"
	if n := len(i.log); n > 0 {
		step = i.log[n-1].Step
	}
	s.WriteString(fmt.Sprintf("  %s Running %s...\n", i.spinner.View(), step))
	s.WriteString(dimStyle.Render("     Downloading and installing requirements may take a few minutes"))
	s.WriteString("\n\n")

	s.WriteString(i.renderLog(maxLogLines))
	return i.center(s.String())
}

// renderLog renders the last n events, one line each, cut to the screen width.
func (i *Installer) renderLog(n int) string {
	start := 0
	if len(i.log) > n {
		start = len(i.log) - n
	}
	width := i.width - 4
	if width <= 0 {
		width = 76
	}

	var s strings.Builder
	for _, e := range i.log[start:] {
		line := fmt.Sprintf("%-8s %s", e.Step, util.FirstLine(e.Message))
		line = util.TruncateWidth(line, width)
		switch e.Level {
		case events.LevelError:
			s.WriteString("  " + errorStyle.Render(line))
		case events.LevelWarn:
			s.WriteString("  " + warningStyle.Render(line))
		default:
			s.WriteString("  " + dimStyle.Render(line))
		}
		s.WriteString("\n")
	}
	return s.String()
}

func (i *Installer) viewComplete() string {
	var s strings.Builder
	r := i.report

	if r != nil && r.OK() {
		successArt := `
    +------------------------------------------+
    |                                          |
    |      *** Installation Complete! ***      |
    |                                          |
    +------------------------------------------+
`
		s.WriteString(successStyle.Render(successArt))
		s.WriteString("\n")

		var body strings.Builder
		body.WriteString(fmt.Sprintf("Odoo %s is running.\n\n", r.Request.Version))
		body.WriteString("Open " + highlightStyle.Render(OdooURL) + " in your browser\n")
		body.WriteString("to create your first database.")
		if r.ConfigPath != "" {
			body.WriteString("\n\nConfiguration: " + r.ConfigPath)
		}
		s.WriteString(boxStyle.Render(body.String()))
	} else {
		s.WriteString(errorStyle.Render("  Installation failed"))
		s.WriteString("\n\n")
		s.WriteString(boxStyle.Render(failureText(r)))
		s.WriteString("\n\n")
		s.WriteString(i.renderLog(6))
	}

	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render("  Press ENTER to exit"))
	return i.center(s.String())
}

// failureText explains the failed step of r.
func failureText(r *agent.Report) string {
	if r == nil {
		return "The installation did not finish."
	}
	f := r.Failure()
	if f == nil {
		return "The installation did not finish."
	}
	return fmt.Sprintf("Step: %s\nReason: %s\n\n%s", f.Step, f.Kind, util.TruncateRunes(f.Message, maxFailureRunes))
}

// center pads content down from the top of the screen
func (i *Installer) center(content string) string {
	if i.width == 0 || i.height == 0 {
		return content
	}

	height := strings.Count(content, "\n") + 1
	topPadding := (i.height - height) / 3
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

// ExitCode maps the finished model to a process exit status.
func (i *Installer) ExitCode() int {
	if i.report == nil {
		if i.aborted {
			return exitAborted
		}
		return cli.ExitGeneralError
	}
	if f := i.report.Failure(); f != nil {
		return cli.ExitCodeFor(f.Kind)
	}
	return cli.ExitSuccess
}
