package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	m "gorts.dev/pkg/gorts/internal/model"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

// TUI implements UI using Bubble Tea. A spinner shows the current mode while
// work is in progress; results are printed once the spinner is paused.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	mode    StartMode
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start shows the spinner for the selected mode.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopProgram()
	t.mode = newStartConfig(options...).Mode()
	t.startProgram(ctx)

	return nil
}

// Close stops the spinner.
func (t *TUI) Close(_ context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopProgram()
}

// Wait stops the spinner once all output has been printed.
func (t *TUI) Wait(_ context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopProgram()
}

// DisplayModule prints the analyzed module.
func (t *TUI) DisplayModule(ctx context.Context, root m.Path, modulePath string, packages int) {
	t.print(ctx, fmt.Sprintf("Module %s (%s), %s package(s)\n", modulePath, root, humanize.Comma(int64(packages))))
}

// DisplayReport prints the selection and the test results.
func (t *TUI) DisplayReport(ctx context.Context, report m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.print(ctx, renderReport(report))

	return nil
}

// DisplayListing prints units and tests.
func (t *TUI) DisplayListing(ctx context.Context, listing m.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.print(ctx, renderListing(listing))

	return nil
}

// DisplayRestored prints the number of restored files.
func (t *TUI) DisplayRestored(ctx context.Context, files []m.Path) {
	t.print(ctx, fmt.Sprintf("Restored %s file(s)\n", humanize.Comma(int64(len(files)))))
}

// DisplayWatching announces watch mode.
func (t *TUI) DisplayWatching(ctx context.Context, dirs int) {
	t.print(ctx, fmt.Sprintf("Watching %s director(ies), press Ctrl+C to stop\n", humanize.Comma(int64(dirs))))
}

// print pauses the spinner, writes text and resumes the spinner.
func (t *TUI) print(ctx context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	running := t.program != nil
	t.stopProgram()

	_, _ = fmt.Fprint(t.output, text)

	if running && ctx.Err() == nil {
		t.startProgram(ctx)
	}
}

func (t *TUI) startProgram(ctx context.Context) {
	program := tea.NewProgram(
		newProgressModel(t.mode.String()),
		tea.WithOutput(t.output),
		tea.WithInput(nil),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			slog.Debug("Progress display stopped", "error", err)
		}
	}()

	t.program, t.done = program, done
}

func (t *TUI) stopProgram() {
	if t.program == nil {
		return
	}

	t.program.Quit()
	<-t.done

	t.program, t.done = nil, nil
}

// progressModel is the Bubble Tea model of the spinner line.
type progressModel struct {
	spinner  spinner.Model
	title    string
	quitting bool
}

func newProgressModel(title string) progressModel {
	return progressModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		title:   title,
	}
}

func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			pm.quitting = true
			return pm, tea.Quit
		}

		return pm, nil

	case tea.QuitMsg:
		pm.quitting = true
		return pm, nil

	case spinner.TickMsg:
		var cmd tea.Cmd

		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm progressModel) View() string {
	if pm.quitting {
		return ""
	}

	return fmt.Sprintf("%s %s...\n", pm.spinner.View(), pm.title)
}
