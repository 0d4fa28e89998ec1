// Package controller provides output adapters for displaying test selection results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "gorts.dev/pkg/gorts/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeSelect StartMode = iota
	ModeRun
	ModeList
	ModeWatch
)

func (s StartMode) String() string {
	switch s {
	case ModeSelect:
		return "Selecting tests"
	case ModeRun:
		return "Running affected tests"
	case ModeList:
		return "Fingerprinting units"
	case ModeWatch:
		return "Watching for changes"
	default:
		return "Working"
	}
}

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// Mode returns the configured mode.
func (c StartConfig) Mode() StartMode {
	return c.mode
}

// WithSelectMode sets the UI to selection mode.
func WithSelectMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeSelect
	}
}

// WithRunMode sets the UI to test execution mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithListMode sets the UI to listing mode.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithWatchMode sets the UI to watch mode.
func WithWatchMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeWatch
	}
}

func newStartConfig(options ...StartOption) StartConfig {
	config := StartConfig{}
	for _, option := range options {
		option(&config)
	}

	return config
}

// Format is the output format of reports.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// UI defines the interface for displaying selection results.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayModule(ctx context.Context, root m.Path, modulePath string, packages int)
	DisplayReport(ctx context.Context, report m.Report) error
	DisplayListing(ctx context.Context, listing m.Listing) error
	DisplayRestored(ctx context.Context, files []m.Path)
	DisplayWatching(ctx context.Context, dirs int)
}

// NewUI picks the TUI for table output on a terminal and the SimpleUI
// otherwise.
func NewUI(cmd *cobra.Command, tty bool, format Format) UI {
	if tty && (format == "" || format == FormatTable) {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd, format)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
