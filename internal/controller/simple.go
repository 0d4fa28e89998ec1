package controller

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	m "gorts.dev/pkg/gorts/internal/model"
)

// SimpleUI implements UI using cobra Command's output.
type SimpleUI struct {
	cmd    *cobra.Command
	format Format
}

// NewSimpleUI creates a new SimpleUI. An empty format prints tables.
func NewSimpleUI(cmd *cobra.Command, format Format) *SimpleUI {
	if format == "" {
		format = FormatTable
	}

	return &SimpleUI{cmd: cmd, format: format}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayModule prints the analyzed module. Structured formats stay silent so
// their output remains parseable.
func (s *SimpleUI) DisplayModule(ctx context.Context, root m.Path, modulePath string, packages int) {
	if ctx.Err() != nil || s.format != FormatTable {
		return
	}

	s.printf("Module %s (%s), %s package(s)\n", modulePath, root, humanize.Comma(int64(packages)))
}

// DisplayReport prints the selection and, for run, the test results.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.format == FormatTable {
		s.printf("%s", renderReport(report))
		return nil
	}

	out, err := marshal(s.format, newReportView(report))
	if err != nil {
		return err
	}

	s.printf("%s", out)

	return nil
}

// DisplayListing prints units and tests.
func (s *SimpleUI) DisplayListing(ctx context.Context, listing m.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.format == FormatTable {
		s.printf("%s", renderListing(listing))
		return nil
	}

	out, err := marshal(s.format, listing)
	if err != nil {
		return err
	}

	s.printf("%s", out)

	return nil
}

// DisplayRestored prints the number of restored files.
func (s *SimpleUI) DisplayRestored(ctx context.Context, files []m.Path) {
	if ctx.Err() != nil || s.format != FormatTable {
		return
	}

	s.printf("Restored %s file(s)\n", humanize.Comma(int64(len(files))))
}

// DisplayWatching announces watch mode.
func (s *SimpleUI) DisplayWatching(ctx context.Context, dirs int) {
	if ctx.Err() != nil || s.format != FormatTable {
		return
	}

	s.printf("Watching %s director(ies), press Ctrl+C to stop\n", humanize.Comma(int64(dirs)))
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
