package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	m "gorts.dev/pkg/gorts/internal/model"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// reportView is the serialized form of a report.
type reportView struct {
	RunID               string       `json:"run_id" yaml:"run_id"`
	AlreadyInstrumented bool         `json:"already_instrumented,omitempty" yaml:"already_instrumented,omitempty"`
	Total               int          `json:"total" yaml:"total"`
	Selected            []testView   `json:"selected" yaml:"selected"`
	Instrumented        []string     `json:"instrumented,omitempty" yaml:"instrumented,omitempty"`
	Results             []resultView `json:"results,omitempty" yaml:"results,omitempty"`
	Restored            []string     `json:"restored,omitempty" yaml:"restored,omitempty"`
}

type testView struct {
	Name    string `json:"name" yaml:"name"`
	Package string `json:"package" yaml:"package"`
	Reason  string `json:"reason" yaml:"reason"`
	Unit    string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

type resultView struct {
	Package  string   `json:"package" yaml:"package"`
	Tests    []string `json:"tests" yaml:"tests"`
	Args     []string `json:"args,omitempty" yaml:"args,omitempty"`
	Passed   bool     `json:"passed" yaml:"passed"`
	Duration string   `json:"duration" yaml:"duration"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Output   string   `json:"output,omitempty" yaml:"output,omitempty"`
}

func newReportView(report m.Report) reportView {
	view := reportView{
		RunID:               report.RunID,
		AlreadyInstrumented: report.Selection.AlreadyInstrumented,
		Total:               report.Selection.Total,
		Selected:            make([]testView, 0, len(report.Selection.Affected)),
		Instrumented:        pathStrings(report.Instrumented),
		Restored:            pathStrings(report.Restored),
	}

	for _, affected := range report.Selection.Affected {
		view.Selected = append(view.Selected, testView{
			Name:    affected.Test.Name,
			Package: packagePath(affected.Test.Package),
			Reason:  affected.Reason.String(),
			Unit:    affected.Unit,
		})
	}

	for _, result := range report.Results {
		rv := resultView{
			Package:  packagePath(result.Package),
			Tests:    result.Tests,
			Args:     result.Args,
			Passed:   result.Passed,
			Duration: formatDuration(result.Duration),
		}

		if result.Err != nil {
			rv.Error = result.Err.Error()
			rv.Output = result.Output
		}

		view.Results = append(view.Results, rv)
	}

	return view
}

func marshal(format Format, v any) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}

		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode yaml: %w", err)
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func renderReport(report m.Report) string {
	var b strings.Builder

	if report.Selection.AlreadyInstrumented {
		b.WriteString("Sources are already instrumented, run 'gorts restore' first.\n")
		return b.String()
	}

	b.WriteString(renderSelectionTable(report.Selection))

	if len(report.Instrumented) > 0 {
		fmt.Fprintf(&b, "Instrumented %s file(s)\n", humanize.Comma(int64(len(report.Instrumented))))
	}

	if len(report.Results) > 0 {
		b.WriteString("\n")
		b.WriteString(renderResultsTable(report.Results))

		for _, failed := range report.Failed() {
			fmt.Fprintf(&b, "\n%s %s\n%s\n", failStyle.Render("FAIL"), packagePath(failed.Package), strings.TrimRight(failed.Output, "\n"))
		}
	}

	if len(report.Restored) > 0 {
		fmt.Fprintf(&b, "Restored %s file(s)\n", humanize.Comma(int64(len(report.Restored))))
	}

	return b.String()
}

func renderSelectionTable(selection m.Selection) string {
	if selection.Empty() {
		return fmt.Sprintf("No affected tests (%s discovered)\n", humanize.Comma(int64(selection.Total)))
	}

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Test", "Reason", "Unit"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})

	for _, affected := range selection.Affected {
		table.Append([]string{affected.Test.Name, affected.Reason.String(), affected.Unit})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Selected %s of %s", humanize.Comma(int64(len(selection.Affected))), humanize.Comma(int64(selection.Total))),
		"", "",
	})

	table.Render()

	return tableBuffer.String()
}

func renderResultsTable(results []m.RunResult) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Package", "Tests", "Status", "Duration"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT})

	passed := 0

	for _, result := range results {
		status := failStyle.Render("FAIL")
		if result.Passed {
			status = passStyle.Render("PASS")
			passed++
		}

		table.Append([]string{packagePath(result.Package), humanize.Comma(int64(len(result.Tests))), status, formatDuration(result.Duration)})
	}

	table.SetFooter([]string{fmt.Sprintf("%d/%d packages passed", passed, len(results)), "", "", ""})
	table.Render()

	return tableBuffer.String()
}

func renderListing(listing m.Listing) string {
	var b strings.Builder

	var unitsBuffer bytes.Buffer

	units := tablewriter.NewWriter(&unitsBuffer)
	units.SetHeader([]string{"Unit", "Kind", "Fingerprint"})
	units.SetBorder(false)
	units.SetAutoFormatHeaders(false)
	units.SetCenterSeparator("")
	units.SetAutoWrapText(false)

	for _, unit := range listing.Units {
		units.Append([]string{unit.ID, unit.Kind.String(), unit.Fingerprint})
	}

	units.SetFooter([]string{fmt.Sprintf("Total units %s", humanize.Comma(int64(len(listing.Units)))), "", ""})
	units.Render()

	b.WriteString(unitsBuffer.String())

	var testsBuffer bytes.Buffer

	tests := tablewriter.NewWriter(&testsBuffer)
	tests.SetHeader([]string{"Test", "Selected", "Last run", "Reason", "Dependencies"})
	tests.SetBorder(false)
	tests.SetAutoFormatHeaders(false)
	tests.SetCenterSeparator("")
	tests.SetAutoWrapText(false)

	selected := 0

	for _, test := range listing.Tests {
		mark := faintStyle.Render("no")
		if test.Selected {
			mark = headerStyle.Render("yes")
			selected++
		}

		last := faintStyle.Render("no")
		if test.LastRun {
			last = "yes"
		}

		tests.Append([]string{test.Name, mark, last, test.Reason, humanize.Comma(int64(len(test.Dependencies)))})
	}

	tests.SetFooter([]string{fmt.Sprintf("Selected %d of %d", selected, len(listing.Tests)), "", "", "", ""})
	tests.Render()

	b.WriteString("\n")
	b.WriteString(testsBuffer.String())

	for _, unit := range listing.Units {
		if unit.Text == "" {
			continue
		}

		fmt.Fprintf(&b, "\n%s\n%s\n", headerStyle.Render("== "+unit.ID), strings.TrimLeft(unit.Text, "\n"))
	}

	return b.String()
}

func packagePath(pkg *m.Package) string {
	if pkg == nil {
		return ""
	}

	return pkg.ImportPath
}

func pathStrings(paths []m.Path) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, string(p))
	}

	return out
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
