// Package domain contains the regression test selection logic of gorts.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"gorts.dev/pkg/gorts/internal/adapter"
	"gorts.dev/pkg/gorts/internal/controller"
	"gorts.dev/pkg/gorts/internal/domain/frameworks"
	m "gorts.dev/pkg/gorts/internal/model"
)

var (
	// ErrTestsFailed is returned by Run when a go test invocation failed.
	ErrTestsFailed = errors.New("affected tests failed")

	// ErrAlreadyInstrumented is returned when the sources still carry the
	// instrumentation of a previous run.
	ErrAlreadyInstrumented = errors.New("sources are already instrumented, run 'gorts restore' first")
)

const (
	// DefaultOutputDir holds fingerprints, dependencies and backups.
	DefaultOutputDir = ".gorts"

	// DefaultDebounce is the quiet period watch mode waits for before a run.
	DefaultDebounce = 500 * time.Millisecond
)

// ModuleArgs locates the module and the packages to work on.
type ModuleArgs struct {
	Paths   []m.Path
	Exclude []string
	Output  m.Path // relative to the module root unless absolute
	Threads int
}

// SelectArgs contains the arguments for selecting and instrumenting tests.
type SelectArgs struct {
	ModuleArgs
	RunID          string
	Framework      m.FrameworkName
	Granularity    m.Granularity
	Mode           m.ChecksumMode
	Strategy       m.Strategy
	DryRun         bool
	MonitorVersion string
	MonitorReplace string
}

// RunArgs contains the arguments for running the affected tests.
type RunArgs struct {
	SelectArgs
	Parallel int
	// Keep leaves the sources instrumented after the run.
	Keep bool
}

// ListArgs contains the arguments for listing units and tests.
type ListArgs struct {
	ModuleArgs
	Framework   m.FrameworkName
	Granularity m.Granularity
	Mode        m.ChecksumMode
	Text        bool
}

// RestoreArgs contains the arguments for restoring instrumented sources.
type RestoreArgs struct {
	Path   m.Path // any directory of the module
	Output m.Path
}

// WatchArgs contains the arguments for watch mode.
type WatchArgs struct {
	RunArgs
	Debounce time.Duration
}

// Workflow defines the user facing operations of gorts.
type Workflow interface {
	Select(ctx context.Context, args SelectArgs) error
	Run(ctx context.Context, args RunArgs) error
	List(ctx context.Context, args ListArgs) error
	Restore(ctx context.Context, args RestoreArgs) error
	Watch(ctx context.Context, args WatchArgs) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.GoFileAdapter
	adapter.GoModAdapter
	adapter.DependencyStore
	adapter.FileWatcher
	controller.UI
	Analyzer
	Instrumentor
	Orchestrator
	Fingerprinter
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	goFile adapter.GoFileAdapter,
	goMod adapter.GoModAdapter,
	dependencyStore adapter.DependencyStore,
	watcher adapter.FileWatcher,
	ui controller.UI,
	analyzer Analyzer,
	instrumentor Instrumentor,
	orchestrator Orchestrator,
	fingerprinter Fingerprinter,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		GoFileAdapter:   goFile,
		GoModAdapter:    goMod,
		DependencyStore: dependencyStore,
		FileWatcher:     watcher,
		UI:              ui,
		Analyzer:        analyzer,
		Instrumentor:    instrumentor,
		Orchestrator:    orchestrator,
		Fingerprinter:   fingerprinter,
	}
}

// module is a loaded Go module.
type module struct {
	root    m.Path
	path    string
	layout  m.Layout
	dirs    []m.Path
	program []*m.Package
	tests   []*m.Package
}

func (w *workflow) Select(ctx context.Context, args SelectArgs) error {
	if err := w.Start(ctx, controller.WithSelectMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	mod, err := w.loadModule(ctx, args.ModuleArgs)
	if err != nil {
		return err
	}

	framework, err := frameworks.New(args.Framework, w.GoFileAdapter)
	if err != nil {
		return err
	}

	report, err := w.selectTests(ctx, mod, framework, args)
	if err != nil {
		return err
	}

	if err := w.DisplayReport(ctx, report); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	return nil
}

func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	if err := w.Start(ctx, controller.WithRunMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	report, err := w.run(ctx, args)
	if err != nil {
		return err
	}

	if err := w.DisplayReport(ctx, report); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	if !report.Passed() {
		return fmt.Errorf("%w: %d package(s)", ErrTestsFailed, len(report.Failed()))
	}

	return nil
}

// run selects, instruments and executes the affected tests, then restores the
// sources unless args.Keep is set. Sources are restored even when ctx is
// canceled.
func (w *workflow) run(ctx context.Context, args RunArgs) (m.Report, error) {
	mod, err := w.loadModule(ctx, args.ModuleArgs)
	if err != nil {
		return m.Report{}, err
	}

	framework, err := frameworks.New(args.Framework, w.GoFileAdapter)
	if err != nil {
		return m.Report{}, err
	}

	report, err := w.selectTests(ctx, mod, framework, args.SelectArgs)
	if err != nil {
		return report, err
	}

	if report.Selection.AlreadyInstrumented {
		return report, ErrAlreadyInstrumented
	}

	if args.DryRun || report.Selection.Empty() {
		return report, nil
	}

	results, runErr := w.RunTests(ctx, report.Selection, RunOptions{
		Layout:     mod.layout,
		ModuleRoot: mod.root,
		Threads:    defaultThreads(args.Parallel),
		Framework:  framework,
	})
	report.Results = results

	if len(report.Instrumented) > 0 && !args.Keep {
		restored, err := w.Instrumentor.Restore(context.WithoutCancel(ctx), mod.layout)
		if err != nil {
			slog.Error("Failed to restore sources", "error", err)
			return report, errors.Join(runErr, fmt.Errorf("restore sources: %w", err))
		}

		report.Restored = restored
	}

	if runErr != nil {
		return report, fmt.Errorf("run tests: %w", runErr)
	}

	return report, nil
}

func (w *workflow) selectTests(ctx context.Context, mod module, framework frameworks.Framework, args SelectArgs) (m.Report, error) {
	runID := args.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	selection, err := w.Analyze(ctx, mod.tests, mod.program, AnalyzeOptions{
		Layout:      mod.layout,
		Granularity: args.Granularity,
		Mode:        args.Mode,
		Threads:     defaultThreads(args.Threads),
		Framework:   framework,
		DryRun:      args.DryRun,
	})
	if err != nil {
		slog.Error("Failed to analyze module", "module", mod.path, "error", err)
		return m.Report{RunID: runID}, fmt.Errorf("analyze: %w", err)
	}

	report := m.Report{RunID: runID, Selection: selection}

	if selection.AlreadyInstrumented || args.DryRun || selection.Empty() {
		return report, nil
	}

	written, err := w.Instrument(ctx, selection, mod.program, InstrumentOptions{
		Layout:         mod.layout,
		Strategy:       args.Strategy,
		Granularity:    args.Granularity,
		ModuleRoot:     mod.root,
		Framework:      framework,
		MonitorVersion: args.MonitorVersion,
		MonitorReplace: args.MonitorReplace,
	})
	if err != nil {
		slog.Error("Failed to instrument module", "module", mod.path, "error", err)
		return report, fmt.Errorf("instrument: %w", err)
	}

	report.Instrumented = written

	return report, nil
}

func (w *workflow) List(ctx context.Context, args ListArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	mod, err := w.loadModule(ctx, args.ModuleArgs)
	if err != nil {
		return err
	}

	framework, err := frameworks.New(args.Framework, w.GoFileAdapter)
	if err != nil {
		return err
	}

	selection, err := w.Analyze(ctx, mod.tests, mod.program, AnalyzeOptions{
		Layout:      mod.layout,
		Granularity: args.Granularity,
		Mode:        args.Mode,
		Threads:     defaultThreads(args.Threads),
		Framework:   framework,
		DryRun:      true,
	})
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if selection.AlreadyInstrumented {
		return ErrAlreadyInstrumented
	}

	listing := m.Listing{Units: w.listUnits(mod, args)}

	tests, err := w.listTests(ctx, mod, framework, args.Granularity, selection)
	if err != nil {
		return err
	}

	listing.Tests = tests

	if err := w.DisplayListing(ctx, listing); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	return nil
}

func (w *workflow) listUnits(mod module, args ListArgs) []m.UnitReport {
	var units []m.UnitReport

	for _, pkg := range mod.program {
		for _, unit := range w.ExtractUnits(pkg) {
			fingerprint, err := w.Fingerprint(unit, args.Mode)
			if err != nil {
				slog.Warn("Failed to fingerprint unit", "unit", unit.ID, "error", err)
				continue
			}

			report := m.UnitReport{
				ID:          unit.ID,
				Kind:        unit.Kind,
				Package:     pkg.ImportPath,
				Fingerprint: fingerprint.String(),
			}

			if unit.File != nil {
				report.File = string(unit.File.Path)
			}

			if args.Text {
				if report.Text, err = w.Serialize(unit, args.Mode); err != nil {
					slog.Warn("Failed to serialize unit", "unit", unit.ID, "error", err)
				}
			}

			units = append(units, report)
		}
	}

	return units
}

func (w *workflow) listTests(ctx context.Context, mod module, framework frameworks.Framework, granularity m.Granularity, selection m.Selection) ([]m.TestReport, error) {
	affected := make(map[string]m.AffectedTest, len(selection.Affected))
	for _, a := range selection.Affected {
		affected[a.Test.Name] = a
	}

	lastRun := make(map[string]bool)

	names, err := w.LoadAffected(ctx, mod.layout.Affected())
	if err != nil {
		slog.Warn("Failed to read the last selection", "path", mod.layout.Affected(), "error", err)
	}

	for _, name := range names {
		lastRun[name] = true
	}

	var reports []m.TestReport

	for _, pkg := range mod.tests {
		tests, err := framework.FindTests(pkg, granularity)
		if err != nil {
			return nil, fmt.Errorf("find tests in %s: %w", pkg.ImportPath, err)
		}

		for _, test := range tests {
			report := m.TestReport{Name: test.Name, Package: pkg.ImportPath, LastRun: lastRun[test.Name]}

			if a, ok := affected[test.Name]; ok {
				report.Selected = true
				report.Reason = a.Reason.String()
				report.Unit = a.Unit
			}

			deps, err := w.Dependencies(ctx, mod.layout.Dependencies(), test.Name)
			if err != nil && !errors.Is(err, adapter.ErrNoDependencies) {
				slog.Warn("Failed to read dependencies", "test", test.Name, "error", err)
			}

			report.Dependencies = deps
			reports = append(reports, report)
		}
	}

	return reports, nil
}

func (w *workflow) Restore(ctx context.Context, args RestoreArgs) error {
	start := args.Path
	if start == "" {
		start = "."
	}

	root, err := w.FindProjectRoot(ctx, start)
	if err != nil {
		return fmt.Errorf("find module root: %w", err)
	}

	restored, err := w.Instrumentor.Restore(ctx, layoutFor(root, args.Output))
	if errors.Is(err, adapter.ErrNothingToRestore) {
		slog.Info("Nothing to restore", "root", root)
	} else if err != nil {
		return fmt.Errorf("restore sources: %w", err)
	}

	w.DisplayRestored(ctx, restored)

	return nil
}

func (w *workflow) Watch(ctx context.Context, args WatchArgs) error {
	if err := w.Start(ctx, controller.WithWatchMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	mod, err := w.loadModule(ctx, args.ModuleArgs)
	if err != nil {
		return err
	}

	changes, errs, err := w.FileWatcher.Watch(ctx, mod.dirs)
	if err != nil {
		return fmt.Errorf("watch module: %w", err)
	}

	debounce := args.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	// every cycle restores, so the next one starts from clean sources
	args.Keep = false

	w.DisplayWatching(ctx, len(mod.dirs))
	w.watchCycle(ctx, args.RunArgs)
	settle(ctx, changes, debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path, ok := <-changes:
			if !ok {
				return nil
			}

			slog.Debug("Source changed", "path", path)
			timer.Reset(debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			slog.Warn("File watcher error", "error", err)

		case <-timer.C:
			w.watchCycle(ctx, args.RunArgs)
			settle(ctx, changes, debounce)
		}
	}
}

// watchCycle runs the affected tests once. Failures are reported and watching
// goes on.
func (w *workflow) watchCycle(ctx context.Context, args RunArgs) {
	args.RunID = ""

	report, err := w.run(ctx, args)
	if err != nil {
		slog.Error("Watch cycle failed", "error", err)

		if ctx.Err() != nil {
			return
		}
	}

	if displayErr := w.DisplayReport(ctx, report); displayErr != nil {
		slog.Warn("Failed to display report", "error", displayErr)
	}
}

// settle drops the changes caused by instrumenting and restoring the sources
// until nothing changed for quiet.
func settle(ctx context.Context, changes <-chan m.Path, quiet time.Duration) {
	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}

			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

// loadModule parses every package of the module containing args.Paths. All
// packages are program artifacts; those matched by args.Paths and holding
// tests are test artifacts.
func (w *workflow) loadModule(ctx context.Context, args ModuleArgs) (module, error) {
	start := m.Path(".")
	if len(args.Paths) > 0 {
		start = args.Paths[0]
	}

	root, err := w.FindProjectRoot(ctx, start)
	if err != nil {
		slog.Error("Failed to find module root", "path", start, "error", err)
		return module{}, fmt.Errorf("find module root: %w", err)
	}

	modulePath, err := w.ModulePath(ctx, root)
	if err != nil {
		return module{}, fmt.Errorf("read module path: %w", err)
	}

	dirs, err := w.Get(ctx, []m.Path{m.Path(filepath.Join(string(root), "..."))}, args.Exclude...)
	if err != nil {
		return module{}, fmt.Errorf("list packages: %w", err)
	}

	testDirs, err := w.Get(ctx, args.Paths, args.Exclude...)
	if err != nil {
		return module{}, fmt.Errorf("list test packages: %w", err)
	}

	pkgs, err := w.LoadPackages(ctx, root, modulePath, dirs, defaultThreads(args.Threads))
	if err != nil {
		return module{}, fmt.Errorf("load packages: %w", err)
	}

	selected := make(map[m.Path]struct{}, len(testDirs))
	for _, dir := range testDirs {
		selected[dir] = struct{}{}
	}

	mod := module{
		root:    root,
		path:    modulePath,
		layout:  layoutFor(root, args.Output),
		dirs:    dirs,
		program: pkgs,
	}

	for _, pkg := range pkgs {
		if _, ok := selected[pkg.Dir]; ok && pkg.IsTest() {
			mod.tests = append(mod.tests, pkg)
		}
	}

	slog.Info("Loaded module", "module", modulePath, "root", root, "packages", len(pkgs), "test_packages", len(mod.tests))
	w.DisplayModule(ctx, root, modulePath, len(pkgs))

	return mod, nil
}

func layoutFor(root, output m.Path) m.Layout {
	if output == "" {
		output = DefaultOutputDir
	}

	if filepath.IsAbs(string(output)) {
		return m.Layout{Root: output}
	}

	return m.Layout{Root: m.Path(filepath.Join(string(root), string(output)))}
}

func defaultThreads(threads int) int {
	if threads > 0 {
		return threads
	}

	return runtime.NumCPU()
}
