package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gorts.dev/pkg/gorts/internal/adapter"
	"gorts.dev/pkg/gorts/internal/domain/frameworks"
	m "gorts.dev/pkg/gorts/internal/model"
)

// ErrPartiallyInstrumented is returned when only some packages carry the
// instrumentation marker. Restore the sources before selecting again.
var ErrPartiallyInstrumented = errors.New("packages are partially instrumented")

// AnalyzeOptions configures one selection run.
type AnalyzeOptions struct {
	Layout      m.Layout
	Granularity m.Granularity
	Mode        m.ChecksumMode
	Threads     int
	Framework   frameworks.Framework
	// DryRun leaves the fingerprint store and the affected list untouched.
	DryRun bool
}

// Analyzer decides which tests must run.
type Analyzer interface {
	// Analyze fingerprints every unit of testPkgs and programPkgs, compares
	// them with the previous run and returns the affected tests of testPkgs.
	Analyze(ctx context.Context, testPkgs, programPkgs []*m.Package, opts AnalyzeOptions) (m.Selection, error)
}

type analyzer struct {
	adapter.GoFileAdapter
	adapter.FingerprintStore
	adapter.DependencyStore
	Fingerprinter
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(
	goFile adapter.GoFileAdapter,
	fingerprintStore adapter.FingerprintStore,
	dependencyStore adapter.DependencyStore,
	fingerprinter Fingerprinter,
) Analyzer {
	return &analyzer{
		GoFileAdapter:    goFile,
		FingerprintStore: fingerprintStore,
		DependencyStore:  dependencyStore,
		Fingerprinter:    fingerprinter,
	}
}

func (a *analyzer) Analyze(ctx context.Context, testPkgs, programPkgs []*m.Package, opts AnalyzeOptions) (m.Selection, error) {
	if opts.Framework == nil {
		return m.Selection{}, fmt.Errorf("%w: none configured", frameworks.ErrUnknownFramework)
	}

	pkgs := unionPackages(testPkgs, programPkgs)

	instrumented, err := checkMarkers(pkgs)
	if err != nil {
		return m.Selection{}, err
	}

	if instrumented {
		slog.Info("Packages are already instrumented, nothing to select", "packages", len(pkgs))
		return m.Selection{AlreadyInstrumented: true}, nil
	}

	oldFingerprints, err := a.Load(ctx, opts.Layout.Checksums())
	if err != nil {
		return m.Selection{}, fmt.Errorf("load fingerprints: %w", err)
	}

	newFingerprints, err := a.fingerprint(ctx, pkgs, opts)
	if err != nil {
		return m.Selection{}, err
	}

	if !opts.DryRun {
		if err := a.Save(ctx, opts.Layout.Checksums(), newFingerprints); err != nil {
			return m.Selection{}, fmt.Errorf("save fingerprints: %w", err)
		}
	}

	selection := m.Selection{}

	for _, pkg := range sortedPackages(testPkgs) {
		tests, err := opts.Framework.FindTests(pkg, opts.Granularity)
		if err != nil {
			return m.Selection{}, fmt.Errorf("find tests in %s: %w", pkg.ImportPath, err)
		}

		selection.Total += len(tests)
		seen := make(map[string]struct{}, len(tests))

		for _, test := range tests {
			if _, ok := seen[test.Name]; ok {
				continue
			}

			seen[test.Name] = struct{}{}

			if affected, ok := a.affected(ctx, test, opts.Layout, oldFingerprints, newFingerprints); ok {
				selection.Affected = append(selection.Affected, affected)
			}
		}
	}

	if !opts.DryRun {
		if err := a.SaveAffected(ctx, opts.Layout.Affected(), selection.Names()); err != nil {
			return m.Selection{}, fmt.Errorf("save affected tests: %w", err)
		}
	}

	slog.Info("Selected tests", "affected", len(selection.Affected), "total", selection.Total)

	return selection, nil
}

func (a *analyzer) fingerprint(ctx context.Context, pkgs []*m.Package, opts AnalyzeOptions) (m.Fingerprints, error) {
	var units []m.Unit

	for _, pkg := range pkgs {
		units = append(units, a.ExtractUnits(pkg)...)
	}

	fingerprints, err := a.FingerprintAll(ctx, units, opts.Mode, opts.Threads)
	if err != nil {
		return nil, fmt.Errorf("fingerprint units: %w", err)
	}

	slog.Debug("Fingerprinted units", "units", len(units), "mode", opts.Mode)

	return fingerprints, nil
}

// affected compares the recorded dependencies of test with both fingerprint
// maps. Tests without readable dependencies are always affected.
func (a *analyzer) affected(ctx context.Context, test m.Test, layout m.Layout, oldFingerprints, newFingerprints m.Fingerprints) (m.AffectedTest, bool) {
	deps, err := a.Dependencies(ctx, layout.Dependencies(), test.Name)
	if errors.Is(err, adapter.ErrNoDependencies) {
		return m.AffectedTest{Test: test, Reason: m.ReasonNew}, true
	}

	if err != nil {
		slog.Warn("Failed to read dependencies, selecting test", "test", test.Name, "error", err)
		return m.AffectedTest{Test: test, Reason: m.ReasonUnreadable}, true
	}

	for _, unit := range deps {
		oldValue, inOld := oldFingerprints[unit]
		newValue, inNew := newFingerprints[unit]

		switch {
		case !inOld && !inNew:
			continue
		case inOld && !inNew:
			return m.AffectedTest{Test: test, Reason: m.ReasonRemoved, Unit: unit}, true
		case !inOld && inNew:
			return m.AffectedTest{Test: test, Reason: m.ReasonAdded, Unit: unit}, true
		case oldValue != newValue:
			return m.AffectedTest{Test: test, Reason: m.ReasonChanged, Unit: unit}, true
		}
	}

	return m.AffectedTest{}, false
}

// IsInstrumented reports whether one of the package's files imports the
// monitor package.
func IsInstrumented(pkg *m.Package) bool {
	for _, file := range pkg.Files {
		if file.AST == nil {
			continue
		}

		for _, spec := range file.AST.Imports {
			if strings.Trim(spec.Path.Value, "`\"") == m.MonitorImportPath {
				return true
			}
		}
	}

	return false
}

// checkMarkers reports whether every package is instrumented. A mix of
// instrumented and clean packages is an error.
func checkMarkers(pkgs []*m.Package) (bool, error) {
	var marked, clean []string

	for _, pkg := range pkgs {
		if IsInstrumented(pkg) {
			marked = append(marked, pkg.ImportPath)
		} else {
			clean = append(clean, pkg.ImportPath)
		}
	}

	if len(marked) > 0 && len(clean) > 0 {
		return false, fmt.Errorf("%w: instrumented %s, not instrumented %s",
			ErrPartiallyInstrumented, strings.Join(marked, ", "), strings.Join(clean, ", "))
	}

	return len(marked) > 0, nil
}

// unionPackages merges package lists, keeping the first package per directory.
func unionPackages(lists ...[]*m.Package) []*m.Package {
	seen := make(map[m.Path]struct{})

	var out []*m.Package

	for _, list := range lists {
		for _, pkg := range list {
			if pkg == nil {
				continue
			}

			if _, ok := seen[pkg.Dir]; ok {
				continue
			}

			seen[pkg.Dir] = struct{}{}
			out = append(out, pkg)
		}
	}

	return sortedPackages(out)
}

func sortedPackages(pkgs []*m.Package) []*m.Package {
	out := make([]*m.Package, len(pkgs))
	copy(out, pkgs)

	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })

	return out
}
