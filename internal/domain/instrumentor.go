package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gorts.dev/pkg/gorts/internal/adapter"
	"gorts.dev/pkg/gorts/internal/domain/frameworks"
	m "gorts.dev/pkg/gorts/internal/model"
)

// ErrUnsupportedStrategy is returned for an unknown instrumentation strategy.
var ErrUnsupportedStrategy = errors.New("unsupported instrumentation strategy")

// DefaultMonitorVersion is required when no other version is configured.
const DefaultMonitorVersion = "v0.0.0"

const (
	initFileName         = m.GeneratedFilePrefix + "init.go"
	initTestFileName     = m.GeneratedFilePrefix + "init_test.go"
	initExternalFileName = m.GeneratedFilePrefix + "init_external_test.go"
	markerFileName       = m.GeneratedFilePrefix + "marker.go"
	markerTestFileName   = m.GeneratedFilePrefix + "marker_test.go"
	configFileName       = m.GeneratedFilePrefix + "config_test.go"
	generatedHeader      = "// Code generated by gorts. DO NOT EDIT.\n\n"
)

// InstrumentOptions configures one instrumentation run.
type InstrumentOptions struct {
	Layout      m.Layout
	Strategy    m.Strategy
	Granularity m.Granularity
	ModuleRoot  m.Path
	Framework   frameworks.Framework

	// MonitorVersion and MonitorReplace end up in the go.mod of the module
	// under test. A replace is a directory or module@version.
	MonitorVersion string
	MonitorReplace string
}

// Instrumentor rewrites packages so their test binaries record dependencies.
type Instrumentor interface {
	// Instrument adds dependency tracking to programPkgs and lifecycle hooks
	// to the tests in selection, returning the files it wrote.
	Instrument(ctx context.Context, selection m.Selection, programPkgs []*m.Package, opts InstrumentOptions) ([]m.Path, error)

	// AreInstrumented reports whether every package carries the marker.
	AreInstrumented(pkgs []*m.Package) (bool, error)

	// Restore undoes the last instrumentation.
	Restore(ctx context.Context, layout m.Layout) ([]m.Path, error)
}

type instrumentor struct {
	adapter.SourceFSAdapter
	adapter.GoFileAdapter
	adapter.GoModAdapter
	adapter.CodeInstrumentor
}

// NewInstrumentor constructs an Instrumentor.
func NewInstrumentor(
	fsAdapter adapter.SourceFSAdapter,
	goFile adapter.GoFileAdapter,
	goMod adapter.GoModAdapter,
	codeInstrumentor adapter.CodeInstrumentor,
) Instrumentor {
	return &instrumentor{
		SourceFSAdapter:  fsAdapter,
		GoFileAdapter:    goFile,
		GoModAdapter:     goMod,
		CodeInstrumentor: codeInstrumentor,
	}
}

func (in *instrumentor) AreInstrumented(pkgs []*m.Package) (bool, error) {
	return checkMarkers(pkgs)
}

func (in *instrumentor) Instrument(ctx context.Context, selection m.Selection, programPkgs []*m.Package, opts InstrumentOptions) ([]m.Path, error) {
	if opts.Strategy == m.StrategyNone {
		slog.Info("Instrumentation disabled")
		return nil, nil
	}

	if opts.Strategy != m.StrategyEntry && opts.Strategy != m.StrategyInit {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, opts.Strategy)
	}

	testPkgs := selectedPackages(selection)
	pkgs := unionPackages(programPkgs, testPkgs)

	instrumented, err := in.AreInstrumented(pkgs)
	if err != nil {
		return nil, err
	}

	if instrumented {
		slog.Info("Packages are already instrumented", "packages", len(pkgs))
		return nil, nil
	}

	in.Discard()

	written, err := in.instrument(ctx, selection, pkgs, testPkgs, opts)
	if err != nil {
		in.Discard()
		return nil, err
	}

	slog.Info("Instrumented packages", "packages", len(pkgs), "files", len(written), "strategy", opts.Strategy)

	return written, nil
}

func (in *instrumentor) instrument(ctx context.Context, selection m.Selection, pkgs, testPkgs []*m.Package, opts InstrumentOptions) ([]m.Path, error) {
	marked := make(map[m.Path]bool, len(pkgs))

	// lifecycle hooks go first so that at a shared offset TestStart runs
	// before the entry touch of the same body
	for _, affected := range selection.Affected {
		if err := in.instrumentTest(opts.Framework, affected.Test, opts.Granularity); err != nil {
			return nil, fmt.Errorf("instrument test %s: %w", affected.Test.Name, err)
		}

		marked[affected.Test.Package.Dir] = true
	}

	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			touched bool
			err     error
		)

		switch opts.Strategy {
		case m.StrategyEntry:
			touched, err = in.instrumentEntry(pkg)
		case m.StrategyInit:
			touched, err = in.instrumentInit(pkg, in.units(pkg), nil)
		}

		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", pkg.ImportPath, err)
		}

		marked[pkg.Dir] = marked[pkg.Dir] || touched
	}

	depsDir, err := filepath.Abs(string(opts.Layout.Dependencies()))
	if err != nil {
		return nil, fmt.Errorf("resolve dependencies dir: %w", err)
	}

	for _, pkg := range testPkgs {
		if err := in.AddFile(pkg, configFileName, configFile(pkg.Name, depsDir)); err != nil {
			return nil, err
		}

		marked[pkg.Dir] = true
	}

	for _, pkg := range pkgs {
		if marked[pkg.Dir] {
			continue
		}

		if err := in.addMarker(pkg); err != nil {
			return nil, err
		}
	}

	if err := in.requireMonitor(ctx, opts); err != nil {
		return nil, err
	}

	slog.Debug("Writing instrumentation", "files", in.Pending())

	written, err := in.Flush(ctx, opts.ModuleRoot, opts.Layout.Backup())
	if err != nil {
		return nil, fmt.Errorf("write instrumented sources: %w", err)
	}

	return written, nil
}

// instrumentEntry touches the declaring unit at the entry of every function
// and method, together with the units the function names: types it only
// builds literals of and files whose constants it reads. Units without any
// body to hook, such as var blocks or plain data types, are touched from a
// generated init.
func (in *instrumentor) instrumentEntry(pkg *m.Package) (bool, error) {
	units := in.units(pkg)
	refs := newReferences(pkg, units, in.GoFileAdapter)
	hooked := make(map[string]bool, len(units))
	touched := false

	for _, file := range pkg.UserFiles() {
		prefix := pkg.UnitPrefix(file)
		inserted := false

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil {
				continue
			}

			unit := m.FileUnitID(prefix, file.Name)
			if fn.Recv != nil {
				unit = m.TypeUnitID(prefix, adapter.ReceiverTypeName(fn))
			}

			if _, ok := units[unit]; !ok {
				continue
			}

			hooked[unit] = true

			if in.Calls(fn.Body, m.CallTouch) {
				continue
			}

			call := m.Call{Func: m.CallTouch, Args: refs.touches(file, fn, unit)}
			if err := in.InsertCall(pkg, file, fn.Body, adapter.EntryIndex(fn.Body), call); err != nil {
				return false, err
			}

			inserted = true
		}

		if inserted {
			if err := in.EnsureImport(pkg, file); err != nil {
				return false, err
			}

			touched = true
		}
	}

	rest := make(map[string]m.Unit)

	for id, unit := range units {
		if !hooked[id] {
			rest[id] = unit
		}
	}

	initTouched, err := in.instrumentInit(pkg, rest, refs)

	return touched || initTouched, err
}

// instrumentInit generates one init per unit, split over the package, its
// internal tests and its external tests. With refs, each init also touches
// the units the declaration names.
func (in *instrumentor) instrumentInit(pkg *m.Package, units map[string]m.Unit, refs *references) (bool, error) {
	var program, internal, external [][]string

	for id, unit := range units {
		args := []string{id}
		if refs != nil {
			args = refs.closure(id)
		}

		switch {
		case !unit.Test():
			program = append(program, args)
		case unit.File.PackageName() == pkg.Name:
			internal = append(internal, args)
		default:
			external = append(external, args)
		}
	}

	files := []struct {
		name    string
		pkgName string
		touches [][]string
	}{
		{initFileName, pkg.Name, program},
		{initTestFileName, pkg.Name, internal},
		{initExternalFileName, pkg.Name + "_test", external},
	}

	touched := false

	for _, f := range files {
		if len(f.touches) == 0 {
			continue
		}

		if err := in.AddFile(pkg, f.name, initFile(f.pkgName, f.touches)); err != nil {
			return false, err
		}

		touched = true
	}

	return touched, nil
}

func (in *instrumentor) instrumentTest(framework frameworks.Framework, test m.Test, granularity m.Granularity) error {
	if framework == nil {
		return fmt.Errorf("%w: none configured", frameworks.ErrUnknownFramework)
	}

	switch granularity {
	case m.GranularityClass:
		return framework.InstrumentTestClass(in.CodeInstrumentor, test)
	case m.GranularityMethod:
		return framework.InstrumentTestMethod(in.CodeInstrumentor, test)
	default:
		return fmt.Errorf("%w: %s", frameworks.ErrUnsupportedGranularity, granularity)
	}
}

func (in *instrumentor) addMarker(pkg *m.Package) error {
	name, pkgName := markerFileName, pkg.Name
	if !pkg.IsProgram() {
		name = markerTestFileName
	}

	content := fmt.Sprintf("%spackage %s\n\nimport _ %q\n", generatedHeader, pkgName, m.MonitorImportPath)

	return in.AddFile(pkg, name, []byte(content))
}

// requireMonitor adds the monitor module to go.mod. go.sum is backed up as is
// since go test -mod=mod may update it.
func (in *instrumentor) requireMonitor(ctx context.Context, opts InstrumentOptions) error {
	goModPath := in.JoinPath(ctx, string(opts.ModuleRoot), "go.mod")

	data, err := in.ReadFile(ctx, goModPath)
	if err != nil {
		return fmt.Errorf("read go.mod: %w", err)
	}

	version := opts.MonitorVersion
	if version == "" {
		version = DefaultMonitorVersion
	}

	replace, err := resolveReplace(opts.MonitorReplace)
	if err != nil {
		return err
	}

	updated, changed, err := in.AddRequire(ctx, data, m.MonitorModule, version, replace)
	if err != nil {
		return fmt.Errorf("update go.mod: %w", err)
	}

	if changed {
		if err := in.Rewrite(goModPath, updated); err != nil {
			return err
		}
	}

	goSumPath := in.JoinPath(ctx, string(opts.ModuleRoot), "go.sum")

	sum, err := in.ReadFile(ctx, goSumPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read go.sum: %w", err)
	}

	return in.Rewrite(goSumPath, sum)
}

func (in *instrumentor) Restore(ctx context.Context, layout m.Layout) ([]m.Path, error) {
	restored, err := in.CodeInstrumentor.Restore(ctx, layout.Backup())
	if err != nil {
		return nil, err
	}

	slog.Info("Restored sources", "files", len(restored))

	return restored, nil
}

// resolveReplace turns a relative directory replacement into an absolute one,
// since go.mod resolves directories relative to itself.
func resolveReplace(replace string) (string, error) {
	if replace == "" || !(strings.HasPrefix(replace, ".") || filepath.IsAbs(replace)) {
		return replace, nil
	}

	abs, err := filepath.Abs(replace)
	if err != nil {
		return "", fmt.Errorf("resolve monitor replace %s: %w", replace, err)
	}

	return abs, nil
}

// selectedPackages returns the packages holding a selected test.
func selectedPackages(selection m.Selection) []*m.Package {
	pkgs := make([]*m.Package, 0, len(selection.Affected))
	for _, affected := range selection.Affected {
		pkgs = append(pkgs, affected.Test.Package)
	}

	return unionPackages(pkgs)
}

func (in *instrumentor) units(pkg *m.Package) map[string]m.Unit {
	units := make(map[string]m.Unit)

	for _, unit := range in.ExtractUnits(pkg) {
		units[unit.ID] = unit
	}

	return units
}

func initFile(pkgName string, touches [][]string) []byte {
	sort.Slice(touches, func(i, j int) bool { return touches[i][0] < touches[j][0] })

	var b bytes.Buffer

	fmt.Fprintf(&b, "%spackage %s\n\nimport %s %q\n", generatedHeader, pkgName, m.MonitorAlias, m.MonitorImportPath)

	for _, args := range touches {
		fmt.Fprintf(&b, "\nfunc init() { %s }\n", adapter.RenderCall(m.Call{Func: m.CallTouch, Args: args}))
	}

	return b.Bytes()
}

func configFile(pkgName, depsDir string) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%spackage %s\n\nimport %s %q\n\n", generatedHeader, pkgName, m.MonitorAlias, m.MonitorImportPath)
	fmt.Fprintf(&b, "func init() { %s.%s(%s) }\n", m.MonitorAlias, m.CallConfigure, strconv.Quote(depsDir))

	return b.Bytes()
}
