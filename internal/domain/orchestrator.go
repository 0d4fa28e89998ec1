package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gorts.dev/pkg/gorts/internal/adapter"
	"gorts.dev/pkg/gorts/internal/domain/frameworks"
	m "gorts.dev/pkg/gorts/internal/model"
)

// RunOptions configures the execution of selected tests.
type RunOptions struct {
	Layout     m.Layout
	ModuleRoot m.Path
	Threads    int
	Framework  frameworks.Framework
}

// Orchestrator runs the selected tests of an instrumented module, one go test
// invocation per package.
type Orchestrator interface {
	RunTests(ctx context.Context, selection m.Selection, opts RunOptions) ([]m.RunResult, error)
}

type orchestrator struct {
	testAdapter     adapter.TestRunnerAdapter
	dependencyStore adapter.DependencyStore
}

// NewOrchestrator constructs an Orchestrator backed by the provided test
// runner and dependency store.
func NewOrchestrator(testAdapter adapter.TestRunnerAdapter, dependencyStore adapter.DependencyStore) Orchestrator {
	return &orchestrator{
		testAdapter:     testAdapter,
		dependencyStore: dependencyStore,
	}
}

func (to *orchestrator) RunTests(ctx context.Context, selection m.Selection, opts RunOptions) ([]m.RunResult, error) {
	if opts.Framework == nil {
		return nil, fmt.Errorf("%w: none configured", frameworks.ErrUnknownFramework)
	}

	grouped := selection.ByPackage()

	dirs := make([]m.Path, 0, len(grouped))
	for dir := range grouped {
		dirs = append(dirs, dir)
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })

	results := make([]m.RunResult, len(dirs))

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	if opts.Threads > 0 {
		group.SetLimit(opts.Threads)
	}

	for i, dir := range dirs {
		index, affected := i, grouped[dir]

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			result := to.runPackage(groupCtx, opts.ModuleRoot, opts.Framework, affected)

			mu.Lock()
			results[index] = result
			mu.Unlock()

			if !result.Passed {
				to.forget(groupCtx, opts.Layout, result)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (to *orchestrator) runPackage(ctx context.Context, moduleRoot m.Path, framework frameworks.Framework, affected []m.AffectedTest) m.RunResult {
	tests := make([]m.Test, 0, len(affected))
	names := make([]string, 0, len(affected))

	for _, a := range affected {
		tests = append(tests, a.Test)
		names = append(names, a.Test.Name)
	}

	pkg := tests[0].Package
	args := framework.RunFlags(tests)
	target := packageTarget(pkg)

	slog.Debug("Running tests", "package", pkg.ImportPath, "tests", len(names), "args", args)

	start := time.Now()
	output, err := to.testAdapter.RunGoTest(ctx, string(moduleRoot), target, args...)

	result := m.RunResult{
		Package:  pkg,
		Tests:    names,
		Args:     args,
		Output:   output,
		Passed:   err == nil,
		Duration: time.Since(start),
		Err:      err,
	}

	if err != nil {
		slog.Error("Tests failed", "package", pkg.ImportPath, "error", err)
	}

	return result
}

// forget drops the dependency files of a failed package so its tests are
// selected again even when nothing changes.
func (to *orchestrator) forget(ctx context.Context, layout m.Layout, result m.RunResult) {
	if err := to.dependencyStore.Forget(ctx, layout.Dependencies(), result.Tests); err != nil {
		slog.Warn("Failed to forget dependencies of failed tests", "package", result.Package.ImportPath, "error", err)
	}
}

func packageTarget(pkg *m.Package) string {
	rel := filepath.ToSlash(pkg.RelDir())
	if rel == "." {
		return "."
	}

	if filepath.IsAbs(rel) {
		return rel
	}

	return fmt.Sprintf("./%s", rel)
}
