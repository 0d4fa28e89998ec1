package domain_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gorts.dev/pkg/gorts/internal/adapter"
	adaptermocks "gorts.dev/pkg/gorts/internal/adapter/mocks"
	controllermocks "gorts.dev/pkg/gorts/internal/controller/mocks"
	domain "gorts.dev/pkg/gorts/internal/domain"
	domainmocks "gorts.dev/pkg/gorts/internal/domain/mocks"
	m "gorts.dev/pkg/gorts/internal/model"
	"gorts.dev/pkg/gorts/pkg/monitor"
)

type workflowMocks struct {
	store        *adaptermocks.MockDependencyStore
	watcher      *adaptermocks.MockFileWatcher
	ui           *controllermocks.MockUI
	analyzer     *domainmocks.MockAnalyzer
	instrumentor *domainmocks.MockInstrumentor
	orchestrator *domainmocks.MockOrchestrator
}

func newTestWorkflow(t *testing.T) (domain.Workflow, *workflowMocks) {
	t.Helper()

	mocks := &workflowMocks{
		store:        adaptermocks.NewMockDependencyStore(t),
		watcher:      adaptermocks.NewMockFileWatcher(t),
		ui:           controllermocks.NewMockUI(t),
		analyzer:     domainmocks.NewMockAnalyzer(t),
		instrumentor: domainmocks.NewMockInstrumentor(t),
		orchestrator: domainmocks.NewMockOrchestrator(t),
	}

	wf := domain.NewWorkflow(
		adapter.NewLocalSourceFSAdapter(),
		adapter.NewLocalGoFileAdapter(),
		adapter.NewLocalGoModAdapter(),
		mocks.store,
		mocks.watcher,
		mocks.ui,
		mocks.analyzer,
		mocks.instrumentor,
		mocks.orchestrator,
		domain.NewFingerprinter(),
	)

	return wf, mocks
}

// writeWorkflowModule creates example.com/app with a tested root package and
// an untested sub package.
func writeWorkflowModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"go.mod":    "module example.com/app\n\ngo 1.22\n",
		"a.go":      "package app\n\ntype A struct{}\n\nfunc (A) Hello() string { return \"hi\" }\n",
		"a_test.go": "package app\n\nimport \"testing\"\n\nfunc TestA(t *testing.T) {\n\tif (A{}).Hello() != \"hi\" {\n\t\tt.Fatal(\"unexpected\")\n\t}\n}\n",
		"sub/b.go":  "package sub\n\nfunc B() int { return 1 }\n",
	}

	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func moduleArgs(root string) domain.ModuleArgs {
	return domain.ModuleArgs{Paths: []m.Path{m.Path(filepath.Join(root, "..."))}, Threads: 2}
}

func affectedA(root string) m.Selection {
	pkg := &m.Package{ImportPath: "example.com/app", Dir: m.Path(root), ModuleRoot: m.Path(root)}

	return m.Selection{
		Total: 1,
		Affected: []m.AffectedTest{{
			Test:   m.Test{Name: "example.com/app.TestA", Package: pkg, Func: "TestA", Granularity: m.GranularityMethod},
			Reason: m.ReasonChanged,
			Unit:   "example.com_app.A",
		}},
	}
}

func (wm *workflowMocks) expectUI(root string) {
	wm.ui.EXPECT().Start(mock.Anything, mock.Anything).Return(nil).Once()
	wm.ui.EXPECT().DisplayModule(mock.Anything, m.Path(root), "example.com/app", 2).Return()
	wm.ui.EXPECT().Close(mock.Anything).Return().Once()
}

func TestWorkflow_Run_SelectsInstrumentsRunsAndRestores(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	layout := m.Layout{Root: m.Path(filepath.Join(root, domain.DefaultOutputDir))}
	selection := affectedA(root)
	written := []m.Path{m.Path(filepath.Join(root, "a.go"))}

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().
		Analyze(mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(opts domain.AnalyzeOptions) bool {
			return opts.Layout == layout && !opts.DryRun && opts.Framework.Name() == m.FrameworkGoTest &&
				opts.Granularity == m.GranularityMethod && opts.Mode == m.ModeSmart
		})).
		RunAndReturn(func(_ context.Context, testPkgs, programPkgs []*m.Package, _ domain.AnalyzeOptions) (m.Selection, error) {
			assert.Len(t, testPkgs, 1)
			assert.Len(t, programPkgs, 2)
			assert.Equal(t, "example.com/app", testPkgs[0].ImportPath)

			return selection, nil
		}).Once()
	mocks.instrumentor.EXPECT().
		Instrument(mock.Anything, selection, mock.Anything, mock.MatchedBy(func(opts domain.InstrumentOptions) bool {
			return opts.Layout == layout && opts.Strategy == m.StrategyEntry && opts.ModuleRoot == m.Path(root) &&
				opts.MonitorReplace == "../gorts"
		})).
		Return(written, nil).Once()
	mocks.orchestrator.EXPECT().
		RunTests(mock.Anything, selection, mock.MatchedBy(func(opts domain.RunOptions) bool {
			return opts.Layout == layout && opts.ModuleRoot == m.Path(root) && opts.Threads == 3
		})).
		Return([]m.RunResult{{Package: selection.Affected[0].Test.Package, Tests: []string{"example.com/app.TestA"}, Passed: true}}, nil).Once()
	mocks.instrumentor.EXPECT().Restore(mock.Anything, layout).Return(written, nil).Once()
	mocks.ui.EXPECT().
		DisplayReport(mock.Anything, mock.MatchedBy(func(report m.Report) bool {
			return report.RunID == "run-1" && len(report.Results) == 1 && len(report.Restored) == 1 && len(report.Instrumented) == 1
		})).
		Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{
		SelectArgs: domain.SelectArgs{
			ModuleArgs:     moduleArgs(root),
			RunID:          "run-1",
			Granularity:    m.GranularityMethod,
			Mode:           m.ModeSmart,
			Strategy:       m.StrategyEntry,
			MonitorReplace: "../gorts",
		},
		Parallel: 3,
	})

	// Assert
	require.NoError(t, err)
}

func TestWorkflow_Run_FailingTests(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)
	pkg := selection.Affected[0].Test.Package

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(selection, nil).Once()
	mocks.instrumentor.EXPECT().Instrument(mock.Anything, selection, mock.Anything, mock.Anything).Return([]m.Path{"a.go"}, nil).Once()
	mocks.orchestrator.EXPECT().RunTests(mock.Anything, selection, mock.Anything).
		Return([]m.RunResult{{Package: pkg, Passed: false, Err: errors.New("exit status 1")}}, nil).Once()
	mocks.instrumentor.EXPECT().Restore(mock.Anything, mock.Anything).Return([]m.Path{"a.go"}, nil).Once()
	mocks.ui.EXPECT().DisplayReport(mock.Anything, mock.Anything).Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}})

	// Assert
	require.ErrorIs(t, err, domain.ErrTestsFailed)
}

func TestWorkflow_Run_RestoresWhenRunFails(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(selection, nil).Once()
	mocks.instrumentor.EXPECT().Instrument(mock.Anything, selection, mock.Anything, mock.Anything).Return([]m.Path{"a.go"}, nil).Once()
	mocks.orchestrator.EXPECT().RunTests(mock.Anything, selection, mock.Anything).Return(nil, context.Canceled).Once()
	mocks.instrumentor.EXPECT().Restore(mock.Anything, mock.Anything).Return([]m.Path{"a.go"}, nil).Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}})

	// Assert
	require.ErrorIs(t, err, context.Canceled)
	mocks.ui.AssertNotCalled(t, "DisplayReport", mock.Anything, mock.Anything)
}

func TestWorkflow_Run_KeepSkipsRestore(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(selection, nil).Once()
	mocks.instrumentor.EXPECT().Instrument(mock.Anything, selection, mock.Anything, mock.Anything).Return([]m.Path{"a.go"}, nil).Once()
	mocks.orchestrator.EXPECT().RunTests(mock.Anything, selection, mock.Anything).Return([]m.RunResult{{Passed: true}}, nil).Once()
	mocks.ui.EXPECT().DisplayReport(mock.Anything, mock.Anything).Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}, Keep: true})

	// Assert
	require.NoError(t, err)
	mocks.instrumentor.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything)
}

func TestWorkflow_Run_AlreadyInstrumented(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(m.Selection{AlreadyInstrumented: true}, nil).Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}})

	// Assert
	require.ErrorIs(t, err, domain.ErrAlreadyInstrumented)
	mocks.instrumentor.AssertNotCalled(t, "Instrument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_Run_DryRun(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().
		Analyze(mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(opts domain.AnalyzeOptions) bool { return opts.DryRun })).
		Return(selection, nil).Once()
	mocks.ui.EXPECT().
		DisplayReport(mock.Anything, mock.MatchedBy(func(report m.Report) bool {
			return len(report.Selection.Affected) == 1 && report.RunID != "" && report.Results == nil
		})).
		Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root), DryRun: true}})

	// Assert
	require.NoError(t, err)
}

func TestWorkflow_Run_UnknownFramework(t *testing.T) {
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	mocks.expectUI(root)

	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root), Framework: "ginkgo"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ginkgo")
}

func TestWorkflow_Run_NoModule(t *testing.T) {
	wf, mocks := newTestWorkflow(t)

	mocks.ui.EXPECT().Start(mock.Anything, mock.Anything).Return(nil).Once()
	mocks.ui.EXPECT().Close(mock.Anything).Return().Once()

	err := wf.Run(context.Background(), domain.RunArgs{SelectArgs: domain.SelectArgs{
		ModuleArgs: domain.ModuleArgs{Paths: []m.Path{m.Path(filepath.Join(t.TempDir(), "..."))}},
	}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "find module root")
}

func TestWorkflow_Run_StartError(t *testing.T) {
	wf, mocks := newTestWorkflow(t)
	startErr := errors.New("no terminal")

	mocks.ui.EXPECT().Start(mock.Anything, mock.Anything).Return(startErr).Once()

	err := wf.Run(context.Background(), domain.RunArgs{})

	require.ErrorIs(t, err, startErr)
}

func TestWorkflow_Select_LeavesSourcesInstrumented(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(selection, nil).Once()
	mocks.instrumentor.EXPECT().Instrument(mock.Anything, selection, mock.Anything, mock.Anything).Return([]m.Path{"a.go", "zz_gorts_init.go"}, nil).Once()
	mocks.ui.EXPECT().
		DisplayReport(mock.Anything, mock.MatchedBy(func(report m.Report) bool {
			return len(report.Instrumented) == 2 && report.Restored == nil
		})).
		Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Select(context.Background(), domain.SelectArgs{ModuleArgs: moduleArgs(root)})

	// Assert
	require.NoError(t, err)
	mocks.orchestrator.AssertNotCalled(t, "RunTests", mock.Anything, mock.Anything, mock.Anything)
	mocks.instrumentor.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything)
}

func TestWorkflow_Select_NothingAffected(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(m.Selection{Total: 1}, nil).Once()
	mocks.ui.EXPECT().DisplayReport(mock.Anything, mock.Anything).Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.Select(context.Background(), domain.SelectArgs{ModuleArgs: moduleArgs(root)})

	// Assert
	require.NoError(t, err)
	mocks.instrumentor.AssertNotCalled(t, "Instrument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_Select_InstrumentError(t *testing.T) {
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	selection := affectedA(root)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(selection, nil).Once()
	mocks.instrumentor.EXPECT().Instrument(mock.Anything, selection, mock.Anything, mock.Anything).Return(nil, errors.New("missing runtime hook")).Once()

	err := wf.Select(context.Background(), domain.SelectArgs{ModuleArgs: moduleArgs(root)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrument: missing runtime hook")
}

func TestWorkflow_List(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)
	layout := m.Layout{Root: m.Path(filepath.Join(root, domain.DefaultOutputDir))}

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().
		Analyze(mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(opts domain.AnalyzeOptions) bool { return opts.DryRun })).
		Return(affectedA(root), nil).Once()
	mocks.store.EXPECT().LoadAffected(mock.Anything, layout.Affected()).Return([]string{"example.com/app.TestA"}, nil).Once()
	mocks.store.EXPECT().
		Dependencies(mock.Anything, layout.Dependencies(), "example.com/app.TestA").
		Return([]string{"example.com_app.A", "example.com_app.<a_test.go>"}, nil).Once()

	var listing m.Listing

	mocks.ui.EXPECT().
		DisplayListing(mock.Anything, mock.Anything).
		Run(func(_ context.Context, l m.Listing) { listing = l }).
		Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	// Act
	err := wf.List(context.Background(), domain.ListArgs{
		ModuleArgs:  moduleArgs(root),
		Granularity: m.GranularityMethod,
		Mode:        m.ModeSmart,
		Text:        true,
	})

	// Assert
	require.NoError(t, err)

	ids := make([]string, 0, len(listing.Units))
	for _, unit := range listing.Units {
		ids = append(ids, unit.ID)

		assert.NotEmpty(t, unit.Fingerprint, unit.ID)
		assert.NotEmpty(t, unit.Text, unit.ID)
	}

	assert.Contains(t, ids, "example.com_app.A")
	assert.Contains(t, ids, "example.com_app.<a_test.go>")
	assert.Contains(t, ids, "example.com_app_sub.<b.go>")

	require.Len(t, listing.Tests, 1)
	assert.Equal(t, "example.com/app.TestA", listing.Tests[0].Name)
	assert.True(t, listing.Tests[0].Selected)
	assert.True(t, listing.Tests[0].LastRun)
	assert.Equal(t, "changed", listing.Tests[0].Reason)
	assert.Equal(t, "example.com_app.A", listing.Tests[0].Unit)
	assert.Len(t, listing.Tests[0].Dependencies, 2)
}

func TestWorkflow_List_NeverRan(t *testing.T) {
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	mocks.expectUI(root)
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(m.Selection{Total: 1}, nil).Once()
	mocks.store.EXPECT().LoadAffected(mock.Anything, mock.Anything).Return(nil, errors.New("decode affected tests")).Once()
	mocks.store.EXPECT().Dependencies(mock.Anything, mock.Anything, mock.Anything).Return(nil, adapter.ErrNoDependencies).Once()
	mocks.ui.EXPECT().
		DisplayListing(mock.Anything, mock.MatchedBy(func(l m.Listing) bool {
			return len(l.Tests) == 1 && !l.Tests[0].Selected && !l.Tests[0].LastRun && l.Tests[0].Dependencies == nil && l.Units[0].Text == ""
		})).
		Return(nil).Once()
	mocks.ui.EXPECT().Wait(mock.Anything).Return().Once()

	err := wf.List(context.Background(), domain.ListArgs{ModuleArgs: moduleArgs(root)})

	require.NoError(t, err)
}

func TestWorkflow_Restore(t *testing.T) {
	root := writeWorkflowModule(t)
	restored := []m.Path{m.Path(filepath.Join(root, "a.go"))}

	t.Run("restores the backup", func(t *testing.T) {
		wf, mocks := newTestWorkflow(t)

		mocks.instrumentor.EXPECT().Restore(mock.Anything, m.Layout{Root: m.Path(filepath.Join(root, ".cache"))}).Return(restored, nil).Once()
		mocks.ui.EXPECT().DisplayRestored(mock.Anything, restored).Return().Once()

		require.NoError(t, wf.Restore(context.Background(), domain.RestoreArgs{Path: m.Path(filepath.Join(root, "sub")), Output: ".cache"}))
	})

	t.Run("nothing to restore", func(t *testing.T) {
		wf, mocks := newTestWorkflow(t)

		mocks.instrumentor.EXPECT().Restore(mock.Anything, mock.Anything).Return(nil, adapter.ErrNothingToRestore).Once()
		mocks.ui.EXPECT().DisplayRestored(mock.Anything, []m.Path(nil)).Return().Once()

		require.NoError(t, wf.Restore(context.Background(), domain.RestoreArgs{Path: m.Path(root)}))
	})

	t.Run("restore failure", func(t *testing.T) {
		wf, mocks := newTestWorkflow(t)

		mocks.instrumentor.EXPECT().Restore(mock.Anything, mock.Anything).Return(nil, errors.New("permission denied")).Once()

		err := wf.Restore(context.Background(), domain.RestoreArgs{Path: m.Path(root)})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})
}

func TestWorkflow_Watch_RunsOnChange(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan m.Path)
	errs := make(chan error)
	firstRun := make(chan struct{})
	runs := 0

	mocks.ui.EXPECT().Start(mock.Anything, mock.Anything).Return(nil).Once()
	mocks.ui.EXPECT().DisplayModule(mock.Anything, m.Path(root), "example.com/app", 2).Return()
	mocks.ui.EXPECT().Close(mock.Anything).Return().Once()
	mocks.watcher.EXPECT().
		Watch(mock.Anything, []m.Path{m.Path(root), m.Path(filepath.Join(root, "sub"))}).
		Return((<-chan m.Path)(changes), (<-chan error)(errs), nil).Once()
	mocks.ui.EXPECT().DisplayWatching(mock.Anything, 2).Return().Once()
	mocks.analyzer.EXPECT().
		Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, []*m.Package, []*m.Package, domain.AnalyzeOptions) (m.Selection, error) {
			runs++
			if runs == 2 {
				cancel()
			}

			return m.Selection{Total: 1}, nil
		}).Times(2)
	mocks.ui.EXPECT().
		DisplayReport(mock.Anything, mock.Anything).
		Run(func(context.Context, m.Report) {
			if runs == 1 {
				close(firstRun)
			}
		}).
		Return(nil).Times(2)

	done := make(chan error, 1)

	// Act
	go func() {
		done <- wf.Watch(ctx, domain.WatchArgs{
			RunArgs:  domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}, Keep: true},
			Debounce: 10 * time.Millisecond,
		})
	}()

	<-firstRun
	time.Sleep(100 * time.Millisecond)

	errs <- errors.New("overflow")
	changes <- m.Path(filepath.Join(root, "a.go"))

	// Assert
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	assert.Equal(t, 2, runs)
}

func TestWorkflow_Watch_StopsWhenWatcherCloses(t *testing.T) {
	// Arrange
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	changes := make(chan m.Path)
	errs := make(chan error)
	close(changes)
	close(errs)

	mocks.expectUI(root)
	mocks.watcher.EXPECT().Watch(mock.Anything, mock.Anything).Return((<-chan m.Path)(changes), (<-chan error)(errs), nil).Once()
	mocks.ui.EXPECT().DisplayWatching(mock.Anything, 2).Return().Once()
	mocks.analyzer.EXPECT().Analyze(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(m.Selection{}, nil).Once()
	mocks.ui.EXPECT().DisplayReport(mock.Anything, mock.Anything).Return(nil).Once()

	// Act
	err := wf.Watch(context.Background(), domain.WatchArgs{
		RunArgs: domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}},
	})

	// Assert
	require.NoError(t, err)
}

func TestWorkflow_Watch_WatcherError(t *testing.T) {
	root := writeWorkflowModule(t)
	wf, mocks := newTestWorkflow(t)

	mocks.expectUI(root)
	mocks.watcher.EXPECT().Watch(mock.Anything, mock.Anything).Return(nil, nil, errors.New("too many open files")).Once()

	err := wf.Watch(context.Background(), domain.WatchArgs{RunArgs: domain.RunArgs{SelectArgs: domain.SelectArgs{ModuleArgs: moduleArgs(root)}}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch module")
}

// copyExample copies the fixture module examples/name into a temp dir.
func copyExample(t *testing.T, name string) string {
	t.Helper()

	src := filepath.Join("..", "..", "examples", name)
	dst := t.TempDir()

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		return os.WriteFile(target, data, 0o600)
	})
	require.NoError(t, err)

	return dst
}

func TestWorkflow_SelectRestoreReselect(t *testing.T) {
	// Arrange
	root := copyExample(t, "calc")
	fsAdapter := adapter.NewLocalSourceFSAdapter()
	goFile := adapter.NewLocalGoFileAdapter()
	goMod := adapter.NewLocalGoModAdapter()
	store := adapter.NewLocalDependencyStore()
	fingerprinter := domain.NewFingerprinter()
	mockUI := controllermocks.NewMockUI(t)

	wf := domain.NewWorkflow(
		fsAdapter,
		goFile,
		goMod,
		store,
		adaptermocks.NewMockFileWatcher(t),
		mockUI,
		domain.NewAnalyzer(goFile, adapter.NewLocalFingerprintStore(), store, fingerprinter),
		domain.NewInstrumentor(fsAdapter, goFile, goMod, adapter.NewLocalCodeInstrumentor(fsAdapter)),
		domainmocks.NewMockOrchestrator(t),
		fingerprinter,
	)

	var reports []m.Report

	mockUI.EXPECT().Start(mock.Anything, mock.Anything).Return(nil)
	mockUI.EXPECT().DisplayModule(mock.Anything, m.Path(root), "example.com/calc", 2).Return()
	mockUI.EXPECT().DisplayReport(mock.Anything, mock.Anything).
		Run(func(_ context.Context, report m.Report) { reports = append(reports, report) }).
		Return(nil)
	mockUI.EXPECT().DisplayRestored(mock.Anything, mock.Anything).Return()
	mockUI.EXPECT().Wait(mock.Anything).Return()
	mockUI.EXPECT().Close(mock.Anything).Return()

	args := domain.SelectArgs{
		ModuleArgs:  moduleArgs(root),
		Granularity: m.GranularityMethod,
		Mode:        m.ModeSmart,
		Strategy:    m.StrategyEntry,
	}
	ctx := context.Background()

	calcPath := filepath.Join(root, "calc.go")
	original, err := os.ReadFile(calcPath)
	require.NoError(t, err)

	// Act: first selection instruments every test
	require.NoError(t, wf.Select(ctx, args))

	// Assert
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Selection.Affected, 3)

	for _, affected := range reports[0].Selection.Affected {
		assert.Equal(t, m.ReasonNew, affected.Reason, affected.Test.Name)
	}

	assert.NotEmpty(t, reports[0].Instrumented)

	instrumented, err := os.ReadFile(calcPath)
	require.NoError(t, err)
	assert.Contains(t, string(instrumented), m.MonitorAlias+".Touch(")

	// Act: restore
	require.NoError(t, wf.Restore(ctx, domain.RestoreArgs{Path: m.Path(root)}))

	// Assert
	restored, err := os.ReadFile(calcPath)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(restored))

	generated, err := filepath.Glob(filepath.Join(root, m.GeneratedFilePrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, generated)

	// Arrange: the instrumented run recorded its dependencies
	depsDir := filepath.Join(root, domain.DefaultOutputDir, "dependencies")
	for test, deps := range map[string][]string{
		"example.com/calc.TestAdd":   {"example.com_calc.Calculator", "example.com_calc.<calc_test.go>"},
		"example.com/calc.TestScale": {"example.com_calc.<scale.go>", "example.com_calc.<calc_test.go>"},
		"example.com/calc.TestDiv":   {"example.com_calc.<calc.go>", "example.com_calc.<calc_test.go>"},
	} {
		require.NoError(t, monitor.WriteDependencies(depsDir, monitor.Dependencies{TestName: test, Dependencies: deps}))
	}

	scalePath := filepath.Join(root, "scale.go")
	scale, err := os.ReadFile(scalePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(scalePath, []byte(strings.Replace(string(scale), "Factor = 3", "Factor = 30", 1)), 0o600))

	// Act: only the test depending on the changed file is selected
	args.DryRun = true
	require.NoError(t, wf.Select(ctx, args))

	// Assert
	require.Len(t, reports, 2)
	require.Len(t, reports[1].Selection.Affected, 1)
	assert.Equal(t, "example.com/calc.TestScale", reports[1].Selection.Affected[0].Test.Name)
	assert.Equal(t, m.ReasonChanged, reports[1].Selection.Affected[0].Reason)
	assert.Equal(t, "example.com_calc.<scale.go>", reports[1].Selection.Affected[0].Unit)
	assert.Empty(t, reports[1].Instrumented)
}

// calcExtras extends the calc fixture with a type used only through a
// literal, a constant read from another file and parallel tests.
var calcExtras = map[string]string{
	"point.go":  "package calc\n\n// Point is encoded by Encode.\ntype Point struct {\n\tX int `json:\"x\"`\n}\n\n// Norm returns X.\nfunc (p Point) Norm() int { return p.X }\n",
	"encode.go": "package calc\n\nimport \"encoding/json\"\n\n// Encode encodes a point at x.\nfunc Encode(x int) ([]byte, error) {\n\treturn json.Marshal(Point{X: x})\n}\n",
	"limits.go": "package calc\n\n// Limit bounds Clamp.\nconst Limit = 10\n\nfunc unused() int { return 0 }\n",
	"clamp.go":  "package calc\n\n// Clamp bounds n by Limit.\nfunc Clamp(n int) int {\n\tif n > Limit {\n\t\treturn Limit\n\t}\n\n\treturn n\n}\n",
	"refs_test.go": `package calc

import (
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	got, err := Encode(1)
	if err != nil || string(got) != ` + "`" + `{"x":1}` + "`" + ` {
		t.Fatalf("Encode() = %s, %v", got, err)
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	if got := Clamp(50); got != 10 {
		t.Fatalf("Clamp() = %d, want 10", got)
	}
}

func TestParDiv(t *testing.T) {
	t.Parallel()
	time.Sleep(20 * time.Millisecond)

	if got, err := Div(4, 2); err != nil || got != 2 {
		t.Fatalf("Div() = %d, %v", got, err)
	}
}
`,
}

func replaceInFile(t *testing.T, path, old, replacement string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), old, replacement, 1)), 0o600))
}

func TestWorkflow_Run_RecordsDependenciesOfInstrumentedTests(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles and runs an instrumented module")
	}

	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not found")
	}

	// Arrange
	root := copyExample(t, "calc")
	for name, content := range calcExtras {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o600))
	}

	gortsRoot, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)

	fsAdapter := adapter.NewLocalSourceFSAdapter()
	goFile := adapter.NewLocalGoFileAdapter()
	goMod := adapter.NewLocalGoModAdapter()
	store := adapter.NewLocalDependencyStore()
	fingerprinter := domain.NewFingerprinter()
	mockUI := controllermocks.NewMockUI(t)

	wf := domain.NewWorkflow(
		fsAdapter,
		goFile,
		goMod,
		store,
		adaptermocks.NewMockFileWatcher(t),
		mockUI,
		domain.NewAnalyzer(goFile, adapter.NewLocalFingerprintStore(), store, fingerprinter),
		domain.NewInstrumentor(fsAdapter, goFile, goMod, adapter.NewLocalCodeInstrumentor(fsAdapter)),
		domain.NewOrchestrator(adapter.NewLocalTestRunnerAdapter(5*time.Minute), store),
		fingerprinter,
	)

	var reports []m.Report

	mockUI.EXPECT().Start(mock.Anything, mock.Anything).Return(nil)
	mockUI.EXPECT().DisplayModule(mock.Anything, mock.Anything, "example.com/calc", mock.Anything).Return()
	mockUI.EXPECT().DisplayReport(mock.Anything, mock.Anything).
		Run(func(_ context.Context, report m.Report) { reports = append(reports, report) }).
		Return(nil)
	mockUI.EXPECT().Wait(mock.Anything).Return()
	mockUI.EXPECT().Close(mock.Anything).Return()

	args := domain.SelectArgs{
		ModuleArgs:     moduleArgs(root),
		Granularity:    m.GranularityMethod,
		Mode:           m.ModeSmart,
		Strategy:       m.StrategyEntry,
		MonitorReplace: gortsRoot,
	}
	ctx := context.Background()

	// Act
	err = wf.Run(ctx, domain.RunArgs{SelectArgs: args, Parallel: 1})

	// Assert
	require.Len(t, reports, 1)

	for _, result := range reports[0].Results {
		require.True(t, result.Passed, result.Output)
	}

	require.NoError(t, err)
	assert.Len(t, reports[0].Selection.Affected, 6)

	depsDir := filepath.Join(root, domain.DefaultOutputDir, "dependencies")
	deps := func(test string) []string {
		recorded, err := monitor.ReadDependencies(depsDir, "example.com/calc."+test)
		require.NoError(t, err, test)

		return recorded.Dependencies
	}

	encode := deps("TestEncode")
	assert.Contains(t, encode, "example.com_calc.<refs_test.go>")
	assert.Contains(t, encode, "example.com_calc.<encode.go>")
	assert.Contains(t, encode, "example.com_calc.Point")
	assert.NotContains(t, encode, "example.com_calc.<calc_test.go>")

	assert.Contains(t, deps("TestClamp"), "example.com_calc.<limits.go>")

	parDiv := deps("TestParDiv")
	assert.Contains(t, parDiv, "example.com_calc.<refs_test.go>")
	assert.Contains(t, parDiv, "example.com_calc.<calc.go>")
	assert.NotContains(t, parDiv, "example.com_calc.<limits.go>")

	assert.Contains(t, deps("TestAdd"), "example.com_calc.Calculator")
	assert.NotContains(t, deps("TestAdd"), "example.com_calc.<refs_test.go>")

	// sources are back to their original state
	assert.NotContains(t, string(mustRead(t, filepath.Join(root, "encode.go"))), m.MonitorAlias)

	// Arrange: change a struct tag, a constant and a helper of calc_test.go
	replaceInFile(t, filepath.Join(root, "point.go"), "`json:\"x\"`", "`json:\"x,omitempty\"`")
	replaceInFile(t, filepath.Join(root, "limits.go"), "Limit = 10", "Limit = 100")
	replaceInFile(t, filepath.Join(root, "calc_test.go"), "func helper() int { return 1 }", "func helper() int { return 10 }")

	// Act
	args.DryRun = true
	require.NoError(t, wf.Select(ctx, args))

	// Assert
	require.Len(t, reports, 2)

	selected := make([]string, 0, len(reports[1].Selection.Affected))
	for _, affected := range reports[1].Selection.Affected {
		selected = append(selected, strings.TrimPrefix(affected.Test.Name, "example.com/calc."))
	}

	assert.ElementsMatch(t, []string{"TestAdd", "TestScale", "TestDiv", "TestEncode", "TestClamp"}, selected)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}
