package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gorts.dev/pkg/gorts/internal/adapter"
	adaptermocks "gorts.dev/pkg/gorts/internal/adapter/mocks"
	domain "gorts.dev/pkg/gorts/internal/domain"
	"gorts.dev/pkg/gorts/internal/domain/frameworks"
	m "gorts.dev/pkg/gorts/internal/model"
)

func orchestratorSelection() m.Selection {
	root := &m.Package{ImportPath: "example.com/app", Dir: "/src/app", ModuleRoot: "/src/app"}
	sub := &m.Package{ImportPath: "example.com/app/sub", Dir: "/src/app/sub", ModuleRoot: "/src/app"}

	return m.Selection{
		Total: 4,
		Affected: []m.AffectedTest{
			{Test: m.Test{Name: "example.com/app/sub.TestZ", Package: sub, Func: "TestZ", Granularity: m.GranularityMethod}},
			{Test: m.Test{Name: "example.com/app.TestY", Package: root, Func: "TestY", Granularity: m.GranularityMethod}},
			{Test: m.Test{Name: "example.com/app.TestX", Package: root, Func: "TestX", Granularity: m.GranularityMethod}},
		},
	}
}

func runOptions() domain.RunOptions {
	return domain.RunOptions{
		Layout:     m.Layout{Root: "/src/app/.gorts"},
		ModuleRoot: "/src/app",
		Threads:    2,
		Framework:  frameworks.NewGoTest(adapter.NewLocalGoFileAdapter()),
	}
}

func TestOrchestrator_RunTests_OneInvocationPerPackage(t *testing.T) {
	// Arrange
	mockRunner := adaptermocks.NewMockTestRunnerAdapter(t)
	mockStore := adaptermocks.NewMockDependencyStore(t)

	mockRunner.EXPECT().RunGoTest(mock.Anything, "/src/app", ".", "-run", "^(TestX|TestY)$").Return("ok", nil).Once()
	mockRunner.EXPECT().RunGoTest(mock.Anything, "/src/app", "./sub", "-run", "^(TestZ)$").Return("ok", nil).Once()

	orch := domain.NewOrchestrator(mockRunner, mockStore)

	// Act
	results, err := orch.RunTests(context.Background(), orchestratorSelection(), runOptions())

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "example.com/app", results[0].Package.ImportPath)
	assert.ElementsMatch(t, []string{"example.com/app.TestX", "example.com/app.TestY"}, results[0].Tests)
	assert.Equal(t, []string{"-run", "^(TestX|TestY)$"}, results[0].Args)
	assert.True(t, results[0].Passed)

	assert.Equal(t, "example.com/app/sub", results[1].Package.ImportPath)
	assert.Equal(t, "ok", results[1].Output)
	assert.True(t, results[1].Passed)

	mockStore.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_RunTests_FailedPackageForgetsDependencies(t *testing.T) {
	// Arrange
	mockRunner := adaptermocks.NewMockTestRunnerAdapter(t)
	mockStore := adaptermocks.NewMockDependencyStore(t)
	exitErr := errors.New("exit status 1")

	mockRunner.EXPECT().RunGoTest(mock.Anything, "/src/app", ".", "-run", "^(TestX|TestY)$").Return("--- FAIL: TestY", exitErr).Once()
	mockRunner.EXPECT().RunGoTest(mock.Anything, "/src/app", "./sub", "-run", "^(TestZ)$").Return("ok", nil).Once()
	mockStore.EXPECT().
		Forget(mock.Anything, m.Path("/src/app/.gorts/dependencies"), mock.MatchedBy(func(tests []string) bool {
			return assert.ObjectsAreEqual([]string{"example.com/app.TestY", "example.com/app.TestX"}, tests)
		})).
		Return(errors.New("read-only")).Once()

	orch := domain.NewOrchestrator(mockRunner, mockStore)

	// Act
	results, err := orch.RunTests(context.Background(), orchestratorSelection(), runOptions())

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	assert.ErrorIs(t, results[0].Err, exitErr)
	assert.Equal(t, "--- FAIL: TestY", results[0].Output)
	assert.True(t, results[1].Passed)
}

func TestOrchestrator_RunTests_NoFramework(t *testing.T) {
	orch := domain.NewOrchestrator(adaptermocks.NewMockTestRunnerAdapter(t), adaptermocks.NewMockDependencyStore(t))

	opts := runOptions()
	opts.Framework = nil

	_, err := orch.RunTests(context.Background(), orchestratorSelection(), opts)

	require.ErrorIs(t, err, frameworks.ErrUnknownFramework)
}

func TestOrchestrator_RunTests_EmptySelection(t *testing.T) {
	orch := domain.NewOrchestrator(adaptermocks.NewMockTestRunnerAdapter(t), adaptermocks.NewMockDependencyStore(t))

	results, err := orch.RunTests(context.Background(), m.Selection{}, runOptions())

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOrchestrator_RunTests_Canceled(t *testing.T) {
	orch := domain.NewOrchestrator(adaptermocks.NewMockTestRunnerAdapter(t), adaptermocks.NewMockDependencyStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.RunTests(ctx, orchestratorSelection(), runOptions())

	require.ErrorIs(t, err, context.Canceled)
}
