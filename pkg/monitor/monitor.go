// Package monitor is the runtime dependency tracker linked into instrumented
// test binaries.
//
// Instrumented code calls Touch whenever a unit is used, and TestStart/TestEnd
// around every test. At the end of each test the set of touched units is written
// to a dependency file that gorts reads on its next selection run.
//
// The package only depends on the standard library so that it can be required
// by any module under test without dragging extra modules into its build.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// EnvDependenciesDir overrides the directory dependency files are written to.
const EnvDependenciesDir = "GORTS_DEPENDENCIES_DIR"

// DefaultDependenciesDir is used when neither the environment nor Configure set a directory.
const DefaultDependenciesDir = ".gorts/dependencies"

// ErrNoCurrentTest is returned by TestEnd when no test identity is known.
var ErrNoCurrentTest = errors.New("no test in progress")

// Runner is satisfied by *testing.M.
type Runner interface {
	Run() int
}

// Tracker accumulates the units touched by the test currently in flight.
//
// Exactly one test is current at a time. Tests running concurrently inside the
// same process would mix their dependency sets, so a Tracker must only observe
// sequential tests; the mutex only protects goroutines spawned by that test.
type Tracker struct {
	mu      sync.Mutex
	dir     string
	current string
	started bool
	ambient map[string]struct{}
	deps    map[string]struct{}
}

// New returns a Tracker writing dependency files into dir.
func New(dir string) *Tracker {
	return &Tracker{
		dir:     dir,
		ambient: make(map[string]struct{}),
		deps:    make(map[string]struct{}),
	}
}

// Dir returns the directory dependency files are written to.
func (t *Tracker) Dir() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dir
}

// SetDir changes the output directory.
func (t *Tracker) SetDir(dir string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dir = dir
}

// Current returns the identity of the test in flight, or "".
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}

// Touch records that units were used by the current test. Empty ids are
// skipped.
//
// Units touched before the first TestStart of the process (package init,
// TestMain set-up) are remembered and seeded into every later test.
func (t *Tracker) Touch(units ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, unit := range units {
		if unit == "" {
			continue
		}

		if !t.started {
			t.ambient[unit] = struct{}{}
		}

		t.deps[unit] = struct{}{}
	}
}

// TestStart begins tracking a new test. An empty test keeps the identity set by
// the previous TestStart, for adapters that cannot name the test at this call site.
//
// Units touched while no test was in flight (per-test set-up such as a suite's
// SetupTest running before the test method) are carried into the new test.
func (t *Tracker) TestStart(test string, units ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	carried := t.deps
	if t.current != "" {
		carried = nil
	}

	t.started = true
	t.deps = make(map[string]struct{}, len(t.ambient)+len(carried)+len(units))

	for unit := range t.ambient {
		t.deps[unit] = struct{}{}
	}

	for unit := range carried {
		t.deps[unit] = struct{}{}
	}

	// the declaring units are always dependencies, even if their code ran
	// before this hook fired
	for _, unit := range units {
		if unit != "" {
			t.deps[unit] = struct{}{}
		}
	}

	if test != "" {
		t.current = test
	}
}

// TestEnd writes the dependency file of test and resets the tracker. An empty
// test falls back to the identity recorded by the most recent TestStart.
func (t *Tracker) TestEnd(test string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	name := test
	if name == "" {
		name = t.current
	}

	deps := t.sortedDeps()
	dir := t.dir

	t.current = ""
	t.deps = make(map[string]struct{})

	if name == "" {
		return ErrNoCurrentTest
	}

	if err := WriteDependencies(dir, Dependencies{TestName: name, Dependencies: deps}); err != nil {
		return fmt.Errorf("write dependencies of %s: %w", name, err)
	}

	return nil
}

// Run wraps testing.M.Run with TestStart/TestEnd so a whole test package is
// tracked as a single test.
func (t *Tracker) Run(m Runner, test string, units ...string) int {
	t.TestStart(test, units...)
	code := m.Run()

	if err := t.TestEnd(test); err != nil {
		slog.Error("gorts: failed to record dependencies", "test", test, "error", err)
	}

	return code
}

func (t *Tracker) sortedDeps() []string {
	deps := make([]string, 0, len(t.deps))
	for unit := range t.deps {
		deps = append(deps, unit)
	}

	sort.Strings(deps)

	return deps
}

var std = New(defaultDir())

func defaultDir() string {
	if dir := os.Getenv(EnvDependenciesDir); dir != "" {
		return dir
	}

	return DefaultDependenciesDir
}

// Default returns the process-wide tracker used by the package-level functions.
func Default() *Tracker {
	return std
}

// Configure sets the output directory of the default tracker unless the
// environment already names one.
func Configure(dir string) {
	if os.Getenv(EnvDependenciesDir) != "" || dir == "" {
		return
	}

	std.SetDir(dir)
}

// Touch records units on the default tracker.
func Touch(units ...string) {
	std.Touch(units...)
}

// TestStart starts a test on the default tracker.
func TestStart(test string, units ...string) {
	std.TestStart(test, units...)
}

// TestEnd ends a test on the default tracker. A failed write leaves the test
// without a dependency file, which makes it run every time, so it is logged loudly.
//
// A shared teardown calling TestEnd("") after a test that was never started is
// not an error.
func TestEnd(test string) {
	err := std.TestEnd(test)
	if err == nil || (test == "" && errors.Is(err, ErrNoCurrentTest)) {
		return
	}

	slog.Error("gorts: failed to record dependencies", "test", test, "error", err)
}

// Run wraps m.Run on the default tracker.
func Run(m Runner, test string, units ...string) int {
	return std.Run(m, test, units...)
}
