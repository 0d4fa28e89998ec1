package model

import "fmt"

// Granularity is the scope of a single tracked test.
type Granularity string

const (
	// GranularityClass tracks a whole test class: a package for go test, a
	// suite for testify.
	GranularityClass Granularity = "class"
	// GranularityMethod tracks each test function or suite method.
	GranularityMethod Granularity = "method"
)

// FrameworkName identifies a test framework adapter.
type FrameworkName string

// Supported frameworks.
const (
	FrameworkGoTest  FrameworkName = "gotest"
	FrameworkTestify FrameworkName = "testify"
)

// Test is a test discovered in a test package.
type Test struct {
	Name        string // identity used for dependency files
	Granularity Granularity
	Framework   FrameworkName
	Package     *Package
	File        *SourceFile // file declaring the test or suite, nil for package-wide tests
	Units       []string    // declaring units, always dependencies of the test
	Func        string      // go test function, or suite method
	Suite       string      // testify suite type
	Runner      string      // go test function that runs Suite
}

// Reason explains why a test was selected.
type Reason int

const (
	// ReasonNew means the test has no dependency file yet.
	ReasonNew Reason = iota
	// ReasonUnreadable means the dependency file could not be read.
	ReasonUnreadable
	// ReasonChanged means a dependency's fingerprint differs.
	ReasonChanged
	// ReasonRemoved means a dependency no longer exists.
	ReasonRemoved
	// ReasonAdded means a dependency did not exist on the previous run.
	ReasonAdded
)

func (r Reason) String() string {
	switch r {
	case ReasonNew:
		return "new"
	case ReasonUnreadable:
		return "unreadable"
	case ReasonChanged:
		return "changed"
	case ReasonRemoved:
		return "removed"
	case ReasonAdded:
		return "added"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// AffectedTest is a selected test together with the reason for selecting it.
type AffectedTest struct {
	Test   Test
	Reason Reason
	Unit   string // offending unit for changed/removed/added
}

// Selection is the result of an analysis.
type Selection struct {
	Affected []AffectedTest
	Total    int // tests discovered

	// AlreadyInstrumented is set when every artifact carried the marker and
	// nothing was analyzed.
	AlreadyInstrumented bool
}

// Names returns the affected test names in selection order.
func (s Selection) Names() []string {
	names := make([]string, 0, len(s.Affected))
	for _, a := range s.Affected {
		names = append(names, a.Test.Name)
	}

	return names
}

// Empty reports whether no test was selected.
func (s Selection) Empty() bool {
	return len(s.Affected) == 0
}

// ByPackage groups the affected tests by package directory.
func (s Selection) ByPackage() map[Path][]AffectedTest {
	grouped := make(map[Path][]AffectedTest)

	for _, a := range s.Affected {
		if a.Test.Package == nil {
			continue
		}

		grouped[a.Test.Package.Dir] = append(grouped[a.Test.Package.Dir], a)
	}

	return grouped
}
