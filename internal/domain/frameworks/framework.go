// Package frameworks discovers tests and instruments their lifecycle for the
// supported Go test frameworks.
package frameworks

import (
	"errors"
	"fmt"
	"go/ast"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorts.dev/pkg/gorts/internal/adapter"
	m "gorts.dev/pkg/gorts/internal/model"
)

var (
	// ErrUnsupportedGranularity is returned for a granularity a framework cannot track.
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
	// ErrMissingRuntimeHook is returned when a package does not import the
	// framework's runtime package, so tests cannot be hooked.
	ErrMissingRuntimeHook = errors.New("missing runtime hook")
	// ErrUnknownFramework is returned by New for an unknown name.
	ErrUnknownFramework = errors.New("unknown test framework")
)

// Framework discovers the tests of a package and instruments their start and
// end.
type Framework interface {
	Name() m.FrameworkName

	// FindTests returns the tests of pkg at granularity, sorted by name.
	FindTests(pkg *m.Package, granularity m.Granularity) ([]m.Test, error)

	// InstrumentTestClass makes the whole class report as one test.
	InstrumentTestClass(ci adapter.CodeInstrumentor, test m.Test) error

	// InstrumentTestMethod makes a single test method report as one test.
	InstrumentTestMethod(ci adapter.CodeInstrumentor, test m.Test) error

	// RunFlags returns the go test flags that run exactly tests, which all
	// belong to one package.
	RunFlags(tests []m.Test) []string
}

// New returns the framework called name.
func New(name m.FrameworkName, goFile adapter.GoFileAdapter) (Framework, error) {
	switch name {
	case m.FrameworkGoTest, "":
		return NewGoTest(goFile), nil
	case m.FrameworkTestify:
		return NewTestify(goFile), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, name)
	}
}

// Names lists the supported frameworks.
func Names() []m.FrameworkName {
	return []m.FrameworkName{m.FrameworkGoTest, m.FrameworkTestify}
}

// isTestName reports whether name has the form go test runs: Test followed by
// nothing or by a character that is not a lower case letter.
func isTestName(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}

	if len(name) == len(prefix) {
		return true
	}

	r, _ := utf8.DecodeRuneInString(name[len(prefix):])

	return !unicode.IsLower(r)
}

// testNamePrefix is the name prefix of tests declared in file. External test
// packages get their own prefix so names stay unique.
func testNamePrefix(pkg *m.Package, file *m.SourceFile) string {
	if file != nil && file.PackageName() != pkg.Name {
		return pkg.ImportPath + "_test"
	}

	return pkg.ImportPath
}

func findFunc(file *m.SourceFile, name string) *ast.FuncDecl {
	if file == nil || file.AST == nil {
		return nil
	}

	for _, decl := range file.AST.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == name {
			return fn
		}
	}

	return nil
}

// findMethod looks up a method of recv declared in any test file of pkg in
// the same package as anchor.
func findMethod(pkg *m.Package, anchor *m.SourceFile, recv, name string) (*m.SourceFile, *ast.FuncDecl) {
	for _, file := range pkg.TestFiles() {
		if file.PackageName() != anchor.PackageName() {
			continue
		}

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || fn.Name.Name != name {
				continue
			}

			if adapter.ReceiverTypeName(fn) == recv {
				return file, fn
			}
		}
	}

	return nil, nil
}

func startCall(test m.Test) m.Call {
	return m.Call{Func: m.CallTestStart, Args: append([]string{test.Name}, test.Units...)}
}

// anchoredAlternation builds ^(a|b)$ out of sorted, deduplicated names.
func anchoredAlternation(names []string) string {
	set := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))

	for _, name := range names {
		if _, ok := set[name]; ok || name == "" {
			continue
		}

		set[name] = struct{}{}
		unique = append(unique, regexp.QuoteMeta(name))
	}

	sort.Strings(unique)

	return "^(" + strings.Join(unique, "|") + ")$"
}

func sortTests(tests []m.Test) {
	sort.Slice(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
}
