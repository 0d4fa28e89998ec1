package frameworks

import (
	"bytes"
	"fmt"
	"go/ast"
	"strconv"

	"gorts.dev/pkg/gorts/internal/adapter"
	m "gorts.dev/pkg/gorts/internal/model"
)

const (
	testingImportPath = "testing"
	mainFileName      = m.GeneratedFilePrefix + "main_test.go"
)

// GoTest tracks plain go test functions. A class is the whole package, run
// through TestMain; a method is a single TestXxx function.
type GoTest struct {
	goFile adapter.GoFileAdapter
}

// NewGoTest constructs the go test framework.
func NewGoTest(goFile adapter.GoFileAdapter) *GoTest {
	return &GoTest{goFile: goFile}
}

// Name implements Framework.
func (g *GoTest) Name() m.FrameworkName { return m.FrameworkGoTest }

// FindTests implements Framework.
func (g *GoTest) FindTests(pkg *m.Package, granularity m.Granularity) ([]m.Test, error) {
	var methods []m.Test

	for _, file := range pkg.TestFiles() {
		alias := g.goFile.ImportName(file.AST, testingImportPath)
		if alias == "" {
			continue
		}

		unit := m.FileUnitID(pkg.UnitPrefix(file), file.Name)

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !isTestFunc(fn, alias) {
				continue
			}

			methods = append(methods, m.Test{
				Name:        testNamePrefix(pkg, file) + "." + fn.Name.Name,
				Granularity: m.GranularityMethod,
				Framework:   m.FrameworkGoTest,
				Package:     pkg,
				File:        file,
				Units:       []string{unit},
				Func:        fn.Name.Name,
			})
		}
	}

	sortTests(methods)

	switch granularity {
	case m.GranularityMethod:
		return methods, nil
	case m.GranularityClass:
		if len(methods) == 0 {
			return nil, nil
		}

		units := make([]string, 0, len(methods))
		seen := make(map[string]struct{})

		for _, method := range methods {
			if _, ok := seen[method.Units[0]]; ok {
				continue
			}

			seen[method.Units[0]] = struct{}{}
			units = append(units, method.Units[0])
		}

		return []m.Test{{
			Name:        pkg.ImportPath,
			Granularity: m.GranularityClass,
			Framework:   m.FrameworkGoTest,
			Package:     pkg,
			Units:       units,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s for %s", ErrUnsupportedGranularity, granularity, m.FrameworkGoTest)
	}
}

// InstrumentTestClass routes TestMain's m.Run through the tracker, generating
// a TestMain when the package has none.
func (g *GoTest) InstrumentTestClass(ci adapter.CodeInstrumentor, test m.Test) error {
	pkg := test.Package

	for _, file := range pkg.TestFiles() {
		fn := findFunc(file, "TestMain")
		if fn == nil || fn.Body == nil {
			continue
		}

		if ci.Calls(fn.Body, m.CallRun) {
			return nil
		}

		param := mainParam(fn)
		if param == "" {
			return fmt.Errorf("TestMain in %s has no named *testing.M parameter", file.Path)
		}

		runs := runCalls(fn.Body, param)
		if len(runs) == 0 {
			return fmt.Errorf("TestMain in %s never calls %s.Run", file.Path, param)
		}

		replacement := renderRun(param, test)
		for _, call := range runs {
			if err := ci.ReplaceNode(pkg, file, call, replacement); err != nil {
				return err
			}
		}

		return ci.EnsureImport(pkg, file)
	}

	if !g.hasHook(pkg) {
		return fmt.Errorf("%w: package %s does not import %s", ErrMissingRuntimeHook, pkg.ImportPath, testingImportPath)
	}

	return ci.AddFile(pkg, mainFileName, generateTestMain(pkg.Name, test))
}

// InstrumentTestMethod brackets the test function body with TestStart and a
// deferred TestEnd, placed after a leading t.Parallel().
func (g *GoTest) InstrumentTestMethod(ci adapter.CodeInstrumentor, test m.Test) error {
	fn := findFunc(test.File, test.Func)
	if fn == nil || fn.Body == nil {
		return fmt.Errorf("test function %s not found", test.Name)
	}

	if g.goFile.ImportName(test.File.AST, testingImportPath) == "" {
		return fmt.Errorf("%w: %s does not import %s", ErrMissingRuntimeHook, test.File.Path, testingImportPath)
	}

	if ci.Calls(fn.Body, m.CallTestStart) {
		return nil
	}

	pkg := test.Package
	index := adapter.EntryIndex(fn.Body)

	if err := ci.InsertCall(pkg, test.File, fn.Body, index, startCall(test)); err != nil {
		return err
	}

	end := m.Call{Func: m.CallTestEnd, Args: []string{test.Name}, Defer: true}
	if err := ci.InsertCall(pkg, test.File, fn.Body, index, end); err != nil {
		return err
	}

	return ci.EnsureImport(pkg, test.File)
}

// RunFlags implements Framework.
func (g *GoTest) RunFlags(tests []m.Test) []string {
	funcs := make([]string, 0, len(tests))

	for _, test := range tests {
		if test.Granularity == m.GranularityClass {
			return nil
		}

		funcs = append(funcs, test.Func)
	}

	if len(funcs) == 0 {
		return nil
	}

	return []string{"-run", anchoredAlternation(funcs)}
}

func (g *GoTest) hasHook(pkg *m.Package) bool {
	for _, file := range pkg.TestFiles() {
		if g.goFile.ImportName(file.AST, testingImportPath) != "" {
			return true
		}
	}

	return false
}

// isTestFunc matches func TestXxx(t *testing.T).
func isTestFunc(fn *ast.FuncDecl, alias string) bool {
	if fn.Recv != nil || fn.Name.Name == "TestMain" || !isTestName(fn.Name.Name, "Test") {
		return false
	}

	if fn.Type.TypeParams != nil || fn.Type.Results != nil || fn.Type.Params.NumFields() != 1 {
		return false
	}

	return isTestingPointer(fn.Type.Params.List[0].Type, alias, "T")
}

func isTestingPointer(expr ast.Expr, alias, name string) bool {
	star, ok := expr.(*ast.StarExpr)
	if !ok {
		return false
	}

	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	ident, ok := sel.X.(*ast.Ident)

	return ok && ident.Name == alias && sel.Sel.Name == name
}

func mainParam(fn *ast.FuncDecl) string {
	if fn.Type.Params.NumFields() != 1 || len(fn.Type.Params.List[0].Names) != 1 {
		return ""
	}

	name := fn.Type.Params.List[0].Names[0].Name
	if name == "_" {
		return ""
	}

	return name
}

// runCalls finds the param.Run() calls in body.
func runCalls(body *ast.BlockStmt, param string) []*ast.CallExpr {
	var calls []*ast.CallExpr

	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 0 {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Run" {
			return true
		}

		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == param {
			calls = append(calls, call)
		}

		return true
	})

	return calls
}

func renderRun(param string, test m.Test) string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s.%s(%s, %s", m.MonitorAlias, m.CallRun, param, strconv.Quote(test.Name))

	for _, unit := range test.Units {
		b.WriteString(", ")
		b.WriteString(strconv.Quote(unit))
	}

	b.WriteString(")")

	return b.String()
}

func generateTestMain(pkgName string, test m.Test) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "// Code generated by gorts. DO NOT EDIT.\n\npackage %s\n\n", pkgName)
	fmt.Fprintf(&b, "import (\n\t\"os\"\n\t\"testing\"\n\n\t%s %q\n)\n\n", m.MonitorAlias, m.MonitorImportPath)
	fmt.Fprintf(&b, "func TestMain(m *testing.M) {\n\tos.Exit(%s)\n}\n", renderRun("m", test))

	return b.Bytes()
}
