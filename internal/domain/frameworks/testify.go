package frameworks

import (
	"fmt"
	"go/ast"
	"go/token"
	"log/slog"

	"gorts.dev/pkg/gorts/internal/adapter"
	m "gorts.dev/pkg/gorts/internal/model"
)

const suiteImportPath = "github.com/stretchr/testify/suite"

// Testify tracks testify suites. A class is a suite, a method is one Test
// method of a suite.
type Testify struct {
	goFile adapter.GoFileAdapter
}

// NewTestify constructs the testify framework.
func NewTestify(goFile adapter.GoFileAdapter) *Testify {
	return &Testify{goFile: goFile}
}

// Name implements Framework.
func (f *Testify) Name() m.FrameworkName { return m.FrameworkTestify }

type suiteDecl struct {
	name   string
	file   *m.SourceFile
	unit   string
	runner string
}

// FindTests implements Framework. Suites that no TestXxx function runs are
// skipped.
func (f *Testify) FindTests(pkg *m.Package, granularity m.Granularity) ([]m.Test, error) {
	if granularity != m.GranularityClass && granularity != m.GranularityMethod {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnsupportedGranularity, granularity, m.FrameworkTestify)
	}

	suites := f.findSuites(pkg)

	var tests []m.Test

	for _, s := range suites {
		if s.runner == "" {
			slog.Debug("Suite is never run, skipping it", "package", pkg.ImportPath, "suite", s.name)
			continue
		}

		className := testNamePrefix(pkg, s.file) + "." + s.name

		if granularity == m.GranularityClass {
			tests = append(tests, m.Test{
				Name:        className,
				Granularity: m.GranularityClass,
				Framework:   m.FrameworkTestify,
				Package:     pkg,
				File:        s.file,
				Units:       []string{s.unit},
				Suite:       s.name,
				Runner:      s.runner,
			})

			continue
		}

		for _, file := range pkg.TestFiles() {
			if file.PackageName() != s.file.PackageName() {
				continue
			}

			for _, decl := range file.AST.Decls {
				fn, ok := decl.(*ast.FuncDecl)
				if !ok || fn.Recv == nil || fn.Body == nil || adapter.ReceiverTypeName(fn) != s.name {
					continue
				}

				if !isTestName(fn.Name.Name, "Test") || fn.Type.Params.NumFields() != 0 {
					continue
				}

				tests = append(tests, m.Test{
					Name:        className + "." + fn.Name.Name,
					Granularity: m.GranularityMethod,
					Framework:   m.FrameworkTestify,
					Package:     pkg,
					File:        file,
					Units:       []string{s.unit},
					Func:        fn.Name.Name,
					Suite:       s.name,
					Runner:      s.runner,
				})
			}
		}
	}

	sortTests(tests)

	return tests, nil
}

// findSuites returns the struct types embedding suite.Suite and the test
// functions running them.
func (f *Testify) findSuites(pkg *m.Package) []*suiteDecl {
	var suites []*suiteDecl

	byName := make(map[string]*suiteDecl)

	for _, file := range pkg.TestFiles() {
		alias := f.goFile.ImportName(file.AST, suiteImportPath)
		if alias == "" {
			continue
		}

		for _, decl := range file.AST.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}

			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || ts.TypeParams != nil || !embedsSuite(ts, alias) {
					continue
				}

				s := &suiteDecl{
					name: ts.Name.Name,
					file: file,
					unit: m.TypeUnitID(pkg.UnitPrefix(file), ts.Name.Name),
				}
				suites = append(suites, s)
				byName[file.PackageName()+"."+s.name] = s
			}
		}
	}

	for _, file := range pkg.TestFiles() {
		alias := f.goFile.ImportName(file.AST, suiteImportPath)
		if alias == "" {
			continue
		}

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || fn.Body == nil || !isTestName(fn.Name.Name, "Test") {
				continue
			}

			for _, name := range suiteRunTargets(fn.Body, alias) {
				if s, ok := byName[file.PackageName()+"."+name]; ok && s.runner == "" {
					s.runner = fn.Name.Name
				}
			}
		}
	}

	return suites
}

// InstrumentTestClass starts the test in SetupSuite and ends it in
// TearDownSuite, generating either method when missing.
func (f *Testify) InstrumentTestClass(ci adapter.CodeInstrumentor, test m.Test) error {
	if err := f.checkHook(test); err != nil {
		return err
	}

	pkg := test.Package

	setupFile, setup := findMethod(pkg, test.File, test.Suite, "SetupSuite")
	if setup != nil && setup.Body != nil {
		if !ci.Calls(setup.Body, m.CallTestStart) {
			if err := ci.InsertCall(pkg, setupFile, setup.Body, 0, startCall(test)); err != nil {
				return err
			}

			if err := ci.EnsureImport(pkg, setupFile); err != nil {
				return err
			}
		}
	} else if err := f.addMethod(ci, test, "SetupSuite", startCall(test)); err != nil {
		return err
	}

	end := m.Call{Func: m.CallTestEnd, Args: []string{test.Name}}

	teardownFile, teardown := findMethod(pkg, test.File, test.Suite, "TearDownSuite")
	if teardown != nil && teardown.Body != nil {
		if ci.Calls(teardown.Body, m.CallTestEnd) {
			return nil
		}

		end.Defer = true
		if err := ci.InsertCall(pkg, teardownFile, teardown.Body, 0, end); err != nil {
			return err
		}

		return ci.EnsureImport(pkg, teardownFile)
	}

	return f.addMethod(ci, test, "TearDownSuite", end)
}

// InstrumentTestMethod starts the test at the top of the method and ends it
// in the suite's TearDownTest, which ends whichever test started last.
func (f *Testify) InstrumentTestMethod(ci adapter.CodeInstrumentor, test m.Test) error {
	if err := f.checkHook(test); err != nil {
		return err
	}

	pkg := test.Package

	methodFile, method := findMethod(pkg, test.File, test.Suite, test.Func)
	if method == nil || method.Body == nil {
		return fmt.Errorf("suite method %s not found", test.Name)
	}

	if !ci.Calls(method.Body, m.CallTestStart) {
		if err := ci.InsertCall(pkg, methodFile, method.Body, 0, startCall(test)); err != nil {
			return err
		}

		if err := ci.EnsureImport(pkg, methodFile); err != nil {
			return err
		}
	}

	end := m.Call{Func: m.CallTestEnd, Args: []string{""}}

	teardownFile, teardown := findMethod(pkg, test.File, test.Suite, "TearDownTest")
	if teardown != nil && teardown.Body != nil {
		if ci.Calls(teardown.Body, m.CallTestEnd) {
			return nil
		}

		end.Defer = true
		if err := ci.InsertCall(pkg, teardownFile, teardown.Body, 0, end); err != nil {
			return err
		}

		return ci.EnsureImport(pkg, teardownFile)
	}

	return f.addMethod(ci, test, "TearDownTest", end)
}

// RunFlags implements Framework. Method tests also filter suite methods with
// the -testify.m flag.
func (f *Testify) RunFlags(tests []m.Test) []string {
	if len(tests) == 0 {
		return nil
	}

	runners := make([]string, 0, len(tests))
	methods := make([]string, 0, len(tests))
	class := false

	for _, test := range tests {
		runners = append(runners, test.Runner)

		if test.Granularity == m.GranularityClass {
			class = true
		} else {
			methods = append(methods, test.Func)
		}
	}

	flags := []string{"-run", anchoredAlternation(runners)}
	if !class && len(methods) > 0 {
		flags = append(flags, "-testify.m", anchoredAlternation(methods))
	}

	return flags
}

// addMethod appends a generated method to the file declaring the suite.
func (f *Testify) addMethod(ci adapter.CodeInstrumentor, test m.Test, name string, call m.Call) error {
	suiteFile := test.File

	for _, file := range test.Package.TestFiles() {
		if file.PackageName() != test.File.PackageName() {
			continue
		}

		if declaresType(file, test.Suite) {
			suiteFile = file
			break
		}
	}

	if err := ci.AddMethod(test.Package, suiteFile, test.Suite, true, name, call); err != nil {
		return err
	}

	return ci.EnsureImport(test.Package, suiteFile)
}

func (f *Testify) checkHook(test m.Test) error {
	for _, file := range test.Package.TestFiles() {
		if f.goFile.ImportName(file.AST, suiteImportPath) != "" {
			return nil
		}
	}

	return fmt.Errorf("%w: package %s does not import %s", ErrMissingRuntimeHook, test.Package.ImportPath, suiteImportPath)
}

func declaresType(file *m.SourceFile, name string) bool {
	for _, decl := range file.AST.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}

		for _, spec := range gen.Specs {
			if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == name {
				return true
			}
		}
	}

	return false
}

// embedsSuite matches struct types with an embedded suite.Suite or *suite.Suite.
func embedsSuite(ts *ast.TypeSpec, alias string) bool {
	st, ok := ts.Type.(*ast.StructType)
	if !ok || st.Fields == nil {
		return false
	}

	for _, field := range st.Fields.List {
		if len(field.Names) != 0 {
			continue
		}

		expr := field.Type
		if star, ok := expr.(*ast.StarExpr); ok {
			expr = star.X
		}

		sel, ok := expr.(*ast.SelectorExpr)
		if !ok {
			continue
		}

		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == alias && sel.Sel.Name == "Suite" {
			return true
		}
	}

	return false
}

// suiteRunTargets returns the suite types passed to alias.Run in body as
// new(S), &S{...} or S{...}.
func suiteRunTargets(body *ast.BlockStmt, alias string) []string {
	var names []string

	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 2 {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Run" {
			return true
		}

		if ident, ok := sel.X.(*ast.Ident); !ok || ident.Name != alias {
			return true
		}

		if name := suiteTypeName(call.Args[1]); name != "" {
			names = append(names, name)
		}

		return true
	})

	return names
}

func suiteTypeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.CallExpr:
		if ident, ok := e.Fun.(*ast.Ident); ok && ident.Name == "new" && len(e.Args) == 1 {
			if typ, ok := e.Args[0].(*ast.Ident); ok {
				return typ.Name
			}
		}
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return suiteTypeName(e.X)
		}
	case *ast.CompositeLit:
		if typ, ok := e.Type.(*ast.Ident); ok {
			return typ.Name
		}
	}

	return ""
}
