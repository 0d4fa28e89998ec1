package domain

import (
	"go/ast"
	"go/token"
	"sort"

	"gorts.dev/pkg/gorts/internal/adapter"
	m "gorts.dev/pkg/gorts/internal/model"
)

// unitScope maps the top-level names of one package clause to unit ids.
type unitScope map[string]string

// references resolves identifiers to the units of the package declaring them.
// Code that only builds a literal of a type or reads a constant never runs
// any function of that unit, so the entry hooks record those units by name.
//
// Resolution is by name only: a local that shadows a top-level name still
// counts, which over-selects but never misses a dependency.
type references struct {
	pkg    *m.Package
	goFile adapter.GoFileAdapter
	scopes map[string]unitScope

	// static holds the units named by type specs and by package-level
	// const and var specs, keyed by the declaring unit.
	static map[string]map[string]struct{}
}

func newReferences(pkg *m.Package, units map[string]m.Unit, goFile adapter.GoFileAdapter) *references {
	r := &references{
		pkg:    pkg,
		goFile: goFile,
		scopes: make(map[string]unitScope),
		static: make(map[string]map[string]struct{}),
	}

	known := func(id string) bool {
		_, ok := units[id]
		return ok
	}

	for _, file := range pkg.UserFiles() {
		scope, ok := r.scopes[file.PackageName()]
		if !ok {
			scope = make(unitScope)
			r.scopes[file.PackageName()] = scope
		}

		prefix := pkg.UnitPrefix(file)
		fileUnit := m.FileUnitID(prefix, file.Name)

		for _, decl := range file.AST.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch s := spec.(type) {
					case *ast.TypeSpec:
						if id := m.TypeUnitID(prefix, s.Name.Name); known(id) {
							scope[s.Name.Name] = id
						}
					case *ast.ValueSpec:
						if !known(fileUnit) {
							continue
						}

						for _, name := range s.Names {
							if name.Name != "_" {
								scope[name.Name] = fileUnit
							}
						}
					}
				}
			case *ast.FuncDecl:
				if d.Recv == nil && d.Name.Name != "init" && d.Name.Name != "_" && known(fileUnit) {
					scope[d.Name.Name] = fileUnit
				}
			}
		}
	}

	for _, file := range pkg.UserFiles() {
		prefix := pkg.UnitPrefix(file)

		for _, decl := range file.AST.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok == token.IMPORT {
				continue
			}

			for _, spec := range gen.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					r.addStatic(m.TypeUnitID(prefix, s.Name.Name), r.collect(file, s.Type))
				case *ast.ValueSpec:
					nodes := []ast.Node{}
					if s.Type != nil {
						nodes = append(nodes, s.Type)
					}

					for _, value := range s.Values {
						nodes = append(nodes, value)
					}

					r.addStatic(m.FileUnitID(prefix, file.Name), r.collect(file, nodes...))
				}
			}
		}
	}

	return r
}

func (r *references) addStatic(unit string, refs map[string]struct{}) {
	if len(refs) == 0 {
		return
	}

	set, ok := r.static[unit]
	if !ok {
		set = make(map[string]struct{}, len(refs))
		r.static[unit] = set
	}

	for ref := range refs {
		set[ref] = struct{}{}
	}
}

// collect returns the units named inside nodes of file. An external test
// package reaches the package under test through its import name.
func (r *references) collect(file *m.SourceFile, nodes ...ast.Node) map[string]struct{} {
	local := r.scopes[file.PackageName()]

	var (
		program  unitScope
		selfName string
	)

	if file.PackageName() != r.pkg.Name {
		program = r.scopes[r.pkg.Name]
		selfName = r.goFile.ImportName(file.AST, r.pkg.ImportPath)
	}

	found := make(map[string]struct{})

	var visit func(n ast.Node) bool

	visit = func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			if ident, ok := x.X.(*ast.Ident); ok && selfName != "" && ident.Name == selfName {
				if unit, ok := program[x.Sel.Name]; ok {
					found[unit] = struct{}{}
				}

				return false
			}

			// the selected name is a field or method, never a top-level name
			ast.Inspect(x.X, visit)

			return false
		case *ast.Ident:
			if unit, ok := local[x.Name]; ok {
				found[unit] = struct{}{}
			}
		}

		return true
	}

	for _, node := range nodes {
		ast.Inspect(node, visit)
	}

	return found
}

// touches returns the units to record when fn starts: self first, then the
// units fn names, closed over the static references of their declarations.
func (r *references) touches(file *m.SourceFile, fn *ast.FuncDecl, self string) []string {
	refs := r.collect(file, fn.Type, fn.Body)

	for ref := range r.static[self] {
		refs[ref] = struct{}{}
	}

	r.close(refs)
	delete(refs, self)

	return append([]string{self}, sortedSet(refs)...)
}

// closure returns unit with the static references reachable from it.
func (r *references) closure(unit string) []string {
	refs := map[string]struct{}{}
	for ref := range r.static[unit] {
		refs[ref] = struct{}{}
	}

	r.close(refs)
	delete(refs, unit)

	return append([]string{unit}, sortedSet(refs)...)
}

func (r *references) close(refs map[string]struct{}) {
	queue := sortedSet(refs)

	for len(queue) > 0 {
		unit := queue[0]
		queue = queue[1:]

		for ref := range r.static[unit] {
			if _, ok := refs[ref]; ok {
				continue
			}

			refs[ref] = struct{}{}
			queue = append(queue, ref)
		}
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}

	sort.Strings(out)

	return out
}
