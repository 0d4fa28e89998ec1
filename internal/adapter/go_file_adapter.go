package adapter

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	m "gorts.dev/pkg/gorts/internal/model"
)

const packageCacheSize = 512

// GoFileAdapter encapsulates Go-specific parsing and unit extraction so the
// domain layer can focus on selection rules while delegating compilation
// details to an infrastructure component.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and optional source bytes.
	Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// LoadPackages parses the package directories of the module rooted at
	// moduleRoot, using up to threads workers.
	LoadPackages(ctx context.Context, moduleRoot m.Path, modulePath string, dirs []m.Path, threads int) ([]*m.Package, error)

	// ExtractUnits returns the units of a package sorted by id.
	ExtractUnits(pkg *m.Package) []m.Unit

	// ImportName returns the local name under which file imports importPath,
	// or "" when it does not.
	ImportName(file *ast.File, importPath string) string
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
// Parsed packages are cached by directory and reused while their files are
// unchanged on disk.
type LocalGoFileAdapter struct {
	cache *lru.Cache[string, cachedPackage]
}

type cachedPackage struct {
	signature string
	pkg       *m.Package
}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	cache, err := lru.New[string, cachedPackage](packageCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}

	return &LocalGoFileAdapter{cache: cache}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parser.ParseFile(fileSet, filename, src, parser.ParseComments)
}

// LoadPackages parses every directory in dirs in parallel.
func (a *LocalGoFileAdapter) LoadPackages(ctx context.Context, moduleRoot m.Path, modulePath string, dirs []m.Path, threads int) ([]*m.Package, error) {
	var (
		mu   sync.Mutex
		pkgs []*m.Package
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if threads > 0 {
		group.SetLimit(threads)
	}

	for _, dir := range dirs {
		currentDir := dir

		group.Go(func() error {
			pkg, err := a.loadPackage(groupCtx, moduleRoot, modulePath, currentDir)
			if err != nil {
				return err
			}

			if pkg == nil {
				return nil
			}

			mu.Lock()
			pkgs = append(pkgs, pkg)
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ImportPath < pkgs[j].ImportPath })

	return pkgs, nil
}

func (a *LocalGoFileAdapter) loadPackage(ctx context.Context, moduleRoot m.Path, modulePath string, dir m.Path) (*m.Package, error) {
	importPath, err := importPathOf(moduleRoot, modulePath, dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(string(dir))
	if err != nil {
		return nil, fmt.Errorf("read package dir %s: %w", dir, err)
	}

	var (
		names     []string
		signature strings.Builder
	)

	for _, entry := range entries {
		if entry.IsDir() || !isGoFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}

		names = append(names, entry.Name())
		fmt.Fprintf(&signature, "%s:%d:%d;", entry.Name(), info.Size(), info.ModTime().UnixNano())
	}

	if len(names) == 0 {
		return nil, nil
	}

	key := string(dir)
	if cached, ok := a.cache.Get(key); ok && cached.signature == signature.String() {
		return cached.pkg, nil
	}

	pkg := &m.Package{
		Dir:        dir,
		ImportPath: importPath,
		ModuleRoot: moduleRoot,
		ModulePath: modulePath,
		Fset:       token.NewFileSet(),
	}

	for _, name := range names {
		filePath := filepath.Join(string(dir), name)

		src, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filePath, err)
		}

		file, err := a.Parse(ctx, pkg.Fset, filePath, src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}

		pkg.Files = append(pkg.Files, &m.SourceFile{
			Path: m.Path(filePath),
			Name: name,
			Test: strings.HasSuffix(name, "_test.go"),
			AST:  file,
			Src:  src,
		})
	}

	pkg.Name = packageName(pkg.Files)

	a.cache.Add(key, cachedPackage{signature: signature.String(), pkg: pkg})

	return pkg, nil
}

func importPathOf(moduleRoot m.Path, modulePath string, dir m.Path) (string, error) {
	rel, err := filepath.Rel(string(moduleRoot), string(dir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("package %s is outside module %s", dir, moduleRoot)
	}

	if rel == "." {
		return modulePath, nil
	}

	return path.Join(modulePath, filepath.ToSlash(rel)), nil
}

// packageName picks the name of the package under test: the non-test package
// if present, otherwise the internal test package.
func packageName(files []*m.SourceFile) string {
	for _, f := range files {
		if !f.Test {
			return f.PackageName()
		}
	}

	for _, f := range files {
		if !strings.HasSuffix(f.PackageName(), "_test") {
			return f.PackageName()
		}
	}

	if len(files) == 0 {
		return ""
	}

	return strings.TrimSuffix(files[0].PackageName(), "_test")
}

// ExtractUnits collects one unit per named top-level type (with its methods)
// and one file unit per file declaring package-level funcs, vars or consts.
func (a *LocalGoFileAdapter) ExtractUnits(pkg *m.Package) []m.Unit {
	types := make(map[string]*m.Unit)

	var units []m.Unit

	for _, file := range pkg.UserFiles() {
		prefix := pkg.UnitPrefix(file)
		hasFileDecls := false

		for _, decl := range file.AST.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					if d.Tok == token.CONST || d.Tok == token.VAR {
						hasFileDecls = true
					}

					continue
				}

				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}

					id := m.TypeUnitID(prefix, ts.Name.Name)
					types[id] = &m.Unit{
						ID:      id,
						Kind:    m.UnitType,
						Name:    ts.Name.Name,
						Package: pkg,
						File:    file,
						Decl:    d,
						Spec:    ts,
					}
				}

			case *ast.FuncDecl:
				if d.Recv == nil {
					hasFileDecls = true
				}
			}
		}

		if hasFileDecls {
			units = append(units, m.Unit{
				ID:      m.FileUnitID(prefix, file.Name),
				Kind:    m.UnitFile,
				Name:    file.Name,
				Package: pkg,
				File:    file,
			})
		}
	}

	for _, file := range pkg.UserFiles() {
		prefix := pkg.UnitPrefix(file)

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil {
				continue
			}

			recv := ReceiverTypeName(fn)
			if unit, ok := types[m.TypeUnitID(prefix, recv)]; ok {
				unit.Methods = append(unit.Methods, fn)
			}
		}
	}

	for _, unit := range types {
		sort.SliceStable(unit.Methods, func(i, j int) bool {
			return unit.Methods[i].Name.Name < unit.Methods[j].Name.Name
		})

		units = append(units, *unit)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	return units
}

// ReceiverTypeName returns the base type name of a method receiver.
func ReceiverTypeName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}

	expr := fn.Recv.List[0].Type

	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

// ReceiverIsPointer reports whether a method has a pointer receiver.
func ReceiverIsPointer(fn *ast.FuncDecl) bool {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return false
	}

	_, ok := fn.Recv.List[0].Type.(*ast.StarExpr)

	return ok
}

// EntryIndex returns where entry hooks go in body: after a leading
// x.Parallel() call, so they run once a parallel test is resumed.
func EntryIndex(body *ast.BlockStmt) int {
	if body == nil || len(body.List) == 0 {
		return 0
	}

	stmt, ok := body.List[0].(*ast.ExprStmt)
	if !ok {
		return 0
	}

	call, ok := stmt.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 0 {
		return 0
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Parallel" {
		return 0
	}

	if _, ok := sel.X.(*ast.Ident); !ok {
		return 0
	}

	return 1
}

// ImportName returns the local name of importPath in file.
func (a *LocalGoFileAdapter) ImportName(file *ast.File, importPath string) string {
	for _, spec := range file.Imports {
		if strings.Trim(spec.Path.Value, "`\"") != importPath {
			continue
		}

		if spec.Name != nil {
			return spec.Name.Name
		}

		return path.Base(importPath)
	}

	return ""
}
