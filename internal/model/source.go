// Package model defines the data structures shared by the gorts layers.
package model

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"
)

// Path represents a file system path.
type Path string

// GeneratedFilePrefix marks files written by the instrumentor.
const GeneratedFilePrefix = "zz_gorts_"

// SourceFile is one parsed Go file of a package.
type SourceFile struct {
	Path Path
	Name string // base name, e.g. "calc.go"
	Test bool   // _test.go file
	AST  *ast.File
	Src  []byte
}

// PackageName returns the package clause of the file.
func (f *SourceFile) PackageName() string {
	if f.AST == nil || f.AST.Name == nil {
		return ""
	}

	return f.AST.Name.Name
}

// Generated reports whether the file was written by the instrumentor.
func (f *SourceFile) Generated() bool {
	return strings.HasPrefix(f.Name, GeneratedFilePrefix)
}

// Package is a Go package directory of the module under test. It plays the
// role of a compiled artifact: program code, test code, or both.
type Package struct {
	Dir        Path
	ImportPath string
	Name       string
	ModuleRoot Path
	ModulePath string
	Fset       *token.FileSet
	Files      []*SourceFile
}

// ArtifactID identifies the package across runs.
func (p *Package) ArtifactID() string {
	return p.ImportPath
}

// IsProgram reports whether the package has non-test files.
func (p *Package) IsProgram() bool {
	for _, f := range p.Files {
		if !f.Test && !f.Generated() {
			return true
		}
	}

	return false
}

// IsTest reports whether the package has test files.
func (p *Package) IsTest() bool {
	for _, f := range p.Files {
		if f.Test && !f.Generated() {
			return true
		}
	}

	return false
}

// TestFiles returns the user-written test files.
func (p *Package) TestFiles() []*SourceFile {
	var files []*SourceFile

	for _, f := range p.Files {
		if f.Test && !f.Generated() {
			files = append(files, f)
		}
	}

	return files
}

// UserFiles returns all files that were not generated by gorts.
func (p *Package) UserFiles() []*SourceFile {
	files := make([]*SourceFile, 0, len(p.Files))

	for _, f := range p.Files {
		if !f.Generated() {
			files = append(files, f)
		}
	}

	return files
}

// File looks up a file by base name.
func (p *Package) File(name string) *SourceFile {
	for _, f := range p.Files {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// UnitPrefix returns the prefix of unit ids declared in file. External test
// packages (package foo_test) get their own prefix.
func (p *Package) UnitPrefix(file *SourceFile) string {
	prefix := UnitIDPrefix(p.ImportPath)
	if file != nil && file.PackageName() != "" && file.PackageName() != p.Name {
		prefix += "_test"
	}

	return prefix
}

// RelDir returns the package directory relative to the module root.
func (p *Package) RelDir() string {
	rel, err := filepath.Rel(string(p.ModuleRoot), string(p.Dir))
	if err != nil {
		return string(p.Dir)
	}

	return rel
}
