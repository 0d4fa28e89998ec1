package model

import (
	"go/ast"
	"strconv"
	"strings"
	"unicode"
)

// UnitKind tells which part of a package a Unit covers.
type UnitKind int

const (
	// UnitType is a named top-level type together with all of its methods.
	UnitType UnitKind = iota
	// UnitFile holds the package-level funcs, vars and consts of one file.
	UnitFile
)

func (k UnitKind) String() string {
	switch k {
	case UnitType:
		return "type"
	case UnitFile:
		return "file"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in json and yaml output.
func (k UnitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Unit is the granule whose fingerprint decides whether dependent tests rerun.
type Unit struct {
	ID      string
	Kind    UnitKind
	Name    string // type name, or file base name for UnitFile
	Package *Package
	File    *SourceFile // declaring file; for UnitType the file holding the type spec

	// UnitType
	Decl    *ast.GenDecl
	Spec    *ast.TypeSpec
	Methods []*ast.FuncDecl // sorted by name
}

// Test reports whether the unit is declared in a test file.
func (u Unit) Test() bool {
	return u.File != nil && u.File.Test
}

// UnitIDPrefix turns an import path into the lowercase, file-name-safe prefix
// of unit ids.
func UnitIDPrefix(importPath string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(importPath) {
		if strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r) {
			b.WriteByte('_')
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// TypeUnitID returns the id of the named type declared under prefix.
func TypeUnitID(prefix, typeName string) string {
	return prefix + "." + typeName
}

// FileUnitID returns the id of the file unit of fileName under prefix.
func FileUnitID(prefix, fileName string) string {
	return prefix + ".<" + fileName + ">"
}

// ChecksumMode selects whether source positions take part in fingerprints.
type ChecksumMode string

const (
	// ModeSmart ignores positions, so moving code around does not select tests.
	ModeSmart ChecksumMode = "smart"
	// ModeExact includes positions of every node.
	ModeExact ChecksumMode = "exact"
)

// Fingerprint is the CRC-32C checksum of a unit's serialized structure.
type Fingerprint uint32

func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// Fingerprints maps unit ids to decimal fingerprint strings.
type Fingerprints map[string]string
