package domain

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/crc32"
	"golang.org/x/sync/errgroup"

	"gorts.dev/pkg/gorts/internal/adapter"
	m "gorts.dev/pkg/gorts/internal/model"
)

// flushThreshold is the buffer size after which tokens are folded into the
// running checksum.
const flushThreshold = 100

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrUnsupportedNode is returned for syntax the fingerprinter cannot encode,
// e.g. nodes produced from source with syntax errors.
var ErrUnsupportedNode = errors.New("unsupported syntax node")

// Fingerprinter computes structural fingerprints of units.
type Fingerprinter interface {
	// Fingerprint returns the checksum of the unit's serialized structure.
	Fingerprint(unit m.Unit, mode m.ChecksumMode) (m.Fingerprint, error)

	// Serialize returns the full token stream the fingerprint is computed from.
	Serialize(unit m.Unit, mode m.ChecksumMode) (string, error)

	// FingerprintAll fingerprints units in parallel. Units that fail are
	// logged and left out.
	FingerprintAll(ctx context.Context, units []m.Unit, mode m.ChecksumMode, threads int) (m.Fingerprints, error)
}

type fingerprinter struct{}

// NewFingerprinter constructs a Fingerprinter.
func NewFingerprinter() Fingerprinter {
	return &fingerprinter{}
}

func (f *fingerprinter) Fingerprint(unit m.Unit, mode m.ChecksumMode) (m.Fingerprint, error) {
	s := newSerializer(unit, mode, false)
	if err := s.unit(); err != nil {
		return 0, err
	}

	return s.sum(), nil
}

func (f *fingerprinter) Serialize(unit m.Unit, mode m.ChecksumMode) (string, error) {
	s := newSerializer(unit, mode, true)
	if err := s.unit(); err != nil {
		return "", err
	}

	s.flush()

	return s.text.String(), nil
}

func (f *fingerprinter) FingerprintAll(ctx context.Context, units []m.Unit, mode m.ChecksumMode, threads int) (m.Fingerprints, error) {
	var mu sync.Mutex

	fingerprints := make(m.Fingerprints, len(units))

	group, groupCtx := errgroup.WithContext(ctx)
	if threads > 0 {
		group.SetLimit(threads)
	}

	for _, unit := range units {
		currentUnit := unit

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			fp, err := f.Fingerprint(currentUnit, mode)
			if err != nil {
				slog.Error("Failed to fingerprint unit, skipping it", "unit", currentUnit.ID, "error", err)
				return nil
			}

			mu.Lock()
			fingerprints[currentUnit.ID] = fp.String()
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return fingerprints, nil
}

// serializer streams the structure of one unit into a CRC-32C. Tokens go
// into a small buffer that is folded into the checksum once it grows past
// flushThreshold.
type serializer struct {
	unitData m.Unit
	fset     *token.FileSet
	exact    bool

	buf  []byte
	crc  uint32
	keep bool
	text strings.Builder
	err  error
}

func newSerializer(unit m.Unit, mode m.ChecksumMode, keep bool) *serializer {
	var fset *token.FileSet
	if unit.Package != nil {
		fset = unit.Package.Fset
	}

	return &serializer{
		unitData: unit,
		fset:     fset,
		exact:    mode == m.ModeExact,
		keep:     keep,
	}
}

func (s *serializer) emit(tokens ...string) {
	for _, tok := range tokens {
		s.buf = append(s.buf, tok...)
		s.buf = append(s.buf, ' ')
	}

	if len(s.buf) > flushThreshold {
		s.flush()
	}
}

func (s *serializer) flush() {
	if len(s.buf) == 0 {
		return
	}

	s.crc = crc32.Update(s.crc, castagnoli, s.buf)

	if s.keep {
		s.text.Write(s.buf)
	}

	s.buf = s.buf[:0]
}

func (s *serializer) sum() m.Fingerprint {
	s.flush()
	return m.Fingerprint(s.crc)
}

func (s *serializer) section(name string) {
	s.emit("\n#" + name)
}

func (s *serializer) pos(p token.Pos) {
	if !s.exact || s.fset == nil || !p.IsValid() {
		return
	}

	position := s.fset.Position(p)
	s.emit("@" + strconv.Itoa(position.Line) + ":" + strconv.Itoa(position.Column))
}

func (s *serializer) unit() error {
	switch s.unitData.Kind {
	case m.UnitType:
		if s.unitData.Spec == nil {
			return fmt.Errorf("unit %s: no type declaration", s.unitData.ID)
		}

		s.typeUnit()
	case m.UnitFile:
		if s.unitData.File == nil || s.unitData.File.AST == nil {
			return fmt.Errorf("unit %s: no file", s.unitData.ID)
		}

		s.fileUnit()
	default:
		return fmt.Errorf("unit %s: unknown kind %d", s.unitData.ID, s.unitData.Kind)
	}

	if s.err != nil {
		return fmt.Errorf("unit %s: %w", s.unitData.ID, s.err)
	}

	return nil
}

func (s *serializer) typeUnit() {
	spec := s.unitData.Spec

	s.section("attributes")
	s.emit("type", spec.Name.Name, underlyingKind(spec.Type))
	s.emit("alias=" + strconv.FormatBool(spec.Assign.IsValid()))
	s.emit("exported=" + strconv.FormatBool(spec.Name.IsExported()))
	s.pos(spec.Pos())

	s.section("generics")
	s.node(spec.TypeParams)

	embedded, named := splitMembers(spec.Type)

	s.section("embedded")

	for _, field := range embedded {
		s.node(field.Type)
		s.tag(field)
	}

	s.section("layout")
	s.emit(underlyingKind(spec.Type), strconv.Itoa(len(embedded)+len(named)))

	s.section("fields")

	if embedded == nil && named == nil {
		s.node(spec.Type)
	}

	for _, field := range named {
		for _, name := range field.Names {
			s.emit(name.Name)
			s.pos(name.Pos())
		}

		s.node(field.Type)
		s.tag(field)
	}

	s.section("methods")

	for _, method := range s.unitData.Methods {
		s.emit("func", method.Name.Name)
		s.emit("ptr=" + strconv.FormatBool(adapter.ReceiverIsPointer(method)))
		s.pos(method.Pos())

		if method.Recv != nil && len(method.Recv.List) > 0 {
			s.node(method.Recv.List[0].Type)
		}

		s.node(method.Type)
		s.node(method.Body)
	}

	s.section("directives")

	if s.unitData.Decl != nil && len(s.unitData.Decl.Specs) == 1 {
		s.directives(s.unitData.Decl.Doc)
	}

	s.directives(spec.Doc)

	for _, method := range s.unitData.Methods {
		s.directives(method.Doc)
	}
}

func (s *serializer) fileUnit() {
	file := s.unitData.File

	s.section("attributes")
	s.emit("package", file.PackageName(), "file", file.Name)

	s.section("constraints")

	for _, group := range file.AST.Comments {
		if group.Pos() >= file.AST.Package {
			break
		}

		for _, c := range group.List {
			if strings.HasPrefix(c.Text, "//go:build") || strings.HasPrefix(c.Text, "// +build") {
				s.emit(c.Text)
			}
		}
	}

	s.section("imports")

	for _, spec := range file.AST.Imports {
		if spec.Name != nil {
			s.emit(spec.Name.Name)
		}

		s.emit(spec.Path.Value)
		s.pos(spec.Pos())
	}

	s.section("declarations")

	var docs []*ast.CommentGroup

	for _, decl := range file.AST.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.CONST && d.Tok != token.VAR {
				continue
			}

			s.emit(d.Tok.String())
			s.pos(d.Pos())

			for _, spec := range d.Specs {
				s.node(spec)
			}

			docs = append(docs, d.Doc)

		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}

			s.emit("func", d.Name.Name)
			s.pos(d.Pos())
			s.node(d.Type)
			s.node(d.Body)

			docs = append(docs, d.Doc)

		case *ast.BadDecl:
			s.fail(d)
		}
	}

	s.section("directives")

	for _, doc := range docs {
		s.directives(doc)
	}
}

func (s *serializer) fail(n ast.Node) {
	if s.err == nil {
		s.err = fmt.Errorf("%w %T", ErrUnsupportedNode, n)
	}
}

func (s *serializer) tag(field *ast.Field) {
	if field.Tag != nil {
		s.emit("tag", field.Tag.Value)
	}
}

func (s *serializer) directives(doc *ast.CommentGroup) {
	if doc == nil {
		return
	}

	for _, c := range doc.List {
		if isDirective(c.Text) {
			s.emit(c.Text)
		}
	}
}

// node walks n depth first. Comments never reach the stream.
func (s *serializer) node(n ast.Node) {
	if n == nil || isNilNode(n) {
		return
	}

	ast.Inspect(n, func(node ast.Node) bool {
		if node == nil {
			s.emit(")")
			return true
		}

		switch x := node.(type) {
		case *ast.CommentGroup, *ast.Comment:
			return false
		case *ast.BadExpr, *ast.BadStmt, *ast.BadDecl:
			s.fail(x)
			return false
		}

		s.emit("(" + nodeKind(node))
		s.details(node)
		s.pos(node.Pos())

		return true
	})
}

//nolint:cyclop // one case per node carrying data beyond its children
func (s *serializer) details(node ast.Node) {
	switch x := node.(type) {
	case *ast.Ident:
		s.emit(x.Name)
	case *ast.BasicLit:
		s.emit(x.Kind.String(), x.Value)
	case *ast.BinaryExpr:
		s.emit(x.Op.String())
	case *ast.UnaryExpr:
		s.emit(x.Op.String())
	case *ast.AssignStmt:
		s.emit(x.Tok.String())
	case *ast.IncDecStmt:
		s.emit(x.Tok.String())
	case *ast.BranchStmt:
		s.emit(x.Tok.String())
	case *ast.RangeStmt:
		s.emit(x.Tok.String())
	case *ast.GenDecl:
		s.emit(x.Tok.String())
	case *ast.ChanType:
		s.emit(strconv.Itoa(int(x.Dir)))
	case *ast.Ellipsis:
		s.emit("...")
	case *ast.SliceExpr:
		s.emit("slice3=" + strconv.FormatBool(x.Slice3))
	case *ast.CompositeLit:
		s.emit("n=" + strconv.Itoa(len(x.Elts)))
	case *ast.CaseClause:
		s.emit("default=" + strconv.FormatBool(x.List == nil))
	case *ast.CommClause:
		s.emit("default=" + strconv.FormatBool(x.Comm == nil))
	case *ast.FieldList:
		s.emit("n=" + strconv.Itoa(x.NumFields()))
	case *ast.Field:
		s.emit("names=" + strconv.Itoa(len(x.Names)))
	case *ast.ValueSpec:
		s.emit("names=" + strconv.Itoa(len(x.Names)), "values="+strconv.Itoa(len(x.Values)))
	case *ast.TypeSpec:
		s.emit("alias=" + strconv.FormatBool(x.Assign.IsValid()))
	case *ast.CallExpr:
		s.emit("variadic=" + strconv.FormatBool(x.Ellipsis.IsValid()))
	case *ast.BlockStmt:
		s.emit("n=" + strconv.Itoa(len(x.List)))
	}
}

func nodeKind(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}

// isNilNode catches typed nil pointers stored in ast.Node interfaces.
func isNilNode(n ast.Node) bool {
	switch x := n.(type) {
	case *ast.FieldList:
		return x == nil
	case *ast.BlockStmt:
		return x == nil
	case *ast.FuncType:
		return x == nil
	}

	return false
}

func isDirective(text string) bool {
	if !strings.HasPrefix(text, "//") || len(text) < 3 {
		return false
	}

	rest := text[2:]
	if rest[0] == ' ' || rest[0] == '\t' {
		return false
	}

	if strings.HasPrefix(rest, "export ") || strings.HasPrefix(rest, "line ") {
		return true
	}

	fields := strings.Fields(rest)

	return len(fields) > 0 && strings.Contains(fields[0], ":")
}

func underlyingKind(expr ast.Expr) string {
	switch expr.(type) {
	case *ast.StructType:
		return "struct"
	case *ast.InterfaceType:
		return "interface"
	case *ast.FuncType:
		return "func"
	case *ast.MapType:
		return "map"
	case *ast.ArrayType:
		return "array"
	case *ast.ChanType:
		return "chan"
	case *ast.StarExpr:
		return "pointer"
	default:
		return "named"
	}
}

// splitMembers separates embedded from named members of a struct or
// interface. Both are nil for other kinds.
func splitMembers(expr ast.Expr) ([]*ast.Field, []*ast.Field) {
	var list *ast.FieldList

	switch t := expr.(type) {
	case *ast.StructType:
		list = t.Fields
	case *ast.InterfaceType:
		list = t.Methods
	default:
		return nil, nil
	}

	embedded := []*ast.Field{}
	named := []*ast.Field{}

	if list == nil {
		return embedded, named
	}

	for _, field := range list.List {
		if len(field.Names) == 0 {
			embedded = append(embedded, field)
		} else {
			named = append(named, field)
		}
	}

	return embedded, named
}
