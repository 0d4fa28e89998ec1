package adapter

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	m "gorts.dev/pkg/gorts/internal/model"
)

const manifestName = "manifest.yaml"

// ErrNothingToRestore is returned by Restore when no backup exists.
var ErrNothingToRestore = errors.New("no instrumentation backup found")

// CodeInstrumentor edits Go sources in place. Edits are text insertions at
// byte offsets of the parsed source; they never add a line break, so
// positions reported for user code stay valid.
//
//nolint:interfacebloat // mirrors the operations the instrumentation needs
type CodeInstrumentor interface {
	// InsertCall inserts call before statement index of body. index ==
	// len(body.List) appends the call; only use it in functions without results.
	InsertCall(pkg *m.Package, file *m.SourceFile, body *ast.BlockStmt, index int, call m.Call) error

	// ReplaceNode replaces the source text of node.
	ReplaceNode(pkg *m.Package, file *m.SourceFile, node ast.Node, text string) error

	// AddMethod appends a method with an empty signature to file. It is marked
	// with the generated directive and performs calls in order.
	AddMethod(pkg *m.Package, file *m.SourceFile, recv string, ptr bool, name string, calls ...m.Call) error

	// AddFile schedules a generated file in the package directory.
	AddFile(pkg *m.Package, name string, content []byte) error

	// Rewrite replaces a whole file, e.g. go.mod.
	Rewrite(path m.Path, content []byte) error

	// Calls reports whether body calls the tracker function fn, either in the
	// parsed source or through a pending edit.
	Calls(body *ast.BlockStmt, fn m.TrackerCall) bool

	// EnsureImport makes file import the monitor package.
	EnsureImport(pkg *m.Package, file *m.SourceFile) error

	// Pending returns the number of files with scheduled changes.
	Pending() int

	// Flush backs every touched file up into backupDir and writes the edits.
	Flush(ctx context.Context, moduleRoot, backupDir m.Path) ([]m.Path, error)

	// Discard drops all scheduled edits.
	Discard()

	// Restore copies the backups in backupDir back and removes generated files.
	Restore(ctx context.Context, backupDir m.Path) ([]m.Path, error)
}

type textEdit struct {
	start int
	end   int
	text  string
	seq   int
}

type pendingFile struct {
	path     m.Path
	src      []byte
	edits    []textEdit
	imported bool
	appended []string
}

// Manifest lists what an instrumentation run changed.
type Manifest struct {
	ModuleRoot string   `yaml:"module_root"`
	Files      []string `yaml:"files"`
	Generated  []string `yaml:"generated"`
}

// LocalCodeInstrumentor is the filesystem backed CodeInstrumentor.
type LocalCodeInstrumentor struct {
	SourceFSAdapter

	mu        sync.Mutex
	seq       int
	files     map[m.Path]*pendingFile
	generated map[m.Path][]byte
	rewrites  map[m.Path][]byte
	calls     map[*ast.BlockStmt]map[m.TrackerCall]struct{}
}

// NewLocalCodeInstrumentor constructs a LocalCodeInstrumentor on top of fsAdapter.
func NewLocalCodeInstrumentor(fsAdapter SourceFSAdapter) *LocalCodeInstrumentor {
	ci := &LocalCodeInstrumentor{SourceFSAdapter: fsAdapter}
	ci.reset()

	return ci
}

func (ci *LocalCodeInstrumentor) reset() {
	ci.files = make(map[m.Path]*pendingFile)
	ci.generated = make(map[m.Path][]byte)
	ci.rewrites = make(map[m.Path][]byte)
	ci.calls = make(map[*ast.BlockStmt]map[m.TrackerCall]struct{})
}

// RenderCall formats call as a Go statement on a single line.
func RenderCall(call m.Call) string {
	args := make([]string, 0, len(call.Args))
	for _, arg := range call.Args {
		args = append(args, strconv.Quote(arg))
	}

	stmt := fmt.Sprintf("%s.%s(%s)", m.MonitorAlias, call.Func, strings.Join(args, ", "))
	if call.Defer {
		stmt = "defer " + stmt
	}

	return stmt
}

func (ci *LocalCodeInstrumentor) pending(file *m.SourceFile) *pendingFile {
	pf, ok := ci.files[file.Path]
	if !ok {
		pf = &pendingFile{path: file.Path, src: file.Src}
		ci.files[file.Path] = pf
	}

	return pf
}

func (ci *LocalCodeInstrumentor) add(file *m.SourceFile, start, end int, text string) error {
	if start < 0 || end < start || end > len(file.Src) {
		return fmt.Errorf("edit [%d,%d) out of range in %s", start, end, file.Path)
	}

	if strings.Contains(text, "\n") {
		return fmt.Errorf("edit in %s would add a line break", file.Path)
	}

	ci.seq++
	pf := ci.pending(file)
	pf.edits = append(pf.edits, textEdit{start: start, end: end, text: text, seq: ci.seq})

	return nil
}

func (ci *LocalCodeInstrumentor) remember(body *ast.BlockStmt, fn m.TrackerCall) {
	calls, ok := ci.calls[body]
	if !ok {
		calls = make(map[m.TrackerCall]struct{})
		ci.calls[body] = calls
	}

	calls[fn] = struct{}{}
}

// InsertCall schedules a tracker call inside body.
func (ci *LocalCodeInstrumentor) InsertCall(pkg *m.Package, file *m.SourceFile, body *ast.BlockStmt, index int, call m.Call) error {
	if body == nil {
		return fmt.Errorf("insert %s in %s: no body", call.Func, file.Path)
	}

	if index < 0 || index > len(body.List) {
		return fmt.Errorf("insert %s in %s: statement index %d out of range", call.Func, file.Path, index)
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	stmt := RenderCall(call)

	var err error

	switch {
	case index == 0:
		offset := pkg.Fset.Position(body.Lbrace).Offset + 1
		err = ci.add(file, offset, offset, " "+stmt+";")
	case index == len(body.List):
		offset := pkg.Fset.Position(body.Rbrace).Offset
		err = ci.add(file, offset, offset, "; "+stmt+"; ")
	default:
		offset := pkg.Fset.Position(body.List[index].Pos()).Offset
		err = ci.add(file, offset, offset, stmt+"; ")
	}

	if err != nil {
		return err
	}

	ci.remember(body, call.Func)

	return nil
}

// ReplaceNode schedules the replacement of node's source text.
func (ci *LocalCodeInstrumentor) ReplaceNode(pkg *m.Package, file *m.SourceFile, node ast.Node, text string) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	start := pkg.Fset.Position(node.Pos()).Offset
	end := pkg.Fset.Position(node.End()).Offset

	return ci.add(file, start, end, text)
}

// AddMethod schedules a generated method at the end of file. Adding the same
// method twice is a no-op.
func (ci *LocalCodeInstrumentor) AddMethod(_ *m.Package, file *m.SourceFile, recv string, ptr bool, name string, calls ...m.Call) error {
	if recv == "" || name == "" {
		return fmt.Errorf("add method to %s: receiver and name are required", file.Path)
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	recvType := recv
	if ptr {
		recvType = "*" + recv
	}

	header := fmt.Sprintf("func (%s) %s() {\n", recvType, name)

	pf := ci.pending(file)
	for _, method := range pf.appended {
		if strings.Contains(method, header) {
			return nil
		}
	}

	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n%s", m.GeneratedDirective, header)

	for _, call := range calls {
		fmt.Fprintf(&b, "\t%s\n", RenderCall(call))
	}

	b.WriteString("}\n")

	pf.appended = append(pf.appended, b.String())

	return nil
}

// AddFile schedules a generated file.
func (ci *LocalCodeInstrumentor) AddFile(pkg *m.Package, name string, content []byte) error {
	if !strings.HasPrefix(name, m.GeneratedFilePrefix) {
		return fmt.Errorf("generated file %s must start with %s", name, m.GeneratedFilePrefix)
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.generated[m.Path(filepath.Join(string(pkg.Dir), name))] = content

	return nil
}

// Rewrite schedules the replacement of a whole file.
func (ci *LocalCodeInstrumentor) Rewrite(path m.Path, content []byte) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.rewrites[path] = content

	return nil
}

// Calls looks for a tracker call in body.
func (ci *LocalCodeInstrumentor) Calls(body *ast.BlockStmt, fn m.TrackerCall) bool {
	if body == nil {
		return false
	}

	ci.mu.Lock()
	_, pending := ci.calls[body][fn]
	ci.mu.Unlock()

	if pending {
		return true
	}

	found := false

	ast.Inspect(body, func(n ast.Node) bool {
		if found {
			return false
		}

		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}

		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == m.MonitorAlias && sel.Sel.Name == string(fn) {
			found = true
		}

		return !found
	})

	return found
}

// EnsureImport adds the monitor import right after the package clause.
func (ci *LocalCodeInstrumentor) EnsureImport(pkg *m.Package, file *m.SourceFile) error {
	for _, spec := range file.AST.Imports {
		if strings.Trim(spec.Path.Value, "`\"") == m.MonitorImportPath {
			return nil
		}
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	pf := ci.pending(file)
	if pf.imported {
		return nil
	}

	offset := pkg.Fset.Position(file.AST.Name.End()).Offset
	if err := ci.add(file, offset, offset, fmt.Sprintf("; import %s %q", m.MonitorAlias, m.MonitorImportPath)); err != nil {
		return err
	}

	pf.imported = true

	return nil
}

// Pending counts files with scheduled changes.
func (ci *LocalCodeInstrumentor) Pending() int {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	return len(ci.files) + len(ci.generated) + len(ci.rewrites)
}

// Discard drops every scheduled change.
func (ci *LocalCodeInstrumentor) Discard() {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.reset()
}

// Flush applies all scheduled changes.
func (ci *LocalCodeInstrumentor) Flush(ctx context.Context, moduleRoot, backupDir m.Path) ([]m.Path, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	defer ci.reset()

	manifest, err := ci.loadManifest(ctx, backupDir)
	if err != nil {
		return nil, err
	}

	if manifest.ModuleRoot == "" {
		manifest.ModuleRoot = string(moduleRoot)
	}

	backedUp := toSet(manifest.Files)
	generated := toSet(manifest.Generated)

	var written []m.Path

	backup := func(path m.Path) error {
		rel, err := ci.RelPath(ctx, moduleRoot, path)
		if err != nil {
			return err
		}

		if _, ok := backedUp[string(rel)]; ok {
			return nil
		}

		if _, ok := generated[string(rel)]; ok {
			return nil
		}

		if err := ci.CopyFile(ctx, path, ci.JoinPath(ctx, string(backupDir), string(rel))); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}

		backedUp[string(rel)] = struct{}{}

		return nil
	}

	for _, path := range sortedKeys(ci.files) {
		pf := ci.files[path]

		if err := backup(path); err != nil {
			return written, err
		}

		if err := ci.WriteFile(ctx, path, pf.apply(), filePerm(ctx, ci, path)); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}

		written = append(written, path)
	}

	for _, path := range sortedKeys(ci.rewrites) {
		if err := backup(path); err != nil {
			return written, err
		}

		if err := ci.WriteFile(ctx, path, ci.rewrites[path], filePerm(ctx, ci, path)); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}

		written = append(written, path)
	}

	for _, path := range sortedKeys(ci.generated) {
		rel, err := ci.RelPath(ctx, moduleRoot, path)
		if err != nil {
			return written, err
		}

		if err := ci.WriteFile(ctx, path, ci.generated[path], 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}

		generated[string(rel)] = struct{}{}
		written = append(written, path)
	}

	manifest.Files = fromSet(backedUp)
	manifest.Generated = fromSet(generated)

	if err := ci.saveManifest(ctx, backupDir, manifest); err != nil {
		return written, err
	}

	slog.Debug("Flushed instrumentation", "files", len(written), "backup", backupDir)

	return written, nil
}

// Restore undoes every flushed change recorded in backupDir.
func (ci *LocalCodeInstrumentor) Restore(ctx context.Context, backupDir m.Path) ([]m.Path, error) {
	manifestPath := ci.JoinPath(ctx, string(backupDir), manifestName)
	if _, err := ci.FileInfo(ctx, manifestPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNothingToRestore
		}

		return nil, err
	}

	manifest, err := ci.loadManifest(ctx, backupDir)
	if err != nil {
		return nil, err
	}

	var restored []m.Path

	for _, rel := range manifest.Files {
		target := ci.JoinPath(ctx, manifest.ModuleRoot, rel)
		if err := ci.CopyFile(ctx, ci.JoinPath(ctx, string(backupDir), rel), target); err != nil {
			return restored, fmt.Errorf("restore %s: %w", target, err)
		}

		restored = append(restored, target)
	}

	for _, rel := range manifest.Generated {
		target := ci.JoinPath(ctx, manifest.ModuleRoot, rel)
		if err := ci.RemoveAll(ctx, target); err != nil {
			return restored, fmt.Errorf("remove %s: %w", target, err)
		}

		restored = append(restored, target)
	}

	if err := ci.RemoveAll(ctx, backupDir); err != nil {
		return restored, fmt.Errorf("remove backup %s: %w", backupDir, err)
	}

	return restored, nil
}

func (ci *LocalCodeInstrumentor) loadManifest(ctx context.Context, backupDir m.Path) (Manifest, error) {
	var manifest Manifest

	data, err := ci.ReadFile(ctx, ci.JoinPath(ctx, string(backupDir), manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest, nil
		}

		return manifest, fmt.Errorf("read backup manifest: %w", err)
	}

	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("decode backup manifest: %w", err)
	}

	return manifest, nil
}

func (ci *LocalCodeInstrumentor) saveManifest(ctx context.Context, backupDir m.Path, manifest Manifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode backup manifest: %w", err)
	}

	return ci.WriteFile(ctx, ci.JoinPath(ctx, string(backupDir), manifestName), data, 0o600)
}

// apply returns the source with all edits applied. Edits at the same offset
// keep their scheduling order.
func (pf *pendingFile) apply() []byte {
	edits := append([]textEdit(nil), pf.edits...)
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start > edits[j].start
		}

		return edits[i].seq > edits[j].seq
	})

	out := append([]byte(nil), pf.src...)
	for _, e := range edits {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.start], tail...)
	}

	if len(pf.appended) > 0 {
		if len(out) > 0 && out[len(out)-1] != '\n' {
			out = append(out, '\n')
		}

		for _, method := range pf.appended {
			out = append(out, method...)
		}
	}

	return out
}

func filePerm(ctx context.Context, fsAdapter SourceFSAdapter, path m.Path) os.FileMode {
	info, err := fsAdapter.FileInfo(ctx, path)
	if err != nil {
		return 0o644
	}

	return info.Mode().Perm()
}

func sortedKeys[V any](in map[m.Path]V) []m.Path {
	keys := make([]m.Path, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}

	return set
}

func fromSet(set map[string]struct{}) []string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}

	sort.Strings(items)

	return items
}
