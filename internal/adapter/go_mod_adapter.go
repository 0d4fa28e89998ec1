package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"

	m "gorts.dev/pkg/gorts/internal/model"
)

// ErrNoModulePath is returned for a go.mod without a module directive.
var ErrNoModulePath = errors.New("go.mod has no module directive")

// GoModAdapter reads and edits go.mod files.
type GoModAdapter interface {
	// ModulePath returns the module path declared by the go.mod in root.
	ModulePath(ctx context.Context, root m.Path) (string, error)

	// AddRequire returns data with a require for mod@version and, when
	// replace is set, a replace of mod by that directory or module. The
	// boolean is false when nothing had to change.
	AddRequire(ctx context.Context, data []byte, mod, version, replace string) ([]byte, bool, error)
}

// LocalGoModAdapter implements GoModAdapter with golang.org/x/mod/modfile.
type LocalGoModAdapter struct{}

// NewLocalGoModAdapter constructs a LocalGoModAdapter.
func NewLocalGoModAdapter() *LocalGoModAdapter {
	return &LocalGoModAdapter{}
}

// ModulePath parses root/go.mod.
func (a *LocalGoModAdapter) ModulePath(_ context.Context, root m.Path) (string, error) {
	goModPath := filepath.Join(string(root), "go.mod")

	data, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", goModPath, err)
	}

	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("%s: %w", goModPath, ErrNoModulePath)
	}

	return path, nil
}

// AddRequire edits a go.mod in memory.
func (a *LocalGoModAdapter) AddRequire(_ context.Context, data []byte, mod, version, replace string) ([]byte, bool, error) {
	file, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("parse go.mod: %w", err)
	}

	if file.Module != nil && file.Module.Mod.Path == mod {
		return data, false, nil
	}

	changed := false

	if !hasRequire(file, mod, version) {
		if err := file.AddRequire(mod, version); err != nil {
			return nil, false, fmt.Errorf("add require %s: %w", mod, err)
		}

		changed = true
	}

	if replace != "" && !hasReplace(file, mod, replace) {
		newPath, newVersion := replace, ""
		if !modfile.IsDirectoryPath(replace) {
			newPath, newVersion = splitModuleVersion(replace)
		}

		if err := file.AddReplace(mod, "", newPath, newVersion); err != nil {
			return nil, false, fmt.Errorf("add replace %s => %s: %w", mod, replace, err)
		}

		changed = true
	}

	if !changed {
		return data, false, nil
	}

	file.Cleanup()

	out, err := file.Format()
	if err != nil {
		return nil, false, fmt.Errorf("format go.mod: %w", err)
	}

	return out, true, nil
}

func hasRequire(file *modfile.File, mod, version string) bool {
	for _, req := range file.Require {
		if req.Mod.Path == mod && req.Mod.Version == version {
			return true
		}
	}

	return false
}

func hasReplace(file *modfile.File, mod, replace string) bool {
	for _, rep := range file.Replace {
		if rep.Old.Path == mod && (rep.New.Path == replace || rep.New.String() == replace) {
			return true
		}
	}

	return false
}

func splitModuleVersion(s string) (string, string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return s[:i], s[i+1:]
		}
	}

	return s, ""
}
