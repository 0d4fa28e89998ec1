package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	m "gorts.dev/pkg/gorts/internal/model"
	"gorts.dev/pkg/gorts/pkg/monitor"
)

// ErrNoDependencies is returned when a test has no dependency file.
var ErrNoDependencies = errors.New("no dependency file")

// DependencyStore reads the dependency files written by instrumented tests and
// records the affected test list.
type DependencyStore interface {
	// Dependencies returns the recorded dependencies of test. It returns
	// ErrNoDependencies when the test never ran instrumented.
	Dependencies(ctx context.Context, dir m.Path, test string) ([]string, error)

	// SaveAffected writes the affected test names as a JSON array.
	SaveAffected(ctx context.Context, path m.Path, names []string) error

	// LoadAffected reads the affected test names.
	LoadAffected(ctx context.Context, path m.Path) ([]string, error)

	// Forget removes the dependency files of tests, so they are selected
	// again on the next run.
	Forget(ctx context.Context, dir m.Path, tests []string) error
}

// LocalDependencyStore reads the files the monitor package writes.
type LocalDependencyStore struct{}

// NewLocalDependencyStore constructs a LocalDependencyStore.
func NewLocalDependencyStore() *LocalDependencyStore {
	return &LocalDependencyStore{}
}

// Dependencies loads the dependency file of test from dir.
func (s *LocalDependencyStore) Dependencies(ctx context.Context, dir m.Path, test string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deps, err := monitor.ReadDependencies(string(dir), test)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDependencies
		}

		return nil, err
	}

	return deps.Dependencies, nil
}

// SaveAffected writes names to path.
func (s *LocalDependencyStore) SaveAffected(ctx context.Context, path m.Path, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if names == nil {
		names = []string{}
	}

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("encode affected tests: %w", err)
	}

	return writeFileAtomic(path, data)
}

// LoadAffected reads names from path. A missing file yields no names.
func (s *LocalDependencyStore) LoadAffected(ctx context.Context, path m.Path) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(string(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode affected tests: %w", err)
	}

	return names, nil
}

// Forget deletes the dependency files of tests. Missing files are ignored.
func (s *LocalDependencyStore) Forget(ctx context.Context, dir m.Path, tests []string) error {
	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := os.Remove(monitor.DependencyFilePath(string(dir), test))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("forget %s: %w", test, err)
		}
	}

	return nil
}
