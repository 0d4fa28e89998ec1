package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	m "gorts.dev/pkg/gorts/internal/model"
)

// FingerprintStore persists the unit fingerprints of the previous run.
type FingerprintStore interface {
	// Load returns the stored mapping. A missing or unreadable store yields an
	// empty mapping.
	Load(ctx context.Context, path m.Path) (m.Fingerprints, error)

	// Save replaces the stored mapping.
	Save(ctx context.Context, path m.Path, fingerprints m.Fingerprints) error
}

// LocalFingerprintStore keeps fingerprints in an indented JSON object.
type LocalFingerprintStore struct{}

// NewLocalFingerprintStore constructs a LocalFingerprintStore.
func NewLocalFingerprintStore() *LocalFingerprintStore {
	return &LocalFingerprintStore{}
}

// Load reads the mapping from path.
func (s *LocalFingerprintStore) Load(ctx context.Context, path m.Path) (m.Fingerprints, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(string(path))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read fingerprint store, treating all units as new", "path", path, "error", err)
		}

		return m.Fingerprints{}, nil
	}

	fingerprints := m.Fingerprints{}
	if err := json.Unmarshal(data, &fingerprints); err != nil {
		slog.Warn("Corrupt fingerprint store, treating all units as new", "path", path, "error", err)
		return m.Fingerprints{}, nil
	}

	return fingerprints, nil
}

// Save writes the mapping atomically.
func (s *LocalFingerprintStore) Save(ctx context.Context, path m.Path, fingerprints m.Fingerprints) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if fingerprints == nil {
		fingerprints = m.Fingerprints{}
	}

	data, err := json.MarshalIndent(fingerprints, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fingerprints: %w", err)
	}

	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path.
func writeFileAtomic(path m.Path, data []byte) error {
	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(string(path))+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, string(path)); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}
