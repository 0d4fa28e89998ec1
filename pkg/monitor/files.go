package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxPathLength is the longest dependency file path used verbatim.
const MaxPathLength = 250

// ReplacementChar substitutes characters that are not allowed in file names.
const ReplacementChar = "_"

// Dependencies is the content of one dependency file.
type Dependencies struct {
	TestName     string   `json:"TestName"`
	Dependencies []string `json:"Dependencies"`
}

// CleanFileName replaces every character that is invalid in a file name on any
// supported platform with replacement.
func CleanFileName(name, replacement string) string {
	var b strings.Builder

	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r < 0x20:
			b.WriteString(replacement)
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteString(replacement)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// DependencyFilePath returns the dependency file of test inside dir. Names that
// would produce an overlong path are replaced by the SHA-256 of the path.
func DependencyFilePath(dir, test string) string {
	path := filepath.Join(dir, CleanFileName(test, ReplacementChar)+".json")
	if len(path) <= MaxPathLength {
		return path
	}

	sum := sha256.Sum256([]byte(path))

	return filepath.Join(dir, hex.EncodeToString(sum[:])+".json")
}

// WriteDependencies stores deps in its dependency file under dir. The file is
// written to a temporary name first and renamed, so readers never see a partial file.
func WriteDependencies(dir string, deps Dependencies) error {
	if deps.Dependencies == nil {
		deps.Dependencies = []string{}
	}

	data, err := json.MarshalIndent(deps, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	return writeFileAtomic(DependencyFilePath(dir, deps.TestName), data)
}

// ReadDependencies loads the dependency file of test from dir.
func ReadDependencies(dir, test string) (Dependencies, error) {
	var deps Dependencies

	data, err := os.ReadFile(DependencyFilePath(dir, test))
	if err != nil {
		return deps, err
	}

	if err := json.Unmarshal(data, &deps); err != nil {
		return deps, fmt.Errorf("decode dependencies of %s: %w", test, err)
	}

	return deps, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gorts-*.tmp")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}
