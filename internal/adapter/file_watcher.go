package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	m "gorts.dev/pkg/gorts/internal/model"
)

// FileWatcher reports changes to the Go sources of a module.
type FileWatcher interface {
	// Watch reports changed Go files in dirs until ctx is done. Files written
	// by the instrumentor are not reported. Both channels are closed when
	// watching stops.
	Watch(ctx context.Context, dirs []m.Path) (<-chan m.Path, <-chan error, error)
}

// LocalFileWatcher implements FileWatcher with fsnotify.
type LocalFileWatcher struct{}

// NewLocalFileWatcher constructs a LocalFileWatcher.
func NewLocalFileWatcher() *LocalFileWatcher {
	return &LocalFileWatcher{}
}

// Watch starts an fsnotify watcher on every dir. Directories created later
// are added as they appear.
func (w *LocalFileWatcher) Watch(ctx context.Context, dirs []m.Path) (<-chan m.Path, <-chan error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(string(dir)); err != nil {
			_ = watcher.Close()
			return nil, nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	changes := make(chan m.Path)
	errs := make(chan error)

	go func() {
		defer close(changes)
		defer close(errs)
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Has(fsnotify.Create) {
					addDir(watcher, event.Name)
				}

				if !watchedSource(event.Name) || event.Op == fsnotify.Chmod {
					continue
				}

				select {
				case changes <- m.Path(event.Name):
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changes, errs, nil
}

func addDir(watcher *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skipDir(info.Name()) {
		return
	}

	if err := watcher.Add(path); err != nil {
		slog.Warn("Failed to watch new directory", "dir", path, "error", err)
	}
}

func watchedSource(path string) bool {
	name := filepath.Base(path)

	return isGoFile(name) && !strings.HasPrefix(name, m.GeneratedFilePrefix)
}
