package hmr

import (
	"context"
	"time"

	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/watcher"
)

// Watcher is the filesystem watcher the coordinator runs while it has
// active clients.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// WatcherFactory creates a watcher delivering change batches to handler.
type WatcherFactory func(handler watcher.ChangeHandler) (Watcher, error)

// NewWatcherFactory watches the project's scopes and design-system
// directories for source file changes.
func NewWatcherFactory(p *project.Project, debounce time.Duration, logger logging.Logger) WatcherFactory {
	return func(handler watcher.ChangeHandler) (Watcher, error) {
		fw, err := watcher.NewFileWatcher(debounce, logger)
		if err != nil {
			return nil, err
		}

		fw.AddFilter(watcher.ExtensionFilter(p.Extension()))
		fw.AddFilter(watcher.NoHiddenFilter)
		fw.AddDirFilter(watcher.NoGitFilter)
		fw.AddHandler(handler)

		for _, dir := range []string{p.ScopesDir(), p.DesignSystemDir()} {
			if !p.Exists(context.Background(), dir) {
				continue
			}
			if err := fw.AddRecursive(p.Abs(dir)); err != nil {
				_ = fw.Stop()
				return nil, err
			}
		}

		return fw, nil
	}
}
