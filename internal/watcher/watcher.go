// Package watcher reports debounced batches of file changes below a set of
// directory roots.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/KevTale/hakai/internal/logging"
)

// FileWatcher watches directory trees and hands debounced batches of
// change events to its handlers.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	debouncer  *Debouncer
	filters    []FileFilter
	dirFilters []FileFilter
	dirs       map[string]struct{}
	handlers   []ChangeHandler
	logger     logging.Logger
	batches    chan []ChangeEvent
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	mutex      sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	OldPath string // set for EventTypeRenamed
	ModTime time.Time
	Size    int64
	IsDir   bool
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file or directory should be watched
type FileFilter func(path string) bool

// ChangeHandler handles one debounced batch of change events.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	fw := &FileWatcher{
		watcher:  watcher,
		filters:  make([]FileFilter, 0),
		dirs:     make(map[string]struct{}),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
		batches:  make(chan []ChangeEvent, 64),
		done:     make(chan struct{}),
	}
	fw.debouncer = NewDebouncer(debounceDelay, fw.enqueue)

	return fw, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddDirFilter adds a directory filter. A rejected directory is not
// watched, and neither is anything below it. File filters do not apply to
// directories.
func (fw *FileWatcher) AddDirFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.dirFilters = append(fw.dirFilters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid root path %s: %w", root, err)
	}

	return filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && !fw.acceptsDir(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		fw.remember(path)
		return nil
	})
}

// Start starts the file watcher. It runs until ctx is done or Stop is
// called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.wg.Add(2)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and waits for in-flight handlers.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.debouncer.Stop()
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && fw.acceptsDir(event.Name) {
			fw.debouncer.Add(ChangeEvent{Type: EventTypeCreated, Path: event.Name, ModTime: info.ModTime(), IsDir: true})
			fw.addCreatedDir(event.Name)
		}
		return
	}

	// A watched directory that is gone was removed or moved away. Everything
	// below it goes with it, so it is reported once without file filters.
	if statErr != nil && event.Has(fsnotify.Remove|fsnotify.Rename) && fw.forget(event.Name) {
		eventType := EventTypeDeleted
		if event.Has(fsnotify.Rename) {
			eventType = EventTypeRenamed
		}
		fw.debouncer.Add(ChangeEvent{Type: eventType, Path: event.Name, IsDir: true})
		return
	}

	if !fw.accepts(event.Name) {
		return
	}

	changeEvent := ChangeEvent{Path: event.Name}
	if statErr == nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}

	switch {
	case event.Has(fsnotify.Create):
		changeEvent.Type = EventTypeCreated
	case event.Has(fsnotify.Write):
		changeEvent.Type = EventTypeModified
	case event.Has(fsnotify.Remove):
		changeEvent.Type = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		changeEvent.Type = EventTypeRenamed
	default:
		// chmod only
		return
	}

	fw.debouncer.Add(changeEvent)
}

// addCreatedDir watches a directory created after Start and reports the
// files it already holds, since their own create events were missed.
func (fw *FileWatcher) addCreatedDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !fw.acceptsDir(path) {
				return filepath.SkipDir
			}
			if err := fw.watcher.Add(path); err != nil {
				fw.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", path)
				return nil
			}
			fw.remember(path)
			return nil
		}
		if fw.accepts(path) {
			event := ChangeEvent{Type: EventTypeCreated, Path: path}
			if info, err := d.Info(); err == nil {
				event.ModTime = info.ModTime()
				event.Size = info.Size()
			}
			fw.debouncer.Add(event)
		}
		return nil
	})
}

func (fw *FileWatcher) accepts(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) acceptsDir(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	for _, filter := range fw.dirFilters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) remember(dir string) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.dirs[dir] = struct{}{}
}

// forget drops dir and every watched directory below it. It reports
// whether dir was watched.
func (fw *FileWatcher) forget(dir string) bool {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	if _, ok := fw.dirs[dir]; !ok {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range fw.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(fw.dirs, d)
		}
	}
	return true
}

func (fw *FileWatcher) enqueue(events []ChangeEvent) {
	select {
	case fw.batches <- events:
	case <-fw.done:
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.batches:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Warn(ctx, err, "File watcher handler error", "events", len(events))
				}
			}
		}
	}
}

// ExtensionFilter accepts files with the given extension.
func ExtensionFilter(ext string) FileFilter {
	return func(path string) bool {
		return filepath.Ext(path) == ext
	}
}

// NoHiddenFilter rejects dot files such as editor lock files.
func NoHiddenFilter(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

// NoGitFilter rejects .git directories and anything inside them.
func NoGitFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".git" {
			return false
		}
	}
	return true
}
