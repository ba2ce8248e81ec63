// Package hmr implements the live reload coordinator.
//
// Every connected browser gets a Session. After the browser sends an init
// message naming its URL path, the coordinator resolves and compiles the
// route, remembers a ClientContext for the session and pushes the output.
// While at least one context exists a filesystem watcher runs; each
// debounced batch of changes is mapped to the affected sessions, which
// recompile and receive an update only when their output changed.
package hmr

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KevTale/hakai/internal/compiler"
	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/routing"
	"github.com/KevTale/hakai/internal/types"
	"github.com/KevTale/hakai/internal/watcher"
)

// Coordinator owns the sessions, their contexts and the shared watcher.
type Coordinator struct {
	compiler   *compiler.Compiler
	resolver   *routing.Resolver
	project    *project.Project
	newWatcher WatcherFactory
	logger     logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Uint64

	mutex    sync.Mutex
	sessions map[*Session]struct{}
	contexts map[*Session]*ClientContext
	watcher  Watcher
}

// NewCoordinator creates a coordinator. newWatcher is called whenever the
// first client context appears.
func NewCoordinator(c *compiler.Compiler, r *routing.Resolver, newWatcher WatcherFactory, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		compiler:   c,
		resolver:   r,
		project:    c.Project(),
		newWatcher: newWatcher,
		logger:     logger.WithComponent("hmr"),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[*Session]struct{}),
		contexts:   make(map[*Session]*ClientContext),
	}
}

// Connect registers a new client.
func (c *Coordinator) Connect(peer Peer) *Session {
	id := fmt.Sprintf("client-%d", c.nextID.Add(1))
	s := newSession(c, id, peer)

	c.mutex.Lock()
	c.sessions[s] = struct{}{}
	c.mutex.Unlock()

	c.logger.Debug(c.ctx, "Client connected", "client", id)
	return s
}

// Close disconnects every session and stops the watcher.
func (c *Coordinator) Close() {
	c.mutex.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mutex.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	c.cancel()
}

// Sessions returns the number of connected clients.
func (c *Coordinator) Sessions() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.sessions)
}

// Context returns a copy of the session's context, if it has one.
func (c *Coordinator) Context(s *Session) (ClientContext, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	cc, ok := c.contexts[s]
	if !ok {
		return ClientContext{}, false
	}
	return *cc, true
}

// Watching reports whether the filesystem watcher is running.
func (c *Coordinator) Watching() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.watcher != nil
}

func (c *Coordinator) disconnect(s *Session) {
	c.mutex.Lock()
	delete(c.sessions, s)
	delete(c.contexts, s)
	w := c.releaseWatcherLocked()
	c.mutex.Unlock()

	c.stopWatcher(w)
	c.logger.Debug(c.ctx, "Client disconnected", "client", s.id)
}

// storeContext records cc for s, starting the watcher for the first
// context. It returns false when s has already disconnected.
func (c *Coordinator) storeContext(s *Session, cc *ClientContext) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.sessions[s]; !ok {
		return false
	}
	c.contexts[s] = cc

	if c.watcher == nil && c.newWatcher != nil {
		w, err := c.newWatcher(c.HandleChanges)
		if err != nil {
			c.logger.Warn(c.ctx, err, "Failed to create file watcher")
			return true
		}
		if err := w.Start(c.ctx); err != nil {
			c.logger.Warn(c.ctx, err, "Failed to start file watcher")
			_ = w.Stop()
			return true
		}
		c.watcher = w
		c.logger.Debug(c.ctx, "File watcher started")
	}
	return true
}

func (c *Coordinator) dropContext(s *Session) {
	c.mutex.Lock()
	delete(c.contexts, s)
	w := c.releaseWatcherLocked()
	c.mutex.Unlock()

	c.stopWatcher(w)
}

func (c *Coordinator) currentContext(s *Session) (*ClientContext, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	cc, ok := c.contexts[s]
	return cc, ok
}

// releaseWatcherLocked detaches the watcher once no context is left. The
// caller stops it after releasing the mutex, since stopping waits for the
// change handler.
func (c *Coordinator) releaseWatcherLocked() Watcher {
	if len(c.contexts) > 0 || c.watcher == nil {
		return nil
	}
	w := c.watcher
	c.watcher = nil
	return w
}

func (c *Coordinator) stopWatcher(w Watcher) {
	if w == nil {
		return
	}
	if err := w.Stop(); err != nil {
		c.logger.Warn(c.ctx, err, "Failed to stop file watcher")
		return
	}
	c.logger.Debug(c.ctx, "File watcher stopped")
}

// initialize resolves and compiles urlPath for s. On failure the session
// has no context and receives an error.
func (c *Coordinator) initialize(ctx context.Context, s *Session, urlPath string) {
	route, err := c.resolver.Resolve(ctx, urlPath)
	if err != nil {
		c.fail(ctx, s, err, "path", urlPath)
		return
	}

	page, err := c.compiler.Compile(ctx, route.Pages)
	if err != nil {
		c.fail(ctx, s, err, "path", urlPath)
		return
	}

	cc := &ClientContext{
		Route:       route,
		Fingerprint: outputFingerprint(page),
	}
	if ctx.Err() != nil || !c.storeContext(s, cc) {
		return
	}
	s.send(ctx, NewUpdateMessage(page))
}

func (c *Coordinator) fail(ctx context.Context, s *Session, err error, fields ...interface{}) {
	if ctx.Err() != nil {
		return
	}
	c.dropContext(s)
	s.logger.Warn(ctx, err, "Live reload compile failed", fields...)
	s.send(ctx, NewErrorMessage(err))
}

// refresh recompiles the session's route after renames have been applied,
// sending an update only when the output changed.
func (c *Coordinator) refresh(ctx context.Context, s *Session, renames map[string]string) {
	current, ok := c.currentContext(s)
	if !ok {
		return
	}
	cc := current.Renamed(renames)

	page, err := c.compiler.Compile(ctx, cc.Pages)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		cc.Failed = true
		cc.Fingerprint = errorStateFingerprint()
		if !c.replaceContext(s, current, cc) {
			return
		}
		s.logger.Warn(ctx, err, "Live reload recompile failed", "path", cc.URLPath)
		s.send(ctx, NewErrorMessage(err))
		return
	}

	components, err := c.resolver.Closure(ctx, cc.Pages)
	if err != nil {
		return
	}

	next := &ClientContext{
		Route:       types.Route{URLPath: cc.URLPath, Pages: cc.Pages, Components: components},
		Fingerprint: outputFingerprint(page),
	}
	if !c.replaceContext(s, current, next) {
		return
	}
	if next.Fingerprint != current.Fingerprint {
		s.send(ctx, NewUpdateMessage(page))
	}
}

// replaceContext swaps prev for next unless the session disconnected or
// its context was replaced meanwhile.
func (c *Coordinator) replaceContext(s *Session, prev, next *ClientContext) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if cc, ok := c.contexts[s]; !ok || cc != prev {
		return false
	}
	c.contexts[s] = next
	return true
}

type plan struct {
	deleted   []string
	renames   map[string]string
	recompile bool
}

// HandleChanges maps a debounced batch of filesystem events to the
// affected sessions and queues their work. A session whose files were
// deleted only receives the deletion errors for this batch. A deleted or
// renamed directory counts for every context file below it.
func (c *Coordinator) HandleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	c.mutex.Lock()
	snapshot := make(map[*Session]*ClientContext, len(c.contexts))
	for s, cc := range c.contexts {
		snapshot[s] = cc
	}
	c.mutex.Unlock()

	plans := make(map[*Session]*plan)
	planFor := func(s *Session) *plan {
		p, ok := plans[s]
		if !ok {
			p = &plan{renames: make(map[string]string)}
			plans[s] = p
		}
		return p
	}

	for _, event := range events {
		path := c.project.Rel(event.Path)
		isSource := c.project.HasExtension(path)

		for s, cc := range snapshot {
			switch event.Type {
			case watcher.EventTypeDeleted:
				if gone := cc.Within(path); len(gone) > 0 {
					p := planFor(s)
					for _, g := range gone {
						if !slices.Contains(p.deleted, g) {
							p.deleted = append(p.deleted, g)
						}
					}
				}
			case watcher.EventTypeRenamed:
				old := c.project.Rel(event.OldPath)
				if moved := cc.Within(old); len(moved) > 0 {
					p := planFor(s)
					for _, m := range moved {
						p.renames[m] = path + strings.TrimPrefix(m, old)
					}
					p.recompile = true
				} else if cc.AffectedBy(path, isSource) {
					planFor(s).recompile = true
				}
			default:
				if cc.AffectedBy(path, isSource) {
					planFor(s).recompile = true
				}
			}
		}

		c.logger.Debug(ctx, "File changed", "path", path, "type", event.Type.String())
	}

	for s, p := range plans {
		switch {
		case len(p.deleted) > 0:
			s.enqueue(func(ctx context.Context) {
				for _, path := range p.deleted {
					s.send(ctx, NewDeletedMessage(path))
				}
			})
		case p.recompile:
			s.enqueue(func(ctx context.Context) {
				c.refresh(ctx, s, p.renames)
			})
		}
	}

	return nil
}
