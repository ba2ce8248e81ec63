package hmr

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevTale/hakai/internal/compiler"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/routing"
	"github.com/KevTale/hakai/internal/script"
	"github.com/KevTale/hakai/internal/testutils"
	"github.com/KevTale/hakai/internal/types"
	"github.com/KevTale/hakai/internal/watcher"
)

type fakePeer struct {
	mu       sync.Mutex
	messages []Message
}

func (p *fakePeer) Send(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePeer) snapshot() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *fakePeer) count() int {
	return len(p.snapshot())
}

type fakeWatcher struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (w *fakeWatcher) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	return nil
}

func (w *fakeWatcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *fakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return nil
}

type fixture struct {
	root        string
	coordinator *Coordinator

	mu       sync.Mutex
	watchers []*fakeWatcher
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	root := testutils.CreateTempProject(t, files)
	p, err := project.New(testutils.CreateTestConfig(root), nil)
	require.NoError(t, err)
	analyzer, err := script.NewAnalyzer(script.DefaultCacheSize)
	require.NoError(t, err)
	c, err := compiler.New(p, analyzer, nil)
	require.NoError(t, err)
	r, err := routing.NewResolver(p, analyzer)
	require.NoError(t, err)

	f := &fixture{root: root}
	f.coordinator = NewCoordinator(c, r, func(watcher.ChangeHandler) (Watcher, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w := &fakeWatcher{}
		f.watchers = append(f.watchers, w)
		return w, nil
	}, nil)
	t.Cleanup(f.coordinator.Close)
	return f
}

func (f *fixture) connect(t *testing.T, urlPath string) (*Session, *fakePeer) {
	t.Helper()
	peer := &fakePeer{}
	s := f.coordinator.Connect(peer)
	s.Init(urlPath)
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() > 0 })
	return s, peer
}

func (f *fixture) abs(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func (f *fixture) change(t *testing.T, events ...watcher.ChangeEvent) {
	t.Helper()
	require.NoError(t, f.coordinator.HandleChanges(context.Background(), events))
}

// settle waits long enough for queued session work to finish.
func settle() {
	time.Sleep(100 * time.Millisecond)
}

func update(t *testing.T, msg Message) UpdatePayload {
	t.Helper()
	require.Equal(t, MessageTypeUpdate, msg.Type)
	payload, ok := msg.Payload.(UpdatePayload)
	require.True(t, ok)
	return payload
}

func errorText(t *testing.T, msg Message) string {
	t.Helper()
	require.Equal(t, MessageTypeError, msg.Type)
	payload, ok := msg.Payload.(ErrorPayload)
	require.True(t, ok)
	return payload.Message
}

var homeSite = map[string]string{
	"scopes/home/home.page.kai":                testutils.Page(`<h1>{{ title }}</h1>`, `const title = "Hello";`),
	"scopes/home/card.component.kai":           testutils.Page(`<div>card</div>`, ""),
	"scopes/blog/blog.page.kai":                testutils.Page(`<main><Badge/></main>`, ""),
	"scopes/blog/badge.component.kai":          testutils.Page(`<i>new</i>`, ""),
	"scopes/blog/blog_post.page.kai":           testutils.Page(`<p>post</p>`, ""),
	"design-system/components/x.component.kai": testutils.Page(`<b/>`, ""),
}

func TestInitSendsUpdate(t *testing.T) {
	f := newFixture(t, homeSite)
	s, peer := f.connect(t, "/")

	payload := update(t, peer.snapshot()[0])
	assert.Equal(t, `<h1 data-page="home">Hello</h1>`, payload.Content)
	assert.Equal(t, `const home_title = "Hello";`, payload.Script)

	cc, ok := f.coordinator.Context(s)
	require.True(t, ok)
	assert.Equal(t, []string{"scopes/home/home.page.kai"}, cc.Pages)
	assert.True(t, f.coordinator.Watching())
}

func TestInitFailureLeavesNoContext(t *testing.T) {
	f := newFixture(t, homeSite)
	s, peer := f.connect(t, "/missing")

	assert.Equal(t, "No page found for path: /missing", errorText(t, peer.snapshot()[0]))
	_, ok := f.coordinator.Context(s)
	assert.False(t, ok)
	assert.False(t, f.coordinator.Watching())

	s.Init("/blog")
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Contains(t, update(t, peer.snapshot()[1]).Content, "new")
}

func TestInvalidMessage(t *testing.T) {
	f := newFixture(t, homeSite)
	peer := &fakePeer{}
	s := f.coordinator.Connect(peer)

	assert.Error(t, s.HandleMessage([]byte("{not json")))
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 1 })
	assert.Equal(t, MessageTypeError, peer.snapshot()[0].Type)

	require.NoError(t, s.HandleMessage([]byte(`{"type":"init","path":"/blog"}`)))
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Equal(t, MessageTypeUpdate, peer.snapshot()[1].Type)
}

func TestModifySendsUpdateOnlyWhenChanged(t *testing.T) {
	f := newFixture(t, homeSite)
	_, peer := f.connect(t, "/")

	page := "scopes/home/home.page.kai"
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	settle()
	assert.Equal(t, 1, peer.count(), "unchanged output must not be resent")

	testutils.WriteFile(t, f.root, page, testutils.Page(`<h1>{{ title }}</h1>`, `const title = "Bye";`))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Equal(t, `<h1 data-page="home">Bye</h1>`, update(t, peer.snapshot()[1]).Content)
}

func TestBurstYieldsSingleRecompile(t *testing.T) {
	f := newFixture(t, homeSite)
	_, peer := f.connect(t, "/")

	page := "scopes/home/home.page.kai"
	testutils.WriteFile(t, f.root, page, testutils.Page(`<h1>changed</h1>`, ""))

	var events []watcher.ChangeEvent
	for i := 0; i < 5; i++ {
		events = append(events, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	}
	f.change(t, events...)
	settle()

	assert.Equal(t, 2, peer.count())
}

func TestComponentChangeReachesDependents(t *testing.T) {
	f := newFixture(t, homeSite)
	_, blogPeer := f.connect(t, "/blog")
	_, homePeer := f.connect(t, "/")

	badge := "scopes/blog/badge.component.kai"
	testutils.WriteFile(t, f.root, badge, testutils.Page(`<i>hot</i>`, ""))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(badge)})

	testutils.Eventually(t, 2*time.Second, func() bool { return blogPeer.count() == 2 })
	assert.Contains(t, update(t, blogPeer.snapshot()[1]).Content, "hot")
	settle()
	assert.Equal(t, 1, homePeer.count())
}

func TestDeleteSendsSingleError(t *testing.T) {
	f := newFixture(t, homeSite)
	_, peer := f.connect(t, "/blog")

	badge := "scopes/blog/badge.component.kai"
	require.NoError(t, os.Remove(f.abs(badge)))
	f.change(t,
		watcher.ChangeEvent{Type: watcher.EventTypeDeleted, Path: f.abs(badge)},
		watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs("scopes/blog/blog.page.kai")},
	)

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	settle()

	messages := peer.snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "File scopes/blog/badge.component.kai has been deleted", errorText(t, messages[1]))
}

func TestDirectoryDeleteSendsErrorPerFile(t *testing.T) {
	f := newFixture(t, homeSite)
	_, peer := f.connect(t, "/blog")

	require.NoError(t, os.RemoveAll(f.abs("scopes/blog")))
	f.change(t,
		watcher.ChangeEvent{Type: watcher.EventTypeDeleted, Path: f.abs("scopes/blog/badge.component.kai")},
		watcher.ChangeEvent{Type: watcher.EventTypeDeleted, Path: f.abs("scopes/blog"), IsDir: true},
	)

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 3 })
	settle()

	messages := peer.snapshot()
	require.Len(t, messages, 3)
	assert.Equal(t, "File scopes/blog/badge.component.kai has been deleted", errorText(t, messages[1]))
	assert.Equal(t, "File scopes/blog/blog.page.kai has been deleted", errorText(t, messages[2]))
}

func TestDirectoryRenameSubstitutesPaths(t *testing.T) {
	f := newFixture(t, homeSite)
	s, peer := f.connect(t, "/blog")

	require.NoError(t, os.Rename(f.abs("scopes/blog"), f.abs("scopes/news")))
	f.change(t, watcher.ChangeEvent{
		Type:    watcher.EventTypeRenamed,
		Path:    f.abs("scopes/news"),
		OldPath: f.abs("scopes/blog"),
		IsDir:   true,
	})

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Contains(t, update(t, peer.snapshot()[1]).Content, `data-component="news/badge"`)

	cc, ok := f.coordinator.Context(s)
	require.True(t, ok)
	assert.Equal(t, []string{"scopes/news/blog.page.kai"}, cc.Pages)
	assert.Equal(t, []string{"scopes/news/badge.component.kai"}, cc.Components)
}

func TestRenameSubstitutesPath(t *testing.T) {
	f := newFixture(t, homeSite)
	s, peer := f.connect(t, "/")

	oldPath := "scopes/home/home.page.kai"
	newPath := "scopes/home/welcome.page.kai"
	require.NoError(t, os.Rename(f.abs(oldPath), f.abs(newPath)))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeRenamed, Path: f.abs(newPath), OldPath: f.abs(oldPath)})

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Equal(t, `<h1 data-page="welcome">Hello</h1>`, update(t, peer.snapshot()[1]).Content)

	cc, ok := f.coordinator.Context(s)
	require.True(t, ok)
	assert.Equal(t, []string{newPath}, cc.Pages)
}

func TestFailedCompileRecovers(t *testing.T) {
	f := newFixture(t, homeSite)
	s, peer := f.connect(t, "/")

	page := "scopes/home/home.page.kai"
	testutils.WriteFile(t, f.root, page, testutils.Page(`<h1>hi</h1><Modal/>`, ""))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })
	assert.Contains(t, errorText(t, peer.snapshot()[1]), "Modal")
	cc, ok := f.coordinator.Context(s)
	require.True(t, ok)
	assert.True(t, cc.Failed)

	modal := "scopes/home/modal.component.kai"
	testutils.WriteFile(t, f.root, modal, testutils.Page(`<dialog>open</dialog>`, ""))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeCreated, Path: f.abs(modal)})

	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 3 })
	assert.Contains(t, update(t, peer.snapshot()[2]).Content, "<dialog")

	cc, _ = f.coordinator.Context(s)
	assert.False(t, cc.Failed)
	assert.Equal(t, []string{modal}, cc.Components)
}

func TestErrorStateForcesResend(t *testing.T) {
	f := newFixture(t, homeSite)
	_, peer := f.connect(t, "/")

	page := "scopes/home/home.page.kai"
	original := testutils.Page(`<h1>{{ title }}</h1>`, `const title = "Hello";`)

	testutils.WriteFile(t, f.root, page, testutils.Page(`<h1>{{ nope }}</h1>`, ""))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 2 })

	testutils.WriteFile(t, f.root, page, original)
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	testutils.Eventually(t, 2*time.Second, func() bool { return peer.count() == 3 })

	assert.Equal(t, update(t, peer.snapshot()[0]), update(t, peer.snapshot()[2]))
}

func TestDisconnectStopsWatcherAndDropsLateWork(t *testing.T) {
	f := newFixture(t, homeSite)
	first, firstPeer := f.connect(t, "/")
	second, _ := f.connect(t, "/blog")

	f.mu.Lock()
	require.Len(t, f.watchers, 1)
	w := f.watchers[0]
	f.mu.Unlock()

	first.Close()
	assert.True(t, f.coordinator.Watching())
	second.Close()
	assert.False(t, f.coordinator.Watching())
	assert.True(t, w.isStopped())
	assert.Equal(t, 0, f.coordinator.Sessions())

	page := "scopes/home/home.page.kai"
	testutils.WriteFile(t, f.root, page, testutils.Page(`<h1>late</h1>`, ""))
	f.change(t, watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: f.abs(page)})
	settle()
	assert.Equal(t, 1, firstPeer.count())

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("session worker did not exit")
	}
}

func TestWatcherRestartsForNewClient(t *testing.T) {
	f := newFixture(t, homeSite)
	s, _ := f.connect(t, "/")
	s.Close()
	assert.False(t, f.coordinator.Watching())

	f.connect(t, "/blog")
	assert.True(t, f.coordinator.Watching())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.watchers, 2)
}

var blogRoute = types.Route{
	URLPath:    "/blog",
	Pages:      []string{"scopes/blog/blog.page.kai"},
	Components: []string{"scopes/blog/badge.component.kai"},
}

func TestClientContextWithin(t *testing.T) {
	cc := &ClientContext{Route: blogRoute}

	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"file", "scopes/blog/badge.component.kai", []string{"scopes/blog/badge.component.kai"}},
		{"directory", "scopes/blog", []string{"scopes/blog/blog.page.kai", "scopes/blog/badge.component.kai"}},
		{"sibling prefix", "scopes/bl", nil},
		{"unrelated", "scopes/home", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cc.Within(tt.path))
		})
	}
}

func TestClientContextAffectedBy(t *testing.T) {
	cc := &ClientContext{Route: blogRoute}

	tests := []struct {
		name     string
		path     string
		source   bool
		failed   bool
		expected bool
	}{
		{"page", "scopes/blog/blog.page.kai", true, false, true},
		{"component", "scopes/blog/badge.component.kai", true, false, true},
		{"containing directory", "scopes/blog", false, false, true},
		{"sibling prefix", "scopes/bl", false, false, false},
		{"unrelated", "scopes/home/home.page.kai", true, false, false},
		{"unrelated after failure", "scopes/home/home.page.kai", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cc
			c.Failed = tt.failed
			assert.Equal(t, tt.expected, c.AffectedBy(tt.path, tt.source))
		})
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"init","path":"/a"}`))
	require.NoError(t, err)
	assert.Equal(t, IncomingMessage{Type: MessageTypeInit, Path: "/a"}, msg)

	_, err = ParseMessage([]byte(`{}`))
	assert.Error(t, err)
}
