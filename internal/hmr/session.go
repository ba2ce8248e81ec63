package hmr

import (
	"context"
	"sync"

	"github.com/KevTale/hakai/internal/logging"
)

// Peer delivers messages to one connected client.
type Peer interface {
	Send(ctx context.Context, msg Message) error
}

type job func(ctx context.Context)

// Session is one connected client. Its jobs run one at a time on a
// dedicated goroutine, in the order they were queued, so a slow compile
// for one client never holds up another.
type Session struct {
	id          string
	peer        Peer
	coordinator *Coordinator
	logger      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex     sync.Mutex
	jobs      []job
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(c *Coordinator, id string, peer Peer) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		peer:        peer,
		coordinator: c,
		logger:      c.logger.With("client", id),
		ctx:         ctx,
		cancel:      cancel,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session's worker has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// HandleMessage processes one raw client message.
func (s *Session) HandleMessage(data []byte) error {
	msg, err := ParseMessage(data)
	if err != nil {
		s.enqueue(func(ctx context.Context) { s.send(ctx, NewErrorMessage(err)) })
		return err
	}

	switch msg.Type {
	case MessageTypeInit:
		s.Init(msg.Path)
	default:
		s.logger.Debug(s.ctx, "Ignoring client message", "type", msg.Type)
	}
	return nil
}

// Init queues resolution and compilation of urlPath for this client.
func (s *Session) Init(urlPath string) {
	s.enqueue(func(ctx context.Context) {
		s.coordinator.initialize(ctx, s, urlPath)
	})
}

// Close unregisters the session and discards queued work. Results of a
// compile still in flight are dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.coordinator.disconnect(s)
		s.mutex.Lock()
		s.cancel()
		s.jobs = nil
		s.mutex.Unlock()
	})
}

func (s *Session) enqueue(j job) {
	s.mutex.Lock()
	if s.ctx.Err() != nil {
		s.mutex.Unlock()
		return
	}
	s.jobs = append(s.jobs, j)
	s.mutex.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) next() (job, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.jobs) == 0 || s.ctx.Err() != nil {
		return nil, false
	}
	j := s.jobs[0]
	s.jobs[0] = nil
	s.jobs = s.jobs[1:]
	return j, true
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			j, ok := s.next()
			if !ok {
				break
			}
			j(s.ctx)
		}
	}
}

func (s *Session) send(ctx context.Context, msg Message) {
	if ctx.Err() != nil {
		return
	}
	if err := s.peer.Send(ctx, msg); err != nil {
		s.logger.Debug(ctx, "Dropping message for client", "type", msg.Type, "error", err.Error())
	}
}
