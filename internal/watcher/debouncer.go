package watcher

import (
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. A batch is flushed once
// the delay has elapsed with no further event; batches are flushed in
// the order they were collected.
type Debouncer struct {
	delay      time.Duration
	flush      func([]ChangeEvent)
	timer      *time.Timer
	pending    []ChangeEvent
	generation uint64
	stopped    bool
	mutex      sync.Mutex
	flushMutex sync.Mutex
}

// NewDebouncer creates a debouncer calling flush with each coalesced batch.
func NewDebouncer(delay time.Duration, flush func([]ChangeEvent)) *Debouncer {
	return &Debouncer{delay: delay, flush: flush}
}

// Add records an event and restarts the quiet window.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}

	d.pending = append(d.pending, event)
	d.generation++
	generation := d.generation

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(generation)
	})
}

// Stop discards pending events; later events are ignored.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}

// fire flushes only if no event arrived after the timer for generation was
// armed. A timer whose Stop lost the race ends up here with a stale
// generation and does nothing.
func (d *Debouncer) fire(generation uint64) {
	d.mutex.Lock()
	if d.stopped || generation != d.generation || len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}
	events := Coalesce(d.pending)
	d.pending = nil

	// Taking flushMutex before releasing mutex keeps flushes in batch order.
	d.flushMutex.Lock()
	d.mutex.Unlock()
	defer d.flushMutex.Unlock()

	d.flush(events)
}

// Coalesce folds a raw event sequence into one event per path, in order of
// first appearance.
//
// A rename of a path followed by a create of another path pairs into a
// single EventTypeRenamed carrying OldPath. A rename followed by a create
// of the same path is an atomic save and becomes a modification. A rename
// with no matching create means the file left the watched tree and becomes
// a deletion. A directory rename only pairs with a directory create.
func Coalesce(events []ChangeEvent) []ChangeEvent {
	paired := pairRenames(events)

	index := make(map[string]int, len(paired))
	result := make([]ChangeEvent, 0, len(paired))

	for _, event := range paired {
		i, seen := index[event.Path]
		if !seen {
			index[event.Path] = len(result)
			result = append(result, event)
			continue
		}
		result[i] = merge(result[i], event)
	}

	return result
}

func pairRenames(events []ChangeEvent) []ChangeEvent {
	used := make([]bool, len(events))
	out := make([]ChangeEvent, 0, len(events))

	for i, event := range events {
		if used[i] {
			continue
		}
		if event.Type != EventTypeRenamed || event.OldPath != "" {
			out = append(out, event)
			continue
		}

		target := -1
		for j := i + 1; j < len(events); j++ {
			if !used[j] && events[j].Type == EventTypeCreated && events[j].IsDir == event.IsDir {
				target = j
				break
			}
		}

		switch {
		case target < 0:
			event.Type = EventTypeDeleted
			out = append(out, event)
		case events[target].Path == event.Path:
			used[target] = true
			modified := events[target]
			modified.Type = EventTypeModified
			out = append(out, modified)
		default:
			used[target] = true
			renamed := events[target]
			renamed.Type = EventTypeRenamed
			renamed.OldPath = event.Path
			out = append(out, renamed)
		}
	}

	return out
}

func merge(prev, next ChangeEvent) ChangeEvent {
	switch {
	case prev.Type == EventTypeCreated && next.Type == EventTypeModified:
		next.Type = EventTypeCreated
	case prev.Type == EventTypeRenamed && next.Type == EventTypeModified:
		next.Type = EventTypeRenamed
		next.OldPath = prev.OldPath
	case prev.Type == EventTypeDeleted && next.Type == EventTypeCreated:
		next.Type = EventTypeModified
	}
	return next
}
