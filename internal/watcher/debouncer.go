package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events so a burst of saves triggers
// one re-ingest instead of many. Events for the same path within the
// window merge:
//   - CREATE then MODIFY stays CREATE (the file is still new)
//   - CREATE then DELETE cancels out (the file never really existed)
//   - MODIFY then DELETE becomes DELETE (the file is gone)
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	tracked map[string]*trackedEvent
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

// trackedEvent remembers the first operation seen for a path so the
// merge of the whole burst can be decided, not just the last pair.
type trackedEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		tracked: make(map[string]*trackedEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event, merging it with any pending event for the same
// path, and (re)arms the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	existing, ok := d.tracked[event.Path]
	if !ok {
		d.tracked[event.Path] = &trackedEvent{event: event, firstOp: event.Operation}
		d.armFlush()
		return
	}

	merged, keep := merge(existing.firstOp, event)
	if !keep {
		delete(d.tracked, event.Path)
	} else {
		existing.event = merged
	}
	d.armFlush()
}

// merge applies the coalescing rules to the first operation of a burst
// and the newest event. keep=false means the pair cancels out.
func merge(first Operation, next FileEvent) (FileEvent, bool) {
	switch {
	case first == OpCreate && next.Operation == OpModify:
		next.Operation = OpCreate
		return next, true
	case first == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

// armFlush schedules a flush after the window. Called with the lock held.
func (d *Debouncer) armFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits all pending events as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.tracked) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.tracked))
	for _, te := range d.tracked {
		batch = append(batch, te.event)
	}
	d.tracked = make(map[string]*trackedEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
