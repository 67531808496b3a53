package daemon

import (
	"sync"
	"time"
)

// idleMonitor fires a callback once after a fixed period without
// activity. The daemon uses it to shut down and release the data
// directory lock when nobody is asking anything.
type idleMonitor struct {
	timeout time.Duration
	onIdle  func()

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
}

func newIdleMonitor(timeout time.Duration, onIdle func()) *idleMonitor {
	return &idleMonitor{timeout: timeout, onIdle: onIdle}
}

// Start arms the timer. The clock runs from now, not from the first
// request: a daemon nobody ever queries still shuts down.
func (m *idleMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.arm()
}

// Touch resets the idle clock. Called on each ask or search. Before
// Start it does nothing.
func (m *idleMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		return
	}
	m.arm()
}

// arm (re)schedules the callback. Caller holds mu.
func (m *idleMonitor) arm() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, m.fire)
}

// fire is one-shot: once idle triggers, later touches are ignored.
func (m *idleMonitor) fire() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.onIdle()
}

// Stop cancels any pending callback. Idempotent.
func (m *idleMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}
