package ui

import (
	"sync"
	"time"
)

// speedSampleInterval is the minimum spacing between throughput samples.
// Sampling faster than this turns batch jitter into noise.
const speedSampleInterval = 500 * time.Millisecond

// speedSmoothingFactor weights new samples in the rolling average.
const speedSmoothingFactor = 0.2

// speedMeter derives items/sec from progress counter deltas.
type speedMeter struct {
	lastCount int
	lastAt    time.Time
	current   float64
	avg       float64
	peak      float64
	samples   int
}

// observe records a new counter value, returning the sampled speed and
// whether a sample was actually taken.
func (m *speedMeter) observe(now time.Time, count int) (float64, bool) {
	elapsed := now.Sub(m.lastAt)
	if elapsed < speedSampleInterval {
		return 0, false
	}

	delta := count - m.lastCount
	m.lastCount = count
	m.lastAt = now
	if delta <= 0 {
		return 0, false
	}

	speed := float64(delta) / elapsed.Seconds()
	m.current = speed

	m.samples++
	if m.samples == 1 {
		m.avg = speed
	} else {
		m.avg = speedSmoothingFactor*speed + (1-speedSmoothingFactor)*m.avg
	}

	if speed > m.peak {
		m.peak = speed
	}

	return speed, true
}

// reset clears the meter for a new stage.
func (m *speedMeter) reset(now time.Time) {
	*m = speedMeter{lastAt: now}
}

// stats exports the meter state for display.
func (m *speedMeter) stats() SpeedStats {
	return SpeedStats{Current: m.current, Avg: m.avg, Peak: m.peak}
}

// SpeedStats contains speed metrics for display.
type SpeedStats struct {
	Current float64 // latest sample, items/sec
	Avg     float64 // rolling average
	Peak    float64 // maximum observed
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// ProgressTracker manages progress state across ingestion stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	// lastETA smooths ETA estimates across updates.
	lastETA time.Duration

	speed     speedMeter
	sparkline *Sparkline
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  now,
		stageStart: now,
		speed:      speedMeter{lastAt: now},
		sparkline:  NewSparkline(60),
	}
}

// SetStage transitions to a new stage, resetting per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = now
	p.lastETA = 0
	p.speed.reset(now)
	p.sparkline.Clear()
}

// Update updates progress within the current stage.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if file != "" {
		p.currentFile = file
	}

	if speed, sampled := p.speed.observe(time.Now(), current); sampled {
		p.sparkline.Add(speed)
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress as a fraction (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return fraction(p.current, p.total)
}

// ETA estimates remaining time in the current stage.
// Takes the write lock because the smoothed estimate is stateful.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns a snapshot of the current state.
// Takes the write lock because the smoothed ETA is stateful.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    fraction(p.current, p.total),
		ETA:         p.calculateETA(),
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       p.speed.stats(),
	}
}

// etaSmoothingFactor weights new ETA estimates: 30% new value, 70%
// previous, so the display does not jump between batches.
const etaSmoothingFactor = 0.3

// calculateETA estimates remaining stage time with exponential smoothing.
// Must be called with the write lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current <= 0 || p.total <= 0 || p.current >= p.total {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)

	raw := time.Duration(float64(elapsed) * (1 - progress) / progress)
	if raw < 0 {
		return 0
	}

	if p.lastETA > 0 {
		raw = time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	}
	p.lastETA = raw
	return raw
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return copyEvents(p.errors)
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return copyEvents(p.warnings)
}

func copyEvents(events []ErrorEvent) []ErrorEvent {
	out := make([]ErrorEvent, len(events))
	copy(out, events)
	return out
}

// RenderSparkline returns the throughput sparkline at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.sparkline == nil:
		return ""
	case width > 0:
		return p.sparkline.RenderWithWidth(width)
	}
	return p.sparkline.Render()
}

// SpeedStats returns current speed statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.stats()
}

// fraction returns current/total capped at 1.0, or 0 when total is 0.
func fraction(current, total int) float64 {
	if total == 0 {
		return 0.0
	}
	f := float64(current) / float64(total)
	if f > 1.0 {
		return 1.0
	}
	return f
}
