package ui

import "strings"

// Sparkline renders a text-based throughput chart using Unicode block
// characters. Samples live in a ring buffer; rendering scales them
// against the maximum seen in the buffer.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
	max     float64
}

// SparklineChars are the block characters used for rendering, from
// lowest to highest.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{
		samples: make([]float64, width),
		width:   width,
	}
}

// Add appends a sample, evicting the oldest when the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if value > s.max {
		s.max = value
	}

	// The max only grows as samples arrive; rescan once per buffer
	// cycle so evicted peaks stop dominating the scale.
	if s.count%s.width == 0 {
		s.rescanMax()
	}
}

// rescanMax recomputes the maximum over the live buffer.
func (s *Sparkline) rescanMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// ordered returns the live samples oldest-first.
func (s *Sparkline) ordered() []float64 {
	n := s.count
	if n > s.width {
		n = s.width
	}

	out := make([]float64, n)
	start := 0
	if s.count >= s.width {
		start = s.head
	}
	for i := 0; i < n; i++ {
		out[i] = s.samples[(start+i)%s.width]
	}
	return out
}

// Render returns the sparkline at its native width.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.width)
}

// RenderWithWidth renders the most recent samples into the given width,
// left-padding with blanks while the buffer is still filling.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > s.width {
		width = s.width
	}

	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	if s.max <= 0 {
		s.rescanMax()
	}

	live := s.ordered()
	if len(live) > width {
		live = live[len(live)-width:]
	}

	var sb strings.Builder
	sb.Grow(width * 3)

	for _, v := range live {
		sb.WriteRune(SparklineChars[s.level(v)])
	}
	for i := len(live); i < width; i++ {
		sb.WriteRune(' ')
	}

	return sb.String()
}

// level maps a sample to a block character index.
func (s *Sparkline) level(value float64) int {
	if s.max <= 0 {
		return 0
	}
	idx := int(value / s.max * float64(len(SparklineChars)-1))
	if idx < 0 {
		return 0
	}
	if idx >= len(SparklineChars) {
		return len(SparklineChars) - 1
	}
	return idx
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current maximum value.
func (s *Sparkline) Max() float64 {
	return s.max
}
