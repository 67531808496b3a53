package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages the renderer feeds into the bubbletea program.
type (
	progressUpdateMsg ProgressEvent
	errorMsg          ErrorEvent
	completeMsg       CompletionStats
	tickMsg           time.Time
)

// stageLabels is the pipeline in display order with short names for
// the indicator row.
var stageLabels = []struct {
	stage Stage
	label string
}{
	{StageScanning, "Scan"},
	{StageParsing, "Parse"},
	{StageChunking, "Chunk"},
	{StageEmbedding, "Embed"},
	{StageIndexing, "Index"},
}

// ingestModel is the bubbletea model for ingestion progress.
type ingestModel struct {
	tracker *ProgressTracker
	styles  Styles
	docsDir string

	spinner     spinner.Model
	progressBar progress.Model

	width    int
	height   int
	quitting bool
	complete bool
	stats    CompletionStats
}

// newIngestModel creates a new ingestion model.
func newIngestModel(tracker *ProgressTracker, docsDir string) *ingestModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan))

	// Solid cyan fill, no gradient; the percentage renders separately.
	bar := progress.New(
		progress.WithSolidFill(ColorCyan),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &ingestModel{
		tracker:     tracker,
		styles:      DefaultStyles(),
		docsDir:     docsDir,
		spinner:     sp,
		progressBar: bar,
		width:       80,
		height:      24,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// tickCmd drives the ETA and sparkline refresh at 10Hz.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = msg.Width - 20
		if m.progressBar.Width < 20 {
			m.progressBar.Width = 20
		}

	case progressUpdateMsg, errorMsg:
		// The tracker already carries the data; the message only
		// triggers a redraw.
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.summaryView()
	}

	width := m.contentWidth()
	stats := m.tracker.Stats()
	rule := m.styles.Border.Render(strings.Repeat("─", width))

	sections := []string{
		m.stageRow(stats.Stage),
		rule,
		m.progressBlock(stats),
		m.speedRow(stats),
		rule,
		m.throughputRow(width),
	}
	if stats.CurrentFile != "" {
		sections = append(sections, rule,
			m.styles.Dim.Render(truncateFilePath(stats.CurrentFile, width-2)))
	}

	title := "RigQA Indexer"
	if m.docsDir != "" {
		title = fmt.Sprintf("RigQA Indexer • %s", m.docsDir)
	}
	panel := m.titledPanel(title, strings.Join(sections, "\n"), width)

	return panel + "\n" + m.statusBar(stats)
}

// contentWidth is the terminal width minus panel borders, floored so
// narrow terminals stay readable.
func (m *ingestModel) contentWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

// stageRow renders the pipeline indicators: done stages get a filled
// dot, the active stage the spinner, pending stages a hollow dot.
func (m *ingestModel) stageRow(current Stage) string {
	parts := make([]string, 0, len(stageLabels))
	for _, s := range stageLabels {
		switch {
		case s.stage < current:
			parts = append(parts, m.styles.Success.Render("● "+s.label))
		case s.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.label))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.label))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// progressBlock renders the bar, percentage, and unit counts.
func (m *ingestModel) progressBlock(stats ProgressStats) string {
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...\n%s",
			m.spinner.View(), stats.Stage.String(),
			m.styles.Dim.Render("Preparing..."))
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	counts := m.styles.Label.Render(fmt.Sprintf("%d / %d", stats.Current, stats.Total))
	return fmt.Sprintf("%s  %s\n%s", bar, pct, counts)
}

// speedRow renders throughput numbers and the ETA when one is known.
func (m *ingestModel) speedRow(stats ProgressStats) string {
	speed := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}

	parts := []string{m.styles.Speed.Render(speed)}
	if stats.ETA > 0 {
		parts = append(parts, m.styles.Label.Render("ETA: "+formatDuration(stats.ETA)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

// throughputRow renders the sparkline scaled to the panel width.
func (m *ingestModel) throughputRow(width int) string {
	sparkWidth := width - 10
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	spark := m.styles.Sparkline.Render(m.tracker.RenderSparkline(sparkWidth))
	return spark + " " + m.styles.Dim.Render("throughput ─")
}

// titledPanel wraps content in a rounded border with the title above.
func (m *ingestModel) titledPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(content),
	)
}

// statusBar renders warning and error counts under the panel, or just
// the quit hint when the run is clean.
func (m *ingestModel) statusBar(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}

	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}
	sep := m.styles.Dim.Render("  │  ")
	return strings.Join(parts, sep) + m.styles.Dim.Render("  │  q to quit")
}

// summaryView renders the completion panel.
func (m *ingestModel) summaryView() string {
	width := m.contentWidth()

	row := func(label string, value string) string {
		return fmt.Sprintf("%s %s", m.styles.Label.Render(label), m.styles.Active.Render(value))
	}

	lines := []string{
		m.styles.Success.Render("✓ Indexing Complete"),
		"",
		row("Documents:", fmt.Sprintf("%d", m.stats.Documents)),
		row("Chunks:   ", fmt.Sprintf("%d", m.stats.Chunks)),
		row("Duration: ", formatDuration(m.stats.Duration)),
	}

	if speed := m.tracker.SpeedStats(); speed.Avg > 0 {
		lines = append(lines, fmt.Sprintf("%s %s",
			m.styles.Label.Render("Avg Speed:"),
			m.styles.Speed.Render(fmt.Sprintf("%.0f chunks/sec", speed.Avg))))
	}

	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
		if m.stats.Errors > 0 {
			lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
		}
		if m.stats.Warnings > 0 {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorCyan)).
		Padding(1, 2).
		Width(width)

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders a duration for display, rounded to seconds.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		min, sec := int(d.Minutes()), int(d.Seconds())%60
		if sec == 0 {
			return fmt.Sprintf("%dm", min)
		}
		return fmt.Sprintf("%dm %ds", min, sec)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncateFilePath shortens a path to maxLen, preferring to keep the
// filename intact and as much of the directory prefix as fits.
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		if maxLen < 4 {
			return "..."
		}
		return "..." + path[len(path)-maxLen+3:]
	}

	filename := path[slash+1:]
	if len(filename)+4 > maxLen {
		return "..." + filename[len(filename)-maxLen+3:]
	}

	// 4 budgets the ".../" marker in front of the kept prefix.
	keep := maxLen - len(filename) - 4
	prefix := path[:slash]
	if keep <= 0 {
		return ".../" + filename
	}
	if len(prefix) <= keep {
		return path
	}
	return "..." + prefix[len(prefix)-keep:] + "/" + filename
}

// TUIRenderer drives the bubbletea program from pipeline events.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	tracker *ProgressTracker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

var _ Renderer = (*TUIRenderer)(nil)

// NewTUIRenderer creates a TUI renderer. Returns an error when the
// output is not a terminal; callers fall back to the plain renderer.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIngestModel(tracker, cfg.DocsDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.tracker.Stats().Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)

	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, 0)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. The program gets a grace period to unwind
// the alternate screen; a stuck terminal must not hang shutdown.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.program != nil {
		r.program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}
