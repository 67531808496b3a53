package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/session"
)

// Asker answers one question. *qa.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string, opts qa.AskOptions) (*qa.Response, error)
}

// AnswerLength is a response length preset.
type AnswerLength struct {
	Name      string
	MaxTokens int
}

// AnswerLengths are the presets the chat cycles through. They match
// the ask command's --length flag.
var AnswerLengths = []AnswerLength{
	{Name: "short", MaxTokens: 200},
	{Name: "medium", MaxTokens: 400},
	{Name: "long", MaxTokens: 800},
}

// defaultLengthIndex selects medium on startup.
const defaultLengthIndex = 1

// chatModes are the retrieval modes the chat cycles through.
var chatModes = []search.Mode{search.ModeAuto, search.ModeSemantic, search.ModeHybrid}

// ChatConfig configures an interactive chat.
type ChatConfig struct {
	// Asker answers questions. Required.
	Asker Asker

	// Session is the transcript being extended. Nil starts a fresh one.
	Session *session.Session

	// Sessions persists the transcript after every answer. Nil
	// disables persistence.
	Sessions *session.Manager

	// Output receives the TUI. Defaults to stdout.
	Output io.Writer

	// TopK caps retrieval per question. Non-positive keeps the engine
	// default.
	TopK int

	// NoColor disables styling.
	NoColor bool
}

// RunChat runs the interactive chat TUI until the user quits.
func RunChat(ctx context.Context, cfg ChatConfig) error {
	if cfg.Asker == nil {
		return errors.New("asker is required")
	}
	if cfg.Session == nil {
		cfg.Session = session.New()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	model := newChatModel(cfg)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if f, ok := cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	_, err := tea.NewProgram(model, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// chatEntry is one rendered exchange.
type chatEntry struct {
	question string
	answer   string
	sources  []string
	method   string
	elapsed  time.Duration
	failed   bool
}

// chatAnswerMsg carries an answer back into the update loop.
type chatAnswerMsg struct {
	question string
	resp     *qa.Response
	err      error
	elapsed  time.Duration
}

// chatModel is the bubbletea model for the chat.
type chatModel struct {
	cfg     ChatConfig
	styles  Styles
	input   textinput.Model
	view    viewport.Model
	spinner spinner.Model

	entries  []chatEntry
	modeIdx  int
	lenIdx   int
	thinking bool
	pending  string
	status   string
	ready    bool
	width    int
	height   int
}

// newChatModel seeds the model, replaying resumed transcript turns
// into the history.
func newChatModel(cfg ChatConfig) *chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the indexed documents"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan))

	m := &chatModel{
		cfg:     cfg,
		styles:  GetStyles(cfg.NoColor || DetectNoColor()),
		input:   ti,
		spinner: sp,
		lenIdx:  defaultLengthIndex,
		width:   80,
		height:  24,
	}

	for _, turn := range cfg.Session.Turns {
		m.entries = append(m.entries, chatEntry{
			question: turn.Question,
			answer:   turn.Answer,
			sources:  turn.Sources,
			method:   turn.SearchMethod,
		})
	}

	return m
}

// Init implements tea.Model.
func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		case "tab":
			m.modeIdx = (m.modeIdx + 1) % len(chatModes)
			return m, nil
		case "shift+tab":
			m.lenIdx = (m.lenIdx + 1) % len(AnswerLengths)
			return m, nil
		}

	case chatAnswerMsg:
		m.finishAnswer(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	// Everything else feeds the input line and the history viewport,
	// so typing and scrolling coexist.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit starts answering the typed question.
func (m *chatModel) submit() tea.Cmd {
	if m.thinking {
		return nil
	}
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return nil
	}

	m.input.Reset()
	m.pending = question
	m.thinking = true
	m.status = ""
	m.refresh()

	mode := chatModes[m.modeIdx]
	maxTokens := AnswerLengths[m.lenIdx].MaxTokens
	topK := m.cfg.TopK
	asker := m.cfg.Asker

	ask := func() tea.Msg {
		start := time.Now()
		resp, err := asker.Ask(context.Background(), question, qa.AskOptions{
			TopK:      topK,
			Mode:      mode,
			MaxTokens: maxTokens,
		})
		return chatAnswerMsg{question: question, resp: resp, err: err, elapsed: time.Since(start)}
	}

	return tea.Batch(m.spinner.Tick, ask)
}

// finishAnswer records the exchange and persists the transcript.
func (m *chatModel) finishAnswer(msg chatAnswerMsg) {
	m.thinking = false
	m.pending = ""

	entry := chatEntry{question: msg.question, elapsed: msg.elapsed}
	if msg.err != nil {
		entry.answer = msg.err.Error()
		entry.failed = true
	} else {
		entry.answer = msg.resp.Answer
		entry.sources = sourceDocuments(msg.resp.Sources)
		entry.method = msg.resp.SearchMethod
	}
	m.entries = append(m.entries, entry)

	if msg.err == nil {
		if err := persistTurn(m.cfg.Session, m.cfg.Sessions, msg.resp); err != nil {
			m.status = fmt.Sprintf("session not saved: %v", err)
		}
	}

	m.refresh()
}

// layout sizes the viewport against the current terminal.
func (m *chatModel) layout() {
	// Header, input panel (3 lines with border), help line, spacers.
	reserved := 7
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}

	if !m.ready {
		m.view = viewport.New(w, h)
		m.ready = true
	} else {
		m.view.Width = w
		m.view.Height = h
	}
	m.input.Width = w - len(m.input.Prompt) - 1

	m.refresh()
}

// refresh re-renders the history into the viewport, pinned to the
// latest exchange.
func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(m.renderHistory())
	m.view.GotoBottom()
}

// renderHistory renders all exchanges plus the in-flight question.
func (m *chatModel) renderHistory() string {
	if len(m.entries) == 0 && !m.thinking {
		return m.styles.Dim.Render("Ask a question about the indexed documents.")
	}

	wrap := lipgloss.NewStyle().Width(m.view.Width)
	var blocks []string

	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e, wrap))
	}
	if m.thinking {
		blocks = append(blocks,
			m.styles.Active.Render("You: ")+wrap.Render(m.pending)+"\n"+
				m.spinner.View()+m.styles.Dim.Render(" thinking"))
	}

	return strings.Join(blocks, "\n\n")
}

// renderEntry renders one exchange.
func (m *chatModel) renderEntry(e chatEntry, wrap lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Active.Render("You: "))
	sb.WriteString(wrap.Render(e.question))
	sb.WriteString("\n")

	if e.failed {
		sb.WriteString(m.styles.Error.Render(wrap.Render("error: " + e.answer)))
	} else {
		sb.WriteString(wrap.Render(e.answer))
	}

	var meta []string
	if len(e.sources) > 0 {
		meta = append(meta, "sources: "+strings.Join(e.sources, ", "))
	}
	if e.method != "" {
		meta = append(meta, e.method)
	}
	if e.elapsed > 0 {
		meta = append(meta, e.elapsed.Round(100*time.Millisecond).String())
	}
	if len(meta) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Dim.Render(wrap.Render(strings.Join(meta, " · "))))
	}

	return sb.String()
}

// View implements tea.Model.
func (m *chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "rigqa chat"
	if t := m.cfg.Session.Title; t != "" {
		title += " · " + t
	}
	header := m.styles.Header.Render(title)

	history := m.styles.Panel.Width(m.view.Width + 2).Render(m.view.View())
	input := m.styles.Panel.Width(m.view.Width + 2).Render(m.input.View())

	return header + "\n" + history + "\n" + input + "\n" + m.renderHelp()
}

// renderHelp renders the footer: active settings, key hints, and any
// transient status.
func (m *chatModel) renderHelp() string {
	parts := []string{
		fmt.Sprintf("mode: %s (tab)", chatModes[m.modeIdx]),
		fmt.Sprintf("length: %s (shift+tab)", AnswerLengths[m.lenIdx].Name),
		"↑/↓ scroll",
		"esc quit",
	}
	help := m.styles.Dim.Render(strings.Join(parts, " · "))

	if m.status != "" {
		return help + "\n" + m.styles.Warning.Render(m.status)
	}
	return help
}

// sourceDocuments returns unique source document names in rank order.
func sourceDocuments(sources []qa.Source) []string {
	seen := make(map[string]struct{}, len(sources))
	var docs []string
	for _, s := range sources {
		if _, ok := seen[s.DocumentID]; ok {
			continue
		}
		seen[s.DocumentID] = struct{}{}
		docs = append(docs, s.DocumentID)
	}
	return docs
}

// persistTurn appends the exchange to the transcript and saves it.
func persistTurn(sess *session.Session, mgr *session.Manager, resp *qa.Response) error {
	sess.Append(session.Turn{
		Question:     resp.Question,
		Answer:       resp.Answer,
		Sources:      sourceDocuments(resp.Sources),
		SearchMethod: resp.SearchMethod,
	})
	if mgr == nil {
		return nil
	}
	return mgr.Save(sess)
}
