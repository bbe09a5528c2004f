// Package progress shows hashing progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/jamesainslie/changeguard/pkg/changeguard/hasher"
)

// Reporter receives progress events. Advance may be called from several
// goroutines.
type Reporter interface {
	Start(label string, total int)
	Advance(path string, failed bool)
	Finish()
}

// Hook adapts r to a hasher.ProgressFunc.
func Hook(r Reporter) hasher.ProgressFunc {
	return func(rec hasher.Record) {
		r.Advance(rec.Path, !rec.OK())
	}
}

// New picks a Reporter for mode: "always" draws on w, "never" draws nothing
// and "auto" draws only when w is a terminal.
func New(mode string, w *os.File) Reporter {
	switch mode {
	case "always":
		return NewTUI(w)
	case "never":
		return Noop{}
	}
	if w != nil && (isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())) {
		return NewTUI(w)
	}
	return Noop{}
}

// Noop discards progress.
type Noop struct{}

func (Noop) Start(string, int) {}

func (Noop) Advance(string, bool) {}

func (Noop) Finish() {}

// TUI renders progress with a bubbletea program.
type TUI struct {
	out io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI returns a TUI drawing on out.
func NewTUI(out io.Writer) *TUI {
	return &TUI{out: out}
}

// Start begins a new progress display, finishing any previous one.
func (t *TUI) Start(label string, total int) {
	t.Finish()

	t.mu.Lock()
	defer t.mu.Unlock()

	p := tea.NewProgram(NewModel(label, total), tea.WithOutput(t.out), tea.WithInput(nil))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	t.program = p
	t.done = done
}

// Advance records one finished path.
func (t *TUI) Advance(path string, failed bool) {
	t.mu.Lock()
	p := t.program
	t.mu.Unlock()
	if p != nil {
		p.Send(AdvanceMsg{Path: path, Failed: failed})
	}
}

// Finish stops the display and waits for the terminal to be restored.
func (t *TUI) Finish() {
	t.mu.Lock()
	p, done := t.program, t.done
	t.program, t.done = nil, nil
	t.mu.Unlock()

	if p == nil {
		return
	}
	p.Send(FinishMsg{})
	<-done
}

// AdvanceMsg reports one finished path.
type AdvanceMsg struct {
	Path   string
	Failed bool
}

// FinishMsg ends the display.
type FinishMsg struct{}

const defaultBarWidth = 40

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Model is the bubbletea model behind TUI.
type Model struct {
	label    string
	total    int
	done     int
	failed   int
	current  string
	finished bool
	width    int

	spinner spinner.Model
	bar     bar.Model
}

// NewModel returns a model for total paths.
func NewModel(label string, total int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = labelStyle

	return Model{
		label:   label,
		total:   total,
		width:   80,
		spinner: s,
		bar:     bar.New(bar.WithDefaultGradient(), bar.WithWidth(defaultBarWidth), bar.WithoutPercentage()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(defaultBarWidth, max(10, msg.Width/3))
		return m, nil

	case AdvanceMsg:
		m.done++
		if msg.Failed {
			m.failed++
		}
		m.current = msg.Path
		return m, nil

	case FinishMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(labelStyle.Render(m.label))
	b.WriteString(" ")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(" ")
	b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	if m.failed > 0 {
		b.WriteString(" ")
		b.WriteString(failStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.current != "" {
		room := m.width - lipgloss.Width(b.String()) - 2
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render(truncate(m.current, room)))
	}
	return b.String()
}

// Percent returns the completed fraction in [0, 1].
func (m Model) Percent() float64 {
	if m.total <= 0 {
		return 1
	}
	return min(1, float64(m.done)/float64(m.total))
}

// truncate shortens s from the left to at most width cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[len(s)-width:]
	}
	return "..." + s[len(s)-width+3:]
}
