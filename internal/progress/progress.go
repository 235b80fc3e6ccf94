// Package progress renders task progress for interactive runs and degrades
// to structured logging (or nothing) everywhere else. Reporting is purely
// cosmetic: no behaviour may depend on it.
package progress

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Reporter receives coarse progress events. Implementations must tolerate
// concurrent calls: sampling workers advance the same task in parallel.
type Reporter interface {
	StartTask(name string, total int)
	Advance(n int)
	Note(msg string)
	FinishTask(err error)
}

// Nop drops all progress events.
type Nop struct{}

func (Nop) StartTask(string, int) {}
func (Nop) Advance(int)           {}
func (Nop) Note(string)           {}
func (Nop) FinishTask(error)      {}

// SlogReporter forwards progress events to a logger, for verbose
// non-interactive runs (piped output, CI).
type SlogReporter struct {
	Logger *slog.Logger
}

func (r SlogReporter) StartTask(name string, total int) {
	r.Logger.Info("Task started.", slog.String("task", name), slog.Int("total", total))
}

func (r SlogReporter) Advance(int) {}

func (r SlogReporter) Note(msg string) {
	r.Logger.Info(msg)
}

func (r SlogReporter) FinishTask(err error) {
	if err != nil {
		r.Logger.Error("Task finished with error.", "error", err)
		return
	}
	r.Logger.Info("Task finished.")
}

// --- Terminal UI ---

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	barStyle   = lipgloss.NewStyle().Padding(0, 1)
)

type taskStartedMsg struct {
	name  string
	total int
}

type advanceMsg struct{ n int }

type noteMsg struct{ text string }

type taskFinishedMsg struct{ err error }

type quitMsg struct{}

type model struct {
	spinner  spinner.Model
	bar      progress.Model
	task     string
	total    int
	current  int
	lastNote string
	finished bool
	err      error
	width    int
}

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-10, 60)
	case taskStartedMsg:
		m.task = msg.name
		m.total = msg.total
		m.current = 0
		m.finished = false
		m.err = nil
	case advanceMsg:
		m.current += msg.n
	case noteMsg:
		m.lastNote = msg.text
	case taskFinishedMsg:
		m.finished = true
		m.err = msg.err
	case quitMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.task == "" {
		return ""
	}
	header := titleStyle.Render(m.task)

	var body string
	switch {
	case m.err != nil:
		body = errStyle.Render(fmt.Sprintf("failed: %v", m.err))
	case m.finished:
		body = doneStyle.Render("done")
	case m.total > 0:
		ratio := float64(m.current) / float64(m.total)
		body = fmt.Sprintf("%s %s %d/%d",
			m.spinner.View(), barStyle.Render(m.bar.ViewAs(ratio)), m.current, m.total)
	default:
		body = m.spinner.View()
	}

	out := header + "\n" + body + "\n"
	if m.lastNote != "" {
		out += noteStyle.Render(m.lastNote) + "\n"
	}
	return out
}

// UI owns a running bubbletea program and exposes it as a Reporter.
type UI struct {
	program *tea.Program
}

// NewUI builds the terminal UI. Call Run from the main goroutine and use
// Reporter from workers.
func NewUI() *UI {
	return &UI{program: tea.NewProgram(newModel())}
}

// Run blocks until the UI quits.
func (u *UI) Run() error {
	_, err := u.program.Run()
	return err
}

// Quit asks the UI to exit once pending messages render.
func (u *UI) Quit() {
	u.program.Send(quitMsg{})
}

func (u *UI) StartTask(name string, total int) {
	u.program.Send(taskStartedMsg{name: name, total: total})
}

func (u *UI) Advance(n int) {
	u.program.Send(advanceMsg{n: n})
}

func (u *UI) Note(msg string) {
	u.program.Send(noteMsg{text: msg})
}

func (u *UI) FinishTask(err error) {
	u.program.Send(taskFinishedMsg{err: err})
}
