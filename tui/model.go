// Package tui 实验的终端界面：开始前显示实时波形和信号质量，开始后显示实验阶段提示
package tui

import (
	"fmt"
	"strings"
	"time"

	"binaural"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type (
	msgLiveTick    struct{}
	msgStatus      binaural.StatusEvent
	msgClearStatus struct{ seq int }
	msgProtocol    binaural.Outcome
	msgFinalized   struct {
		report binaural.Report
		err    error
	}
)

// Result 界面退出时的会话结果
type Result struct {
	Started   bool
	Outcome   binaural.Outcome
	Report    binaural.Report
	Err       error // 导出错误
	Finalized bool
}

type model struct {
	exp  *binaural.Experiment
	keys keyMap
	help help.Model
	spin spinner.Model

	width int

	frame    binaural.Frame
	hasFrame bool

	running   bool
	status    binaural.StatusEvent
	hasStatus bool
	statusSeq int
	since     time.Time

	result Result
	notice string
}

func newModel(exp *binaural.Experiment) *model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(nord8)
	return &model{
		exp:   exp,
		keys:  defaultKeys(),
		help:  help.New(),
		spin:  sp,
		width: 80,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.scheduleLiveTick(), m.spin.Tick)
}

func (m *model) scheduleLiveTick() tea.Cmd {
	return tea.Tick(m.exp.Config().View.UpdateInterval, func(time.Time) tea.Msg { return msgLiveTick{} })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// 实验开始后不能中途退出
			if m.running && !m.result.Finalized {
				m.notice = "experiment in progress, it will finish on its own"
				return m, nil
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			if m.running {
				return m, nil
			}
			if m.exp.StartProtocol() {
				m.running = true
				m.result.Started = true
				m.since = time.Now()
				m.notice = ""
			}
			return m, nil
		}
		return m, nil

	case msgLiveTick:
		if m.running || m.exp.View.Halted() {
			return m, nil
		}
		if frame, ok := m.exp.View.Tick(); ok {
			m.frame, m.hasFrame = frame, true
		}
		return m, m.scheduleLiveTick()

	case msgStatus:
		m.status = binaural.StatusEvent(msg)
		m.hasStatus = true
		m.statusSeq++
		m.since = time.Now()
		seq := m.statusSeq
		return m, tea.Tick(m.status.Duration, func(time.Time) tea.Msg { return msgClearStatus{seq: seq} })

	case msgClearStatus:
		// 只清除仍在显示的那条提示
		if msg.seq == m.statusSeq {
			m.hasStatus = false
		}
		return m, nil

	case msgProtocol:
		m.result.Outcome = binaural.Outcome(msg)
		return m, m.finalize()

	case msgFinalized:
		m.result.Report, m.result.Err = msg.report, msg.err
		m.result.Finalized = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// finalize 导出在 tea.Cmd 的 goroutine 中执行，不阻塞界面
func (m *model) finalize() tea.Cmd {
	exp := m.exp
	return func() tea.Msg {
		report, err := exp.Finalize()
		return msgFinalized{report: report, err: err}
	}
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Binaural experiment  subject %s", m.exp.Subject())))
	b.WriteString("\n")

	switch {
	case !m.running:
		b.WriteString(sectionStyle.Render("Live signal"))
		b.WriteString("\n")
		if m.hasFrame {
			b.WriteString(renderFrame(m.frame, m.width))
		} else {
			b.WriteString(m.spin.View() + " waiting for signal...")
		}
	case m.hasStatus:
		elapsed := time.Since(m.since).Truncate(time.Second)
		b.WriteString(statusStyle.Render(m.status.Text))
		b.WriteString("\n")
		b.WriteString(faintStyle.Render(fmt.Sprintf("%s / %s", elapsed, m.status.Duration)))
	case !m.result.Finalized:
		b.WriteString(statusStyle.Render(m.spin.View() + " saving session..."))
	}

	if m.result.Outcome.Err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("protocol aborted: " + m.result.Outcome.Err.Error()))
	}
	if m.result.Finalized {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Session saved"))
		b.WriteString("\n")
		b.WriteString(renderReport(m.result.Report))
		if m.result.Err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render("export: " + m.result.Err.Error()))
		}
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(faintStyle.Render(m.notice))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Run 运行界面直到用户退出；协议状态通过 Program.Send 送到界面 goroutine
func Run(exp *binaural.Experiment, opts ...tea.ProgramOption) (Result, error) {
	m := newModel(exp)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	exp.Controller.OnStatus = func(ev binaural.StatusEvent) { p.Send(msgStatus(ev)) }
	exp.Controller.OnComplete = func(o binaural.Outcome) { p.Send(msgProtocol(o)) }

	final, err := p.Run()
	if err != nil {
		return m.result, fmt.Errorf("tui: %w", err)
	}
	return final.(*model).result, nil
}
