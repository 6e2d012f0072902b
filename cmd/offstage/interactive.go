package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/offstagehq/offstage/loader"
	"github.com/offstagehq/offstage/render"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	phaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const tickInterval = 16 * time.Millisecond

type interactiveModel struct {
	cfg sessionConfig

	s        *session
	err      error
	phase    string
	running  bool
	quitting bool

	frameStart time.Time
	lastFrame  time.Duration
	totalFrame time.Duration
	frameCount int64

	loading  bool
	loadSess *loader.Session
	loaded   int
	toLoad   int
	lastItem string
	bar      progress.Model
}

func newInteractiveModel(cfg sessionConfig) *interactiveModel {
	return &interactiveModel{
		cfg:     cfg,
		phase:   "UNINITIALIZED",
		running: true,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

type sessionMsg struct {
	s   *session
	err error
}

type phaseMsg struct {
	ev render.LifecycleEvent
	ok bool
}

type progressMsg struct {
	p    loader.Progress
	done bool
}

type frameTickMsg time.Time

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.bringUp, frameTick())
}

func (m *interactiveModel) bringUp() tea.Msg {
	s, err := newSession(context.Background(), m.cfg)
	return sessionMsg{s: s, err: err}
}

func frameTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

func waitPhase(c <-chan render.LifecycleEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c
		return phaseMsg{ev: ev, ok: ok}
	}
}

func waitProgress(sess *loader.Session) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-sess.Completed()
		return progressMsg{p: p, done: !ok}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.s != nil {
				m.s.app.Dispose(context.Background())
			}
			return m, tea.Quit

		case " ":
			m.running = !m.running

		case "l":
			if m.s != nil && !m.loading && len(m.cfg.resources) > 0 {
				sess, err := m.s.app.LoadResources(context.Background(), m.cfg.resources, loader.DefaultOptions())
				if err != nil {
					m.err = err
					return m, nil
				}
				m.loading = true
				m.loadSess = sess
				m.loaded, m.toLoad = 0, len(m.cfg.resources)
				return m, waitProgress(sess)
			}
		}

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.s = msg.s
		return m, waitPhase(m.s.app.Lifecycle())

	case phaseMsg:
		if !msg.ok {
			// Worker gone; nothing further arrives.
			return m, nil
		}
		m.phase = msg.ev.Phase
		switch msg.ev.Phase {
		case "UPDATE_STARTED":
			m.frameStart = time.Now()
		case "UPDATE_ENDED":
			if !m.frameStart.IsZero() {
				m.lastFrame = time.Since(m.frameStart)
				m.totalFrame += m.lastFrame
				m.frameCount++
			}
		}
		return m, waitPhase(m.s.app.Lifecycle())

	case progressMsg:
		if msg.done {
			m.loading = false
			return m, nil
		}
		m.loaded = msg.p.LoadedCount
		m.toLoad = msg.p.ToLoadCount
		m.lastItem = msg.p.Source.Source
		if msg.p.Error != "" {
			m.lastItem += " (" + msg.p.Error + ")"
		}
		return m, waitProgress(m.loadSess)

	case frameTickMsg:
		if m.s != nil && m.running && !m.quitting {
			m.s.timer.Tick()
		}
		return m, frameTick()
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			helpStyle.Render("q quit")
	}
	if m.s == nil {
		return "Bringing up session..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("offstage"))
	b.WriteString(" ")
	b.WriteString(phaseStyle.Render(m.phase))
	b.WriteString("\n\n")

	surf := m.s.app.Surface()
	w, h := surf.Size()
	b.WriteString(labelStyle.Render("Surface  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s %gx%g", surf.Name(), w, h)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Frames   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.s.renderer.Frames())))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Frame    "))
	if m.frameCount > 0 {
		avg := m.totalFrame / time.Duration(m.frameCount)
		b.WriteString(valueStyle.Render(fmt.Sprintf("%v last, %v avg", m.lastFrame, avg)))
	} else {
		b.WriteString(valueStyle.Render("-"))
	}
	b.WriteString("\n")

	if m.toLoad > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Loading  "))
		b.WriteString(m.bar.ViewAs(float64(m.loaded) / float64(m.toLoad)))
		b.WriteString("\n")
		if m.lastItem != "" {
			b.WriteString(helpStyle.Render("         " + m.lastItem))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	help := "space pause • q quit"
	if len(m.cfg.resources) > 0 && !m.loading {
		help = "l load • " + help
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func runInteractive(cfg sessionConfig) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
