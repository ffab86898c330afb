// Package tui renders a live terminal monitor for a running
// simulation: energy panels, an hbond readout and a scrolling total
// energy trace.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/r-dsouza/molgrad/internal/sim"
)

const (
	historyCapacity = 240
	graphHeight     = 10
	graphWidth      = 60
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	statsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// TickMsg paces the simulation loop.
type TickMsg time.Time

// Model steps the simulator on ticks and renders the energy state.
type Model struct {
	simulator    *sim.Simulator
	system       string
	stepsPerTick int
	maxSteps     int

	step          int
	latest        sim.Sample
	energyHistory []float64
	running       bool
	done          bool
	err           error
}

// NewModel wraps a simulator whose velocities are already initialized.
func NewModel(s *sim.Simulator, system string, stepsPerTick, maxSteps int) Model {
	if stepsPerTick <= 0 {
		stepsPerTick = 10
	}
	return Model{
		simulator:    s,
		system:       system,
		stepsPerTick: stepsPerTick,
		maxSteps:     maxSteps,
		running:      true,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}

	case TickMsg:
		if !m.running || m.done || m.err != nil {
			return m, tick()
		}
		for i := 0; i < m.stepsPerTick; i++ {
			if m.maxSteps > 0 && m.step >= m.maxSteps {
				m.done = true
				break
			}
			if err := m.simulator.Step(m.step + 1); err != nil {
				m.err = err
				break
			}
			m.step++
		}
		if sample, err := m.simulator.Sample(m.step); err != nil {
			m.err = err
		} else {
			m.latest = sample
			m.energyHistory = append(m.energyHistory, sample.Total())
			if len(m.energyHistory) > historyCapacity {
				m.energyHistory = m.energyHistory[len(m.energyHistory)-historyCapacity:]
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("molgrad live — %s", m.system)))
	b.WriteString("\n")

	stats := []string{
		statRow("step", fmt.Sprintf("%d", m.latest.Step)),
		statRow("time", fmt.Sprintf("%.4f", m.latest.T)),
		statRow("potential", fmt.Sprintf("%+.6f", m.latest.Potential)),
		statRow("kinetic", fmt.Sprintf("%+.6f", m.latest.Kinetic)),
		statRow("total", fmt.Sprintf("%+.6f", m.latest.Total())),
	}
	if m.latest.NHBond >= 0 {
		stats = append(stats, statRow("n_hbond", fmt.Sprintf("%.2f", m.latest.NHBond)))
	}
	b.WriteString(statsStyle.Render(strings.Join(stats, "\n")))
	b.WriteString("\n")

	if len(m.energyHistory) > 1 {
		graph := asciigraph.Plot(m.energyHistory,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("total energy"))
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("aborted: %v", m.err)))
	case m.done:
		b.WriteString(pausedStyle.Render("finished"))
	case !m.running:
		b.WriteString(pausedStyle.Render("paused"))
	}

	b.WriteString(helpStyle.Render("space pause · q quit"))
	return b.String()
}

func statRow(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// Run blocks inside the bubbletea event loop until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
