// Package viz renders a live terminal dashboard for a running
// simulation: potential-energy history, traversal statistics, rung
// occupancy and per-phase timings, fed from the coordinating
// partition's step reports.
package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/gravlab/internal/rung"
	"github.com/san-kum/gravlab/internal/step"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	rungStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// ReportMsg delivers one step report into the UI loop. The engine's
// observer sends these through Program.Send.
type ReportMsg struct{ Report *step.Report }

// DoneMsg signals that the run behind the dashboard has finished.
type DoneMsg struct{ Err error }

type Model struct {
	title         string
	totalSteps    int
	last          *step.Report
	energyHistory []float64
	width         int
	paused        bool
	done          bool
	err           error
}

func NewModel(title string, totalSteps int) Model {
	return Model{
		title:         title,
		totalSteps:    totalSteps,
		energyHistory: make([]float64, 0, historyCapacity),
		width:         100,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ReportMsg:
		if !m.paused {
			m.last = msg.Report
			m.energyHistory = append(m.energyHistory, msg.Report.Egrav)
			if len(m.energyHistory) > historyCapacity {
				m.energyHistory = m.energyHistory[1:]
			}
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n")

	if m.last == nil {
		b.WriteString("waiting for first step...\n")
		return b.String()
	}

	graphWidth := m.width - 55
	if graphWidth < 20 {
		graphWidth = 20
	}
	graph := ""
	if len(m.energyHistory) > 1 {
		graph = asciigraph.Plot(m.energyHistory,
			asciigraph.Height(10),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("potential energy"))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		graphStyle.Render(graph),
		statsStyle.Render(m.statsPanel()),
	))
	b.WriteString("\n")
	b.WriteString(m.rungBar())

	status := "space pause · q quit"
	if m.done {
		status = "run finished · q quit"
		if m.err != nil {
			status = fmt.Sprintf("run failed: %v · q quit", m.err)
		}
	}
	b.WriteString(helpStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statsPanel() string {
	rep := m.last
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(row("step", fmt.Sprintf("%d / %d", rep.Step+1, m.totalSteps)))
	b.WriteString(row("particles", fmt.Sprintf("%d owned", rep.NumOwned)))
	b.WriteString(row("energy", fmt.Sprintf("%.6e", rep.Egrav)))
	b.WriteString(row("p2p", fmt.Sprintf("%d (max %d)", rep.Stats.NumP2P, rep.Stats.MaxP2P)))
	b.WriteString(row("m2p", fmt.Sprintf("%d (max %d)", rep.Stats.NumM2P, rep.Stats.MaxM2P)))
	b.WriteString(row("p2p global", fmt.Sprintf("%d", rep.MaxP2PGlobal)))
	b.WriteString(row("min dt", fmt.Sprintf("%.3e", rep.Timestep.MinDt)))
	b.WriteString(row("rungs", fmt.Sprintf("%d", rep.Timestep.NumRungs)))
	for _, p := range rep.Phases {
		b.WriteString(row(p.Name, p.Elapsed.String()))
	}
	return strings.TrimRight(b.String(), "\n")
}

// rungBar draws group occupancy per rung as proportional bars.
func (m Model) rungBar() string {
	ts := m.last.Timestep
	total := ts.RungRanges[rung.MaxNumRungs]
	if total == 0 {
		return ""
	}

	barWidth := m.width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	var b strings.Builder
	for r := 0; r < ts.NumRungs; r++ {
		n := ts.RungRanges[r+1] - ts.RungRanges[r]
		filled := n * barWidth / total
		b.WriteString(fmt.Sprintf("rung %d %5d ", r, n))
		b.WriteString(rungStyle.Render(strings.Repeat("█", filled)))
		b.WriteString("\n")
	}
	return b.String()
}
