// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
)

const (
	monitorTickInterval = 500 * time.Millisecond
	monitorMaxLogLines  = 500
)

const (
	focusTable = iota
	focusLog
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	focusedStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("212"))
	blurredStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// monitorBatchMsg carries every event queued on the source's channel
// when waitForBatch drained it, the same batching shape the teacher's
// control TUI uses to avoid one tea.Msg per protocol byte.
type monitorBatchMsg struct {
	events []eventbus.Event
}

type monitorTickMsg time.Time

type monitorModel struct {
	src    monitorSource
	pumps  table.Model
	log    viewport.Model
	lines  []string
	focus  int
	width  int
	height int
}

func initialMonitorModel(src monitorSource) monitorModel {
	columns := []table.Column{
		{Title: "Addr", Width: 6},
		{Title: "Status", Width: 10},
		{Title: "Volume", Width: 10},
		{Title: "Amount", Width: 10},
		{Title: "Nozzle", Width: 8},
		{Title: "Price", Width: 10},
		{Title: "Updated", Width: 12},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(10))

	vp := viewport.New(80, 10)

	return monitorModel{src: src, pumps: t, log: vp, focus: focusTable}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(waitForBatch(m.src), tickMonitor())
}

func tickMonitor() tea.Cmd {
	return tea.Tick(monitorTickInterval, func(t time.Time) tea.Msg { return monitorTickMsg(t) })
}

// waitForBatch drains whatever is already queued on the source's event
// channel into one message rather than re-entering Update per event.
func waitForBatch(src monitorSource) tea.Cmd {
	return func() tea.Msg {
		first, ok := <-src.Events()
		if !ok {
			return nil
		}
		batch := []eventbus.Event{first}
	drain:
		for {
			select {
			case ev, ok := <-src.Events():
				if !ok {
					break drain
				}
				batch = append(batch, ev)
			default:
				break drain
			}
		}
		return monitorBatchMsg{events: batch}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.pumps.SetHeight(m.height/2 - 4)
		m.log.Width = m.width - 2
		m.log.Height = m.height/2 - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.focus == focusTable {
				m.focus = focusLog
				m.pumps.Blur()
			} else {
				m.focus = focusTable
				m.pumps.Focus()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.focus == focusTable {
			m.pumps, cmd = m.pumps.Update(msg)
		} else {
			m.log, cmd = m.log.Update(msg)
		}
		return m, cmd

	case monitorTickMsg:
		m.pumps.SetRows(pumpRows(m.src.Snapshot()))
		return m, tickMonitor()

	case monitorBatchMsg:
		for _, ev := range msg.events {
			if line := formatLogLine(ev); line != "" {
				m.lines = append(m.lines, line)
			}
		}
		if len(m.lines) > monitorMaxLogLines {
			m.lines = m.lines[len(m.lines)-monitorMaxLogLines:]
		}
		m.log.SetContent(strings.Join(m.lines, "\n"))
		m.log.GotoBottom()
		return m, waitForBatch(m.src)
	}
	return m, nil
}

func pumpRows(pumps []state.PumpState) []table.Row {
	rows := make([]table.Row, 0, len(pumps))
	for _, p := range pumps {
		rows = append(rows, table.Row{
			fmt.Sprintf("0x%02X", p.Address),
			statusLabel(p),
			fmt.Sprintf("%.2f", p.Volume),
			fmt.Sprintf("%.2f", p.Amount),
			fmt.Sprintf("%d", p.Nozzle),
			fmt.Sprintf("%.3f", p.Price),
			p.LastUpdate.Format("15:04:05"),
		})
	}
	return rows
}

func statusLabel(p state.PumpState) string {
	if !p.HasStatus {
		return "unknown"
	}
	return fmt.Sprintf("%d", p.Status)
}

func formatLogLine(ev eventbus.Event) string {
	switch payload := ev.Payload.(type) {
	case engine.PumpMessage:
		return fmt.Sprintf("%s 0x%02X %s", payload.Timestamp.Format("15:04:05.000"), payload.Address, payload.Decoded.Kind)
	case remotePush:
		return fmt.Sprintf("%s %s pump_message", payload.Timestamp, payload.Address)
	case logging.Entry:
		return fmt.Sprintf("[%s] %s", payload.Level, payload.Message)
	case bool:
		if payload {
			return "[connection] up"
		}
		return "[connection] down"
	default:
		return ""
	}
}

func (m monitorModel) View() string {
	header := headerStyle.Render("dartgw monitor") + "  (tab: switch focus, q: quit)"

	tableBox := blurredStyle
	logBox := blurredStyle
	if m.focus == focusTable {
		tableBox = focusedStyle
	} else {
		logBox = focusedStyle
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		tableBox.Render(m.pumps.View()),
		logBox.Render(m.log.View()),
	)
}
