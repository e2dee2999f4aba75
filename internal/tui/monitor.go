// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tui implements the monitor dashboard: a Bubble Tea program that
// polls the telemetry registry and renders it. The dashboard itself never
// calls any of the registry's Set* methods; the one exception is the
// command-entry line, which tokenizes operator input through the console
// package and delivers it to the state machine exactly as the ground
// station link would.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyped/podctl/internal/console"
	"github.com/hyped/podctl/internal/statemachine"
	"github.com/hyped/podctl/internal/telemetry"
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the monitor dashboard's Bubble Tea model. It holds a registry
// reference, the last-polled snapshots, and a command-entry input focused
// on the state machine it may inject operator events into.
type Model struct {
	registry *telemetry.Registry
	machine  *statemachine.Machine

	width, height int
	quitting      bool

	state      telemetry.StateMachineData
	navigation telemetry.Navigation
	motors     telemetry.MotorData
	batteries  telemetry.Batteries

	commandInput textinput.Model
	commanding   bool
	lastCommand  string
	commandErr   error
}

// New constructs a Model bound to registry, sized to width x height until
// the first WindowSizeMsg arrives. machine may be nil, in which case the
// command line is disabled and the dashboard is purely read-only.
func New(registry *telemetry.Registry, machine *statemachine.Machine, width, height int) Model {
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}
	ti := textinput.New()
	ti.Placeholder = "launch | stop | kill"
	ti.CharLimit = 64
	ti.Width = 40
	return Model{registry: registry, machine: machine, width: width, height: height, commandInput: ti}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.commanding {
			switch msg.String() {
			case "esc":
				m.commanding = false
				m.commandInput.Blur()
				m.commandInput.SetValue("")
				return m, nil
			case "enter":
				m.submitCommand()
				m.commanding = false
				m.commandInput.Blur()
				m.commandInput.SetValue("")
				return m, nil
			}
			var cmd tea.Cmd
			m.commandInput, cmd = m.commandInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case ":":
			if m.machine != nil {
				m.commanding = true
				m.commandErr = nil
				m.commandInput.Focus()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.state = m.registry.GetStateMachineData()
		m.navigation = m.registry.GetNavigation()
		m.motors = m.registry.GetMotorData()
		m.batteries = m.registry.GetBatteries()
		return m, tickCmd()
	}
	return m, nil
}

// submitCommand tokenizes the command line through the console package and,
// if it resolves to a known event, sends it to the bound state machine.
func (m *Model) submitCommand() {
	line := m.commandInput.Value()
	if line == "" {
		return
	}
	cmd, err := console.Parse(line)
	if err != nil {
		m.commandErr = err
		return
	}
	event, err := cmd.ToEvent()
	if err != nil {
		m.commandErr = err
		return
	}
	m.machine.Send(event)
	m.lastCommand = line
	m.commandErr = nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m Model) View() string {
	if m.quitting {
		return "Leaving monitor.\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("PODCTL MONITOR"))
	s.WriteString("\n")
	help := "Press 'q' to quit"
	if m.machine != nil {
		help = "Press ':' to enter a command, 'q' to quit"
	}
	s.WriteString(headerStyle.Render(help))
	s.WriteString("\n\n")

	stateLine := fmt.Sprintf("%s %s", labelStyle.Render("State:"), valueStyle.Render(m.state.CurrentState.String()))
	if m.state.CriticalFailure {
		stateLine += "   " + alertStyle.Render("CRITICAL FAILURE LATCHED")
	}
	s.WriteString(boxStyle.Render(stateLine))
	s.WriteString("\n\n")

	nav := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s",
		labelStyle.Render("Velocity:"), valueStyle.Render(fmt.Sprintf("%.2f m/s", m.navigation.Velocity)),
		labelStyle.Render("Distance:"), valueStyle.Render(fmt.Sprintf("%.2f m", m.navigation.Distance)),
		labelStyle.Render("Acceleration:"), valueStyle.Render(fmt.Sprintf("%.2f m/s^2", m.navigation.Acceleration)),
		labelStyle.Render("Braking distance:"), valueStyle.Render(fmt.Sprintf("%.2f m", m.navigation.EmergencyBrakingDistance)),
	)
	s.WriteString(boxStyle.Render(nav))
	s.WriteString("\n\n")

	var motorLines strings.Builder
	names := []string{"FL", "FR", "BL", "BR"}
	for i, name := range names {
		motorLines.WriteString(fmt.Sprintf("%s %s",
			labelStyle.Render(name+":"),
			valueStyle.Render(fmt.Sprintf("%d RPM / %d mNm", m.motors.Velocity[i], m.motors.Torque[i])),
		))
		if i < len(names)-1 {
			motorLines.WriteString("   ")
		}
	}
	motorLines.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Status:"), valueStyle.Render(m.motors.ModuleStatus.String())))
	s.WriteString(boxStyle.Render(motorLines.String()))
	s.WriteString("\n\n")

	var battLines strings.Builder
	battLines.WriteString(labelStyle.Render("Low power: "))
	for i, b := range m.batteries.LowPower {
		battLines.WriteString(valueStyle.Render(fmt.Sprintf("%.1fV/%.0f%%", b.Voltage, b.Charge)))
		if i < len(m.batteries.LowPower)-1 {
			battLines.WriteString(", ")
		}
	}
	battLines.WriteString("\n")
	battLines.WriteString(labelStyle.Render("High power: "))
	for i, b := range m.batteries.HighPower {
		battLines.WriteString(valueStyle.Render(fmt.Sprintf("%.1fV/%.0f%%", b.Voltage, b.Charge)))
		if i < len(m.batteries.HighPower)-1 {
			battLines.WriteString(", ")
		}
	}
	s.WriteString(boxStyle.Render(battLines.String()))

	if m.machine != nil {
		s.WriteString("\n\n")
		s.WriteString(m.renderCommandLine())
	}

	return s.String()
}

func (m Model) renderCommandLine() string {
	if m.commanding {
		return boxStyle.Render(fmt.Sprintf("%s %s", labelStyle.Render(":"), m.commandInput.View()))
	}
	if m.commandErr != nil {
		return boxStyle.Render(alertStyle.Render(fmt.Sprintf("command error: %v", m.commandErr)))
	}
	if m.lastCommand != "" {
		return boxStyle.Render(headerStyle.Render(fmt.Sprintf("last command: %s", m.lastCommand)))
	}
	return boxStyle.Render(headerStyle.Render("(no command sent yet)"))
}
