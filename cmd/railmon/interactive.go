package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trackside/railbind"
	"github.com/trackside/railbind/binding"
	"github.com/trackside/railbind/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	groupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const eventFeedSize = 8

type modelState int

const (
	stateBrowse modelState = iota
	stateSetOutput
)

type monitorModel struct {
	err      error
	eng      *engine.Engine
	b        *binding.Binding
	program  *tea.Program
	filename string
	opts     []binding.Option
	caps     []binding.CapabilityInfo
	version  string
	events   []string
	input    textinput.Model
	opened   bool
	started  bool
	loaded   bool
	state    modelState
}

type boundMsg struct {
	err     error
	eng     *engine.Engine
	b       *binding.Binding
	caps    []binding.CapabilityInfo
	version string
}

type statusMsg struct {
	err     error
	line    string
	opened  bool
	started bool
}

type eventMsg string

func newMonitorModel(filename string, opts []binding.Option) *monitorModel {
	ti := textinput.New()
	ti.Prompt = "module port value: "
	ti.Placeholder = "1 0 1"
	ti.Width = 30
	return &monitorModel{
		filename: filename,
		opts:     opts,
		input:    ti,
		state:    stateBrowse,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return m.bindDriver
}

func (m *monitorModel) bindDriver() tea.Msg {
	ctx := context.Background()

	eng, err := engine.New(ctx)
	if err != nil {
		return boundMsg{err: err}
	}

	b := binding.New(eng, m.filename, m.opts...)
	if err := b.Bind(ctx); err != nil {
		eng.Close(ctx)
		return boundMsg{err: err}
	}

	// Notifications arrive on driver threads; Program.Send hands them
	// to the update loop.
	b.OnScanned(func() {
		m.program.Send(eventMsg("bus scan complete"))
	})
	b.OnInputChanged(func(module int) {
		m.program.Send(eventMsg(fmt.Sprintf("inputs changed on module %d", module)))
	})
	b.OnOutputChanged(func(module int) {
		m.program.Send(eventMsg(fmt.Sprintf("outputs changed on module %d", module)))
	})
	b.OnLog(func(e railbind.LogEvent) {
		m.program.Send(eventMsg(fmt.Sprintf("log [%d] %s", e.Level, e.Message)))
	})
	b.OnError(func(e railbind.ErrorEvent) {
		m.program.Send(eventMsg(fmt.Sprintf("error %d at module %d: %s", e.Code, e.Address, e.Message)))
	})

	version := ""
	if v, verr := b.DriverSemver(ctx); verr == nil {
		version = v.String()
	}
	return boundMsg{eng: eng, b: b, caps: b.Capabilities(), version: version}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateSetOutput {
			return m.updateSetOutput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.b != nil {
				m.b.Unbind(ctx)
			}
			if m.eng != nil {
				m.eng.Close(ctx)
			}
			return m, tea.Quit

		case "o":
			if m.loaded {
				return m, m.deviceCmd("open")
			}
		case "c":
			if m.loaded {
				return m, m.deviceCmd("close")
			}
		case "s":
			if m.loaded {
				return m, m.deviceCmd("start")
			}
		case "x":
			if m.loaded {
				return m, m.deviceCmd("stop")
			}
		case "t":
			if m.loaded && m.b.Bound(binding.CapSetOutput) {
				m.state = stateSetOutput
				m.input.SetValue("")
				m.input.Focus()
			}
		}

	case boundMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.b = msg.b
		m.caps = msg.caps
		m.version = msg.version
		m.loaded = true

	case statusMsg:
		if msg.err != nil {
			m.pushEvent(errorStyle.Render(msg.err.Error()))
			return m, nil
		}
		m.opened = msg.opened
		m.started = msg.started
		m.pushEvent(msg.line)

	case eventMsg:
		m.pushEvent(eventStyle.Render(string(msg)))
	}

	return m, nil
}

func (m *monitorModel) updateSetOutput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.state = stateBrowse
		m.input.Blur()
		return m, m.setOutputCmd(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) deviceCmd(action string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		switch action {
		case "open":
			if err := m.b.Open(ctx); err != nil {
				return statusMsg{err: err}
			}
			return statusMsg{line: "device opened", opened: true}
		case "close":
			if err := m.b.Close(ctx); err != nil {
				return statusMsg{err: err}
			}
			return statusMsg{line: "device closed"}
		case "start":
			if err := m.b.Start(ctx); err != nil {
				return statusMsg{err: err}
			}
			return statusMsg{line: "bus scanning started", opened: true, started: true}
		case "stop":
			if err := m.b.Stop(ctx); err != nil {
				return statusMsg{err: err}
			}
			return statusMsg{line: "bus scanning stopped", opened: true}
		}
		return nil
	}
}

func (m *monitorModel) setOutputCmd(value string) tea.Cmd {
	return func() tea.Msg {
		fields := strings.Fields(value)
		if len(fields) != 3 {
			return statusMsg{err: fmt.Errorf("need: module port value")}
		}
		nums := make([]int, 3)
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return statusMsg{err: fmt.Errorf("bad number %q", f)}
			}
			nums[i] = n
		}
		if err := m.b.SetOutput(context.Background(), nums[0], nums[1], nums[2]); err != nil {
			return statusMsg{err: err, opened: m.opened, started: m.started}
		}
		return statusMsg{
			line:    fmt.Sprintf("output %d:%d set to %d", nums[0], nums[1], nums[2]),
			opened:  m.opened,
			started: m.started,
		}
	}
}

func (m *monitorModel) pushEvent(line string) {
	m.events = append(m.events, line)
	if len(m.events) > eventFeedSize {
		m.events = m.events[len(m.events)-eventFeedSize:]
	}
}

func (m *monitorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.loaded {
		return "Binding driver..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("railmon"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	if m.version != "" {
		b.WriteString("  v" + m.version)
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	var group binding.Group
	for _, c := range m.caps {
		if c.Group != group {
			group = c.Group
			b.WriteString(groupStyle.Render(string(group)))
			b.WriteString("\n")
		}
		if c.Resolved {
			b.WriteString("  " + okStyle.Render(c.Name))
		} else {
			b.WriteString("  " + missingStyle.Render(c.Name))
		}
		b.WriteString("\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(e)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.state == stateSetOutput {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter set • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("o open • c close • s start • x stop • t set output • q quit"))
	}
	return b.String()
}

func (m *monitorModel) statusLine() string {
	device := "device closed"
	if m.opened {
		device = "device open"
	}
	scan := "scan stopped"
	if m.started {
		scan = "scan running"
	}
	return helpStyle.Render(device + " • " + scan)
}

func runInteractive(filename string, opts []binding.Option) error {
	m := newMonitorModel(filename, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	_, err := p.Run()
	return err
}
