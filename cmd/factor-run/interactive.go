package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	bufStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateLoading modelState = iota
	stateInputRow
	stateShowResult
)

// interactiveModel drives a streaming session: one row of inputs per push,
// factor outputs shown after each.
type interactiveModel struct {
	err        error
	eng        engine.Engine
	rt         *runtime.Runtime
	exec       *runtime.Executor
	stream     *runtime.StreamContext
	mod        *runtime.Module
	libPath    string
	moduleName string
	inputs     []textinput.Model
	inputDescs []engine.BufferDesc
	outDescs   []engine.BufferDesc
	lastOut    map[string][]float32
	focusIdx   int
	state      modelState
}

func newInteractiveModel(eng engine.Engine, libPath, moduleName string) *interactiveModel {
	return &interactiveModel{
		eng:        eng,
		libPath:    libPath,
		moduleName: moduleName,
		state:      stateLoading,
	}
}

type loadedMsg struct {
	err    error
	rt     *runtime.Runtime
	exec   *runtime.Executor
	stream *runtime.StreamContext
	mod    *runtime.Module
}

type pushResultMsg struct {
	err error
	out map[string][]float32
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	ctx := context.Background()

	rt := runtime.New(m.eng)

	exec, err := rt.SingleThreadExecutor()
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	lib, err := rt.LoadLibrary(ctx, m.libPath)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	mod, err := lib.Module(m.moduleName)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	for _, d := range mod.Info().Buffers {
		if d.ElemWidth != 4 {
			rt.Close(ctx)
			return loadedMsg{err: fmt.Errorf("interactive mode supports float32 modules only; buffer %s is float64", d.Name)}
		}
	}
	stream, err := rt.NewStream(ctx, exec, mod)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, exec: exec, stream: stream, mod: mod}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "enter":
			switch m.state {
			case stateInputRow:
				return m, m.pushRow
			case stateShowResult:
				m.prepareInputs()
				m.state = stateInputRow
			}

		case "tab":
			if m.state == stateInputRow && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.exec = msg.exec
		m.stream = msg.stream
		m.mod = msg.mod
		for _, d := range m.mod.Info().Buffers {
			if d.Role.Writable() {
				m.outDescs = append(m.outDescs, d)
			} else {
				m.inputDescs = append(m.inputDescs, d)
			}
		}
		m.prepareInputs()
		m.state = stateInputRow

	case pushResultMsg:
		m.err = msg.err
		m.lastOut = msg.out
		m.state = stateShowResult
	}

	if m.state == stateInputRow {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	m.inputs = make([]textinput.Model, len(m.inputDescs))
	for i, d := range m.inputDescs {
		ti := textinput.New()
		if d.RowElems() > 1 {
			ti.Placeholder = fmt.Sprintf("%d comma-separated values", d.RowElems())
		} else {
			ti.Placeholder = "value"
		}
		ti.Prompt = d.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) pushRow() tea.Msg {
	ctx := context.Background()

	row := runtime.NewBufferMap()
	for i, d := range m.inputDescs {
		vals, err := parseRow(m.inputs[i].Value(), d.RowElems())
		if err != nil {
			return pushResultMsg{err: fmt.Errorf("buffer %s: %w", d.Name, err)}
		}
		if err := row.SetBufferSlice(d.Name, vals); err != nil {
			return pushResultMsg{err: err}
		}
	}

	out := make(map[string][]float32, len(m.outDescs))
	for _, d := range m.outDescs {
		buf := make([]float32, d.RowElems())
		out[d.Name] = buf
		if err := row.SetBufferSlice(d.Name, buf); err != nil {
			return pushResultMsg{err: err}
		}
	}

	if err := m.stream.Push(ctx, row); err != nil {
		return pushResultMsg{err: err}
	}
	return pushResultMsg{out: out}
}

func parseRow(s string, lanes int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != lanes {
		return nil, fmt.Errorf("got %d values, want %d", len(parts), lanes)
	}
	vals := make([]float32, lanes)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		vals[i] = float32(v)
	}
	return vals, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Factor Stream"))
	b.WriteString(" ")
	b.WriteString(m.moduleName)
	if m.stream != nil {
		fmt.Fprintf(&b, "  row %d", m.stream.Rows())
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateLoading:
		b.WriteString("Loading library...")

	case stateInputRow:
		b.WriteString("Next row:\n\n")
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(widthLabel(m.inputDescs[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter push • esc quit"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString("Outputs:\n\n")
			for _, d := range m.outDescs {
				vals := m.lastOut[d.Name]
				strs := make([]string, len(vals))
				for i, v := range vals {
					strs[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
				}
				b.WriteString("  ")
				b.WriteString(bufStyle.Render(d.Name))
				b.WriteString(" = ")
				b.WriteString(resultStyle.Render(strings.Join(strs, ", ")))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter next row • esc quit"))
	}

	return b.String()
}

func widthLabel(d engine.BufferDesc) string {
	if d.ElemWidth == 8 {
		return "f64"
	}
	return "f32"
}

func runInteractive(eng engine.Engine, libPath, moduleName string) error {
	p := tea.NewProgram(newInteractiveModel(eng, libPath, moduleName), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
