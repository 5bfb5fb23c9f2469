package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"golang.org/x/term"

	vmcall "github.com/wippyai/vmcall"
	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/config"
	"github.com/wippyai/vmcall/engine"
	"github.com/wippyai/vmcall/hostmem"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// visibleRows bounds the capability list drawn at once.
const visibleRows = 18

// scratchStart is where quoted string arguments are staged in guest memory.
const scratchStart = 0x8000

type interactiveModel struct {
	err      error
	b        *bridge
	eng      *engine.Engine
	inst     *engine.Instance
	mem      vmcall.Memory
	cfg      *config.Config
	wasmFile string
	name     string
	label    string
	result   string
	slots    []string
	inputs   []textinput.Model
	convs    []capability.Convention
	region   addr.Region
	scratch  uint32
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectCapability modelState = iota
	stateInputArgs
	stateShowResult
)

type loadedMsg struct {
	err    error
	b      *bridge
	eng    *engine.Engine
	inst   *engine.Instance
	mem    vmcall.Memory
	region addr.Region
}

type dispatchResultMsg struct {
	err    error
	result string
	slots  []string
}

func newInteractiveModel(cfg *config.Config, wasmFile, name string) *interactiveModel {
	label := wasmFile
	if label == "" {
		label = "scratch memory"
	}
	return &interactiveModel{
		cfg:      cfg,
		wasmFile: wasmFile,
		name:     name,
		label:    label,
		convs:    capability.All(),
		state:    stateSelectCapability,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

// load maps a guest to dispatch against: the module given with -wasm, or a
// single page of scratch memory.
func (m *interactiveModel) load() tea.Msg {
	ctx := context.Background()

	b, err := newBridge(m.cfg, zap.NewNop())
	if err != nil {
		return loadedMsg{err: err}
	}

	if m.wasmFile == "" {
		buf := hostmem.NewBuffer(1)
		region, err := b.space.Map("scratch", buf)
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{b: b, mem: buf, region: region}
	}

	data, err := os.ReadFile(m.wasmFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	eng, err := engine.New(ctx, b.d, b.space, engineConfig(m.cfg.Engine))
	if err != nil {
		return loadedMsg{err: err}
	}
	inst, err := eng.Load(ctx, m.name, data)
	if err != nil {
		eng.Close(ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{b: b, eng: eng, inst: inst, mem: inst.Memory(), region: inst.Region()}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectCapability && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCapability && m.selected < len(m.convs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectCapability:
				if m.b == nil {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.dispatch
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.dispatch

			case stateShowResult:
				m.state = stateSelectCapability
				m.result = ""
				m.slots = nil
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectCapability
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectCapability
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.b = msg.b
		m.eng = msg.eng
		m.inst = msg.inst
		m.mem = msg.mem
		m.region = msg.region

	case dispatchResultMsg:
		m.result = msg.result
		m.slots = msg.slots
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
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

func (m *interactiveModel) shutdown() {
	ctx := context.Background()
	if m.eng != nil {
		m.eng.Close(ctx)
	}
	if m.b != nil {
		m.b.close(m.cfg)
	}
}

func (m *interactiveModel) prepareInputs() {
	c := m.convs[m.selected]
	m.inputs = make([]textinput.Model, c.Arity())
	for i, k := range c.Params {
		ti := textinput.New()
		ti.Placeholder = slotType(k).WIT(nil, "")
		if k == capability.Pointer {
			ti.Placeholder += ` or "text"`
		}
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// dispatch runs the selected capability against the mapped guest.
func (m *interactiveModel) dispatch() tea.Msg {
	ctx := context.Background()
	c := m.convs[m.selected]
	m.scratch = scratchStart

	args := make([]int32, c.Arity())
	for i, k := range c.Params {
		v, err := m.convertArg(m.inputs[i].Value(), k)
		if err != nil {
			return dispatchResultMsg{err: fmt.Errorf("arg%d: %w", i, err)}
		}
		args[i] = v
	}

	region := m.region
	if m.inst != nil {
		region = m.inst.Region()
	}
	ret := m.b.d.Dispatch(ctx, c.ID, args, region)

	var slots []string
	for i, k := range c.Params {
		if k == capability.Pointer && args[i] != 0 {
			slots = append(slots, fmt.Sprintf("arg%d @%#x: %q", i, args[i], m.peek(uint32(args[i]))))
		}
	}
	result := fmt.Sprintf("%d (%#x)", ret, uint32(ret))
	result += fmt.Sprintf("  scenes rendered: %d", m.b.trace.Count())
	return dispatchResultMsg{result: result, slots: slots}
}

// convertArg parses one slot. Scalars accept decimal, hex and float literals
// (passed as bit patterns); pointer slots accept a displacement or a quoted
// string staged in scratch memory.
func (m *interactiveModel) convertArg(value string, k capability.Kind) (int32, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if k == capability.Pointer && strings.HasPrefix(value, `"`) {
		s, err := strconv.Unquote(value)
		if err != nil {
			return 0, err
		}
		at := m.scratch
		if !m.mem.Write(at, append([]byte(s), 0)) {
			return 0, fmt.Errorf("no room for %q in guest memory", s)
		}
		m.scratch += uint32(len(s)+1+3) &^ 3
		return int32(at), nil
	}

	switch slotType(k).(type) {
	case wit.U32:
		v, err := strconv.ParseUint(value, 0, 32)
		return int32(uint32(v)), err
	default:
		if v, err := strconv.ParseInt(value, 0, 32); err == nil {
			return int32(v), nil
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return 0, err
		}
		return int32(math.Float32bits(float32(f))), nil
	}
}

// peek renders the string at guest displacement d.
func (m *interactiveModel) peek(d uint32) string {
	const n = 32
	size := m.mem.Size()
	if d >= size {
		return ""
	}
	l := uint32(n)
	if size-d < l {
		l = size - d
	}
	b, ok := m.mem.Read(d, l)
	if !ok {
		return ""
	}
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.b == nil {
		return "Loading guest..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("vmcall"))
	b.WriteString(" ")
	b.WriteString(m.label)
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(m.region.String()))
	if !m.b.d.Checked() {
		b.WriteString(" ")
		b.WriteString(errorStyle.Render("unchecked pointers"))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectCapability:
		b.WriteString("Select a capability to dispatch:\n\n")
		first := m.selected - visibleRows/2
		if first < 0 {
			first = 0
		}
		last := first + visibleRows
		if last > len(m.convs) {
			last = len(m.convs)
		}
		for i := first; i < last; i++ {
			line := m.formatConvention(m.convs[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter dispatch • q quit"))

	case stateInputArgs:
		c := m.convs[m.selected]
		b.WriteString(fmt.Sprintf("Dispatching %s\n", funcStyle.Render(c.ID.String())))
		b.WriteString(helpStyle.Render(witSignature(c)))
		b.WriteString("\n\n")
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(c.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter dispatch • esc back"))

	case stateShowResult:
		c := m.convs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(c.ID.String())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
			for _, s := range m.slots {
				b.WriteString("\n")
				b.WriteString(typeStyle.Render(s))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatConvention(c capability.Convention) string {
	f := witFunction(c)
	var params []string
	for _, p := range f.Params {
		params = append(params, typeStyle.Render(p.Type.WIT(nil, "")))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + typeStyle.Render(f.Results[0].Type.WIT(nil, ""))
	}
	served := ""
	if m.b != nil && !m.b.host.Serves(c.ID) {
		served = helpStyle.Render("  (unserved)")
	}
	return fmt.Sprintf("%3d ", int32(c.ID)) + funcStyle.Render(c.ID.String()) + "(" + strings.Join(params, ", ") + ")" + result + served
}

func runInteractive(cfg *config.Config, wasmFile, name string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(cfg, wasmFile, name), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
