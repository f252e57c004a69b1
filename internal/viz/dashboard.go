package viz

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Jason9-Alex/Lab-Modelos/internal/config"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
)

const (
	stateMenu = iota
	stateParams
	stateResult
)

type runMsg struct {
	res *experiment.Result
	err error
}

// Dashboard is the Bubble Tea model behind the tui command: pick a model,
// edit its parameters, run it and read the chart and summary.
type Dashboard struct {
	ctx      context.Context
	registry *experiment.Registry

	state, cursor int
	names         []string
	info          experiment.ModelInfo
	params        dynamo.Params
	paramCursor   int
	editing       bool
	editBuf       string
	presets       []string
	presetIdx     int
	preset        string

	running bool
	result  *experiment.Result
	err     error

	width, height int
}

func NewDashboard(ctx context.Context, r *experiment.Registry) Dashboard {
	return Dashboard{
		ctx:      ctx,
		registry: r,
		names:    r.Names(),
		width:    100,
		height:   30,
	}
}

func (m Dashboard) Init() tea.Cmd { return nil }

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case runMsg:
		m.running = false
		m.result, m.err = msg.res, msg.err
		m.state = stateResult
	}
	return m, nil
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (Dashboard, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateParams:
		return m.paramsKey(msg)
	case stateResult:
		return m.resultKey(msg)
	}
	return m, nil
}

func (m Dashboard) menuKey(msg tea.KeyMsg) (Dashboard, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selectModel(m.names[m.cursor])
	}
	return m, nil
}

func (m *Dashboard) selectModel(name string) {
	info, err := m.registry.Describe(name)
	if err != nil {
		m.err = err
		return
	}
	m.info = info
	m.params, _ = m.registry.Defaults(name)
	m.presets = config.ListPresets(name)
	m.presetIdx, m.preset = -1, ""
	m.paramCursor, m.editing, m.editBuf = 0, false, ""
	m.result, m.err = nil, nil
	m.state = stateParams
}

func (m Dashboard) paramsKey(msg tea.KeyMsg) (Dashboard, tea.Cmd) {
	if m.editing {
		return m.editKey(msg), nil
	}
	name := m.info.Params[m.paramCursor].Name
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(m.info.Params)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, strconv.FormatFloat(m.params[name], 'g', -1, 64)
	case "left", "h":
		m.params = m.params.With(name, nudge(name, m.params[name], -1))
	case "right", "l":
		m.params = m.params.With(name, nudge(name, m.params[name], +1))
	case "p":
		m.cyclePreset()
	case "r", "s":
		return m.start()
	}
	return m, nil
}

func (m Dashboard) editKey(msg tea.KeyMsg) Dashboard {
	switch msg.String() {
	case "enter":
		name := m.info.Params[m.paramCursor].Name
		v, err := strconv.ParseFloat(m.editBuf, 64)
		if err != nil {
			m.err = fmt.Errorf("%s: %q is not a number", name, m.editBuf)
		} else {
			m.params = m.params.With(name, v)
			m.err = nil
		}
		m.editing, m.editBuf = false, ""
	case "esc":
		m.editing, m.editBuf = false, ""
	case "backspace":
		if len(m.editBuf) > 0 {
			m.editBuf = m.editBuf[:len(m.editBuf)-1]
		}
	default:
		if s := msg.String(); len(s) == 1 {
			c := s[0]
			if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == 'e' || c == '+' {
				m.editBuf += s
			}
		}
	}
	return m
}

func (m *Dashboard) cyclePreset() {
	if len(m.presets) == 0 {
		return
	}
	m.presetIdx = (m.presetIdx + 1) % len(m.presets)
	m.preset = m.presets[m.presetIdx]
	defaults, _ := m.registry.Defaults(m.info.Name)
	m.params = defaults.Merge(config.GetPreset(m.info.Name, m.preset))
}

// nudge moves v by 10% of its magnitude. The point count moves by whole
// samples.
func nudge(name string, v float64, dir float64) float64 {
	if name == "points" {
		return v + dir*10
	}
	step := 0.1 * v
	if step < 0 {
		step = -step
	}
	if step == 0 {
		step = 0.1
	}
	return v + dir*step
}

func (m Dashboard) start() (Dashboard, tea.Cmd) {
	m.running = true
	ctx, r, name, params := m.ctx, m.registry, m.info.Name, m.params.Merge(nil)
	return m, func() tea.Msg {
		res, err := r.Run(ctx, name, params)
		return runMsg{res: res, err: err}
	}
}

func (m Dashboard) resultKey(msg tea.KeyMsg) (Dashboard, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "e":
		m.state = stateParams
	case "m":
		m.state = stateMenu
	case "r":
		return m.start()
	}
	return m, nil
}

func (m Dashboard) View() string {
	switch m.state {
	case stateParams:
		return m.viewParams()
	case stateResult:
		return m.viewResult()
	}
	return m.viewMenu()
}

func (m Dashboard) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + TitleStyle.Render("LAB MODELOS") + "\n    " + Subtle.Render("population and epidemic dynamics") + "\n    " + Separator(32) + "\n\n")
	for i, name := range m.names {
		title := ""
		if info, err := m.registry.Describe(name); err == nil {
			title = info.Title
		}
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", Pointer.Render("▸"), Selected.Render(fmt.Sprintf("%-12s", name)), Highlight.Render(title)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", Dimmed.Render(fmt.Sprintf("%-12s", name)), Dimmed.Render(title)))
		}
	}
	b.WriteString("\n    " + KeyHints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m Dashboard) viewParams() string {
	var b strings.Builder
	b.WriteString("\n\n    " + TitleStyle.Render(strings.ToUpper(m.info.Name)) + "\n    " + Subtle.Render(m.info.Title) + "\n")
	if m.preset != "" {
		b.WriteString("    " + Subtle.Render("preset: ") + Highlight.Render(m.preset) + "\n")
	}
	b.WriteString("    " + Separator(32) + "\n\n")

	for i, spec := range m.info.Params {
		val := fmt.Sprintf("%12.6g", m.params[spec.Name])
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%12s", m.editBuf+"_")
		}
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s  %s\n", Pointer.Render("▸"), Selected.Render(fmt.Sprintf("%-8s", spec.Name)), Highlight.Render(val), Subtle.Render(spec.Doc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s %s\n", Dimmed.Render(fmt.Sprintf("%-8s", spec.Name)), Dimmed.Render(val)))
		}
	}

	if m.err != nil {
		b.WriteString("\n    " + ErrorStyle.Render(m.err.Error()) + "\n")
	}
	if m.running {
		b.WriteString("\n    " + Subtle.Render("running...") + "\n")
	}
	b.WriteString("\n    " + KeyHints("j/k", "select", "enter", "edit", "h/l", "adjust", "p", "preset", "r", "run", "esc", "back") + "\n")
	return b.String()
}

func (m Dashboard) viewResult() string {
	var b strings.Builder
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString("  " + ErrorStyle.Render(dynamo.KindOf(m.err)+": ") + m.err.Error() + "\n")
	} else if m.result != nil {
		opts := DefaultChartOptions()
		opts.Width = max(m.width-16, 20)
		opts.Height = max(min(m.height-22, 15), 5)
		b.WriteString(Plot(m.result, opts) + "\n\n")
		b.WriteString(SummaryTable(m.result))
	}
	b.WriteString("\n  " + KeyHints("r", "rerun", "e", "edit", "m", "models", "q", "quit") + "\n")
	return b.String()
}

// RunDashboard runs the dashboard full screen until the user quits.
func RunDashboard(ctx context.Context, r *experiment.Registry) error {
	_, err := tea.NewProgram(NewDashboard(ctx, r), tea.WithAltScreen()).Run()
	return err
}
