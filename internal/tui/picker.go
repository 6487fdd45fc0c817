package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/health"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionSelect
	ActionReload
	ActionStop
	ActionQuit
)

// Entry is one runtime shown by the picker.
type Entry struct {
	Runtime control.RuntimeMetadata
	Status  health.Status
}

// PickerResult holds the result of the picker
type PickerResult struct {
	Action  Action
	Runtime *control.RuntimeMetadata
}

// runtimeItem implements list.Item for runtime display
type runtimeItem struct {
	entry  Entry
	uptime string
}

func (i runtimeItem) Title() string {
	name := i.entry.Runtime.PackageName
	if name == "" {
		name = "runtime"
	}
	return fmt.Sprintf("%s (pid %d)", name, i.entry.Runtime.PID)
}

func (i runtimeItem) Description() string {
	url := i.entry.Runtime.URL
	if url == "" {
		url = "-"
	}
	return fmt.Sprintf("%s %s | %s | %s",
		statusIcon(i.entry.Status),
		i.uptime,
		url,
		truncateText(shellquote.Join(i.entry.Runtime.Argv...), 40),
	)
}

func (i runtimeItem) FilterValue() string {
	return fmt.Sprintf("%s %d", i.entry.Runtime.PackageName, i.entry.Runtime.PID)
}

func statusIcon(status health.Status) string {
	switch status {
	case health.StatusHealthy:
		return "✓"
	case health.StatusDegraded:
		return "⚠"
	case health.StatusError:
		return "✗"
	default:
		return "●"
	}
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the runtime picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new runtime picker
func NewPicker(entries []Entry) Model {
	items := buildGroupedItems(entries)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = "rtctl - Select Runtime"
	l.SetShowStatusBar(len(items)-headerCount(items) > 1)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	skipHeaders(&l, 1)

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) selected() (*control.RuntimeMetadata, bool) {
	item, ok := m.list.SelectedItem().(runtimeItem)
	if !ok {
		return nil, false
	}
	meta := item.entry.Runtime
	return &meta, true
}

func (m Model) finish(action Action) (tea.Model, tea.Cmd) {
	if action != ActionQuit {
		meta, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.result.Runtime = meta
	}
	m.result.Action = action
	m.quitting = true
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			return m.finish(ActionSelect)
		case "r":
			return m.finish(ActionReload)
		case "s":
			return m.finish(ActionStop)
		case "q", "esc":
			return m.finish(ActionQuit)
		case "up", "k", "down", "j":
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			skipHeaders(&m.list, navigationDirection(msg))
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Select  [r] Reload  [s] Stop  [/] Filter  [q] Quit")
	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive runtime picker. With no runtimes it
// returns ActionNone without starting the program.
func RunPicker(entries []Entry) (PickerResult, error) {
	if len(entries) == 0 {
		return PickerResult{Action: ActionNone}, nil
	}

	p := tea.NewProgram(NewPicker(entries), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}
	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive listing of runtimes
func SimplePicker(entries []Entry) string {
	var sb strings.Builder

	sb.WriteString("rtctl - Runtimes\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(entries) == 0 {
		sb.WriteString("No runtimes found.\n")
		sb.WriteString("Start one with: rtctl start <dir>\n")
		return sb.String()
	}

	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. %s %s (pid %d)\n",
			i+1, statusIcon(e.Status), e.Runtime.PackageName, e.Runtime.PID))
		sb.WriteString(fmt.Sprintf("   Project: %s | Command: %s\n\n",
			truncateText(e.Runtime.ProjectDir, 40), truncateText(shellquote.Join(e.Runtime.Argv...), 40)))
	}
	return sb.String()
}
