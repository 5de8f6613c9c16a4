// Package picker is the interactive worksheet chooser shown when no
// worksheet is configured.
package picker

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	docStyle   = lipgloss.NewStyle().Margin(1, 2)
)

type sheetItem string

func (s sheetItem) Title() string       { return string(s) }
func (s sheetItem) Description() string { return "" }
func (s sheetItem) FilterValue() string { return string(s) }

type model struct {
	list    list.Model
	choice  string
	aborted bool
}

func newModel(titles []string) model {
	items := make([]list.Item, len(titles))
	for i, t := range titles {
		items[i] = sheetItem(t)
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false

	l := list.New(items, delegate, 40, len(titles)+8)
	l.Title = "Pick a worksheet"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{list: l}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(sheetItem); ok {
				m.choice = string(item)
			}
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	return docStyle.Render(m.list.View())
}

// Pick shows the worksheet list and returns the chosen title. Aborting the
// prompt is an error; a run needs a worksheet.
func Pick(titles []string) (string, error) {
	if len(titles) == 0 {
		return "", fmt.Errorf("spreadsheet has no worksheets")
	}
	if len(titles) == 1 {
		return titles[0], nil
	}

	final, err := tea.NewProgram(newModel(titles)).Run()
	if err != nil {
		return "", fmt.Errorf("worksheet picker: %w", err)
	}

	m := final.(model)
	if m.aborted || m.choice == "" {
		return "", fmt.Errorf("no worksheet selected")
	}
	return m.choice, nil
}
