package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// SystemListModel - Interactive system selection
// =============================================================================

// SystemListModel is the bubbletea model for interactive system browsing.
type SystemListModel struct {
	Systems  []*bundle.System
	Cursor   int
	Selected *bundle.System
	Height   int
	Offset   int
}

// NewSystemListModel creates a new system list model.
func NewSystemListModel(systems []*bundle.System) SystemListModel {
	return SystemListModel{
		Systems: systems,
		Cursor:  0,
		Height:  15,
		Offset:  0,
	}
}

func (m SystemListModel) Init() tea.Cmd {
	return nil
}

func (m SystemListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Systems)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Selected = m.Systems[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SystemListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select System"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Systems) {
		end = len(m.Systems)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Systems[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		deps := "—"
		if len(s.Requires) > 0 {
			deps = strings.Join(s.Requires, ", ")
		}

		rows = append(rows, []string{cursor, s.Name, s.ReleaseName, deps})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "System", "Release", "Depends On").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Systems) {
				return lipgloss.NewStyle()
			}
			isCurrent := actualIdx == m.Cursor

			base := lipgloss.NewStyle()
			if col == 3 {
				base = base.Foreground(colorDim)
			}

			if isCurrent {
				if col != 3 {
					return base.Foreground(colorCyan).Bold(true)
				}
				return base.Bold(true)
			}
			if col == 1 {
				return base.Foreground(colorWhite)
			}
			return base.Foreground(colorGray)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Systems))))

	return b.String()
}
