package ui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"eilo/internal/economy"
	"eilo/internal/session"
	"eilo/internal/store"
)

// StatsModel is a simple Bubble Tea model for displaying a user's card
type StatsModel struct {
	Name     string
	User     session.User
	Settings store.Settings
}

// Init implements tea.Model
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, tea.Quit
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model
func (m StatsModel) View() string {
	return m.Card() + "\nPress ESC, click, or any key to close..."
}

// Card renders the boxed summary of coins, items and settings.
func (m StatsModel) Card() string {
	makeBar := func(owned, total int) string {
		var bar strings.Builder
		for i := 0; i < total; i++ {
			if i < owned {
				bar.WriteString("█")
			} else {
				bar.WriteString("░")
			}
		}
		return bar.String()
	}

	s := m.Settings
	catalog := economy.Catalog()
	owned := 0
	var names []string
	for _, item := range catalog {
		if s.Owns(item.ID) {
			owned++
			names = append(names, item.Name)
		}
	}
	items := strings.Join(names, ", ")
	if items == "" {
		items = "None"
	}

	user := m.User.DisplayName
	if user == "" {
		user = m.User.ID
	}

	var b strings.Builder
	b.WriteString("╔════════════════════════════════════╗\n")
	b.WriteString(fmt.Sprintf("║  ✨ %-30s ║\n", m.Name))
	b.WriteString("╠════════════════════════════════════╣\n")
	b.WriteString(fmt.Sprintf("║  Friend:  %-24s ║\n", user))
	b.WriteString(fmt.Sprintf("║  Coins:   %-24d ║\n", s.Balance))
	b.WriteString(fmt.Sprintf("║  Items:   [%s] %d/%-17d ║\n", makeBar(owned, len(catalog)), owned, len(catalog)))
	b.WriteString(fmt.Sprintf("║           %-24s ║\n", items))
	b.WriteString("║                                    ║\n")
	b.WriteString(fmt.Sprintf("║  Sound:           %-16s ║\n", onOff(!s.Muted)))
	b.WriteString(fmt.Sprintf("║  Fear of heights: %-16s ║\n", onOff(s.FearOfHeights)))
	b.WriteString(fmt.Sprintf("║  Vision:          %-16s ║\n", onOff(s.Vision)))
	b.WriteString(fmt.Sprintf("║  Chaos mode:      %-16s ║\n", onOff(s.Chaos)))
	b.WriteString("╚════════════════════════════════════╝\n")
	return b.String()
}

// DisplayStats shows the stats card
func DisplayStats(m StatsModel) {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running stats display: %v\n", err)
		os.Exit(1)
	}
}
