package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"eilo/internal/economy"
	"eilo/internal/pet"
	"eilo/internal/store"
)

// headerRows is the number of lines drawn above the runaway stage.
const headerRows = 2

// transcriptRows is how many messages the chat pane shows.
const transcriptRows = 8

var gameStyles = struct {
	title   lipgloss.Style
	status  lipgloss.Style
	face    lipgloss.Style
	menu    lipgloss.Style
	menuBox lipgloss.Style
	user    lipgloss.Style
	eilo    lipgloss.Style
	input   lipgloss.Style
	dim     lipgloss.Style
}{
	title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF75B5")).
		Padding(0, 1),

	status: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF75B5")),

	face: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7FD4FF")).
		Bold(true).
		Padding(0, 2),

	menu: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF75B5")),

	menuBox: lipgloss.NewStyle().
		Padding(0, 2),

	user: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFD700")),

	eilo: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7FD4FF")),

	input: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FF75B5")).
		Padding(0, 1).
		Width(48),

	dim: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")),
}

// View implements tea.Model
func (m Model) View() string {
	if m.Quitting {
		return "Bye bye! ✨\n"
	}
	if m.Status.Settings.Chaos {
		return m.runawayView()
	}

	sections := []string{
		m.renderTitle(),
		"",
		gameStyles.face.Render(m.renderFace()),
		"",
		gameStyles.status.Render("Status: " + pet.GetStatusWithLabel(m.Status.Pet)),
		gameStyles.status.Render(m.renderWallet()),
		gameStyles.dim.Render(m.renderFlags()),
	}

	if m.Message != "" && m.now().Before(m.MessageExpires) {
		sections = append(sections, "", gameStyles.status.Render(m.Message))
	}

	sections = append(sections, "", m.renderTranscript())

	switch m.Focus {
	case FocusMenu:
		sections = append(sections, "", m.renderMenu())
	case FocusShop:
		sections = append(sections, "", m.renderShop())
	default:
		sections = append(sections, m.renderInput())
	}

	sections = append(sections, "", gameStyles.dim.Render(m.helpText()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitle() string {
	name := m.Status.Persona.Name
	if name == "" {
		name = pet.DefaultPetName
	}
	title := "✨ " + name + " ✨"
	if m.Status.User != nil {
		title += gameStyles.dim.Render("  with " + m.Status.User.DisplayName)
	}
	return gameStyles.title.Render(title)
}

func (m Model) renderFace() string {
	if !m.Status.Pet.Awake {
		return OffFrame
	}
	anim := m.Animation
	anim.Mood = m.Status.Pet.Mood
	return GetAnimationFrame(anim)
}

func (m Model) renderWallet() string {
	inv := m.Status.Settings.Inventory
	owned := "nothing yet"
	if len(inv) > 0 {
		var names []string
		for _, id := range inv {
			if item, ok := economy.Lookup(id); ok {
				names = append(names, item.Name)
			}
		}
		owned = strings.Join(names, ", ")
	}
	return fmt.Sprintf("🪙 %d coins  •  🎒 %s", m.Status.Settings.Balance, owned)
}

func (m Model) renderFlags() string {
	s := m.Status.Settings
	flag := func(name string, on bool) string {
		if on {
			return name + ": on"
		}
		return name + ": off"
	}
	flags := []string{
		flag("sound", !s.Muted),
		flag("fear of heights", s.FearOfHeights),
		flag("vision", s.Vision),
		"scene: " + string(m.Status.Scene),
	}
	if m.Status.Speaking {
		flags = append(flags, "🔊")
	}
	return strings.Join(flags, "  •  ")
}

func (m Model) renderTranscript() string {
	if m.Status.User == nil {
		return gameStyles.dim.Render("Not signed in. Eilo can't chat right now.")
	}
	msgs := m.Messages
	if len(msgs) == 0 {
		return gameStyles.dim.Render("Say hi to Eilo!")
	}
	if len(msgs) > transcriptRows {
		msgs = msgs[len(msgs)-transcriptRows:]
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func renderMessage(msg store.Message) string {
	stamp := msg.Timestamp.Local().Format("15:04")
	if msg.Role == store.RoleUser {
		return gameStyles.dim.Render(stamp) + " " + gameStyles.user.Render("you: "+msg.Text)
	}
	return gameStyles.dim.Render(stamp) + " " + gameStyles.eilo.Render("eilo: "+msg.Text)
}

func (m Model) renderInput() string {
	prompt := "> " + m.Input + "█"
	if m.Status.Pet.TurnInFlight {
		prompt = "> " + m.Input + gameStyles.dim.Render(" (thinking...)")
	}
	return gameStyles.input.Render(prompt)
}

func (m Model) renderMenu() string {
	s := m.Status.Settings
	states := map[int]string{
		MenuMute:   onOff(s.Muted),
		MenuFear:   onOff(s.FearOfHeights),
		MenuVision: onOff(s.Vision),
		MenuChaos:  onOff(s.Chaos),
		MenuPower:  onOff(m.Status.Pet.Awake),
	}

	var menuItems []string
	for i, choice := range menuOptions {
		cursor := " "
		if m.Choice == i {
			cursor = ">"
		}
		line := gameStyles.menu.Render(fmt.Sprintf("%s %s", cursor, choice))
		if st, ok := states[i]; ok {
			line += gameStyles.dim.Render(" [" + st + "]")
		}
		menuItems = append(menuItems, line)
	}
	return gameStyles.menuBox.Render(strings.Join(menuItems, "\n"))
}

func (m Model) renderShop() string {
	header := gameStyles.title.Render("🛍️  Shop")
	var menuItems []string
	for i, item := range economy.Catalog() {
		cursor := " "
		if m.ShopChoice == i {
			cursor = ">"
		}
		line := fmt.Sprintf("%s %-18s %3d 🪙  %s", cursor, item.Name, item.Price, item.Description)
		if m.Status.Settings.Owns(item.ID) {
			line += gameStyles.dim.Render(" (owned)")
		}
		menuItems = append(menuItems, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		gameStyles.menuBox.Render(strings.Join(menuItems, "\n")),
	)
}

func (m Model) runawayView() string {
	fleeing := m.Stage.Near()
	title := gameStyles.title.Render("🌀 Chaos mode! Catch Eilo with the mouse 🌀")
	stage := m.Stage.Render(RunawayFace(m.Status.Pet, fleeing))
	help := "click Eilo to pet • tab for menu • ctrl+c to quit"
	sections := []string{title, "", stage}
	switch m.Focus {
	case FocusMenu:
		sections = append(sections, m.renderMenu())
	case FocusShop:
		sections = append(sections, m.renderShop())
	}
	return lipgloss.JoinVertical(lipgloss.Left, append(sections, gameStyles.dim.Render(help))...)
}

func (m Model) helpText() string {
	switch m.Focus {
	case FocusMenu:
		return "arrows to move • enter to select • tab back to chat • q to quit"
	case FocusShop:
		return "arrows to move • enter to buy • esc to go back"
	default:
		return "type to chat • enter to send • tab for menu • click to pet • ctrl+c to quit"
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
