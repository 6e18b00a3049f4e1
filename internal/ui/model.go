package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"eilo/internal/chase"
	"eilo/internal/chat"
	"eilo/internal/companion"
	"eilo/internal/economy"
	"eilo/internal/pet"
	"eilo/internal/store"
)

// Companion is what the terminal front end drives.
type Companion interface {
	Status() companion.Status
	Send(ctx context.Context, text string) error
	Pet(ctx context.Context) bool
	Activity()
	Purchase(ctx context.Context, itemID string) (bool, error)
	ToggleAwake() bool
	ToggleMuted(ctx context.Context) (store.Settings, error)
	ToggleFearOfHeights(ctx context.Context) (store.Settings, error)
	ToggleVision(ctx context.Context) (store.Settings, error)
	ToggleChaos(ctx context.Context) (store.Settings, error)
	SubscribeMessages(ctx context.Context) (<-chan []store.Message, error)
}

// Focus is which part of the screen takes key presses.
type Focus int

const (
	FocusChat Focus = iota
	FocusMenu
	FocusShop
)

// Menu entries
const (
	MenuPet = iota
	MenuShop
	MenuMute
	MenuFear
	MenuVision
	MenuChaos
	MenuPower
	MenuQuit
)

var menuOptions = []string{"Pet", "Shop", "Mute", "Fear of heights", "Vision", "Chaos mode", "Power", "Quit"}

// Model represents the companion screen
type Model struct {
	Companion      Companion
	Status         companion.Status
	Messages       []store.Message
	Input          string
	Focus          Focus
	Choice         int
	ShopChoice     int
	Quitting       bool
	Message        string
	MessageExpires time.Time
	Animation      Animation
	Stage          chase.Stage
	Width          int
	Height         int

	ctx         context.Context
	transitions <-chan pet.Transition
	transcript  <-chan []store.Message
	stopListen  context.CancelFunc
	listenUser  string
	initCmd     tea.Cmd
	now         func() time.Time
}

type animTickMsg struct{}

type transitionMsg pet.Transition

type transcriptMsg struct {
	user     string
	messages []store.Message
	closed   bool
}

type sendDoneMsg struct{ err error }

// NewModel creates the screen model. transitions delivers the mood
// machine's transitions; it may be nil.
func NewModel(ctx context.Context, c Companion, transitions <-chan pet.Transition) Model {
	st := c.Status()
	m := Model{
		Companion:   c,
		Status:      st,
		Animation:   Animation{Mood: st.Pet.Mood, StartTime: time.Now()},
		ctx:         ctx,
		transitions: transitions,
		now:         time.Now,
	}
	m.initCmd = m.syncTranscript()
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(animTick(), waitForTransition(m.transitions), m.initCmd)
}

func animTick() tea.Cmd {
	return tea.Tick(AnimationFrameDuration, func(time.Time) tea.Msg {
		return animTickMsg{}
	})
}

func waitForTransition(ch <-chan pet.Transition) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		tr, ok := <-ch
		if !ok {
			return nil
		}
		return transitionMsg(tr)
	}
}

func waitForTranscript(user string, ch <-chan []store.Message) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msgs, ok := <-ch
		return transcriptMsg{user: user, messages: msgs, closed: !ok}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.Companion.Activity()
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.Companion.Activity()
		m.Stage.Pointer(msg.X, msg.Y-headerRows)
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if !m.Status.Settings.Chaos || m.Stage.Caught() {
				m.pet()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Stage.Resize(msg.Width, msg.Height)
		return m, nil

	case animTickMsg:
		m.Animation.Frame++
		m.refresh()
		if m.Status.Settings.Chaos {
			m.Stage.Step()
		}
		return m, tea.Batch(animTick(), m.syncTranscript())

	case transitionMsg:
		m.Animation = Animation{Mood: msg.To, StartTime: m.now()}
		m.refresh()
		return m, waitForTransition(m.transitions)

	case transcriptMsg:
		if msg.closed || msg.user != m.listenUser {
			return m, nil
		}
		m.Messages = msg.messages
		return m, waitForTranscript(msg.user, m.transcript)

	case sendDoneMsg:
		m.refresh()
		if msg.err != nil {
			m.setMessage(sendErrorText(msg.err))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Quitting = true
		return m, tea.Quit
	}

	switch m.Focus {
	case FocusShop:
		catalog := economy.Catalog()
		switch msg.String() {
		case "esc", "tab":
			m.Focus = FocusMenu
		case "up", "k":
			if m.ShopChoice > 0 {
				m.ShopChoice--
			}
		case "down", "j":
			if m.ShopChoice < len(catalog)-1 {
				m.ShopChoice++
			}
		case "enter", " ":
			m.purchase(catalog[m.ShopChoice])
		}
		return m, nil

	case FocusMenu:
		switch msg.String() {
		case "q":
			m.Quitting = true
			return m, tea.Quit
		case "esc", "tab":
			m.Focus = FocusChat
		case "up", "k":
			if m.Choice > 0 {
				m.Choice--
			}
		case "down", "j":
			if m.Choice < len(menuOptions)-1 {
				m.Choice++
			}
		case "enter", " ":
			return m.choose()
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyTab, tea.KeyEsc:
		m.Focus = FocusMenu
	case tea.KeyEnter:
		return m.send()
	case tea.KeyBackspace:
		if r := []rune(m.Input); len(r) > 0 {
			m.Input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.Input += " "
	case tea.KeyRunes:
		m.Input += string(msg.Runes)
	}
	return m, nil
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := m.Input
	if text == "" {
		return m, nil
	}
	m.Input = ""
	c, ctx := m.Companion, m.ctx
	return m, func() tea.Msg {
		return sendDoneMsg{err: c.Send(ctx, text)}
	}
}

func (m Model) choose() (tea.Model, tea.Cmd) {
	var err error
	switch m.Choice {
	case MenuPet:
		m.pet()
	case MenuShop:
		m.Focus = FocusShop
		m.ShopChoice = 0
	case MenuMute:
		_, err = m.Companion.ToggleMuted(m.ctx)
	case MenuFear:
		_, err = m.Companion.ToggleFearOfHeights(m.ctx)
	case MenuVision:
		_, err = m.Companion.ToggleVision(m.ctx)
	case MenuChaos:
		_, err = m.Companion.ToggleChaos(m.ctx)
	case MenuPower:
		if m.Companion.ToggleAwake() {
			m.setMessage("☀️ Good morning!")
		} else {
			m.setMessage("🌙 Good night...")
		}
	case MenuQuit:
		m.Quitting = true
		return m, tea.Quit
	}
	if err != nil {
		log.Warn().Err(err).Str("option", menuOptions[m.Choice]).Msg("setting not saved")
		m.setMessage("🔒 Sign in to change settings")
	}
	m.refresh()
	return m, nil
}

func (m *Model) pet() {
	if !m.Companion.Pet(m.ctx) && m.Status.Pet.Awake {
		m.setMessage("🫧 Eilo is busy right now")
	}
	m.refresh()
}

func (m *Model) purchase(item economy.Item) {
	ok, err := m.Companion.Purchase(m.ctx, item.ID)
	switch {
	case ok:
		m.setMessage(fmt.Sprintf("🛍️ Bought a %s!", item.Name))
	case errors.Is(err, economy.ErrAlreadyOwned):
		m.setMessage("🎀 Already yours!")
	case errors.Is(err, economy.ErrInsufficientFunds):
		m.setMessage("🪙 Not enough coins")
	case errors.Is(err, economy.ErrNoSession):
		m.setMessage("🔒 Sign in to shop")
	case err != nil:
		log.Warn().Err(err).Str("item", item.ID).Msg("purchase failed")
		m.setMessage("⚠️ The shop is closed right now")
	}
	m.refresh()
}

// refresh pulls a fresh status snapshot.
func (m *Model) refresh() {
	m.Status = m.Companion.Status()
}

// syncTranscript follows the signed-in user with the transcript stream.
func (m *Model) syncTranscript() tea.Cmd {
	user := ""
	if m.Status.User != nil {
		user = m.Status.User.ID
	}
	if user == m.listenUser {
		return nil
	}

	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
	m.listenUser = user
	m.transcript = nil
	m.Messages = nil
	if user == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	ch, err := m.Companion.SubscribeMessages(ctx)
	if err != nil {
		cancel()
		log.Warn().Err(err).Msg("transcript unavailable")
		return nil
	}
	m.stopListen = cancel
	m.transcript = ch
	return waitForTranscript(user, ch)
}

func (m *Model) setMessage(msg string) {
	m.Message = msg
	m.MessageExpires = m.now().Add(3 * time.Second)
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "💭 Still thinking..."
	case errors.Is(err, chat.ErrAsleep):
		return "🌙 Eilo is powered off"
	case errors.Is(err, chat.ErrSignedOut):
		return "🔒 Sign in to chat"
	case errors.Is(err, chat.ErrEmpty):
		return ""
	default:
		return "📡 Eilo couldn't hear you... try again?"
	}
}
