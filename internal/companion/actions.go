package companion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"eilo/internal/chat"
	"eilo/internal/economy"
	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/store"
)

// ErrUnknownPersona is returned when choosing a persona that isn't loaded.
var ErrUnknownPersona = errors.New("companion: unknown persona")

// Send runs one conversational turn. Sending counts as activity.
func (c *Companion) Send(ctx context.Context, text string) error {
	c.idle.Reset()
	return c.chat.Send(ctx, text)
}

// Pet handles the pet gesture. Petting Eilo in the middle of an idle
// action makes Eilo mad; petting a relaxed face makes Eilo happy and earns
// a coin. It reports whether the face changed.
func (c *Companion) Pet(ctx context.Context) bool {
	c.idle.Reset()
	if c.users.Current() == nil {
		return false
	}

	if c.machine.Current().IsIdleAction() {
		return c.machine.RequestTransition(pet.TriggerBusyInterrupt, pet.MoodMad, pet.Options{})
	}
	if !c.machine.RequestTransition(pet.TriggerPet, pet.MoodHappy, pet.Options{}) {
		return false
	}
	if _, err := c.ledger.Award(ctx, economy.PetReward, economy.RewardPet, true, true); err != nil {
		log.Warn().Err(err).Msg("pet reward not granted")
	}
	return true
}

// Activity resets the idle countdown, e.g. on pointer movement.
func (c *Companion) Activity() {
	c.idle.Reset()
}

// Purchase buys an item from the shop.
func (c *Companion) Purchase(ctx context.Context, itemID string) (bool, error) {
	c.idle.Reset()
	return c.ledger.Purchase(ctx, itemID)
}

// Balance returns the coin balance.
func (c *Companion) Balance() int {
	return c.ledger.Balance()
}

// SetAwake powers Eilo on or off.
func (c *Companion) SetAwake(awake bool) {
	c.machine.SetAwake(awake)
	if awake {
		c.idle.Reset()
	}
}

// ToggleAwake flips the power button and returns the new state.
func (c *Companion) ToggleAwake() bool {
	awake := !c.machine.Awake()
	c.SetAwake(awake)
	return awake
}

// Motion feeds one device-motion sample.
func (c *Companion) Motion(m sensor.Motion) {
	c.reactor.React(c.normalizer.Motion(m))
}

// Orientation feeds one device-orientation sample.
func (c *Companion) Orientation(o sensor.Orientation) {
	c.reactor.React(c.normalizer.Orientation(o))
}

// Frame stores the newest camera frame for the vision loop.
func (c *Companion) Frame(f sensor.Frame) {
	c.frames.Push(f)
}

// ClassifyNow runs one vision pass immediately.
func (c *Companion) ClassifyNow(ctx context.Context) (sensor.Scene, bool) {
	return c.vision.Poll(ctx)
}

// UpdateSettings merges patch into the signed-in user's settings.
func (c *Companion) UpdateSettings(ctx context.Context, patch store.SettingsPatch) (store.Settings, error) {
	u := c.users.Current()
	if u == nil {
		return store.Settings{}, chat.ErrSignedOut
	}
	next, err := c.store.SetSettings(ctx, u.ID, patch)
	if err != nil {
		return store.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	c.ledger.Refresh(next)
	c.apply(next)
	return next, nil
}

// ToggleMuted flips the mute flag.
func (c *Companion) ToggleMuted(ctx context.Context) (store.Settings, error) {
	return c.UpdateSettings(ctx, store.SettingsPatch{Muted: store.Bool(!c.Settings().Muted)})
}

// ToggleFearOfHeights flips whether being picked up is scary.
func (c *Companion) ToggleFearOfHeights(ctx context.Context) (store.Settings, error) {
	return c.UpdateSettings(ctx, store.SettingsPatch{FearOfHeights: store.Bool(!c.Settings().FearOfHeights)})
}

// ToggleVision flips the camera scene loop.
func (c *Companion) ToggleVision(ctx context.Context) (store.Settings, error) {
	return c.UpdateSettings(ctx, store.SettingsPatch{Vision: store.Bool(!c.Settings().Vision)})
}

// ToggleChaos flips runaway mode.
func (c *Companion) ToggleChaos(ctx context.Context) (store.Settings, error) {
	return c.UpdateSettings(ctx, store.SettingsPatch{Chaos: store.Bool(!c.Settings().Chaos)})
}

// ChoosePersona selects a persona for the signed-in user.
func (c *Companion) ChoosePersona(ctx context.Context, id string) (store.Settings, error) {
	if _, ok := c.personas.Profile(id); !ok {
		return store.Settings{}, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	return c.UpdateSettings(ctx, store.SettingsPatch{Persona: store.String(id)})
}

// Personas lists the loaded persona IDs.
func (c *Companion) Personas() []string {
	return c.personas.IDs()
}

// Messages returns the signed-in user's transcript.
func (c *Companion) Messages(ctx context.Context) ([]store.Message, error) {
	u := c.users.Current()
	if u == nil {
		return nil, chat.ErrSignedOut
	}
	return c.store.Messages(ctx, u.ID)
}

// SubscribeMessages streams the signed-in user's transcript until ctx is done.
func (c *Companion) SubscribeMessages(ctx context.Context) (<-chan []store.Message, error) {
	u := c.users.Current()
	if u == nil {
		return nil, chat.ErrSignedOut
	}
	return c.store.SubscribeMessages(ctx, u.ID)
}
