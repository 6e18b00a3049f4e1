package companion

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eilo/internal/chat"
	"eilo/internal/clock"
	"eilo/internal/config"
	"eilo/internal/economy"
	"eilo/internal/idle"
	"eilo/internal/persona"
	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/session"
	"eilo/internal/store"
)

type fakeBrain struct {
	mu    sync.Mutex
	reply string
	scene sensor.Scene
	err   error
	sys   string
}

func (b *fakeBrain) Converse(ctx context.Context, _ string, _ sensor.Scene) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reply, b.err
}

func (b *fakeBrain) ClassifyScene(ctx context.Context, _ sensor.Frame) (sensor.Scene, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene, b.err
}

func (b *fakeBrain) SetPersona(instruction string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sys = instruction
}

func (b *fakeBrain) persona() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sys
}

type harness struct {
	clock *clock.Fake
	store *store.Memory
	users *session.Static
	brain *fakeBrain
	c     *Companion
}

func behavior() config.Behavior {
	return config.Behavior{
		IdleWindow:     15 * time.Second,
		HappyDuration:  3 * time.Second,
		MadDuration:    3 * time.Second,
		DizzyDuration:  5 * time.Second,
		ScaredDuration: 8 * time.Second,
		ShakeThreshold: 30,
		TiltThreshold:  60,
		PanicCooldown:  7 * time.Second,
		VisionInterval: time.Hour,
		TurnTimeout:    time.Minute,
	}
}

func newHarness(t *testing.T, personas *persona.Registry) *harness {
	t.Helper()
	c := clock.NewFake(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	h := &harness{
		clock: c,
		store: store.NewMemory(c),
		users: session.NewStatic(&session.User{ID: "u1", DisplayName: "Sam"}),
		brain: &fakeBrain{reply: "Hey there! ✨", scene: sensor.SceneDesk},
	}
	h.c = New(Deps{
		Clock:    c,
		Store:    h.store,
		Brain:    h.brain,
		Personas: personas,
		Users:    h.users,
		Behavior: behavior(),
	})
	require.NoError(t, h.c.Start(context.Background()))
	t.Cleanup(h.c.Close)
	return h
}

func pinIdleChoice(t *testing.T, v float64) {
	prev := idle.RandFloat64
	idle.RandFloat64 = func() float64 { return v }
	t.Cleanup(func() { idle.RandFloat64 = prev })
}

func TestStartGrantsLoginBonusOncePerSession(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, economy.LoginBonus, h.c.Balance())

	// Same user again is not a new session.
	h.users.SignIn(session.User{ID: "u1", DisplayName: "Sam"})
	assert.Equal(t, economy.LoginBonus, h.c.Balance())

	h.users.SignOut()
	assert.Nil(t, h.c.Status().User)
	h.users.SignIn(session.User{ID: "u1", DisplayName: "Sam"})
	assert.Equal(t, 2*economy.LoginBonus, h.c.Balance())
}

func TestPetRelaxedFace(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.c.Pet(context.Background()))
	assert.Equal(t, pet.MoodHappy, h.c.Status().Pet.Mood)
	assert.Equal(t, economy.LoginBonus+economy.PetReward, h.c.Balance())

	// Already happy: nothing changes.
	assert.False(t, h.c.Pet(context.Background()))
	assert.Equal(t, economy.LoginBonus+economy.PetReward, h.c.Balance())
}

func TestPetDuringIdleActionMakesEiloMad(t *testing.T) {
	pinIdleChoice(t, 0)
	h := newHarness(t, nil)

	h.clock.Advance(15 * time.Second)
	require.Equal(t, pet.MoodSleeping, h.c.Status().Pet.Mood)

	require.True(t, h.c.Pet(context.Background()))
	assert.Equal(t, pet.MoodMad, h.c.Status().Pet.Mood)
	assert.Equal(t, economy.LoginBonus, h.c.Balance(), "an interrupted nap earns nothing")

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
}

func TestFinishedNapEarnsCoins(t *testing.T) {
	pinIdleChoice(t, 0)
	h := newHarness(t, nil)

	h.clock.Advance(15 * time.Second)
	require.Equal(t, pet.MoodSleeping, h.c.Status().Pet.Mood)
	h.clock.Advance(pet.NapDuration)

	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
	assert.Equal(t, economy.LoginBonus+economy.NapReward, h.c.Balance())
}

func TestActivityDelaysIdle(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(10 * time.Second)
	h.c.Activity()
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)

	h.clock.Advance(5 * time.Second)
	assert.True(t, h.c.Status().Pet.Mood.IsIdleAction())
}

func TestSendRewardsFirstChatOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.c.Send(ctx, "hi"))
	assert.Equal(t, pet.MoodHappy, h.c.Status().Pet.Mood)
	assert.Equal(t, economy.LoginBonus+economy.FirstChatBonus, h.c.Balance())

	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.c.Send(ctx, "again"))
	assert.Equal(t, economy.LoginBonus+economy.FirstChatBonus, h.c.Balance())

	msgs, err := h.c.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Hey there! ✨", msgs[1].Text)
}

func TestSendFailureDegrades(t *testing.T) {
	h := newHarness(t, nil)
	h.brain.err = errors.New("unreachable")

	err := h.c.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, chat.ErrNoReply)
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
	assert.Equal(t, economy.LoginBonus, h.c.Balance())
}

func TestShakeMakesEiloDizzy(t *testing.T) {
	h := newHarness(t, nil)

	h.c.Motion(sensor.Motion{X: 2, Y: 41, Z: 1})
	assert.Equal(t, pet.MoodDizzy, h.c.Status().Pet.Mood)

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
}

func TestTiltScaresAndRelieves(t *testing.T) {
	h := newHarness(t, nil)

	h.c.Orientation(sensor.Orientation{Beta: 80})
	assert.Equal(t, pet.MoodScared, h.c.Status().Pet.Mood)

	h.c.Orientation(sensor.Orientation{Beta: 5})
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
}

func TestFearOfHeightsFlag(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.c.ToggleFearOfHeights(context.Background())
	require.NoError(t, err)
	require.False(t, s.FearOfHeights)

	h.c.Orientation(sensor.Orientation{Beta: 80})
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
}

func TestSensorsIgnoredWhenSignedOut(t *testing.T) {
	h := newHarness(t, nil)
	h.users.SignOut()

	h.c.Motion(sensor.Motion{Z: 50})
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
	assert.False(t, h.c.Pet(context.Background()))
}

func TestVisionRespectsFlags(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.brain.scene = sensor.SceneHolding
	h.c.Frame(sensor.Frame{Width: 2, Height: 2, JPEG: []byte{0xff, 0xd8}})

	_, ok := h.c.ClassifyNow(ctx)
	assert.False(t, ok, "vision is off by default")

	_, err := h.c.ToggleVision(ctx)
	require.NoError(t, err)
	scene, ok := h.c.ClassifyNow(ctx)
	require.True(t, ok)
	assert.Equal(t, sensor.SceneHolding, scene)
	assert.Equal(t, pet.MoodScared, h.c.Status().Pet.Mood)
	assert.Equal(t, sensor.SceneHolding, h.c.Status().Scene)

	_, err = h.c.ToggleChaos(ctx)
	require.NoError(t, err)
	_, ok = h.c.ClassifyNow(ctx)
	assert.False(t, ok, "chaos mode pauses vision")
}

func TestPurchase(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	ok, err := h.c.Purchase(ctx, economy.ItemHandheld)
	assert.False(t, ok)
	assert.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Equal(t, economy.LoginBonus, h.c.Balance())

	ok, err = h.c.Purchase(ctx, economy.ItemDuctTape)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, economy.LoginBonus-25, h.c.Balance())
	assert.True(t, h.c.Settings().Owns(economy.ItemDuctTape))

	ok, err = h.c.Purchase(ctx, economy.ItemDuctTape)
	assert.False(t, ok)
	assert.ErrorIs(t, err, economy.ErrAlreadyOwned)

	stored, err := h.store.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, economy.LoginBonus-25, stored.Balance)
}

func TestSettingsNeedUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	s, err := h.c.ToggleMuted(ctx)
	require.NoError(t, err)
	assert.True(t, s.Muted)
	assert.True(t, h.c.Settings().Muted)

	h.users.SignOut()
	_, err = h.c.ToggleMuted(ctx)
	assert.ErrorIs(t, err, chat.ErrSignedOut)
	_, err = h.c.Messages(ctx)
	assert.ErrorIs(t, err, chat.ErrSignedOut)
}

func TestPersonaFollowsUser(t *testing.T) {
	reg := persona.NewRegistry(
		persona.Profile{ID: "pirate", Name: "Captain Eilo", SystemPrompt: "Arr, ye be a robot pirate.", Users: []string{"u1"}},
		persona.Profile{ID: "sleepy", Name: "Sleepy Eilo", SystemPrompt: "You are very sleepy."},
	)
	h := newHarness(t, reg)
	ctx := context.Background()

	assert.Equal(t, "pirate", h.c.Status().Persona.ID)
	assert.Equal(t, "Arr, ye be a robot pirate.", h.brain.persona())

	_, err := h.c.ChoosePersona(ctx, "sleepy")
	require.NoError(t, err)
	assert.Equal(t, "sleepy", h.c.Status().Persona.ID)
	assert.Equal(t, "You are very sleepy.", h.brain.persona())

	_, err = h.c.ChoosePersona(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.Equal(t, []string{"eilo", "pirate", "sleepy"}, h.c.Personas())
}

func TestPowerOff(t *testing.T) {
	h := newHarness(t, nil)

	assert.False(t, h.c.ToggleAwake())
	h.clock.Advance(time.Minute)
	assert.Equal(t, pet.MoodNeutral, h.c.Status().Pet.Mood)
	assert.False(t, h.c.Pet(context.Background()))
	assert.ErrorIs(t, h.c.Send(context.Background(), "hi"), chat.ErrAsleep)

	assert.True(t, h.c.ToggleAwake())
	h.clock.Advance(15 * time.Second)
	assert.True(t, h.c.Status().Pet.Mood.IsIdleAction())
}

func TestSubscribeSeesTransitions(t *testing.T) {
	h := newHarness(t, nil)
	var mu sync.Mutex
	var seen []pet.Mood
	unsub := h.c.Subscribe(func(tr pet.Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr.To)
	})
	defer unsub()

	h.c.Pet(context.Background())
	h.clock.Advance(3 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []pet.Mood{pet.MoodHappy, pet.MoodNeutral}, seen)
}

func TestInterleavedInputsKeepOneMood(t *testing.T) {
	h := newHarness(t, nil)

	var mu sync.Mutex
	var seen []pet.Transition
	unsub := h.c.Subscribe(func(tr pet.Transition) {
		mu.Lock()
		seen = append(seen, tr)
		mu.Unlock()
	})
	defer unsub()

	ctx := context.Background()
	var wg sync.WaitGroup
	for g := 0; g < 6; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 150; i++ {
				switch rng.Intn(7) {
				case 0:
					h.c.Motion(sensor.Motion{Y: 45})
				case 1:
					h.c.Orientation(sensor.Orientation{Beta: float64(rng.Intn(90))})
				case 2:
					h.c.Pet(ctx)
				case 3:
					h.c.Activity()
				case 4:
					err := h.c.Send(ctx, "hi")
					if err != nil {
						assert.ErrorIs(t, err, chat.ErrBusy)
					}
				default:
					h.clock.Advance(time.Duration(rng.Intn(6000)) * time.Millisecond)
				}
			}
		}(int64(g + 1))
	}
	wg.Wait()

	st := h.c.Status()
	assert.Equal(t, st.Pet.Mood.IsTimed(), h.c.machine.ReturnPending())
	assert.False(t, st.Pet.TurnInFlight)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Equal(t, seen[i-1].To, seen[i].From, "transition %d observed out of order", i)
	}
	assert.Equal(t, st.Pet.Mood, seen[len(seen)-1].To)
}
