// Package companion assembles Eilo: the mood machine and everything that
// asks it for transitions.
package companion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/brain"
	"eilo/internal/chat"
	"eilo/internal/clock"
	"eilo/internal/config"
	"eilo/internal/economy"
	"eilo/internal/idle"
	"eilo/internal/persona"
	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/session"
	"eilo/internal/speech"
	"eilo/internal/store"
)

// Deps are the collaborators a Companion drives. Synth and Player may be
// nil, which leaves speech silent.
type Deps struct {
	Clock    clock.Clock
	Store    store.Store
	Brain    brain.Brain
	Synth    speech.Synthesizer
	Player   speech.Player
	Personas *persona.Registry
	Users    session.Provider
	Behavior config.Behavior
}

// Status is everything a front end shows.
type Status struct {
	Pet      pet.Snapshot
	User     *session.User
	Settings store.Settings
	Scene    sensor.Scene
	Persona  persona.Profile
	Speaking bool
}

type personaSetter interface {
	SetPersona(instruction string)
}

// Companion is one running Eilo.
type Companion struct {
	clock    clock.Clock
	store    store.Store
	brain    brain.Brain
	personas *persona.Registry
	users    session.Provider

	output     *speech.Output
	machine    *pet.Machine
	ledger     *economy.Ledger
	idle       *idle.Scheduler
	normalizer *sensor.Normalizer
	cooldown   *sensor.Cooldown
	reactor    *sensor.Reactor
	frames     *sensor.FrameBuffer
	vision     *sensor.Vision
	chat       *chat.Orchestrator

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	user     *session.User
	settings store.Settings
	profile  persona.Profile
	unsub    func()
}

// New wires a Companion. Call Start to bring it to life.
func New(d Deps) *Companion {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Brain == nil {
		d.Brain = brain.Local{}
	}
	if d.Personas == nil {
		d.Personas = persona.NewRegistry()
	}
	if d.Users == nil {
		d.Users = session.NewStatic(nil)
	}
	b := d.Behavior

	c := &Companion{
		clock:    d.Clock,
		store:    d.Store,
		brain:    d.Brain,
		personas: d.Personas,
		users:    d.Users,
		settings: store.DefaultSettings(),
		profile:  persona.Default(),
	}

	c.output = speech.NewOutput(d.Synth, d.Player)
	c.machine = pet.NewMachine(d.Clock, c.output, durations(b))
	c.ledger = economy.NewLedger(d.Store, c.machine)
	c.ledger.OnChange(c.apply)

	c.idle = idle.New(d.Clock, c.machine, idle.Options{
		Window:     b.IdleWindow,
		Owns:       c.ledger.Owns,
		OnComplete: c.idleDone,
	})

	c.normalizer = sensor.NewNormalizer(sensor.Thresholds{Shake: b.ShakeThreshold, Tilt: b.TiltThreshold})
	c.cooldown = sensor.NewCooldown(d.Clock, b.PanicCooldown)
	c.reactor = sensor.NewReactor(c.machine, c.cooldown, sensor.ReactorOptions{
		DizzyDuration: b.DizzyDuration,
		FearOfHeights: func() bool { return c.Settings().FearOfHeights },
		Gate:          func() bool { return c.users.Current() != nil },
	})

	c.frames = &sensor.FrameBuffer{}
	c.vision = sensor.NewVision(c.frames, d.Brain, sensor.VisionOptions{
		Clock:    d.Clock,
		Interval: b.VisionInterval,
		Gate:     c.visionAllowed,
		OnScene:  func(s sensor.Scene) { c.reactor.React(c.normalizer.Scene(s)) },
	})

	c.chat = chat.New(c.machine, d.Store, d.Brain, chat.Options{
		User:    c.users.Current,
		Scene:   c.vision.Last,
		OnReply: c.replied,
		Timeout: b.TurnTimeout,
	})
	return c
}

func durations(b config.Behavior) map[pet.Mood]time.Duration {
	d := pet.DefaultDurations()
	set := func(m pet.Mood, v time.Duration) {
		if v > 0 {
			d[m] = v
		}
	}
	set(pet.MoodHappy, b.HappyDuration)
	set(pet.MoodMad, b.MadDuration)
	set(pet.MoodDizzy, b.DizzyDuration)
	set(pet.MoodScared, b.ScaredDuration)
	return d
}

// Start loads the signed-in user, follows sign-in changes, arms the idle
// countdown and starts the vision loop.
func (c *Companion) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ctx, c.cancel = ctx, cancel
	c.mu.Unlock()

	if u := c.users.Current(); u != nil {
		if err := c.signIn(ctx, *u); err != nil {
			cancel()
			return err
		}
	}
	unsub := c.users.Subscribe(func(u *session.User) {
		if u == nil {
			c.signOut()
			return
		}
		if err := c.signIn(ctx, *u); err != nil {
			log.Error().Err(err).Str("user", u.ID).Msg("sign-in failed")
		}
	})
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()

	c.idle.Start()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.vision.Run(ctx)
	}()

	log.Info().Msg("companion started")
	return nil
}

// Close stops every timer, loop and utterance.
func (c *Companion) Close() {
	c.mu.Lock()
	cancel, unsub := c.cancel, c.unsub
	c.unsub = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.idle.Stop()
	c.cooldown.Cancel()
	c.machine.Close()
	c.ledger.End()
	log.Info().Msg("companion closed")
}

func (c *Companion) signIn(ctx context.Context, u session.User) error {
	sess := session.New(u, c.clock.Now())
	if err := c.ledger.Begin(ctx, sess); err != nil {
		return err
	}
	settings, err := c.store.GetSettings(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	c.mu.Lock()
	c.user = &u
	c.mu.Unlock()
	c.apply(settings)

	log.Info().Str("user", u.ID).Str("session", sess.ID).Msg("signed in")
	if _, err := c.ledger.Award(ctx, economy.LoginBonus, economy.RewardLogin, false, false); err != nil {
		log.Warn().Err(err).Msg("login bonus not granted")
	}
	return nil
}

func (c *Companion) signOut() {
	c.ledger.End()
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
	c.apply(store.DefaultSettings())
	log.Info().Msg("signed out")
}

// apply makes settings the snapshot every flag decision reads.
func (c *Companion) apply(s store.Settings) {
	c.mu.Lock()
	c.settings = s
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	profile := c.personas.ForUser(userID, s.Persona)
	changed := profile.ID != c.profile.ID
	c.profile = profile
	c.mu.Unlock()

	c.output.SetMuted(s.Muted)
	c.output.SetRestrained(s.Owns(economy.ItemDuctTape))
	if changed {
		log.Info().Str("persona", profile.ID).Msg("persona selected")
		c.usePersona(profile)
	}
}

func (c *Companion) usePersona(p persona.Profile) {
	if ps, ok := c.brain.(personaSetter); ok {
		ps.SetPersona(p.SystemPrompt)
	}
	defaults := pet.DefaultPhrases()
	for _, mood := range pet.AllMoods {
		if !mood.IsExpressive() {
			continue
		}
		phrases := p.Phrases[string(mood)]
		if len(phrases) < 2 {
			phrases = defaults[mood]
		}
		c.machine.SetPhrases(mood, phrases)
	}
}

func (c *Companion) visionAllowed() bool {
	s := c.Settings()
	if !s.Vision || s.Chaos {
		return false
	}
	st := c.machine.State()
	return st.Awake && !st.TurnInFlight
}

func (c *Companion) idleDone(a idle.Action) {
	if a.ID != idle.ActionNap {
		return
	}
	if _, err := c.ledger.Award(c.context(), economy.NapReward, economy.RewardNap, true, true); err != nil && !errors.Is(err, economy.ErrNoSession) {
		log.Warn().Err(err).Msg("nap reward not granted")
	}
}

func (c *Companion) replied(ctx context.Context) {
	if _, err := c.ledger.Award(ctx, economy.FirstChatBonus, economy.RewardFirstChat, false, true); err != nil {
		log.Warn().Err(err).Msg("first chat reward not granted")
	}
}

func (c *Companion) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Settings returns the current settings snapshot.
func (c *Companion) Settings() store.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.settings
	s.Inventory = append([]string(nil), s.Inventory...)
	return s
}

// Status returns what a front end needs to draw.
func (c *Companion) Status() Status {
	c.mu.Lock()
	var user *session.User
	if c.user != nil {
		u := *c.user
		user = &u
	}
	profile := c.profile
	c.mu.Unlock()

	return Status{
		Pet:      c.machine.State(),
		User:     user,
		Settings: c.Settings(),
		Scene:    c.vision.Last(),
		Persona:  profile,
		Speaking: c.output.IsSpeaking(),
	}
}

// Subscribe registers fn for every mood transition.
func (c *Companion) Subscribe(fn func(pet.Transition)) (unsubscribe func()) {
	return c.machine.Subscribe(fn)
}

// OnSpoken registers fn for every utterance that played to the end.
func (c *Companion) OnSpoken(fn func(text string)) {
	c.output.OnDone(fn)
}
