package sensor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/clock"
	"eilo/internal/pet"
)

// DefaultPanicCooldown is the minimum gap between two panic utterances.
const DefaultPanicCooldown = 7 * time.Second

// Machine is the part of the mood machine the reactor drives.
type Machine interface {
	RequestTransition(trigger pet.Trigger, target pet.Mood, opts pet.Options) bool
	Current() pet.Mood
}

// Cooldown gates sensor speech. Mood changes are never gated.
type Cooldown struct {
	timer  *clock.Handle
	window time.Duration
}

// NewCooldown creates an open cooldown.
func NewCooldown(c clock.Clock, window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultPanicCooldown
	}
	return &Cooldown{timer: clock.NewHandle(c, "panic-cooldown"), window: window}
}

// Ready reports whether a panic utterance may be spoken now.
func (c *Cooldown) Ready() bool { return !c.timer.IsArmed() }

// Mark starts the cooldown window.
func (c *Cooldown) Mark() { c.timer.Arm(c.window, func() {}) }

// Cancel reopens the cooldown.
func (c *Cooldown) Cancel() { c.timer.Cancel() }

// ReactorOptions configure a Reactor.
type ReactorOptions struct {
	DizzyDuration time.Duration
	FearOfHeights func() bool // settings flag, read per decision
	Gate          func() bool // signed in; the machine itself handles awake
}

// Reactor turns normalized signals into panic and relief requests.
type Reactor struct {
	mu       sync.Mutex
	machine  Machine
	cooldown *Cooldown
	opts     ReactorOptions
	alarmed  bool
}

// NewReactor creates a reactor.
func NewReactor(m Machine, cooldown *Cooldown, opts ReactorOptions) *Reactor {
	if opts.DizzyDuration <= 0 {
		opts.DizzyDuration = pet.DizzyDuration
	}
	return &Reactor{machine: m, cooldown: cooldown, opts: opts}
}

// React applies one signal update.
func (r *Reactor) React(sig Signals) {
	if r.opts.Gate != nil && !r.opts.Gate() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.machine.Current()
	if sig.IsShaking && !cur.IsPanic() {
		r.panic(pet.MoodDizzy, r.opts.DizzyDuration)
		return
	}

	fear := r.opts.FearOfHeights != nil && r.opts.FearOfHeights()
	high := fear && (sig.IsLookingDown || sig.Scene.IsHigh())
	switch {
	case high:
		r.alarmed = true
		if cur != pet.MoodScared {
			r.panic(pet.MoodScared, 0)
		}
	case r.alarmed && !sig.IsLookingDown && !sig.Scene.IsHigh():
		r.alarmed = false
		if cur == pet.MoodScared {
			silent := !r.cooldown.Ready()
			if r.machine.RequestTransition(pet.TriggerRelief, pet.MoodNeutral, pet.Options{Silent: silent}) && !silent {
				r.cooldown.Mark()
			}
		}
	case !fear:
		r.alarmed = false
	}
}

func (r *Reactor) panic(target pet.Mood, d time.Duration) {
	silent := !r.cooldown.Ready()
	ok := r.machine.RequestTransition(pet.TriggerPanic, target, pet.Options{Duration: d, Silent: silent})
	if ok && !silent {
		r.cooldown.Mark()
	}
	log.Debug().Str("mood", string(target)).Bool("accepted", ok).Bool("silent", silent).Msg("sensor panic")
}
