// Package idle plays autonomous behaviors after a quiet stretch.
package idle

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/clock"
	"eilo/internal/pet"
)

// DefaultWindow is how long Eilo waits without activity before acting.
const DefaultWindow = 15 * time.Second

// Testable random source
var RandFloat64 = rand.Float64

// Machine is the part of the mood machine the scheduler drives.
type Machine interface {
	RequestTransition(trigger pet.Trigger, target pet.Mood, opts pet.Options) bool
	State() pet.Snapshot
	Subscribe(fn func(pet.Transition)) func()
}

// Options configure a Scheduler.
type Options struct {
	Window     time.Duration
	Actions    []Action
	Owns       func(item string) bool // inventory lookup for unlockable actions
	OnComplete func(Action)           // runs when an action plays out undisturbed
}

// Scheduler owns the single idle countdown.
type Scheduler struct {
	mu      sync.Mutex
	machine Machine
	timer   *clock.Handle
	opts    Options
	unsub   func()
	stopped bool
}

// New creates a scheduler. Call Start to begin counting.
func New(c clock.Clock, m Machine, opts Options) *Scheduler {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Actions == nil {
		opts.Actions = DefaultActions()
	}
	return &Scheduler{
		machine: m,
		timer:   clock.NewHandle(c, "idle"),
		opts:    opts,
	}
}

// Start subscribes to mood changes and arms the countdown.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.stopped = false
	if s.unsub == nil {
		s.unsub = s.machine.Subscribe(s.observe)
	}
	s.mu.Unlock()
	s.Reset()
}

// Stop cancels the countdown and unsubscribes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.timer.Cancel()
}

// Reset restarts the countdown. Activity and every return to neutral call it.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.timer.Arm(s.opts.Window, s.fire)
}

// Pending reports whether the countdown is running.
func (s *Scheduler) Pending() bool {
	return s.timer.IsArmed()
}

func (s *Scheduler) observe(tr pet.Transition) {
	if tr.To == pet.MoodNeutral && tr.Awake {
		s.Reset()
		return
	}
	s.timer.Cancel()
}

func (s *Scheduler) fire() {
	st := s.machine.State()
	if !st.Awake {
		return
	}
	if st.Mood != pet.MoodNeutral || st.TurnInFlight {
		s.Reset()
		return
	}

	choices := Unlocked(s.opts.Actions, s.opts.Owns)
	if len(choices) == 0 {
		return
	}
	i := int(RandFloat64() * float64(len(choices)))
	if i >= len(choices) {
		i = len(choices) - 1
	}
	action := choices[i]

	ok := s.machine.RequestTransition(pet.TriggerIdle, action.Mood, pet.Options{
		Duration: action.Duration,
		OnExpire: func() {
			if s.opts.OnComplete != nil {
				s.opts.OnComplete(action)
			}
		},
	})
	if !ok {
		s.Reset()
		return
	}
	log.Info().Str("action", action.ID).Msg("idle action started")
}
