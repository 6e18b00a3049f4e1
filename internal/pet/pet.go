package pet

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/clock"
	"eilo/internal/speech"
)

// Voice is the speech output the machine drives.
type Voice interface {
	Speak(text string, style speech.Style)
	Stop()
}

// Options tune a single transition request.
type Options struct {
	Duration  time.Duration // return-to-neutral delay; zero uses the mood default
	Utterance string        // spoken instead of a pool phrase
	Silent    bool          // change the face without speaking
	OnExpire  func()        // runs after the mood times out back to neutral
}

// Machine owns the current mood. Every change goes through
// RequestTransition; timers and observers re-enter through the same path.
type Machine struct {
	mu sync.Mutex

	clock     clock.Clock
	voice     Voice
	durations map[Mood]time.Duration
	pools     map[Mood]*Pool
	relief    *Pool

	mood  Mood
	since time.Time
	awake bool
	turn  bool

	returner  *clock.Handle
	returnSeq uint64
	onExpire  func()

	observers map[int]func(Transition)
	nextObs   int
	history   []Transition

	// effects queue speech and observer calls in transition order. One
	// goroutine at a time drains the queue, outside mu.
	effects  []func()
	flushing bool
}

// NewMachine creates a machine that is awake and neutral.
func NewMachine(c clock.Clock, voice Voice, durations map[Mood]time.Duration) *Machine {
	if durations == nil {
		durations = DefaultDurations()
	}
	m := &Machine{
		clock:     c,
		voice:     voice,
		durations: durations,
		pools:     make(map[Mood]*Pool),
		relief:    NewPool(DefaultReliefPhrases()...),
		mood:      MoodNeutral,
		since:     c.Now(),
		awake:     true,
		returner:  clock.NewHandle(c, "mood-return"),
		observers: make(map[int]func(Transition)),
	}
	for mood, phrases := range DefaultPhrases() {
		m.pools[mood] = NewPool(phrases...)
	}
	return m
}

// SetPhrases replaces the pool for an expressive mood. Pools with fewer
// than two phrases are ignored.
func (m *Machine) SetPhrases(mood Mood, phrases []string) {
	pool := NewPool(phrases...)
	if pool.Len() < 2 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[mood] = pool
}

// Current returns the active mood.
func (m *Machine) Current() Mood {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mood
}

// State returns a snapshot of the machine.
func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Mood: m.mood, Since: m.since, Awake: m.awake, TurnInFlight: m.turn}
}

// Awake reports whether Eilo is powered on.
func (m *Machine) Awake() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awake
}

// ReturnPending reports whether a return-to-neutral timer is armed.
func (m *Machine) ReturnPending() bool {
	return m.returner.IsArmed()
}

// History returns the most recent transitions, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers fn for every accepted transition. Observers run after
// the machine lock is released, so they may call back into the machine.
func (m *Machine) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// RequestTransition asks for target on behalf of trigger. It returns false
// when the request loses to the active mood or Eilo is asleep.
func (m *Machine) RequestTransition(trigger Trigger, target Mood, opts Options) bool {
	m.mu.Lock()
	ok := m.awake && m.admitLocked(trigger, target)
	if ok {
		m.transitionLocked(trigger, target, opts)
	} else {
		log.Debug().Str("trigger", string(trigger)).Str("from", string(m.mood)).
			Str("to", string(target)).Msg("transition rejected")
	}
	m.flushLocked()
	return ok
}

// Say speaks text without changing the face. It is a no-op while asleep.
func (m *Machine) Say(text string) bool {
	if text == "" {
		return false
	}
	m.mu.Lock()
	if !m.awake {
		m.mu.Unlock()
		return false
	}
	style := styleFor(m.mood)
	m.effects = append(m.effects, func() { m.voice.Speak(text, style) })
	m.flushLocked()
	return true
}

// BeginTurn marks a conversational turn as in flight. It returns false if
// one already is, or if Eilo is asleep.
func (m *Machine) BeginTurn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.turn || !m.awake {
		return false
	}
	m.turn = true
	return true
}

// EndTurn clears the in-flight turn.
func (m *Machine) EndTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turn = false
}

// TurnInFlight reports whether a conversational turn is running.
func (m *Machine) TurnInFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// SetAwake powers Eilo on or off. Going to sleep clears every pending
// timer, silences speech and relaxes the face.
func (m *Machine) SetAwake(awake bool) {
	m.mu.Lock()
	if m.awake == awake {
		m.mu.Unlock()
		return
	}

	from := m.mood
	if !awake {
		m.cancelReturnLocked()
		m.effects = append(m.effects, m.voice.Stop)
		m.awake = false
		m.mood = MoodNeutral
		m.since = m.clock.Now()
		m.recordLocked(TriggerSleep, from)
	} else {
		m.awake = true
		m.recordLocked(TriggerWake, from)
	}
	log.Info().Bool("awake", awake).Msg("power toggled")
	m.flushLocked()
}

// Close cancels timers and in-flight speech.
func (m *Machine) Close() {
	m.mu.Lock()
	m.cancelReturnLocked()
	m.observers = make(map[int]func(Transition))
	m.mu.Unlock()
	m.voice.Stop()
}

func (m *Machine) admitLocked(trigger Trigger, target Mood) bool {
	cur := m.mood
	switch trigger {
	case TriggerPanic:
		return target.IsPanic() && cur != target
	case TriggerBusyInterrupt:
		return target == MoodMad && cur.IsIdleAction()
	case TriggerConversation:
		switch target {
		case MoodThinking:
			return cur == MoodNeutral
		case MoodHappy, MoodNeutral:
			return cur == MoodThinking
		}
		return false
	case TriggerPet:
		return target == MoodHappy && cur == MoodNeutral && !m.turn
	case TriggerIdle:
		return target.IsIdleAction() && cur == MoodNeutral && !m.turn
	case TriggerRelief:
		return target == MoodNeutral && cur == MoodScared
	case TriggerTimeout:
		return target == MoodNeutral && cur.IsTimed()
	}
	return false
}

// transitionLocked applies an admitted transition. The previous mood's
// return timer and completion hook are dropped before anything new is armed.
func (m *Machine) transitionLocked(trigger Trigger, target Mood, opts Options) {
	m.cancelReturnLocked()

	from := m.mood
	m.mood = target
	m.since = m.clock.Now()
	m.recordLocked(trigger, from)

	if !opts.Silent {
		if text := m.utteranceLocked(trigger, target, opts); text != "" {
			style := styleFor(target)
			m.effects = append(m.effects, func() { m.voice.Speak(text, style) })
		}
	}

	if target.IsTimed() {
		d := opts.Duration
		if d <= 0 {
			d = m.durations[target]
		}
		seq := m.returnSeq
		m.onExpire = opts.OnExpire
		m.returner.Arm(d, func() { m.expire(seq) })
	}

	log.Info().Str("trigger", string(trigger)).Str("from", string(from)).
		Str("to", string(target)).Msg("mood changed")
}

func (m *Machine) utteranceLocked(trigger Trigger, target Mood, opts Options) string {
	if opts.Utterance != "" {
		return opts.Utterance
	}
	if trigger == TriggerRelief {
		return m.relief.Next()
	}
	if target.IsExpressive() {
		if pool, ok := m.pools[target]; ok {
			return pool.Next()
		}
	}
	return ""
}

func (m *Machine) expire(seq uint64) {
	m.mu.Lock()
	if seq != m.returnSeq || !m.awake {
		m.mu.Unlock()
		return
	}
	hook := m.onExpire
	m.onExpire = nil
	m.transitionLocked(TriggerTimeout, MoodNeutral, Options{})
	if hook != nil {
		m.effects = append(m.effects, hook)
	}
	m.flushLocked()
}

func (m *Machine) cancelReturnLocked() {
	m.returner.Cancel()
	m.returnSeq++
	m.onExpire = nil
}

// recordLocked appends to history and queues observer notification. The
// machine's mood must already be updated.
func (m *Machine) recordLocked(trigger Trigger, from Mood) {
	tr := Transition{From: from, To: m.mood, Trigger: trigger, Awake: m.awake, Time: m.clock.Now()}

	m.history = append(m.history, tr)
	if len(m.history) > MaxHistory {
		m.history = m.history[len(m.history)-MaxHistory:]
	}

	observers := make([]func(Transition), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.effects = append(m.effects, func() {
		for _, fn := range observers {
			fn(tr)
		}
	})
}

// flushLocked runs queued effects in the order they were queued and
// releases mu. If another goroutine is already flushing, it picks up the
// new effects and this call returns at once.
func (m *Machine) flushLocked() {
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true
	for len(m.effects) > 0 {
		batch := m.effects
		m.effects = nil
		m.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}

func styleFor(mood Mood) speech.Style {
	switch mood {
	case MoodHappy:
		return speech.Style{Pitch: PitchExcited, Rate: RateFast}
	case MoodScared:
		return speech.Style{Pitch: PitchExcited, Rate: RateFast}
	case MoodMad:
		return speech.Style{Pitch: PitchLow, Rate: RateNormal}
	case MoodDizzy:
		return speech.Style{Pitch: PitchNormal, Rate: RateSlow}
	default:
		return speech.Style{Pitch: PitchNormal, Rate: RateNormal}
	}
}
