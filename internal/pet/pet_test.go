package pet

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eilo/internal/clock"
	"eilo/internal/speech"
)

type fakeVoice struct {
	mu     sync.Mutex
	said   []string
	styles []speech.Style
	stops  int
}

func (v *fakeVoice) Speak(text string, style speech.Style) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.said = append(v.said, text)
	v.styles = append(v.styles, style)
}

func (v *fakeVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops++
}

func (v *fakeVoice) utterances() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

var epoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestMachine(t *testing.T) (*Machine, *clock.Fake, *fakeVoice) {
	t.Helper()
	c := clock.NewFake(epoch)
	v := &fakeVoice{}
	m := NewMachine(c, v, nil)
	t.Cleanup(m.Close)
	return m, c, v
}

func TestNewMachineStartsNeutralAndAwake(t *testing.T) {
	m, _, _ := newTestMachine(t)

	s := m.State()
	assert.Equal(t, MoodNeutral, s.Mood)
	assert.True(t, s.Awake)
	assert.False(t, s.TurnInFlight)
	assert.Equal(t, epoch, s.Since)
	assert.False(t, m.ReturnPending())
}

func TestAdmission(t *testing.T) {
	tests := []struct {
		name    string
		from    Mood
		turn    bool
		trigger Trigger
		target  Mood
		want    bool
	}{
		{"panic from neutral", MoodNeutral, false, TriggerPanic, MoodScared, true},
		{"panic from thinking", MoodThinking, true, TriggerPanic, MoodDizzy, true},
		{"panic from sleeping", MoodSleeping, false, TriggerPanic, MoodScared, true},
		{"panic into same mood", MoodDizzy, false, TriggerPanic, MoodDizzy, false},
		{"panic switches kind", MoodScared, false, TriggerPanic, MoodDizzy, true},
		{"panic non-panic target", MoodNeutral, false, TriggerPanic, MoodHappy, false},
		{"busy interrupt during nap", MoodSleeping, false, TriggerBusyInterrupt, MoodMad, true},
		{"busy interrupt during puzzle", MoodSolvingPuzzle, false, TriggerBusyInterrupt, MoodMad, true},
		{"busy interrupt from neutral", MoodNeutral, false, TriggerBusyInterrupt, MoodMad, false},
		{"busy interrupt during scared", MoodScared, false, TriggerBusyInterrupt, MoodMad, false},
		{"thinking from neutral", MoodNeutral, true, TriggerConversation, MoodThinking, true},
		{"thinking from idle action", MoodEating, true, TriggerConversation, MoodThinking, false},
		{"reply from thinking", MoodThinking, true, TriggerConversation, MoodHappy, true},
		{"degrade from thinking", MoodThinking, true, TriggerConversation, MoodNeutral, true},
		{"reply after panic", MoodScared, true, TriggerConversation, MoodHappy, false},
		{"pet relaxed face", MoodNeutral, false, TriggerPet, MoodHappy, true},
		{"pet during turn", MoodNeutral, true, TriggerPet, MoodHappy, false},
		{"pet while happy", MoodHappy, false, TriggerPet, MoodHappy, false},
		{"idle from neutral", MoodNeutral, false, TriggerIdle, MoodEating, true},
		{"idle during turn", MoodNeutral, true, TriggerIdle, MoodEating, false},
		{"idle during thinking", MoodThinking, true, TriggerIdle, MoodSleeping, false},
		{"idle over idle", MoodSleeping, false, TriggerIdle, MoodEating, false},
		{"idle non-idle target", MoodNeutral, false, TriggerIdle, MoodHappy, false},
		{"relief from scared", MoodScared, false, TriggerRelief, MoodNeutral, true},
		{"relief from dizzy", MoodDizzy, false, TriggerRelief, MoodNeutral, false},
		{"timeout from happy", MoodHappy, false, TriggerTimeout, MoodNeutral, true},
		{"timeout from thinking", MoodThinking, false, TriggerTimeout, MoodNeutral, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestMachine(t)
			m.mu.Lock()
			m.mood = tt.from
			m.turn = tt.turn
			got := m.admitLocked(tt.trigger, tt.target)
			m.mu.Unlock()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityOrder(t *testing.T) {
	assert.Less(t, TriggerPanic.Priority(), TriggerBusyInterrupt.Priority())
	assert.Less(t, TriggerBusyInterrupt.Priority(), TriggerConversation.Priority())
	assert.Less(t, TriggerConversation.Priority(), TriggerIdle.Priority())
	assert.Equal(t, TriggerConversation.Priority(), TriggerPet.Priority())
	assert.Zero(t, TriggerTimeout.Priority())
}

func TestExpressiveMoodSpeaksOnce(t *testing.T) {
	m, _, v := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
	said := v.utterances()
	require.Len(t, said, 1)
	assert.Contains(t, DefaultPhrases()[MoodHappy], said[0])
}

func TestExplicitUtteranceAndSilent(t *testing.T) {
	m, c, v := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerPanic, MoodDizzy, Options{Silent: true}))
	assert.Empty(t, v.utterances())

	c.Advance(DizzyDuration)
	require.Equal(t, MoodNeutral, m.Current())

	require.True(t, m.BeginTurn())
	require.True(t, m.RequestTransition(TriggerConversation, MoodThinking, Options{}))
	require.True(t, m.RequestTransition(TriggerConversation, MoodHappy, Options{Utterance: "Hey there! ✨"}))
	assert.Equal(t, []string{"Hey there! ✨"}, v.utterances())
}

func TestTimedMoodReturnsToNeutral(t *testing.T) {
	m, c, _ := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
	assert.True(t, m.ReturnPending())

	c.Advance(HappyDuration - time.Millisecond)
	assert.Equal(t, MoodHappy, m.Current())

	c.Advance(time.Millisecond)
	assert.Equal(t, MoodNeutral, m.Current())
	assert.False(t, m.ReturnPending())
}

func TestSingleReturnTimer(t *testing.T) {
	m, c, _ := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerIdle, MoodSleeping, Options{}))
	c.Advance(2 * time.Second)
	require.True(t, m.RequestTransition(TriggerBusyInterrupt, MoodMad, Options{}))
	assert.Equal(t, 1, c.Pending())

	// Mad's own timer decides, not the nap's.
	c.Advance(MadDuration - time.Millisecond)
	assert.Equal(t, MoodMad, m.Current())
	c.Advance(time.Millisecond)
	assert.Equal(t, MoodNeutral, m.Current())
	assert.Zero(t, c.Pending())
}

func TestOnExpireRunsAfterReturn(t *testing.T) {
	m, c, _ := newTestMachine(t)

	var seen Mood
	calls := 0
	require.True(t, m.RequestTransition(TriggerIdle, MoodSleeping, Options{
		OnExpire: func() {
			calls++
			seen = m.Current()
		},
	}))

	c.Advance(NapDuration)
	assert.Equal(t, 1, calls)
	assert.Equal(t, MoodNeutral, seen)
}

func TestOnExpireDroppedWhenInterrupted(t *testing.T) {
	m, c, _ := newTestMachine(t)

	calls := 0
	require.True(t, m.RequestTransition(TriggerIdle, MoodEating, Options{OnExpire: func() { calls++ }}))
	require.True(t, m.RequestTransition(TriggerPanic, MoodScared, Options{}))

	c.Advance(time.Minute)
	assert.Zero(t, calls)
	assert.Equal(t, MoodNeutral, m.Current())
}

func TestAsleepRejectsEverything(t *testing.T) {
	m, c, v := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
	m.SetAwake(false)

	assert.Equal(t, MoodNeutral, m.Current())
	assert.False(t, m.Awake())
	assert.False(t, m.ReturnPending())
	assert.Equal(t, 1, v.stops)

	for _, tr := range []struct {
		trigger Trigger
		target  Mood
	}{
		{TriggerPanic, MoodScared},
		{TriggerPet, MoodHappy},
		{TriggerIdle, MoodEating},
		{TriggerConversation, MoodThinking},
	} {
		assert.False(t, m.RequestTransition(tr.trigger, tr.target, Options{}), tr.trigger)
	}
	assert.False(t, m.Say("hello?"))
	assert.False(t, m.BeginTurn())

	c.Advance(time.Minute)
	assert.Equal(t, MoodNeutral, m.Current())
	assert.Len(t, v.utterances(), 1)

	m.SetAwake(true)
	assert.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
}

func TestSensorInterruptDuringSleeping(t *testing.T) {
	m, c, _ := newTestMachine(t)

	napDone := 0
	require.True(t, m.RequestTransition(TriggerIdle, MoodSleeping, Options{OnExpire: func() { napDone++ }}))
	c.Advance(time.Second)

	require.True(t, m.RequestTransition(TriggerPanic, MoodDizzy, Options{Duration: DizzyDuration}))
	assert.Equal(t, MoodDizzy, m.Current())

	c.Advance(DizzyDuration)
	assert.Equal(t, MoodNeutral, m.Current())
	assert.Zero(t, napDone)
	assert.Zero(t, c.Pending())
}

func TestTurnMutualExclusion(t *testing.T) {
	m, _, _ := newTestMachine(t)

	require.True(t, m.BeginTurn())
	assert.False(t, m.BeginTurn())
	assert.True(t, m.TurnInFlight())
	m.EndTurn()
	assert.False(t, m.TurnInFlight())
	assert.True(t, m.BeginTurn())
}

func TestObserversSeeEveryTransition(t *testing.T) {
	m, c, _ := newTestMachine(t)

	var got []Transition
	unsubscribe := m.Subscribe(func(tr Transition) {
		got = append(got, tr)
		// re-entry must not deadlock
		_ = m.Current()
	})

	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
	c.Advance(HappyDuration)
	unsubscribe()
	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))

	require.Len(t, got, 2)
	assert.Equal(t, Transition{From: MoodNeutral, To: MoodHappy, Trigger: TriggerPet, Awake: true, Time: epoch}, got[0])
	assert.Equal(t, MoodNeutral, got[1].To)
	assert.Equal(t, TriggerTimeout, got[1].Trigger)
}

func TestHistoryIsCapped(t *testing.T) {
	m, c, _ := newTestMachine(t)

	for i := 0; i < MaxHistory; i++ {
		require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{Silent: true}))
		c.Advance(HappyDuration)
	}
	h := m.History()
	assert.Len(t, h, MaxHistory)
	assert.Equal(t, TriggerTimeout, h[len(h)-1].Trigger)
}

func TestReliefSpeaksReliefPhrase(t *testing.T) {
	m, _, v := newTestMachine(t)

	require.True(t, m.RequestTransition(TriggerPanic, MoodScared, Options{Silent: true}))
	require.True(t, m.RequestTransition(TriggerRelief, MoodNeutral, Options{}))

	said := v.utterances()
	require.Len(t, said, 1)
	assert.Contains(t, DefaultReliefPhrases(), said[0])
	assert.False(t, m.ReturnPending())
}

func TestSetPhrasesIgnoresTinyPools(t *testing.T) {
	m, _, v := newTestMachine(t)

	m.SetPhrases(MoodHappy, []string{"only one"})
	m.SetPhrases(MoodMad, []string{"grr", "hmph"})

	require.True(t, m.RequestTransition(TriggerPet, MoodHappy, Options{}))
	assert.Contains(t, DefaultPhrases()[MoodHappy], v.utterances()[0])
}

func TestPoolNeverRepeatsBackToBack(t *testing.T) {
	orig := RandFloat64
	defer func() { RandFloat64 = orig }()

	for _, r := range []float64{0, 0.5, 0.999} {
		RandFloat64 = func() float64 { return r }
		p := NewPool("a", "b", "c")
		prev := ""
		for i := 0; i < 30; i++ {
			next := p.Next()
			assert.NotEqual(t, prev, next)
			prev = next
		}
	}
}

func TestPoolCoversEveryPhrasePerCycle(t *testing.T) {
	p := NewPool("a", "b", "c", "d", "")
	assert.Equal(t, 4, p.Len())

	seen := map[string]bool{}
	for i := 0; i < p.Len(); i++ {
		seen[p.Next()] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, "", NewPool().Next())
	assert.Equal(t, "x", NewPool("x").Next())
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, speech.Style{Pitch: PitchExcited, Rate: RateFast}, styleFor(MoodHappy))
	assert.Equal(t, speech.Style{Pitch: PitchLow, Rate: RateNormal}, styleFor(MoodMad))
	assert.Equal(t, speech.Style{Pitch: PitchNormal, Rate: RateNormal}, styleFor(MoodNeutral))
}

func TestEffectsKeepTransitionOrder(t *testing.T) {
	m, _, v := newTestMachine(t)
	require.True(t, m.BeginTurn())
	require.True(t, m.RequestTransition(TriggerConversation, MoodThinking, Options{Silent: true}))

	entered := make(chan struct{})
	release := make(chan struct{})
	m.Subscribe(func(tr Transition) {
		if tr.To == MoodHappy {
			close(entered)
			<-release
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RequestTransition(TriggerConversation, MoodHappy, Options{Utterance: "reply"})
	}()

	<-entered
	require.True(t, m.RequestTransition(TriggerPanic, MoodDizzy, Options{Utterance: "whoa dizzy"}))
	assert.Empty(t, v.utterances(), "dizzy must wait for the reply's effects")
	close(release)
	<-done

	assert.Equal(t, MoodDizzy, m.Current())
	assert.Equal(t, []string{"reply", "whoa dizzy"}, v.utterances())
}

// eventLog records observer calls and speech in the order they happen.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type loggingVoice struct{ log *eventLog }

func (v loggingVoice) Speak(text string, _ speech.Style) { v.log.add("say " + text) }
func (v loggingVoice) Stop()                             {}

// fireRandom sends one randomly chosen trigger. Every spoken line is tagged
// with its target mood so it can be matched to its transition.
func fireRandom(m *Machine, c *clock.Fake, rng *rand.Rand, id string) {
	say := func(target Mood) Options {
		return Options{Utterance: fmt.Sprintf("%s#%s", target, id)}
	}
	switch rng.Intn(7) {
	case 0:
		target := []Mood{MoodScared, MoodDizzy}[rng.Intn(2)]
		m.RequestTransition(TriggerPanic, target, say(target))
	case 1:
		m.RequestTransition(TriggerPet, MoodHappy, say(MoodHappy))
	case 2:
		target := []Mood{MoodEating, MoodSleeping}[rng.Intn(2)]
		m.RequestTransition(TriggerIdle, target, Options{})
	case 3:
		m.RequestTransition(TriggerBusyInterrupt, MoodMad, say(MoodMad))
	case 4:
		if !m.BeginTurn() {
			return
		}
		m.RequestTransition(TriggerConversation, MoodThinking, Options{})
		if rng.Intn(2) == 0 {
			m.RequestTransition(TriggerConversation, MoodHappy, say(MoodHappy))
		} else {
			m.RequestTransition(TriggerConversation, MoodNeutral, Options{})
		}
		m.EndTurn()
	case 5:
		m.RequestTransition(TriggerRelief, MoodNeutral, say(MoodNeutral))
	case 6:
		c.Advance(time.Duration(rng.Intn(4000)) * time.Millisecond)
	}
}

func TestInterleavedTriggersKeepInvariants(t *testing.T) {
	c := clock.NewFake(epoch)
	events := &eventLog{}
	m := NewMachine(c, loggingVoice{events}, nil)
	t.Cleanup(m.Close)

	m.Subscribe(func(tr Transition) {
		events.add("mood " + string(tr.To))
		assert.LessOrEqual(t, c.Pending(), 1)
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 300; i++ {
				fireRandom(m, c, rng, fmt.Sprintf("%d.%d", seed, i))
				assert.LessOrEqual(t, c.Pending(), 1)
			}
		}(int64(g + 1))
	}
	wg.Wait()

	entries := events.all()
	require.NotEmpty(t, entries)

	var lastMood Mood
	var lastSaid string
	for i, e := range entries {
		kind, val, _ := strings.Cut(e, " ")
		switch kind {
		case "mood":
			lastMood = Mood(val)
		case "say":
			require.Positive(t, i, "speech before any transition")
			target, _, _ := strings.Cut(val, "#")
			assert.Equal(t, "mood "+target, entries[i-1], "line %q spoken out of step", val)
			lastSaid = val
		}
	}

	final := m.Current()
	assert.Equal(t, final, lastMood)
	assert.Equal(t, final.IsTimed(), m.ReturnPending())
	assert.LessOrEqual(t, c.Pending(), 1)
	if final.IsExpressive() {
		target, _, _ := strings.Cut(lastSaid, "#")
		assert.Equal(t, string(final), target)
	}
}
