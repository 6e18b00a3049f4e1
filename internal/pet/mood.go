// Package pet implements Eilo's mood/behavior state machine: the single
// writer of the current mood and the only caller of speech.
package pet

import "time"

// Mood is the one expression Eilo is showing.
type Mood string

const (
	MoodNeutral       Mood = "neutral"
	MoodThinking      Mood = "thinking"
	MoodHappy         Mood = "happy"
	MoodMad           Mood = "mad"
	MoodScared        Mood = "scared"
	MoodDizzy         Mood = "dizzy"
	MoodSleeping      Mood = "sleeping"
	MoodEating        Mood = "eating"
	MoodSolvingPuzzle Mood = "solving-puzzle"
	MoodUsingDevice   Mood = "using-device"
)

// AllMoods lists every mood in display order.
var AllMoods = []Mood{
	MoodNeutral, MoodThinking, MoodHappy, MoodMad, MoodScared,
	MoodDizzy, MoodSleeping, MoodEating, MoodSolvingPuzzle, MoodUsingDevice,
}

// IsExpressive reports whether entering the mood is paired with an utterance.
func (m Mood) IsExpressive() bool {
	switch m {
	case MoodHappy, MoodMad, MoodScared, MoodDizzy:
		return true
	}
	return false
}

// IsPanic reports whether the mood is a sensor panic.
func (m Mood) IsPanic() bool {
	return m == MoodScared || m == MoodDizzy
}

// IsIdleAction reports whether the mood is an autonomous idle behavior.
func (m Mood) IsIdleAction() bool {
	switch m {
	case MoodSleeping, MoodEating, MoodSolvingPuzzle, MoodUsingDevice:
		return true
	}
	return false
}

// IsTimed reports whether the mood returns to neutral on its own.
func (m Mood) IsTimed() bool {
	return m.IsExpressive() || m.IsIdleAction()
}

// Transition records one accepted mood change.
type Transition struct {
	From    Mood      `json:"from"`
	To      Mood      `json:"to"`
	Trigger Trigger   `json:"trigger"`
	Awake   bool      `json:"awake"`
	Time    time.Time `json:"time"`
}

// Snapshot is a read-only copy of the machine state.
type Snapshot struct {
	Mood         Mood
	Since        time.Time
	Awake        bool
	TurnInFlight bool
}
