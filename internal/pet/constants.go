package pet

import "time"

// Behavior constants
const (
	DefaultPetName = "Eilo"

	HappyDuration  = 3 * time.Second  // Reply glow before the face relaxes
	MadDuration    = 3 * time.Second  // Grumpy face after being disturbed
	DizzyDuration  = 5 * time.Second  // Spinning eyes after a shake
	ScaredDuration = 8 * time.Second  // Bounded panic, re-triggered while the signal persists
	NapDuration    = 12 * time.Second // Idle nap
	SnackDuration  = 5 * time.Second  // Idle snack
	PuzzleDuration = 8 * time.Second  // Idle puzzle
	DeviceDuration = 10 * time.Second // Idle handheld game

	MaxHistory = 20 // Keep last 20 transitions
)

// Speech style hints per mood
const (
	PitchNormal  = 1.2
	PitchExcited = 1.5
	PitchLow     = 0.9
	RateNormal   = 1.0
	RateFast     = 1.25
	RateSlow     = 0.8
)

// DefaultDurations returns the return-to-neutral delay for every timed mood.
func DefaultDurations() map[Mood]time.Duration {
	return map[Mood]time.Duration{
		MoodHappy:         HappyDuration,
		MoodMad:           MadDuration,
		MoodDizzy:         DizzyDuration,
		MoodScared:        ScaredDuration,
		MoodSleeping:      NapDuration,
		MoodEating:        SnackDuration,
		MoodSolvingPuzzle: PuzzleDuration,
		MoodUsingDevice:   DeviceDuration,
	}
}
