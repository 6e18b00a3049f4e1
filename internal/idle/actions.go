package idle

import (
	"time"

	"eilo/internal/pet"
)

// Action IDs
const (
	ActionNap    = "nap"
	ActionSnack  = "snack"
	ActionPuzzle = "puzzle"
	ActionDevice = "device"
)

// Action describes an autonomous behavior Eilo plays when left alone.
type Action struct {
	ID       string
	Mood     pet.Mood
	Duration time.Duration
	Requires string // inventory item that unlocks the action; empty means always available
}

// DefaultActions returns the base idle actions plus the ones items unlock.
func DefaultActions() []Action {
	return []Action{
		{ID: ActionNap, Mood: pet.MoodSleeping, Duration: pet.NapDuration},
		{ID: ActionSnack, Mood: pet.MoodEating, Duration: pet.SnackDuration},
		{ID: ActionPuzzle, Mood: pet.MoodSolvingPuzzle, Duration: pet.PuzzleDuration},
		{ID: ActionDevice, Mood: pet.MoodUsingDevice, Duration: pet.DeviceDuration, Requires: "handheld"},
	}
}

// Unlocked filters actions by what the inventory holds.
func Unlocked(actions []Action, owns func(item string) bool) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Requires == "" || (owns != nil && owns(a.Requires)) {
			out = append(out, a)
		}
	}
	return out
}
