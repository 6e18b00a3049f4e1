package ui

import (
	"time"

	"eilo/internal/pet"
)

// Animation holds the looping face animation state
type Animation struct {
	Mood      pet.Mood
	Frame     int
	StartTime time.Time
}

// FaceFrames contains the ASCII face frames for each mood. Frames loop.
var FaceFrames = map[pet.Mood][]string{
	pet.MoodNeutral: {
		`
  ╭───────────╮
  │  ●     ●  │
  │     ‿     │
  ╰───────────╯`,
		`
  ╭───────────╮
  │  ●     ●  │
  │     ‿     │
  ╰───────────╯`,
		`
  ╭───────────╮
  │  ─     ─  │
  │     ‿     │
  ╰───────────╯`,
	},
	pet.MoodThinking: {
		`         ·
  ╭───────────╮
  │   ●    ●  │
  │     ~     │
  ╰───────────╯`,
		`        · ·
  ╭───────────╮
  │   ●    ●  │
  │     ~     │
  ╰───────────╯`,
		`       · · ·
  ╭───────────╮
  │   ●    ●  │
  │     ~     │
  ╰───────────╯`,
	},
	pet.MoodHappy: {
		`
  ╭───────────╮
  │  ^     ^  │
  │    ╰─╯    │
  ╰───────────╯`,
		`     ✨
  ╭───────────╮
  │  ^     ^  │
  │    ╰─╯    │
  ╰───────────╯`,
	},
	pet.MoodMad: {
		`
  ╭───────────╮
  │  ╲●   ●╱  │
  │     ︵    │
  ╰───────────╯`,
		`      #
  ╭───────────╮
  │  ╲●   ●╱  │
  │     ︵    │
  ╰───────────╯`,
	},
	pet.MoodScared: {
		`
  ╭───────────╮
  │  ◉     ◉  │
  │     ○     │
  ╰───────────╯`,
		`
 ╭───────────╮
 │  ◉     ◉  │
 │     ○     │
 ╰───────────╯`,
	},
	pet.MoodDizzy: {
		`
  ╭───────────╮
  │  @     @  │
  │     ~     │
  ╰───────────╯`,
		`   ☆     ☆
  ╭───────────╮
  │  @     @  │
  │     ~     │
  ╰───────────╯`,
	},
	pet.MoodSleeping: {
		`           z
  ╭───────────╮
  │  ─     ─  │
  │     ·     │
  ╰───────────╯`,
		`          z z
  ╭───────────╮
  │  ─     ─  │
  │     ·     │
  ╰───────────╯`,
		`         z z z
  ╭───────────╮
  │  ─     ─  │
  │     ·     │
  ╰───────────╯`,
	},
	pet.MoodEating: {
		`
  ╭───────────╮
  │  ●     ●  │
  │     ○  🍪 │
  ╰───────────╯`,
		`      *nom*
  ╭───────────╮
  │  ^     ^  │
  │     ▿     │
  ╰───────────╯`,
	},
	pet.MoodSolvingPuzzle: {
		`          🧩
  ╭───────────╮
  │   ●   ●   │
  │     ─     │
  ╰───────────╯`,
		`          🧩
  ╭───────────╮
  │  ●   ●    │
  │     ─     │
  ╰───────────╯`,
	},
	pet.MoodUsingDevice: {
		`
  ╭───────────╮
  │  ●     ●  │
  │     ‿     │
  ╰───────────╯
      [🎮]`,
		`   *beep*
  ╭───────────╮
  │  ●     ●  │
  │     o     │
  ╰───────────╯
      [🎮]`,
	},
}

// OffFrame is shown while Eilo is powered off.
const OffFrame = `
  ╭───────────╮
  │           │
  │     .     │
  ╰───────────╯`

// AnimationFrameDuration is how long each frame displays
const AnimationFrameDuration = 400 * time.Millisecond

// GetAnimationFrame returns the current frame for an animation. Frames
// wrap around, so a face keeps cycling for as long as the mood lasts.
func GetAnimationFrame(anim Animation) string {
	frames := FaceFrames[anim.Mood]
	if len(frames) == 0 {
		frames = FaceFrames[pet.MoodNeutral]
	}
	return frames[anim.Frame%len(frames)]
}

// AnimationTotalFrames returns the number of frames for a mood
func AnimationTotalFrames(mood pet.Mood) int {
	return len(FaceFrames[mood])
}

// RunawayFace is the single-line face drawn in runaway mode.
func RunawayFace(s pet.Snapshot, fleeing bool) string {
	if !s.Awake {
		return "(-.-)"
	}
	if fleeing {
		return "ᕕ(◉o◉)ᕗ"
	}
	switch s.Mood {
	case pet.MoodHappy:
		return "(^‿^)✨"
	case pet.MoodMad:
		return "(╬ಠ益ಠ)"
	case pet.MoodScared:
		return "(◉o◉;)"
	case pet.MoodDizzy:
		return "(@_@)"
	case pet.MoodSleeping:
		return "(-_-)zz"
	default:
		return "(•‿•)"
	}
}
