package pet

// Status emojis per mood
const (
	StatusEmojiNeutral  = "✨"
	StatusEmojiThinking = "💭"
	StatusEmojiHappy    = "🎀"
	StatusEmojiMad      = "😤"
	StatusEmojiScared   = "😱"
	StatusEmojiDizzy    = "😵‍💫"
	StatusEmojiSleeping = "💤"
	StatusEmojiEating   = "🍪"
	StatusEmojiPuzzle   = "🧩"
	StatusEmojiDevice   = "🎮"
	StatusEmojiOff      = "🌙"
)

// GetStatus returns the status emoji for a snapshot
func GetStatus(s Snapshot) string {
	if !s.Awake {
		return StatusEmojiOff
	}
	switch s.Mood {
	case MoodThinking:
		return StatusEmojiThinking
	case MoodHappy:
		return StatusEmojiHappy
	case MoodMad:
		return StatusEmojiMad
	case MoodScared:
		return StatusEmojiScared
	case MoodDizzy:
		return StatusEmojiDizzy
	case MoodSleeping:
		return StatusEmojiSleeping
	case MoodEating:
		return StatusEmojiEating
	case MoodSolvingPuzzle:
		return StatusEmojiPuzzle
	case MoodUsingDevice:
		return StatusEmojiDevice
	default:
		return StatusEmojiNeutral
	}
}

// GetStatusWithLabel returns status with a text label for the UI
func GetStatusWithLabel(s Snapshot) string {
	status := GetStatus(s)
	if !s.Awake {
		return status + " Powered off"
	}

	switch s.Mood {
	case MoodThinking:
		return status + " Thinking..."
	case MoodHappy:
		return status + " Happy!"
	case MoodMad:
		return status + " Grumpy"
	case MoodScared:
		return status + " Scared!"
	case MoodDizzy:
		return status + " Dizzy"
	case MoodSleeping:
		return status + " Napping"
	case MoodEating:
		return status + " Snacking"
	case MoodSolvingPuzzle:
		return status + " Solving a puzzle"
	case MoodUsingDevice:
		return status + " Playing a game"
	default:
		if s.TurnInFlight {
			return status + " Listening"
		}
		return status + " Vibing"
	}
}
