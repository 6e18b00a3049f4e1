package pet

import "testing"

func TestGetStatusWithLabel(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"off", Snapshot{Mood: MoodHappy, Awake: false}, "🌙 Powered off"},
		{"neutral", Snapshot{Mood: MoodNeutral, Awake: true}, "✨ Vibing"},
		{"listening", Snapshot{Mood: MoodNeutral, Awake: true, TurnInFlight: true}, "✨ Listening"},
		{"thinking", Snapshot{Mood: MoodThinking, Awake: true}, "💭 Thinking..."},
		{"nap", Snapshot{Mood: MoodSleeping, Awake: true}, "💤 Napping"},
		{"device", Snapshot{Mood: MoodUsingDevice, Awake: true}, "🎮 Playing a game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetStatusWithLabel(tt.snap); got != tt.want {
				t.Errorf("GetStatusWithLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryMoodHasStatus(t *testing.T) {
	seen := map[string]Mood{}
	for _, m := range AllMoods {
		got := GetStatus(Snapshot{Mood: m, Awake: true})
		if other, dup := seen[got]; dup {
			t.Errorf("moods %s and %s share status %q", m, other, got)
		}
		seen[got] = m
	}
}
