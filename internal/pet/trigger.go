package pet

// Trigger names the subsystem asking for a transition.
type Trigger string

const (
	TriggerPanic         Trigger = "panic"          // shake or heights, scared/dizzy
	TriggerBusyInterrupt Trigger = "busy_interrupt" // petting during an idle action
	TriggerConversation  Trigger = "conversation"   // send and reply
	TriggerPet           Trigger = "pet"            // petting a relaxed face
	TriggerIdle          Trigger = "idle"           // idle scheduler
	TriggerRelief        Trigger = "relief"         // panic signal cleared
	TriggerTimeout       Trigger = "timeout"        // return-to-neutral timer
	TriggerSleep         Trigger = "sleep"          // power off
	TriggerWake          Trigger = "wake"           // power on
)

// Priority orders the triggers that compete for the face. Lower wins.
// Triggers that only ever restore neutral have no rank.
func (t Trigger) Priority() int {
	switch t {
	case TriggerPanic:
		return 1
	case TriggerBusyInterrupt:
		return 2
	case TriggerConversation, TriggerPet:
		return 3
	case TriggerIdle:
		return 4
	default:
		return 0
	}
}
