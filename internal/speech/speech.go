// Package speech turns text into audio, one utterance at a time.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Style is a delivery hint for the synthesizer.
type Style struct {
	Pitch float64
	Rate  float64
}

// Clip is synthesized mono 16-bit little-endian PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Synthesizer produces audio for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, style Style) (Clip, error)
}

// Player plays a clip. Play blocks until the clip ends or ctx is cancelled,
// and must be silent by the time it returns.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// Output is the speech adapter. Starting an utterance cancels the current
// one and waits for it to fall silent before the new one is heard.
type Output struct {
	mu         sync.Mutex
	synth      Synthesizer
	player     Player
	muted      bool
	restrained bool
	onDone     func(text string)

	cancel   context.CancelFunc
	done     chan struct{}
	current  uint64
	speaking bool
}

// NewOutput creates an adapter. A nil synthesizer or player leaves speech
// inert, which is how a missing API key or audio device degrades.
func NewOutput(synth Synthesizer, player Player) *Output {
	return &Output{synth: synth, player: player}
}

// SetMuted toggles the mute button.
func (o *Output) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	if muted {
		o.Stop()
	}
}

// SetRestrained muffles every utterance (the duct tape item).
func (o *Output) SetRestrained(restrained bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.restrained = restrained
}

// OnDone registers a completion callback, called with the spoken text when
// an utterance finishes without being interrupted.
func (o *Output) OnDone(fn func(text string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDone = fn
}

// IsSpeaking reports whether an utterance is being synthesized or played.
func (o *Output) IsSpeaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speaking
}

// Speak interrupts any current utterance and starts text.
func (o *Output) Speak(text string, style Style) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	o.mu.Lock()
	if o.muted || o.synth == nil || o.player == nil {
		o.mu.Unlock()
		return
	}
	if o.restrained {
		text = Muffle(text)
	}

	prevDone := o.interruptLocked()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.current++
	id := o.current
	o.cancel = cancel
	o.done = done
	o.speaking = true
	o.mu.Unlock()

	go o.run(ctx, id, text, style, prevDone, done)
}

// Stop silences the current utterance and waits until it is quiet.
func (o *Output) Stop() {
	o.mu.Lock()
	prevDone := o.interruptLocked()
	o.speaking = false
	o.mu.Unlock()

	if prevDone != nil {
		<-prevDone
	}
}

func (o *Output) interruptLocked() chan struct{} {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	prev := o.done
	o.done = nil
	return prev
}

func (o *Output) run(ctx context.Context, id uint64, text string, style Style, prevDone, done chan struct{}) {
	defer close(done)

	if prevDone != nil {
		<-prevDone
	}

	err := o.say(ctx, text, style)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("speech failed")
	}

	o.mu.Lock()
	finished := o.current == id
	if finished {
		o.speaking = false
		o.cancel = nil
		o.done = nil
	}
	onDone := o.onDone
	o.mu.Unlock()

	if finished && err == nil && onDone != nil {
		onDone(text)
	}
}

func (o *Output) say(ctx context.Context, text string, style Style) error {
	clip, err := o.synth.Synthesize(ctx, text, style)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return o.player.Play(ctx, clip)
}

// Muffle rewrites text as it sounds through duct tape.
func Muffle(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i := range words {
		if i%2 == 0 {
			out = append(out, "Mmph")
		} else {
			out = append(out, "mmm")
		}
	}
	return strings.Join(out, " ") + "!"
}
