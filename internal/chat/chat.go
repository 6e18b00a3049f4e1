// Package chat runs conversational turns: one at a time, through the mood
// machine.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/session"
	"eilo/internal/store"
)

var (
	ErrEmpty     = errors.New("chat: empty message")
	ErrBusy      = errors.New("chat: a turn is already in flight")
	ErrSignedOut = errors.New("chat: not signed in")
	ErrAsleep    = errors.New("chat: eilo is asleep")
	ErrNoReply   = errors.New("chat: no reply")
)

// DefaultTurnTimeout bounds one whole turn, retries included.
const DefaultTurnTimeout = 90 * time.Second

// Machine is the part of the mood machine a turn drives.
type Machine interface {
	Awake() bool
	BeginTurn() bool
	EndTurn()
	RequestTransition(trigger pet.Trigger, target pet.Mood, opts pet.Options) bool
}

// Transcript persists messages.
type Transcript interface {
	AppendMessage(ctx context.Context, userID string, role store.Role, text string) (store.Message, error)
}

// Brain produces replies.
type Brain interface {
	Converse(ctx context.Context, text string, scene sensor.Scene) (string, error)
}

// Options configure an Orchestrator.
type Options struct {
	User    func() *session.User
	Scene   func() sensor.Scene
	OnReply func(ctx context.Context) // after a reply is persisted, e.g. the first-chat reward
	Timeout time.Duration
}

// Orchestrator sends user text to the brain and voices the reply.
type Orchestrator struct {
	machine    Machine
	transcript Transcript
	brain      Brain
	opts       Options
}

// New creates an orchestrator.
func New(m Machine, t Transcript, b Brain, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTurnTimeout
	}
	if opts.User == nil {
		opts.User = func() *session.User { return nil }
	}
	if opts.Scene == nil {
		opts.Scene = func() sensor.Scene { return sensor.SceneUnknown }
	}
	return &Orchestrator{machine: m, transcript: t, brain: b, opts: opts}
}

// Send runs one turn. While a turn is in flight, further sends return
// ErrBusy without touching the transcript or the brain.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	user := o.opts.User()
	if user == nil {
		return ErrSignedOut
	}
	if !o.machine.Awake() {
		return ErrAsleep
	}
	if !o.machine.BeginTurn() {
		return ErrBusy
	}
	defer o.machine.EndTurn()

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	if _, err := o.transcript.AppendMessage(ctx, user.ID, store.RoleUser, text); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	o.machine.RequestTransition(pet.TriggerConversation, pet.MoodThinking, pet.Options{})

	reply, err := o.brain.Converse(ctx, text, o.opts.Scene())
	if err != nil {
		log.Warn().Err(err).Msg("no reply, settling down")
		o.machine.RequestTransition(pet.TriggerConversation, pet.MoodNeutral, pet.Options{})
		return fmt.Errorf("%w: %w", ErrNoReply, err)
	}

	// The world may have changed while we waited.
	if now := o.opts.User(); now == nil || now.ID != user.ID {
		o.machine.RequestTransition(pet.TriggerConversation, pet.MoodNeutral, pet.Options{})
		return ErrSignedOut
	}
	if !o.machine.Awake() {
		return ErrAsleep
	}

	if _, err := o.transcript.AppendMessage(ctx, user.ID, store.RoleCompanion, reply); err != nil {
		o.machine.RequestTransition(pet.TriggerConversation, pet.MoodNeutral, pet.Options{})
		return fmt.Errorf("save reply: %w", err)
	}
	o.machine.RequestTransition(pet.TriggerConversation, pet.MoodHappy, pet.Options{Utterance: reply})

	if o.opts.OnReply != nil {
		o.opts.OnReply(ctx)
	}
	return nil
}
