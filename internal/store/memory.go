package store

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"eilo/internal/clock"
)

// Memory is an in-process Store for tests and guest sessions.
type Memory struct {
	mu       sync.Mutex
	clock    clock.Clock
	messages map[string][]Message
	settings map[string]Settings
	hub      *hub
	closed   bool
}

// NewMemory creates an empty store.
func NewMemory(c clock.Clock) *Memory {
	return &Memory{
		clock:    c,
		messages: make(map[string][]Message),
		settings: make(map[string]Settings),
		hub:      newHub(),
	}
}

func (m *Memory) AppendMessage(ctx context.Context, userID string, role Role, text string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Message{}, ErrClosed
	}

	msgs := m.messages[userID]
	var last Message
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1]
	}
	msg := Message{
		ID:        strings.ToLower(ulid.Make().String()),
		Role:      role,
		Text:      text,
		Timestamp: nextStamp(m.clock.Now(), last.Timestamp),
	}
	msgs = append(msgs, msg)
	m.messages[userID] = msgs
	m.hub.publish(userID, msgs)
	m.mu.Unlock()

	return msg, nil
}

func (m *Memory) Messages(ctx context.Context, userID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Message(nil), m.messages[userID]...)
	sortMessages(out)
	return out, nil
}

func (m *Memory) SubscribeMessages(ctx context.Context, userID string) (<-chan []Message, error) {
	msgs, err := m.Messages(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.hub.subscribe(ctx, userID, msgs)
}

func (m *Memory) GetSettings(ctx context.Context, userID string) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return DefaultSettings(), nil
	}
	return s.clone(), nil
}

func (m *Memory) SetSettings(ctx context.Context, userID string, patch SettingsPatch) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Settings{}, ErrClosed
	}
	s, ok := m.settings[userID]
	if !ok {
		s = DefaultSettings()
	}
	s = s.Apply(patch)
	m.settings[userID] = s
	return s.clone(), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}
