// Package store persists Eilo's transcript and per-user settings.
package store

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Namespace scopes every document this app writes.
const Namespace = "eilo-wholesome-pro-v1"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store: closed")

// Role is who said a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleCompanion Role = "companion"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Settings is the per-user settings document.
type Settings struct {
	Muted         bool     `json:"muted"`
	FearOfHeights bool     `json:"fearOfHeights"`
	Vision        bool     `json:"vision"`
	Chaos         bool     `json:"chaos"`
	Balance       int      `json:"balance"`
	Inventory     []string `json:"inventory"`
	Persona       string   `json:"persona,omitempty"`
}

// DefaultSettings is the document a new user starts with.
func DefaultSettings() Settings {
	return Settings{FearOfHeights: true, Inventory: []string{}}
}

// Owns reports whether the inventory holds item.
func (s Settings) Owns(item string) bool {
	return slices.Contains(s.Inventory, item)
}

func (s Settings) clone() Settings {
	s.Inventory = slices.Clone(s.Inventory)
	if s.Inventory == nil {
		s.Inventory = []string{}
	}
	return s
}

// SettingsPatch is a merge patch; nil fields are left alone.
type SettingsPatch struct {
	Muted         *bool     `json:"muted,omitempty"`
	FearOfHeights *bool     `json:"fearOfHeights,omitempty"`
	Vision        *bool     `json:"vision,omitempty"`
	Chaos         *bool     `json:"chaos,omitempty"`
	Balance       *int      `json:"balance,omitempty"`
	Inventory     *[]string `json:"inventory,omitempty"`
	Persona       *string   `json:"persona,omitempty"`
}

// Apply returns s with the patch merged in. Balance never goes below zero.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Muted != nil {
		s.Muted = *p.Muted
	}
	if p.FearOfHeights != nil {
		s.FearOfHeights = *p.FearOfHeights
	}
	if p.Vision != nil {
		s.Vision = *p.Vision
	}
	if p.Chaos != nil {
		s.Chaos = *p.Chaos
	}
	if p.Balance != nil {
		s.Balance = max(*p.Balance, 0)
	}
	if p.Inventory != nil {
		s.Inventory = slices.Clone(*p.Inventory)
	}
	if p.Persona != nil {
		s.Persona = *p.Persona
	}
	if s.Inventory == nil {
		s.Inventory = []string{}
	}
	return s
}

// Store is the document store.
type Store interface {
	// AppendMessage adds a message with a timestamp later than every
	// earlier message of the same user.
	AppendMessage(ctx context.Context, userID string, role Role, text string) (Message, error)

	// Messages returns the transcript sorted by timestamp.
	Messages(ctx context.Context, userID string) ([]Message, error)

	// SubscribeMessages delivers the sorted transcript now and after every
	// append, until ctx is done.
	SubscribeMessages(ctx context.Context, userID string) (<-chan []Message, error)

	// GetSettings returns the user's settings, or defaults.
	GetSettings(ctx context.Context, userID string) (Settings, error)

	// SetSettings merges patch into the user's settings atomically.
	SetSettings(ctx context.Context, userID string, patch SettingsPatch) (Settings, error)

	Close() error
}

// Bool, Int, Strings and String build patch fields.
func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

func Strings(v []string) *[]string { return &v }

func String(v string) *string { return &v }

func sortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// nextStamp returns now truncated to milliseconds, bumped past last.
func nextStamp(now, last time.Time) time.Time {
	ts := now.Truncate(time.Millisecond)
	if !ts.After(last) {
		ts = last.Add(time.Millisecond)
	}
	return ts
}
