// Package economy is Eilo's coin balance, inventory and rewards.
package economy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"eilo/internal/pet"
	"eilo/internal/session"
	"eilo/internal/store"
)

var (
	ErrInsufficientFunds = errors.New("economy: insufficient funds")
	ErrAlreadyOwned      = errors.New("economy: item already owned")
	ErrUnknownItem       = errors.New("economy: unknown item")
	ErrNoSession         = errors.New("economy: no active session")
)

// SettingsStore is where balance and inventory live.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (store.Settings, error)
	SetSettings(ctx context.Context, userID string, patch store.SettingsPatch) (store.Settings, error)
}

// Speaker voices ledger events through the mood machine.
type Speaker interface {
	Say(text string) bool
}

// Ledger tracks the signed-in user's economy. Balance and inventory are
// always written to the store in one patch.
type Ledger struct {
	mu       sync.Mutex
	store    SettingsStore
	speaker  Speaker
	refusals *pet.Pool
	onChange func(store.Settings)

	sess     *session.Session
	settings store.Settings
	claims   map[string]bool
}

// NewLedger creates a ledger with no active session.
func NewLedger(st SettingsStore, sp Speaker) *Ledger {
	return &Ledger{
		store:    st,
		speaker:  sp,
		refusals: pet.NewPool(Refusals()...),
		claims:   make(map[string]bool),
	}
}

// OnChange registers a callback for every persisted settings change.
func (l *Ledger) OnChange(fn func(store.Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Begin loads the user's economy for a new session. One-time rewards can
// be claimed again in every new session.
func (l *Ledger) Begin(ctx context.Context, sess session.Session) error {
	settings, err := l.store.GetSettings(ctx, sess.User.ID)
	if err != nil {
		return fmt.Errorf("load economy: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sess = &sess
	l.settings = settings
	l.claims = make(map[string]bool)
	return nil
}

// End closes the session.
func (l *Ledger) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sess = nil
	l.settings = store.Settings{}
	l.claims = make(map[string]bool)
}

// Balance returns the current balance.
func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings.Balance
}

// Owns reports whether the inventory holds item.
func (l *Ledger) Owns(item string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings.Owns(item)
}

// Inventory returns a copy of the inventory.
func (l *Ledger) Inventory() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.settings.Inventory...)
}

// Award grants amount for rewardID. A one-time reward is granted at most
// once per session. It reports whether coins were granted.
func (l *Ledger) Award(ctx context.Context, amount int, rewardID string, repeatable, silent bool) (bool, error) {
	l.mu.Lock()
	if l.sess == nil {
		l.mu.Unlock()
		return false, ErrNoSession
	}
	if !repeatable && l.claims[rewardID] {
		l.mu.Unlock()
		return false, nil
	}

	next, err := l.store.SetSettings(ctx, l.sess.User.ID, store.SettingsPatch{
		Balance: store.Int(l.settings.Balance + amount),
	})
	if err != nil {
		l.mu.Unlock()
		return false, fmt.Errorf("award %s: %w", rewardID, err)
	}
	if !repeatable {
		l.claims[rewardID] = true
	}
	l.settings = next
	onChange := l.onChange
	l.mu.Unlock()

	log.Info().Str("reward", rewardID).Int("amount", amount).Int("balance", next.Balance).Msg("coins awarded")
	if onChange != nil {
		onChange(next)
	}
	if !silent {
		l.speaker.Say(fmt.Sprintf("Yay, +%d coins! ✨", amount))
	}
	return true, nil
}

// Purchase buys itemID. Debit and inventory are persisted together.
// Insufficient funds get an in-character refusal and change nothing.
func (l *Ledger) Purchase(ctx context.Context, itemID string) (bool, error) {
	item, ok := Lookup(itemID)
	if !ok {
		return false, ErrUnknownItem
	}

	l.mu.Lock()
	if l.sess == nil {
		l.mu.Unlock()
		return false, ErrNoSession
	}
	if l.settings.Owns(itemID) {
		l.mu.Unlock()
		return false, ErrAlreadyOwned
	}
	if l.settings.Balance < item.Price {
		refusal := l.refusals.Next()
		l.mu.Unlock()
		l.speaker.Say(refusal)
		return false, ErrInsufficientFunds
	}

	inventory := append(append([]string(nil), l.settings.Inventory...), itemID)
	next, err := l.store.SetSettings(ctx, l.sess.User.ID, store.SettingsPatch{
		Balance:   store.Int(l.settings.Balance - item.Price),
		Inventory: store.Strings(inventory),
	})
	if err != nil {
		l.mu.Unlock()
		return false, fmt.Errorf("purchase %s: %w", itemID, err)
	}
	l.settings = next
	onChange := l.onChange
	l.mu.Unlock()

	log.Info().Str("item", itemID).Int("balance", next.Balance).Msg("item purchased")
	if onChange != nil {
		onChange(next)
	}
	l.speaker.Say(fmt.Sprintf("Ooh, a %s! Thank you! 🎀", item.Name))
	return true, nil
}

// Refresh replaces the cached settings after a change made elsewhere.
func (l *Ledger) Refresh(s store.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sess != nil {
		l.settings = s
	}
}
